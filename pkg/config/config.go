// Copyright 2025 Coverbridge, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the supportgw configuration model.
//
// Configuration is loaded from a YAML file, environment variables are
// expanded (${VAR}, ${VAR:-default}, $VAR), defaults are applied per
// section, and the result is validated before the service starts. An
// invalid configuration rejects startup.
package config

import (
	"fmt"
)

// Config is the root configuration for supportgw.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Logger configures process-wide logging.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Admission configures the request admission check.
	Admission AdmissionConfig `yaml:"admission,omitempty" json:"admission,omitempty"`

	// Classifier configures the topical relevance classifier.
	Classifier ClassifierConfig `yaml:"classifier,omitempty" json:"classifier,omitempty"`

	// LLM configures the chat completion provider used by agents.
	LLM LLMProviderConfig `yaml:"llm,omitempty" json:"llm,omitempty"`

	// Embedder configures the embedding provider for the knowledge base.
	Embedder EmbedderConfig `yaml:"embedder,omitempty" json:"embedder,omitempty"`

	// Vector configures the knowledge base vector store.
	Vector VectorConfig `yaml:"vector,omitempty" json:"vector,omitempty"`

	// Session configures conversation persistence.
	Session SessionConfig `yaml:"session,omitempty" json:"session,omitempty"`

	// Escalation configures Slack escalation routing.
	Escalation EscalationConfig `yaml:"escalation,omitempty" json:"escalation,omitempty"`

	// Observability configures metrics.
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`

	// Databases defines named database connections referenced by other
	// sections (admission.sql_database, session.sql_database).
	Databases map[string]*DatabaseConfig `yaml:"databases,omitempty" json:"databases,omitempty"`
}

// SetDefaults applies default values to all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logger.SetDefaults()
	c.Admission.SetDefaults()
	c.Classifier.SetDefaults()
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults(&c.LLM)
	c.Vector.SetDefaults()
	c.Session.SetDefaults()
	c.Escalation.SetDefaults()
	c.Observability.SetDefaults()
	for _, db := range c.Databases {
		db.SetDefaults()
	}
}

// Validate validates all sections.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Admission.Validate(); err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Escalation.Validate(); err != nil {
		return fmt.Errorf("escalation: %w", err)
	}
	for name, db := range c.Databases {
		if err := db.Validate(); err != nil {
			return fmt.Errorf("databases.%s: %w", name, err)
		}
	}

	// Cross-section references
	if c.Admission.Backend == "sql" {
		if _, ok := c.GetDatabase(c.Admission.SQLDatabase); !ok {
			return fmt.Errorf("admission.sql_database %q not found in databases", c.Admission.SQLDatabase)
		}
	}
	if c.Session.Backend == "sql" {
		if _, ok := c.GetDatabase(c.Session.SQLDatabase); !ok {
			return fmt.Errorf("session.sql_database %q not found in databases", c.Session.SQLDatabase)
		}
	}

	return nil
}

// GetDatabase returns the named database config.
func (c *Config) GetDatabase(name string) (*DatabaseConfig, bool) {
	if c.Databases == nil {
		return nil, false
	}
	db, ok := c.Databases[name]
	return db, ok
}

// LoggerConfig configures process-wide logging.
type LoggerConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is the log format (simple, verbose).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// File is the log file path (empty = stderr).
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// SetDefaults sets default values for LoggerConfig.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate validates the LoggerConfig.
func (c *LoggerConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logger.level %q", c.Level)
	}
	return nil
}

// ObservabilityConfig configures metrics.
type ObservabilityConfig struct {
	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Path is the metrics endpoint path.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// IsEnabled returns true if metrics are enabled.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && (c.Enabled == nil || *c.Enabled)
}

// SetDefaults sets default values for ObservabilityConfig.
func (c *ObservabilityConfig) SetDefaults() {
	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return &b
}
