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

package config

import "fmt"

// AdmissionConfig defines the request admission policy.
//
// The defaults are deliberately generous: the check exists to keep the
// assistant on topic and to stop rapid-fire abuse, not to squeeze
// legitimate users.
type AdmissionConfig struct {
	// Enabled controls whether the admission check is active.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// MaxPerHour is the per-identity message ceiling for the trailing hour.
	MaxPerHour int `yaml:"max_per_hour,omitempty" json:"max_per_hour,omitempty"`

	// MaxPerDay is the per-identity message ceiling for the trailing day.
	MaxPerDay int `yaml:"max_per_day,omitempty" json:"max_per_day,omitempty"`

	// MinIntervalSeconds is the minimum allowed gap between two messages
	// from the same identity. Zero disables the throttle.
	MinIntervalSeconds int `yaml:"min_interval_seconds,omitempty" json:"min_interval_seconds,omitempty"`

	// WarningLimit is the number of off-topic warnings issued before an
	// off-topic conversation is denied.
	WarningLimit int `yaml:"warning_limit,omitempty" json:"warning_limit,omitempty"`

	// WarningResetHours is how long before a warning counter resets.
	WarningResetHours int `yaml:"warning_reset_hours,omitempty" json:"warning_reset_hours,omitempty"`

	// RelevanceThreshold is the minimum fraction of on-topic messages a
	// conversation must maintain (0.0 - 1.0).
	RelevanceThreshold float64 `yaml:"relevance_threshold,omitempty" json:"relevance_threshold,omitempty"`

	// RelevanceWindow is the number of recent messages the relevance
	// ratio is computed over.
	RelevanceWindow int `yaml:"relevance_window,omitempty" json:"relevance_window,omitempty"`

	// BlockOnCeiling adds an identity to the block set when it keeps
	// sending after exceeding a rate ceiling.
	BlockOnCeiling *bool `yaml:"block_on_ceiling,omitempty" json:"block_on_ceiling,omitempty"`

	// Backend is the admission state backend ("memory" or "sql").
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`

	// SQLDatabase references a database from the databases section.
	// Required when backend is "sql".
	SQLDatabase string `yaml:"sql_database,omitempty" json:"sql_database,omitempty"`
}

// IsEnabled returns true if the admission check is enabled.
func (c *AdmissionConfig) IsEnabled() bool {
	return c != nil && (c.Enabled == nil || *c.Enabled)
}

// SetDefaults sets default values for AdmissionConfig.
//
// The numeric defaults are the canonical policy: 50 messages/hour,
// 200/day, 2s minimum interval, 3 warnings with a 24h reset, 30%
// relevance over the last 20 messages.
func (c *AdmissionConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.MaxPerHour == 0 {
		c.MaxPerHour = 50
	}
	if c.MaxPerDay == 0 {
		c.MaxPerDay = 200
	}
	if c.MinIntervalSeconds == 0 {
		c.MinIntervalSeconds = 2
	}
	if c.WarningLimit == 0 {
		c.WarningLimit = 3
	}
	if c.WarningResetHours == 0 {
		c.WarningResetHours = 24
	}
	if c.RelevanceThreshold == 0 {
		c.RelevanceThreshold = 0.3
	}
	if c.RelevanceWindow == 0 {
		c.RelevanceWindow = 20
	}
	if c.BlockOnCeiling == nil {
		c.BlockOnCeiling = BoolPtr(false)
	}
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate validates the AdmissionConfig.
func (c *AdmissionConfig) Validate() error {
	if !c.IsEnabled() {
		return nil
	}

	if c.MaxPerHour < 0 {
		return fmt.Errorf("max_per_hour must not be negative")
	}
	if c.MaxPerDay < 0 {
		return fmt.Errorf("max_per_day must not be negative")
	}
	if c.MaxPerHour > 0 && c.MaxPerDay > 0 && c.MaxPerHour > c.MaxPerDay {
		return fmt.Errorf("max_per_hour (%d) must not exceed max_per_day (%d)", c.MaxPerHour, c.MaxPerDay)
	}
	if c.MinIntervalSeconds < 0 {
		return fmt.Errorf("min_interval_seconds must not be negative")
	}
	if c.WarningLimit < 1 {
		return fmt.Errorf("warning_limit must be at least 1")
	}
	if c.WarningResetHours < 1 {
		return fmt.Errorf("warning_reset_hours must be at least 1")
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance_threshold must be between 0.0 and 1.0, got %v", c.RelevanceThreshold)
	}
	if c.RelevanceWindow < 1 {
		return fmt.Errorf("relevance_window must be at least 1")
	}

	switch c.Backend {
	case "", "memory":
	case "sql":
		if c.SQLDatabase == "" {
			return fmt.Errorf("backend 'sql' requires 'sql_database' reference")
		}
	default:
		return fmt.Errorf("invalid backend %q, must be 'memory' or 'sql'", c.Backend)
	}

	return nil
}
