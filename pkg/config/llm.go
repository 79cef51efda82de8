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

// LLMProviderConfig configures an OpenAI-compatible chat completion provider.
type LLMProviderConfig struct {
	// Type is the provider type. Only "openai" (and OpenAI-compatible
	// endpoints via Host) is supported.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Model is the model name.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey authenticates against the provider. Usually set via
	// ${OPENAI_API_KEY} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Host is the API base URL.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// MaxTokens caps completion length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Timeout is the request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// MaxRetries is the number of retries for retryable failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	// RetryDelay is the base retry delay in seconds.
	RetryDelay int `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
}

// SetDefaults sets default values for LLMProviderConfig.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.Temperature == nil {
		t := 0.7
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
}

// Validate validates the LLMProviderConfig.
func (c *LLMProviderConfig) Validate() error {
	if c.Type != "" && c.Type != "openai" {
		return fmt.Errorf("unsupported provider type %q", c.Type)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	// Model is the embedding model name.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// APIKey defaults to the LLM provider key when empty.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// Host defaults to the LLM provider host when empty.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Timeout is the request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// SetDefaults sets default values, inheriting credentials from the LLM
// provider when not set explicitly.
func (c *EmbedderConfig) SetDefaults(llm *LLMProviderConfig) {
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.APIKey == "" && llm != nil {
		c.APIKey = llm.APIKey
	}
	if c.Host == "" {
		if llm != nil && llm.Host != "" {
			c.Host = llm.Host
		} else {
			c.Host = "https://api.openai.com/v1"
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}
