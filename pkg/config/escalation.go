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

// EscalationConfig configures Slack escalation routing.
type EscalationConfig struct {
	// Enabled controls whether escalations are sent.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// WebhookURL is the Slack incoming webhook.
	WebhookURL string `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`

	// Channels maps an escalation category to a Slack channel,
	// e.g. claims: "#support-claims". The "default" key is the
	// fallback channel for unmapped categories.
	Channels map[string]string `yaml:"channels,omitempty" json:"channels,omitempty"`

	// QueueSize bounds the pending escalation queue. When the queue is
	// full new escalations are dropped (and logged), never blocking the
	// chat pipeline.
	QueueSize int `yaml:"queue_size,omitempty" json:"queue_size,omitempty"`

	// Timeout bounds a single webhook delivery, in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// IsEnabled returns true if escalation is enabled and a webhook is set.
func (c *EscalationConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled && c.WebhookURL != ""
}

// SetDefaults sets default values for EscalationConfig.
func (c *EscalationConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(false)
	}
	if c.QueueSize == 0 {
		c.QueueSize = 128
	}
	if c.Timeout == 0 {
		c.Timeout = 10
	}
	if c.Channels == nil {
		c.Channels = map[string]string{}
	}
	if _, ok := c.Channels["default"]; !ok {
		c.Channels["default"] = "#support-general"
	}
}

// Validate validates the EscalationConfig.
func (c *EscalationConfig) Validate() error {
	if c.Enabled != nil && *c.Enabled && c.WebhookURL == "" {
		return fmt.Errorf("enabled escalation requires webhook_url")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative")
	}
	return nil
}
