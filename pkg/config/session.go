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

// SessionConfig configures conversation persistence.
type SessionConfig struct {
	// Backend is the storage backend ("memory" or "sql").
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`

	// SQLDatabase references a database from the databases section.
	// Required when backend is "sql".
	SQLDatabase string `yaml:"sql_database,omitempty" json:"sql_database,omitempty"`

	// HistoryLimit is the number of recent messages sent to the agent
	// pipeline as context.
	HistoryLimit int `yaml:"history_limit,omitempty" json:"history_limit,omitempty"`
}

// SetDefaults sets default values for SessionConfig.
func (c *SessionConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 20
	}
}

// Validate validates the SessionConfig.
func (c *SessionConfig) Validate() error {
	switch c.Backend {
	case "", "memory":
	case "sql":
		if c.SQLDatabase == "" {
			return fmt.Errorf("backend 'sql' requires 'sql_database' reference")
		}
	default:
		return fmt.Errorf("invalid backend %q, must be 'memory' or 'sql'", c.Backend)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative")
	}
	return nil
}
