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

// Classifier modes.
const (
	ClassifierModeKeyword = "keyword"
	ClassifierModeLLM     = "llm"
)

// ClassifierConfig configures the topical relevance classifier used by
// the admission check.
type ClassifierConfig struct {
	// Mode selects the classifier chain:
	//   "keyword" - keyword matching only, no external calls
	//   "llm"     - keyword fast path, LLM for ambiguous messages,
	//               keyword fallback when the LLM is unavailable
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Model overrides the LLM model for classification. A small, fast
	// model is appropriate here.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// Timeout bounds the external classification call, in seconds.
	// The chat pipeline never waits longer than this; a timeout falls
	// back to keyword classification.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Keywords overrides the built-in on-topic keyword set.
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// SetDefaults sets default values for ClassifierConfig.
func (c *ClassifierConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ClassifierModeLLM
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout == 0 {
		c.Timeout = 2
	}
}

// Validate validates the ClassifierConfig.
func (c *ClassifierConfig) Validate() error {
	switch c.Mode {
	case "", ClassifierModeKeyword, ClassifierModeLLM:
	default:
		return fmt.Errorf("invalid mode %q, must be 'keyword' or 'llm'", c.Mode)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
