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

// Package classifier decides whether a message is topically relevant
// to insurance and risk management. A keyword fast path handles
// obviously on-topic messages; ambiguous ones go to an LLM in JSON
// mode. Classification failures never block a message.
package classifier

import (
	"context"
	"fmt"

	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/llms"
)

// Result is a topical relevance judgment for one message.
type Result struct {
	// Relevant reports whether the message is on-topic.
	Relevant bool `json:"is_insurance_related"`

	// Topic is a brief description of what the message is about.
	Topic string `json:"topic"`

	// Confidence is the classifier's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Suggestion is a redirect hint for off-topic messages.
	Suggestion string `json:"suggestion"`
}

// Classifier judges topical relevance.
type Classifier interface {
	Classify(ctx context.Context, message string) (Result, error)
}

// New builds the classifier chain from config: keyword fast path
// first, then the LLM for ambiguous messages when mode is "llm".
func New(cfg *config.ClassifierConfig, provider llms.Provider) (Classifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("classifier config is required")
	}

	keyword := NewKeywordClassifier(cfg.Keywords)
	if cfg.Mode == config.ClassifierModeKeyword {
		return keyword, nil
	}

	if provider == nil {
		return nil, fmt.Errorf("llm provider is required for classifier mode %q", cfg.Mode)
	}
	return NewChain(keyword, NewLLMClassifier(cfg, provider)), nil
}
