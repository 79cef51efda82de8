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

package classifier

import (
	"context"
	"strings"
)

// defaultKeywords is the built-in on-topic vocabulary. A substring hit
// on any of these admits the message without an LLM call.
var defaultKeywords = []string{
	"insurance", "policy", "coverage", "claim", "premium", "deductible",
	"liability", "risk", "underwriting", "broker", "agent",
	"cyber", "epli", "e&o", "errors", "omissions", "d&o", "directors",
	"officers", "general liability", "professional", "indemnity", "loss",
	"exposure", "compliance", "regulatory", "tech e&o", "technology",
	"business", "company", "startup", "enterprise", "sme", "quote",
}

// KeywordClassifier matches messages against an on-topic keyword set.
// It only ever returns positive matches with full confidence; a miss
// means "ambiguous", not "off-topic".
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier creates a keyword classifier. An empty keyword
// list selects the built-in vocabulary.
func NewKeywordClassifier(keywords []string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &KeywordClassifier{keywords: lowered}
}

// Classify checks the message against the keyword set.
func (c *KeywordClassifier) Classify(ctx context.Context, message string) (Result, error) {
	lower := strings.ToLower(message)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return Result{
				Relevant:   true,
				Topic:      "insurance",
				Confidence: 1.0,
			}, nil
		}
	}

	return Result{
		Relevant:   false,
		Topic:      "unknown",
		Confidence: 0,
	}, nil
}

// Matches reports whether the message hits the keyword set without
// building a Result.
func (c *KeywordClassifier) Matches(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
