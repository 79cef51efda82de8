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
	"log/slog"
)

// Chain is the production classifier: keyword fast path, then the LLM
// for ambiguous messages. When the LLM call fails or times out the
// message is treated as on-topic with middling confidence, so a
// classifier outage never blocks users.
type Chain struct {
	keyword *KeywordClassifier
	llm     Classifier
}

// NewChain creates the keyword-then-LLM chain.
func NewChain(keyword *KeywordClassifier, llm Classifier) *Chain {
	return &Chain{keyword: keyword, llm: llm}
}

// Classify runs the chain.
func (c *Chain) Classify(ctx context.Context, message string) (Result, error) {
	if c.keyword.Matches(message) {
		return Result{
			Relevant:   true,
			Topic:      "insurance",
			Confidence: 1.0,
		}, nil
	}

	result, err := c.llm.Classify(ctx, message)
	if err != nil {
		slog.Warn("Relevance classification unavailable, allowing message", "error", err)
		return Result{
			Relevant:   true,
			Topic:      "unknown",
			Confidence: 0.5,
		}, nil
	}
	return result, nil
}
