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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/llms"
	"github.com/coverbridge/supportgw/pkg/observability"
)

const relevancePrompt = `Analyze if this message is related to insurance, risk management, or business coverage.

Message: %q

Consider these as ON-TOPIC:
- Insurance questions (any type of business insurance)
- Risk management and assessment
- Business operations that relate to insurance needs
- Coverage recommendations
- Claims scenarios
- Compliance and regulatory questions
- Company information needed for insurance

Consider these as OFF-TOPIC:
- Programming/coding requests
- Homework help (non-insurance)
- General knowledge questions
- Entertainment
- Personal advice (non-business)
- Math problems (unless insurance calculations)
- Creative writing
- Technical support (non-insurance systems)

Respond with JSON:
{
    "is_insurance_related": true/false,
    "topic": "brief topic description",
    "confidence": 0.0-1.0,
    "suggestion": "helpful redirect if off-topic"
}`

// LLMClassifier asks a small model for a relevance judgment in JSON
// mode. Every call is bounded by the configured timeout.
type LLMClassifier struct {
	provider llms.Provider
	model    string
	timeout  time.Duration
}

// NewLLMClassifier creates an LLM-backed classifier.
func NewLLMClassifier(cfg *config.ClassifierConfig, provider llms.Provider) *LLMClassifier {
	return &LLMClassifier{
		provider: provider,
		model:    cfg.Model,
		timeout:  time.Duration(cfg.Timeout) * time.Second,
	}
}

// Classify asks the model whether the message is on-topic.
func (c *LLMClassifier) Classify(ctx context.Context, message string) (Result, error) {
	startTime := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	temperature := 0.3
	text, _, err := c.provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleUser, Content: fmt.Sprintf(relevancePrompt, message)},
	}, &llms.GenerateOptions{
		Model:       c.model,
		Temperature: &temperature,
		JSONMode:    true,
	})

	duration := time.Since(startTime)
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordClassification(ctx, "llm", duration, err)
	}

	if err != nil {
		return Result{}, fmt.Errorf("relevance classification failed: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		return Result{}, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return result, nil
}

// extractJSON trims any fencing the model wraps around the object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	return text
}
