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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coverbridge/supportgw/pkg/llms"
)

// Intent is the routed conversation intent.
type Intent string

const (
	// IntentSupport is general coverage and policy questions.
	IntentSupport Intent = "support"

	// IntentQuote is quote, application, and pricing requests.
	IntentQuote Intent = "quote"

	// IntentRisk is risk assessment and exposure analysis.
	IntentRisk Intent = "risk"
)

const routerPrompt = `You are an intent router for a business-insurance assistant. Classify the user message into exactly one category:

- "support": questions about coverage, policies, claims processes, insurance concepts
- "quote": requests for a quote, pricing, or help with an application
- "risk": risk assessment, exposure analysis, what could go wrong for a business

User message: %q

Respond with a JSON object:
{
    "intent": "support" | "quote" | "risk",
    "confidence": 0.0-1.0
}`

var quoteKeywords = []string{"quote", "pricing", "how much", "apply", "application", "cost of"}

var riskKeywords = []string{"risk assessment", "exposure", "what could go wrong", "vulnerab", "threat"}

// IntentRouter classifies messages into agent intents. An LLM decides;
// keyword matching is the fallback when it is unavailable.
type IntentRouter struct {
	provider llms.Provider
	model    string
}

// NewIntentRouter creates a router using a small, fast model.
func NewIntentRouter(provider llms.Provider, model string) *IntentRouter {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &IntentRouter{provider: provider, model: model}
}

// Route returns the intent for a message, IntentSupport when in doubt.
func (r *IntentRouter) Route(ctx context.Context, message string) Intent {
	intent, err := r.routeLLM(ctx, message)
	if err != nil {
		slog.Warn("Intent routing unavailable, using keyword fallback", "error", err)
		return keywordIntent(message)
	}
	return intent
}

func (r *IntentRouter) routeLLM(ctx context.Context, message string) (Intent, error) {
	if r.provider == nil {
		return IntentSupport, fmt.Errorf("no llm provider configured")
	}

	temperature := 0.1
	text, _, err := r.provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleUser, Content: fmt.Sprintf(routerPrompt, message)},
	}, &llms.GenerateOptions{
		Model:       r.model,
		Temperature: &temperature,
		MaxTokens:   50,
		JSONMode:    true,
	})
	if err != nil {
		return IntentSupport, err
	}

	var decision struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &decision); err != nil {
		return IntentSupport, fmt.Errorf("failed to parse intent: %w", err)
	}

	switch Intent(decision.Intent) {
	case IntentQuote:
		return IntentQuote, nil
	case IntentRisk:
		return IntentRisk, nil
	default:
		return IntentSupport, nil
	}
}

func keywordIntent(message string) Intent {
	lower := strings.ToLower(message)
	for _, kw := range quoteKeywords {
		if strings.Contains(lower, kw) {
			return IntentQuote
		}
	}
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			return IntentRisk
		}
	}
	return IntentSupport
}
