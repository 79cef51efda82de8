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
	"github.com/coverbridge/supportgw/pkg/session"
)

const escalationPrompt = `You are an escalation decision system for an AI insurance assistant. Analyze the following user message and conversation context to determine if this conversation should be escalated to a human specialist.

Current User Message: %q

Recent Conversation Context:
%s

ESCALATION CRITERIA - Only escalate if the user:
1. EXPLICITLY requests a human agent ("speak to someone", "human", "agent", "transfer me")
2. Wants to FILE AN ACTUAL CLAIM ("I need to file a claim", "how do I submit a claim")
3. Asks about STATUS of an existing claim ("what's the status of my claim", "my claim number is")
4. Expresses severe frustration or anger (multiple failed attempts)
5. Wants to cancel service or file a formal complaint

DO NOT ESCALATE for:
- Questions about claim EXAMPLES ("what are claim examples", "give me examples")
- Hypothetical scenarios ("what could happen if", "what might occur")
- Educational questions about coverage, limits, policies, processes
- General information requests about insurance concepts
- Questions about possibilities, risks, or potential issues
- Technical questions about coverage details, deductibles, limits
- Industry-specific questions ("as a tech company, what...")
- ANY question that starts with "what", "how", "why" about general topics

Respond with a JSON object:
{
    "should_escalate": true/false,
    "category": "human_request" | "claim" | "complaint" | "other",
    "reason": "brief explanation",
    "confidence": 0.0-1.0
}`

// explicitHandoffKeywords is the conservative fallback when the LLM
// decision is unavailable.
var explicitHandoffKeywords = []string{
	"human", "agent", "speak to someone", "talk to someone", "transfer", "representative",
}

// EscalationDecision is the outcome of escalation analysis.
type EscalationDecision struct {
	ShouldEscalate bool    `json:"should_escalate"`
	Category       string  `json:"category"`
	Reason         string  `json:"reason"`
	Confidence     float64 `json:"confidence"`
}

// EscalationDetector decides when a conversation needs a human.
type EscalationDetector struct {
	provider llms.Provider
	model    string
}

// NewEscalationDetector creates a detector using a small, fast model.
func NewEscalationDetector(provider llms.Provider, model string) *EscalationDetector {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &EscalationDetector{provider: provider, model: model}
}

// Analyze decides whether the message warrants a human handoff. When
// the LLM is unavailable it falls back to explicit handoff keywords.
func (d *EscalationDetector) Analyze(ctx context.Context, message string, history []*session.Message) EscalationDecision {
	decision, err := d.analyzeLLM(ctx, message, history)
	if err != nil {
		slog.Warn("Escalation analysis unavailable, using keyword fallback", "error", err)
		return keywordFallback(message)
	}
	return decision
}

func (d *EscalationDetector) analyzeLLM(ctx context.Context, message string, history []*session.Message) (EscalationDecision, error) {
	if d.provider == nil {
		return EscalationDecision{}, fmt.Errorf("no llm provider configured")
	}

	temperature := 0.1
	text, _, err := d.provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: "You are an expert escalation decision system. Provide accurate JSON analysis of whether conversations need human intervention."},
		{Role: llms.RoleUser, Content: fmt.Sprintf(escalationPrompt, message, formatContext(history))},
	}, &llms.GenerateOptions{
		Model:       d.model,
		Temperature: &temperature,
		MaxTokens:   150,
		JSONMode:    true,
	})
	if err != nil {
		return EscalationDecision{}, err
	}

	var decision EscalationDecision
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &decision); err != nil {
		return EscalationDecision{}, fmt.Errorf("failed to parse escalation decision: %w", err)
	}
	if decision.Category == "" {
		decision.Category = "other"
	}
	return decision, nil
}

func keywordFallback(message string) EscalationDecision {
	lower := strings.ToLower(message)
	for _, kw := range explicitHandoffKeywords {
		if strings.Contains(lower, kw) {
			return EscalationDecision{
				ShouldEscalate: true,
				Category:       "human_request",
				Reason:         "explicit request for a human",
				Confidence:     0.8,
			}
		}
	}
	return EscalationDecision{Category: "other"}
}

func formatContext(history []*session.Message) string {
	if len(history) == 0 {
		return "No previous context"
	}

	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}
