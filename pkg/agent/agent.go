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

// Package agent answers admitted customer questions. It retrieves
// knowledge-base context, keeps conversation history, and hands
// conversations to humans when the escalation detector says so.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coverbridge/supportgw/pkg/escalation"
	"github.com/coverbridge/supportgw/pkg/llms"
	"github.com/coverbridge/supportgw/pkg/session"
)

const systemPrompt = `You are a friendly Coverbridge insurance broker having a natural conversation with a customer.

CRITICAL INSTRUCTIONS:
1. ALWAYS use the provided knowledge base context as your PRIMARY source
2. Give direct, concise answers that sound natural and conversational
3. Keep responses short (50-100 words) unless asked for details
4. Sound like a helpful human broker, not a formal consultant
5. Answer exactly what they asked - don't over-explain
6. Include specific numbers/limits when relevant to their question
7. Use simple, everyday language

RESPONSE STYLE:
- Be conversational and friendly
- Answer their specific question directly
- Include key details they need (limits, costs, etc.)
- Keep it brief unless they ask for more details
- Sound human, not robotic`

const quotePrompt = `You are a friendly Coverbridge insurance broker helping a customer who wants a quote or is working on an application.

CRITICAL INSTRUCTIONS:
1. ALWAYS use the provided knowledge base context as your PRIMARY source
2. Ask for the details a quote actually needs (industry, revenue, headcount) one step at a time
3. Give ballpark figures only when the knowledge base supports them
4. Keep responses short and conversational
5. Never promise a binding price - quotes come from underwriting

RESPONSE STYLE:
- Be conversational and friendly
- Move the application forward with one concrete next step
- Sound human, not robotic`

const riskPrompt = `You are a Coverbridge risk advisor helping a business understand its exposures.

CRITICAL INSTRUCTIONS:
1. ALWAYS use the provided knowledge base context as your PRIMARY source
2. Name the two or three exposures that matter most for their situation
3. Tie each exposure to the coverage that addresses it
4. Keep responses short (50-100 words) unless asked for details
5. Use simple, everyday language

RESPONSE STYLE:
- Be conversational and friendly
- Answer their specific question directly
- Sound human, not robotic`

const fallbackReply = "I apologize, but I'm having trouble accessing our insurance information right now. Please contact our support team for detailed information about coverage."

// persona selects the agent name and system prompt for an intent.
type persona struct {
	name   string
	prompt string
}

var personas = map[Intent]persona{
	IntentSupport: {name: "broker", prompt: systemPrompt},
	IntentQuote:   {name: "quote-specialist", prompt: quotePrompt},
	IntentRisk:    {name: "risk-advisor", prompt: riskPrompt},
}

func personaFor(intent Intent) persona {
	if p, ok := personas[intent]; ok {
		return p
	}
	return personas[IntentSupport]
}

// promptTokenBudget caps the assembled prompt. History is dropped
// oldest-first until the prompt fits.
const promptTokenBudget = 6000

// Reply is the assistant's answer to one admitted message.
type Reply struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Agent          string `json:"agent"`
	Escalated      bool   `json:"escalated"`
	Category       string `json:"category,omitempty"`
}

// Service coordinates intent routing, knowledge retrieval, response
// generation, and escalation for admitted messages.
type Service struct {
	provider     llms.Provider
	sessions     session.Store
	knowledge    *KnowledgeBase
	router       *IntentRouter
	detector     *EscalationDetector
	notifier     escalation.Notifier
	historyLimit int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithKnowledgeBase attaches knowledge retrieval.
func WithKnowledgeBase(kb *KnowledgeBase) ServiceOption {
	return func(s *Service) {
		s.knowledge = kb
	}
}

// WithIntentRouter attaches per-message intent routing. Without it
// every message goes to the support persona.
func WithIntentRouter(router *IntentRouter) ServiceOption {
	return func(s *Service) {
		s.router = router
	}
}

// WithEscalation attaches escalation detection and delivery.
func WithEscalation(detector *EscalationDetector, notifier escalation.Notifier) ServiceOption {
	return func(s *Service) {
		s.detector = detector
		s.notifier = notifier
	}
}

// WithHistoryLimit caps the number of history messages loaded per turn.
func WithHistoryLimit(limit int) ServiceOption {
	return func(s *Service) {
		s.historyLimit = limit
	}
}

// NewService creates the chat service.
func NewService(provider llms.Provider, sessions session.Store, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}

	s := &Service{
		provider:     provider,
		sessions:     sessions,
		historyLimit: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handle answers one admitted message.
func (s *Service) Handle(ctx context.Context, identity, conversationID, message string) (*Reply, error) {
	if conversationID == "" {
		conversationID = session.NewID()
	}

	if _, err := s.sessions.EnsureConversation(ctx, conversationID, identity); err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}

	history, err := s.sessions.History(ctx, conversationID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	if err := s.sessions.AppendMessage(ctx, session.NewMessage(conversationID, llms.RoleUser, message)); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	reply := &Reply{ConversationID: conversationID}

	p := personaFor(IntentSupport)
	if s.router != nil {
		p = personaFor(s.router.Route(ctx, message))
	}
	reply.Agent = p.name

	if s.detector != nil {
		decision := s.detector.Analyze(ctx, message, history)
		if decision.ShouldEscalate {
			reply.Escalated = true
			reply.Category = decision.Category
			if s.notifier != nil {
				s.notifier.Notify(escalation.Event{
					ConversationID: conversationID,
					Identity:       identity,
					Category:       decision.Category,
					Reason:         decision.Reason,
					Message:        message,
				})
			}
		}
	}

	text, err := s.generate(ctx, p, message, history)
	if err != nil {
		slog.Error("Response generation failed", "conversation_id", conversationID, "error", err)
		text = fallbackReply
	}
	reply.Text = text

	assistantMsg := session.NewMessage(conversationID, llms.RoleAssistant, text)
	assistantMsg.Agent = p.name
	if err := s.sessions.AppendMessage(ctx, assistantMsg); err != nil {
		slog.Warn("Failed to store assistant reply", "conversation_id", conversationID, "error", err)
	}

	return reply, nil
}

func (s *Service) generate(ctx context.Context, p persona, message string, history []*session.Message) (string, error) {
	question := message
	if s.knowledge != nil {
		if knowledgeContext := s.knowledge.Search(ctx, message); knowledgeContext != "" {
			question = fmt.Sprintf(`Using the knowledge base information below, answer the customer's question in a natural, conversational way.

KNOWLEDGE BASE CONTEXT:
%s

CUSTOMER QUESTION: %s

Give a direct, concise answer that sounds like a friendly broker talking to a customer. Focus on exactly what they asked about. Include specific numbers or limits if relevant to their question, but keep it conversational and brief.`, knowledgeContext, message)
		}
	}

	messages := buildMessages(s.provider.ModelName(), p.prompt, question, history)

	temperature := 0.3
	text, _, err := s.provider.Generate(ctx, messages, &llms.GenerateOptions{
		Temperature: &temperature,
		MaxTokens:   800,
	})
	return text, err
}

// buildMessages assembles system prompt, trimmed history, and the
// current question within the prompt token budget.
func buildMessages(model, prompt, question string, history []*session.Message) []llms.Message {
	base := []llms.Message{{Role: llms.RoleSystem, Content: prompt}}
	current := llms.Message{Role: llms.RoleUser, Content: question}

	fixed := llms.CountMessageTokens(model, append(append([]llms.Message{}, base...), current))

	var turns []llms.Message
	budget := promptTokenBudget - fixed
	for i := len(history) - 1; i >= 0; i-- {
		msg := llms.Message{Role: history[i].Role, Content: history[i].Content}
		cost := llms.CountMessageTokens(model, []llms.Message{msg})
		if cost > budget {
			break
		}
		budget -= cost
		turns = append([]llms.Message{msg}, turns...)
	}

	out := append(base, turns...)
	return append(out, current)
}
