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

// Package escalation hands conversations off to human specialists via
// Slack webhooks. Delivery is asynchronous: events are queued and a
// single worker drains the queue, so the chat path never waits on
// Slack.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/httpclient"
	"github.com/coverbridge/supportgw/pkg/observability"
)

// Event describes one conversation handed to a human.
type Event struct {
	ConversationID string    `json:"conversation_id"`
	Identity       string    `json:"identity,omitempty"`
	Category       string    `json:"category"`
	Reason         string    `json:"reason"`
	Message        string    `json:"message"`
	At             time.Time `json:"at"`
}

// Notifier delivers escalation events.
type Notifier interface {
	// Notify enqueues an event for delivery. It never blocks; when
	// the queue is full the event is dropped and logged.
	Notify(event Event) bool

	// Close drains the queue and stops the worker.
	Close() error
}

// SlackNotifier posts escalation events to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channels   map[string]string
	timeout    time.Duration
	httpClient *httpclient.Client

	queue     chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewSlackNotifier creates a notifier and starts its delivery worker.
func NewSlackNotifier(cfg *config.EscalationConfig) (*SlackNotifier, error) {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil, fmt.Errorf("escalation webhook_url is required")
	}

	n := &SlackNotifier{
		webhookURL: cfg.WebhookURL,
		channels:   cfg.Channels,
		timeout:    time.Duration(cfg.Timeout) * time.Second,
		httpClient: httpclient.New(
			httpclient.WithMaxRetries(2),
			httpclient.WithBaseDelay(time.Second),
			httpclient.WithHeaderParser(httpclient.ParseStandardHeaders),
		),
		queue: make(chan Event, cfg.QueueSize),
		done:  make(chan struct{}),
	}

	go n.worker()
	return n, nil
}

// Notify enqueues an event for delivery.
func (n *SlackNotifier) Notify(event Event) bool {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case n.queue <- event:
		return true
	default:
		slog.Warn("Escalation queue full, dropping event",
			"conversation_id", event.ConversationID,
			"category", event.Category)
		return false
	}
}

// Close drains the queue and stops the worker.
func (n *SlackNotifier) Close() error {
	n.closeOnce.Do(func() {
		close(n.queue)
		<-n.done
	})
	return nil
}

func (n *SlackNotifier) worker() {
	defer close(n.done)

	for event := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		err := n.deliver(ctx, event)
		cancel()

		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordEscalation(ctx, event.Category, err)
		}
		if err != nil {
			slog.Error("Escalation delivery failed",
				"conversation_id", event.ConversationID,
				"category", event.Category,
				"error", err)
		}
	}
}

func (n *SlackNotifier) deliver(ctx context.Context, event Event) error {
	payload := map[string]any{
		"channel": n.channelFor(event.Category),
		"text":    formatEvent(event),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// channelFor routes a category to a Slack channel, falling back to
// the default channel.
func (n *SlackNotifier) channelFor(category string) string {
	if channel, ok := n.channels[strings.ToLower(category)]; ok {
		return channel
	}
	if channel, ok := n.channels["default"]; ok {
		return channel
	}
	return "#support-general"
}

func formatEvent(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *Escalation* [%s]\n", event.Category)
	fmt.Fprintf(&b, "*Conversation:* %s\n", event.ConversationID)
	if event.Identity != "" {
		fmt.Fprintf(&b, "*User:* %s\n", event.Identity)
	}
	fmt.Fprintf(&b, "*Reason:* %s\n", event.Reason)
	if event.Message != "" {
		fmt.Fprintf(&b, "*Last message:* %s\n", event.Message)
	}
	fmt.Fprintf(&b, "*At:* %s", event.At.Format(time.RFC3339))
	return b.String()
}

// Ensure SlackNotifier implements Notifier.
var _ Notifier = (*SlackNotifier)(nil)
