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

package admission

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coverbridge/supportgw/pkg/classifier"
	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/observability"
)

const lockShards = 64

// keyedMutex serializes admission checks per identity so two
// concurrent requests from the same key cannot both slip under a
// ceiling. Keys are hashed onto a fixed set of shards.
type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (m *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	shard := &m.shards[h.Sum32()%lockShards]
	shard.Lock()
	return shard.Unlock
}

// Guard runs the admission check for incoming chat messages.
//
// The pipeline per message: block set, hourly and daily ceilings,
// minimum interval, then topical relevance with progressive warnings.
// Denied requests are never counted toward the windows. Infrastructure
// failures fail open.
type Guard struct {
	config     *config.AdmissionConfig
	store      Store
	classifier classifier.Classifier
	locks      keyedMutex
	now        func() time.Time

	janitorStop chan struct{}
	janitorOnce sync.Once
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// NewGuard creates a Guard.
func NewGuard(cfg *config.AdmissionConfig, store Store, cls classifier.Classifier, opts ...Option) (*Guard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("admission config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("admission store is required")
	}
	if cls == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	g := &Guard{
		config:      cfg,
		store:       store,
		classifier:  cls,
		now:         time.Now,
		janitorStop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Check runs the admission pipeline for a request.
//
// Infrastructure failures (store outage, classifier outage) are logged
// and the message is allowed; a degraded admission layer must never
// take the assistant down with it. Only invalid input is returned as
// an error.
func (g *Guard) Check(ctx context.Context, req *Request) (*Result, error) {
	key, err := identityKey(req)
	if err != nil {
		return nil, err
	}

	if !g.config.IsEnabled() {
		return &Result{Verdict: VerdictAllow, Relevant: true}, nil
	}

	result, err := g.evaluate(ctx, key, req)
	if err != nil {
		slog.Error("Admission check failed, allowing request", "key", key, "error", err)
		g.record(ctx, VerdictAllow, true)
		return &Result{Verdict: VerdictAllow, Relevant: true}, nil
	}

	g.record(ctx, result.Verdict, false)
	return result, nil
}

func (g *Guard) evaluate(ctx context.Context, key string, req *Request) (*Result, error) {
	unlock := g.locks.lock(key)
	defer unlock()

	now := g.now()

	blocked, err := g.store.IsBlocked(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("block set lookup: %w", err)
	}
	// The IP is checked against the block set on its own, so a blocked
	// address cannot come back under a fresh identity key.
	if !blocked {
		if ip := strings.TrimSpace(req.IP); ip != "" && "ip:"+ip != key {
			blocked, err = g.store.IsBlocked(ctx, "ip:"+ip)
			if err != nil {
				return nil, fmt.Errorf("block set lookup: %w", err)
			}
		}
	}
	if blocked {
		return &Result{Verdict: VerdictDeny, Reason: reasonBlocked}, nil
	}

	if result, err := g.checkCeilings(ctx, key, now); err != nil || result != nil {
		return result, err
	}
	if result, err := g.checkInterval(ctx, key, now); err != nil || result != nil {
		return result, err
	}

	// The request is admitted as far as rate limits go; record it
	// before the relevance check so off-topic messages still count
	// toward the windows.
	if err := g.store.AppendRequest(ctx, key, now); err != nil {
		return nil, fmt.Errorf("append request: %w", err)
	}

	return g.checkRelevance(ctx, key, req, now)
}

func (g *Guard) checkInterval(ctx context.Context, key string, now time.Time) (*Result, error) {
	if g.config.MinIntervalSeconds <= 0 {
		return nil, nil
	}

	last, ok, err := g.store.LastRequestAt(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("last request lookup: %w", err)
	}
	if !ok {
		return nil, nil
	}

	minInterval := time.Duration(g.config.MinIntervalSeconds) * time.Second
	elapsed := now.Sub(last)
	if elapsed >= minInterval {
		return nil, nil
	}

	retryAfter := minInterval - elapsed
	return &Result{
		Verdict:    VerdictDeny,
		Reason:     reasonThrottled,
		RetryAfter: &retryAfter,
	}, nil
}

func (g *Guard) checkCeilings(ctx context.Context, key string, now time.Time) (*Result, error) {
	if g.config.MaxPerHour > 0 {
		count, err := g.store.CountRequestsSince(ctx, key, now.Add(-time.Hour))
		if err != nil {
			return nil, fmt.Errorf("hourly count: %w", err)
		}
		if count >= g.config.MaxPerHour {
			return &Result{Verdict: VerdictDeny, Reason: reasonHourlyLimit}, nil
		}
	}

	if g.config.MaxPerDay > 0 {
		count, err := g.store.CountRequestsSince(ctx, key, now.Add(-24*time.Hour))
		if err != nil {
			return nil, fmt.Errorf("daily count: %w", err)
		}
		if count >= g.config.MaxPerDay {
			if g.config.BlockOnCeiling != nil && *g.config.BlockOnCeiling {
				if err := g.store.Block(ctx, key, now); err != nil {
					return nil, fmt.Errorf("block on ceiling: %w", err)
				}
			}
			return &Result{Verdict: VerdictDeny, Reason: reasonDailyLimit}, nil
		}
	}

	return nil, nil
}

func (g *Guard) checkRelevance(ctx context.Context, key string, req *Request, now time.Time) (*Result, error) {
	judgment, err := g.classifier.Classify(ctx, req.Message)
	if err != nil {
		// The classifier chain fails open internally; an error here
		// means the chain itself is misconfigured. Allow anyway.
		slog.Warn("Classifier error, treating message as on-topic", "error", err)
		judgment = classifier.Result{Relevant: true, Topic: "unknown", Confidence: 0.5}
	}

	if req.ConversationID != "" {
		sample := RelevanceSample{
			Relevant:   judgment.Relevant,
			Confidence: judgment.Confidence,
			At:         now,
		}
		if err := g.store.AddRelevanceSample(ctx, req.ConversationID, sample); err != nil {
			return nil, fmt.Errorf("add relevance sample: %w", err)
		}
	}

	if judgment.Relevant {
		return &Result{
			Verdict:    VerdictAllow,
			Relevant:   true,
			Confidence: judgment.Confidence,
		}, nil
	}

	return g.handleOffTopic(ctx, key, req, judgment, now)
}

// handleOffTopic issues progressive warnings for off-topic messages
// and denies once the warning limit is reached in a conversation that
// has been mostly off-topic.
func (g *Guard) handleOffTopic(ctx context.Context, key string, req *Request, judgment classifier.Result, now time.Time) (*Result, error) {
	count, lastAt, err := g.store.WarningState(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("warning state: %w", err)
	}

	resetAfter := time.Duration(g.config.WarningResetHours) * time.Hour
	if count > 0 && now.Sub(lastAt) > resetAfter {
		if err := g.store.ResetWarnings(ctx, key); err != nil {
			return nil, fmt.Errorf("reset warnings: %w", err)
		}
	}

	count, err = g.store.IncrementWarnings(ctx, key, now)
	if err != nil {
		return nil, fmt.Errorf("increment warnings: %w", err)
	}

	result := &Result{
		Verdict:    VerdictAllowWithWarning,
		Relevant:   false,
		Confidence: judgment.Confidence,
		Warnings:   count,
	}

	switch {
	case count >= g.config.WarningLimit:
		ratio, err := g.relevanceRatio(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("relevance ratio: %w", err)
		}
		if ratio < g.config.RelevanceThreshold {
			result.Verdict = VerdictDeny
			result.Warning = ""
			result.Reason = reasonOffTopicLimit
			return result, nil
		}
		// Mostly on-topic conversation, one more chance.
		result.Warning = finalWarning()
	case count == 1:
		result.Warning = friendlyRedirect(judgment.Topic, judgment.Suggestion)
	default:
		result.Warning = firmRedirect()
	}

	return result, nil
}

// relevanceRatio computes the on-topic fraction of a conversation's
// recent messages. New conversations get the benefit of the doubt.
func (g *Guard) relevanceRatio(ctx context.Context, conversationID string) (float64, error) {
	if conversationID == "" {
		return 1.0, nil
	}

	samples, err := g.store.RecentRelevanceSamples(ctx, conversationID, g.config.RelevanceWindow)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 1.0, nil
	}

	onTopic := 0
	for _, s := range samples {
		if s.OnTopic() {
			onTopic++
		}
	}
	return float64(onTopic) / float64(len(samples)), nil
}

// Status reports aggregate admission state for the admin surface.
func (g *Guard) Status(ctx context.Context) (*Status, error) {
	keys, err := g.store.BlockedKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("blocked keys: %w", err)
	}

	warnings, err := g.store.TotalWarnings(ctx)
	if err != nil {
		return nil, fmt.Errorf("total warnings: %w", err)
	}

	lastHour, err := g.store.CountAllRequestsSince(ctx, g.now().Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("hourly request count: %w", err)
	}

	return &Status{
		BlockedKeys:      keys,
		BlockedCount:     len(keys),
		WarningsIssued:   warnings,
		RequestsLastHour: lastHour,
	}, nil
}

// Block adds an identity to the block set.
func (g *Guard) Block(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidIdentity
	}
	return g.store.Block(ctx, key, g.now())
}

// Unblock removes an identity from the block set. Returns true if the
// identity was blocked.
func (g *Guard) Unblock(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidIdentity
	}
	return g.store.Unblock(ctx, key)
}

// UnblockAll clears the block set, returning the number of identities
// removed.
func (g *Guard) UnblockAll(ctx context.Context) (int, error) {
	return g.store.UnblockAll(ctx)
}

// ResetWarnings clears an identity's warning counter.
func (g *Guard) ResetWarnings(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidIdentity
	}
	return g.store.ResetWarnings(ctx, key)
}

// StartJanitor prunes expired request timestamps on an interval until
// the context is cancelled or Close is called. Pruning is an
// optimization; counts are always computed against the window cutoff.
func (g *Guard) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-g.janitorStop:
				return
			case <-ticker.C:
				cutoff := g.now().Add(-24 * time.Hour)
				if err := g.store.PruneRequestsBefore(ctx, cutoff); err != nil {
					slog.Warn("Admission prune failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the janitor. The store is owned by the caller.
func (g *Guard) Close() error {
	g.janitorOnce.Do(func() {
		close(g.janitorStop)
	})
	return nil
}

func (g *Guard) record(ctx context.Context, verdict Verdict, failedOpen bool) {
	metrics := observability.GetGlobalMetrics()
	if metrics != nil {
		metrics.RecordAdmission(ctx, string(verdict), failedOpen)
	}
}

// identityKey resolves the rate-limiting identity for a request,
// preferring the explicit identity key over the IP address.
func identityKey(req *Request) (string, error) {
	if req == nil {
		return "", ErrInvalidIdentity
	}
	if key := strings.TrimSpace(req.IdentityKey); key != "" {
		return key, nil
	}
	if ip := strings.TrimSpace(req.IP); ip != "" {
		return "ip:" + ip, nil
	}
	return "", ErrInvalidIdentity
}
