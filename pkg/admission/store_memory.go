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
	"sort"
	"sync"
	"time"
)

// maxSamplesPerConversation caps the retained relevance window per
// conversation. The ratio only ever looks at the most recent
// RelevanceWindow samples, so anything beyond a small multiple is dead
// weight.
const maxSamplesPerConversation = 100

type warningRecord struct {
	Count  int
	LastAt time.Time
}

// MemoryStore is an in-memory implementation of Store.
// It is thread-safe and suitable for single-instance deployments;
// state does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string][]time.Time
	warnings map[string]*warningRecord
	blocks   map[string]time.Time
	samples  map[string][]RelevanceSample
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string][]time.Time),
		warnings: make(map[string]*warningRecord),
		blocks:   make(map[string]time.Time),
		samples:  make(map[string][]RelevanceSample),
	}
}

// AppendRequest records an accepted request timestamp for a key.
func (s *MemoryStore) AppendRequest(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.requests[key], at)

	// Prune the key's log to the trailing day while we hold the lock.
	// The day window is the widest ceiling, so older entries can never
	// influence a count again.
	cutoff := at.Add(-24 * time.Hour)
	idx := sort.Search(len(log), func(i int) bool {
		return !log[i].Before(cutoff)
	})
	if idx > 0 {
		log = append([]time.Time(nil), log[idx:]...)
	}

	s.requests[key] = log
	return nil
}

// CountRequestsSince counts a key's requests at or after since.
func (s *MemoryStore) CountRequestsSince(ctx context.Context, key string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.requests[key]
	idx := sort.Search(len(log), func(i int) bool {
		return !log[i].Before(since)
	})
	return len(log) - idx, nil
}

// CountAllRequestsSince counts requests across all keys.
func (s *MemoryStore) CountAllRequestsSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, log := range s.requests {
		idx := sort.Search(len(log), func(i int) bool {
			return !log[i].Before(since)
		})
		total += len(log) - idx
	}
	return total, nil
}

// LastRequestAt returns a key's most recent request timestamp.
func (s *MemoryStore) LastRequestAt(ctx context.Context, key string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.requests[key]
	if len(log) == 0 {
		return time.Time{}, false, nil
	}
	return log[len(log)-1], true, nil
}

// PruneRequestsBefore drops request timestamps older than before.
func (s *MemoryStore) PruneRequestsBefore(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, log := range s.requests {
		idx := sort.Search(len(log), func(i int) bool {
			return !log[i].Before(before)
		})
		if idx == len(log) {
			delete(s.requests, key)
		} else if idx > 0 {
			s.requests[key] = append([]time.Time(nil), log[idx:]...)
		}
	}
	return nil
}

// WarningState returns a key's warning count and last warning time.
func (s *MemoryStore) WarningState(ctx context.Context, key string) (int, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.warnings[key]
	if !ok {
		return 0, time.Time{}, nil
	}
	return rec.Count, rec.LastAt, nil
}

// IncrementWarnings bumps a key's warning counter.
func (s *MemoryStore) IncrementWarnings(ctx context.Context, key string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.warnings[key]
	if !ok {
		rec = &warningRecord{}
		s.warnings[key] = rec
	}
	rec.Count++
	rec.LastAt = at
	return rec.Count, nil
}

// ResetWarnings clears a key's warning counter.
func (s *MemoryStore) ResetWarnings(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.warnings, key)
	return nil
}

// TotalWarnings sums all active warning counters.
func (s *MemoryStore) TotalWarnings(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, rec := range s.warnings {
		total += rec.Count
	}
	return total, nil
}

// IsBlocked reports block set membership.
func (s *MemoryStore) IsBlocked(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blocks[key]
	return ok, nil
}

// Block adds a key to the block set.
func (s *MemoryStore) Block(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[key]; !ok {
		s.blocks[key] = at
	}
	return nil
}

// Unblock removes a key from the block set.
func (s *MemoryStore) Unblock(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.blocks[key]
	delete(s.blocks, key)
	return ok, nil
}

// UnblockAll clears the block set.
func (s *MemoryStore) UnblockAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.blocks)
	s.blocks = make(map[string]time.Time)
	return n, nil
}

// BlockedKeys lists the block set.
func (s *MemoryStore) BlockedKeys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.blocks))
	for key := range s.blocks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// AddRelevanceSample appends a classified message to a conversation's
// relevance window.
func (s *MemoryStore) AddRelevanceSample(ctx context.Context, conversationID string, sample RelevanceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := append(s.samples[conversationID], sample)
	if len(samples) > maxSamplesPerConversation {
		samples = append([]RelevanceSample(nil), samples[len(samples)-maxSamplesPerConversation:]...)
	}
	s.samples[conversationID] = samples
	return nil
}

// RecentRelevanceSamples returns up to limit most recent samples for a
// conversation, oldest first.
func (s *MemoryStore) RecentRelevanceSamples(ctx context.Context, conversationID string, limit int) ([]RelevanceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.samples[conversationID]
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}

	out := make([]RelevanceSample, len(samples))
	copy(out, samples)
	return out, nil
}

// Close clears all state.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = make(map[string][]time.Time)
	s.warnings = make(map[string]*warningRecord)
	s.blocks = make(map[string]time.Time)
	s.samples = make(map[string][]RelevanceSample)
	return nil
}

// Size returns the number of tracked identities (for testing).
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}
