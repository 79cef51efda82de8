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
	"time"
)

// Store is the persistence layer for admission state.
//
// Implementations must be thread-safe. All time arguments are passed
// explicitly so the clock lives in the Guard, not the store.
type Store interface {
	// AppendRequest records an accepted request timestamp for a key.
	AppendRequest(ctx context.Context, key string, at time.Time) error

	// CountRequestsSince counts a key's requests at or after since.
	CountRequestsSince(ctx context.Context, key string, since time.Time) (int, error)

	// CountAllRequestsSince counts requests across all keys.
	CountAllRequestsSince(ctx context.Context, since time.Time) (int, error)

	// LastRequestAt returns a key's most recent request timestamp.
	LastRequestAt(ctx context.Context, key string) (time.Time, bool, error)

	// PruneRequestsBefore drops request timestamps older than before.
	// Called periodically; correctness never depends on it.
	PruneRequestsBefore(ctx context.Context, before time.Time) error

	// WarningState returns a key's warning count and last warning time.
	WarningState(ctx context.Context, key string) (int, time.Time, error)

	// IncrementWarnings bumps a key's warning counter, returning the
	// new count.
	IncrementWarnings(ctx context.Context, key string, at time.Time) (int, error)

	// ResetWarnings clears a key's warning counter.
	ResetWarnings(ctx context.Context, key string) error

	// TotalWarnings sums all active warning counters.
	TotalWarnings(ctx context.Context) (int, error)

	// IsBlocked reports block set membership.
	IsBlocked(ctx context.Context, key string) (bool, error)

	// Block adds a key to the block set.
	Block(ctx context.Context, key string, at time.Time) error

	// Unblock removes a key from the block set. Returns true if the
	// key was present.
	Unblock(ctx context.Context, key string) (bool, error)

	// UnblockAll clears the block set, returning the number of keys
	// removed.
	UnblockAll(ctx context.Context) (int, error)

	// BlockedKeys lists the block set.
	BlockedKeys(ctx context.Context) ([]string, error)

	// AddRelevanceSample appends a classified message to a
	// conversation's relevance window.
	AddRelevanceSample(ctx context.Context, conversationID string, sample RelevanceSample) error

	// RecentRelevanceSamples returns up to limit most recent samples
	// for a conversation, oldest first.
	RecentRelevanceSamples(ctx context.Context, conversationID string, limit int) ([]RelevanceSample, error)

	// Close closes the store and releases resources.
	Close() error
}

// Ensure interface compliance at compile time.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
)
