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
	"database/sql"
	"fmt"
	"time"
)

const createAdmissionTablesSQL = `
CREATE TABLE IF NOT EXISTS admission_requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    identity_key VARCHAR(255) NOT NULL,
    at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_admission_requests_key_at ON admission_requests(identity_key, at);
CREATE INDEX IF NOT EXISTS idx_admission_requests_at ON admission_requests(at);

CREATE TABLE IF NOT EXISTS admission_warnings (
    identity_key VARCHAR(255) PRIMARY KEY,
    count INTEGER NOT NULL DEFAULT 0,
    last_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS admission_blocks (
    identity_key VARCHAR(255) PRIMARY KEY,
    blocked_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS admission_relevance (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id VARCHAR(255) NOT NULL,
    relevant BOOLEAN NOT NULL,
    confidence REAL NOT NULL,
    at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_admission_relevance_conv ON admission_relevance(conversation_id, id);
`

// SQLStore is a SQLite-backed implementation of Store. Admission state
// survives restarts, which the in-memory store does not guarantee.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLite-backed store.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &SQLStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createAdmissionTablesSQL); err != nil {
		return fmt.Errorf("failed to create admission tables: %w", err)
	}
	return nil
}

// AppendRequest records an accepted request timestamp for a key.
func (s *SQLStore) AppendRequest(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admission_requests (identity_key, at) VALUES (?, ?)`, key, at)
	if err != nil {
		return fmt.Errorf("failed to append request: %w", err)
	}
	return nil
}

// CountRequestsSince counts a key's requests at or after since.
func (s *SQLStore) CountRequestsSince(ctx context.Context, key string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admission_requests WHERE identity_key = ? AND at >= ?`, key, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}

// CountAllRequestsSince counts requests across all keys.
func (s *SQLStore) CountAllRequestsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admission_requests WHERE at >= ?`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}

// LastRequestAt returns a key's most recent request timestamp.
func (s *SQLStore) LastRequestAt(ctx context.Context, key string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT at FROM admission_requests WHERE identity_key = ? ORDER BY at DESC LIMIT 1`, key).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last request: %w", err)
	}
	return at, true, nil
}

// PruneRequestsBefore drops request timestamps older than before.
func (s *SQLStore) PruneRequestsBefore(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admission_requests WHERE at < ?`, before)
	if err != nil {
		return fmt.Errorf("failed to prune requests: %w", err)
	}
	return nil
}

// WarningState returns a key's warning count and last warning time.
func (s *SQLStore) WarningState(ctx context.Context, key string) (int, time.Time, error) {
	var count int
	var lastAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT count, last_at FROM admission_warnings WHERE identity_key = ?`, key).Scan(&count, &lastAt)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to query warnings: %w", err)
	}
	return count, lastAt, nil
}

// IncrementWarnings bumps a key's warning counter.
func (s *SQLStore) IncrementWarnings(ctx context.Context, key string, at time.Time) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admission_warnings (identity_key, count, last_at) VALUES (?, 1, ?)
		ON CONFLICT (identity_key) DO UPDATE SET count = count + 1, last_at = excluded.last_at
	`, key, at)
	if err != nil {
		return 0, fmt.Errorf("failed to increment warnings: %w", err)
	}

	count, _, err := s.WarningState(ctx, key)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ResetWarnings clears a key's warning counter.
func (s *SQLStore) ResetWarnings(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admission_warnings WHERE identity_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to reset warnings: %w", err)
	}
	return nil
}

// TotalWarnings sums all active warning counters.
func (s *SQLStore) TotalWarnings(ctx context.Context) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(count) FROM admission_warnings`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum warnings: %w", err)
	}
	return int(total.Int64), nil
}

// IsBlocked reports block set membership.
func (s *SQLStore) IsBlocked(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM admission_blocks WHERE identity_key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query block set: %w", err)
	}
	return true, nil
}

// Block adds a key to the block set.
func (s *SQLStore) Block(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admission_blocks (identity_key, blocked_at) VALUES (?, ?)
		ON CONFLICT (identity_key) DO NOTHING
	`, key, at)
	if err != nil {
		return fmt.Errorf("failed to block key: %w", err)
	}
	return nil
}

// Unblock removes a key from the block set.
func (s *SQLStore) Unblock(ctx context.Context, key string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM admission_blocks WHERE identity_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("failed to unblock key: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// UnblockAll clears the block set.
func (s *SQLStore) UnblockAll(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM admission_blocks`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear block set: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// BlockedKeys lists the block set.
func (s *SQLStore) BlockedKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity_key FROM admission_blocks ORDER BY identity_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list block set: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan blocked key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// AddRelevanceSample appends a classified message to a conversation's
// relevance window.
func (s *SQLStore) AddRelevanceSample(ctx context.Context, conversationID string, sample RelevanceSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admission_relevance (conversation_id, relevant, confidence, at)
		VALUES (?, ?, ?, ?)
	`, conversationID, sample.Relevant, sample.Confidence, sample.At)
	if err != nil {
		return fmt.Errorf("failed to add relevance sample: %w", err)
	}
	return nil
}

// RecentRelevanceSamples returns up to limit most recent samples for a
// conversation, oldest first.
func (s *SQLStore) RecentRelevanceSamples(ctx context.Context, conversationID string, limit int) ([]RelevanceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relevant, confidence, at FROM admission_relevance
		WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query relevance samples: %w", err)
	}
	defer rows.Close()

	var samples []RelevanceSample
	for rows.Next() {
		var sample RelevanceSample
		if err := rows.Scan(&sample.Relevant, &sample.Confidence, &sample.At); err != nil {
			return nil, fmt.Errorf("failed to scan relevance sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; callers expect oldest first.
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Close closes the store.
// It does NOT close the underlying database connection, which may be
// shared with other components.
func (s *SQLStore) Close() error {
	return nil
}
