package admission

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLStore_RequestLog(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendRequest(ctx, "u1", base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, store.AppendRequest(ctx, "u2", base))

	count, err := store.CountRequestsSince(ctx, "u1", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = store.CountAllRequestsSince(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	last, ok, err := store.LastRequestAt(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(base.Add(4*time.Minute)))

	_, ok, err = store.LastRequestAt(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PruneRequestsBefore(ctx, base.Add(3*time.Minute)))
	count, err = store.CountRequestsSince(ctx, "u1", base)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLStore_Warnings(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	count, err := store.IncrementWarnings(ctx, "u1", at)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementWarnings(ctx, "u1", at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, lastAt, err := store.WarningState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, lastAt.Equal(at.Add(time.Minute)))

	total, err := store.TotalWarnings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	require.NoError(t, store.ResetWarnings(ctx, "u1"))
	count, _, err = store.WarningState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// No warnings at all still sums cleanly.
	total, err = store.TotalWarnings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSQLStore_BlockSet(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	at := time.Now().UTC()

	require.NoError(t, store.Block(ctx, "u1", at))
	require.NoError(t, store.Block(ctx, "u2", at))
	require.NoError(t, store.Block(ctx, "u1", at))

	blocked, err := store.IsBlocked(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = store.IsBlocked(ctx, "")
	require.NoError(t, err)
	assert.False(t, blocked)

	keys, err := store.BlockedKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, keys)

	removed, err := store.Unblock(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Unblock(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := store.UnblockAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLStore_RelevanceSamples(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		sample := RelevanceSample{Relevant: i >= 20, Confidence: 0.5, At: at.Add(time.Duration(i) * time.Second)}
		require.NoError(t, store.AddRelevanceSample(ctx, "conv", sample))
	}

	samples, err := store.RecentRelevanceSamples(ctx, "conv", 10)
	require.NoError(t, err)
	require.Len(t, samples, 10)

	// The window holds the 10 newest samples, oldest first, which in
	// this fixture are all relevant.
	for _, s := range samples {
		assert.True(t, s.Relevant)
	}
	assert.True(t, samples[0].At.Before(samples[9].At))
}

func TestSQLStore_GuardIntegration(t *testing.T) {
	store := newSQLStore(t)
	clock := newFakeClock()

	cfg := testConfig()
	guard, err := NewGuard(cfg, store, onTopic(), WithClock(clock.Now))
	require.NoError(t, err)
	defer guard.Close()

	ctx := context.Background()

	for i := 0; i < cfg.MaxPerHour; i++ {
		result, err := guard.Check(ctx, chatRequest("u1", "policy question"))
		require.NoError(t, err)
		require.Equal(t, VerdictAllow, result.Verdict)
		clock.Advance(3 * time.Second)
	}

	result, err := guard.Check(ctx, chatRequest("u1", "one more"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)

	clock.Advance(61 * time.Minute)
	result, err = guard.Check(ctx, chatRequest("u1", "after the window"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)
}
