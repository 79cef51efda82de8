package admission

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/supportgw/pkg/classifier"
	"github.com/coverbridge/supportgw/pkg/config"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type stubClassifier struct {
	result classifier.Result
	err    error
}

func (s *stubClassifier) Classify(ctx context.Context, message string) (classifier.Result, error) {
	return s.result, s.err
}

func onTopic() *stubClassifier {
	return &stubClassifier{result: classifier.Result{Relevant: true, Topic: "insurance", Confidence: 1.0}}
}

// Confidence stays at or below 0.7 so samples count as off-topic in
// the relevance ratio.
func offTopic() *stubClassifier {
	return &stubClassifier{result: classifier.Result{
		Relevant:   false,
		Topic:      "gaming",
		Confidence: 0.6,
		Suggestion: "Ask me about business coverage instead.",
	}}
}

func testConfig() *config.AdmissionConfig {
	cfg := &config.AdmissionConfig{}
	cfg.SetDefaults()
	return cfg
}

func newTestGuard(t *testing.T, cfg *config.AdmissionConfig, cls classifier.Classifier, clock *fakeClock) *Guard {
	t.Helper()

	guard, err := NewGuard(cfg, NewMemoryStore(), cls, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { guard.Close() })
	return guard
}

func chatRequest(key, message string) *Request {
	return &Request{IdentityKey: key, ConversationID: "conv-" + key, Message: message}
}

func TestCheck_AllowsOnTopicMessage(t *testing.T) {
	guard := newTestGuard(t, testConfig(), onTopic(), newFakeClock())

	result, err := guard.Check(context.Background(), chatRequest("u1", "What does my policy cover?"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)
	assert.True(t, result.Allowed())
	assert.True(t, result.Relevant)
	assert.Empty(t, result.Warning)
}

func TestCheck_RequiresIdentity(t *testing.T) {
	guard := newTestGuard(t, testConfig(), onTopic(), newFakeClock())

	_, err := guard.Check(context.Background(), &Request{Message: "hello"})
	require.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = guard.Check(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestCheck_FallsBackToIP(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), onTopic(), clock)
	ctx := context.Background()

	result, err := guard.Check(ctx, &Request{IP: "203.0.113.9", Message: "cyber insurance quote"})
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)

	// Same IP is the same identity for the interval throttle.
	result, err = guard.Check(ctx, &Request{IP: "203.0.113.9", Message: "another question about coverage"})
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
	require.NotNil(t, result.RetryAfter)
}

func TestCheck_MinimumInterval(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), onTopic(), clock)
	ctx := context.Background()

	result, err := guard.Check(ctx, chatRequest("u1", "first"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)

	clock.Advance(500 * time.Millisecond)
	result, err = guard.Check(ctx, chatRequest("u1", "too fast"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
	require.NotNil(t, result.RetryAfter)
	assert.Equal(t, 1500*time.Millisecond, *result.RetryAfter)

	// The denied message must not push the interval forward.
	clock.Advance(1500 * time.Millisecond)
	result, err = guard.Check(ctx, chatRequest("u1", "patient now"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)
}

func TestCheck_HourlyCeiling(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	guard := newTestGuard(t, cfg, onTopic(), clock)
	ctx := context.Background()

	for i := 0; i < cfg.MaxPerHour; i++ {
		result, err := guard.Check(ctx, chatRequest("u1", fmt.Sprintf("message %d", i)))
		require.NoError(t, err)
		require.Equal(t, VerdictAllow, result.Verdict, "message %d", i)
		clock.Advance(3 * time.Second)
	}

	// The 51st message within the hour is denied.
	result, err := guard.Check(ctx, chatRequest("u1", "one too many"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
	assert.Contains(t, result.Reason, "hourly")

	// A different identity is unaffected.
	result, err = guard.Check(ctx, chatRequest("u2", "fresh user"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)

	// After 61 minutes the window has fully slid past.
	clock.Advance(61 * time.Minute)
	result, err = guard.Check(ctx, chatRequest("u1", "back again"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)
}

func TestCheck_CeilingReportedBeforeThrottle(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxPerHour = 2
	guard := newTestGuard(t, cfg, onTopic(), clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := guard.Check(ctx, chatRequest("u1", "ok"))
		require.NoError(t, err)
		require.Equal(t, VerdictAllow, result.Verdict)
		clock.Advance(3 * time.Second)
	}

	// Over the ceiling and inside the minimum interval at once. The
	// ceiling wins: a retry-after would wrongly suggest waiting two
	// seconds fixes anything.
	clock.Advance(-2500 * time.Millisecond) // 500ms after the last message
	result, err := guard.Check(ctx, chatRequest("u1", "rapid fire"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
	assert.Contains(t, result.Reason, "hourly")
	assert.Nil(t, result.RetryAfter)
}

func TestCheck_DeniedRequestsNotCounted(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	guard := newTestGuard(t, cfg, onTopic(), clock)
	ctx := context.Background()

	for i := 0; i < cfg.MaxPerHour; i++ {
		_, err := guard.Check(ctx, chatRequest("u1", "ok"))
		require.NoError(t, err)
		clock.Advance(3 * time.Second)
	}

	// Hammering the denied ceiling does not extend the window.
	for i := 0; i < 10; i++ {
		result, err := guard.Check(ctx, chatRequest("u1", "denied"))
		require.NoError(t, err)
		require.Equal(t, VerdictDeny, result.Verdict)
		clock.Advance(3 * time.Second)
	}

	count, err := guard.store.CountRequestsSince(ctx, "u1", clock.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxPerHour, count)
}

func TestCheck_DailyCeiling(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxPerHour = 0 // isolate the daily ceiling
	guard := newTestGuard(t, cfg, onTopic(), clock)
	ctx := context.Background()

	for i := 0; i < cfg.MaxPerDay; i++ {
		result, err := guard.Check(ctx, chatRequest("u1", "ok"))
		require.NoError(t, err)
		require.Equal(t, VerdictAllow, result.Verdict, "message %d", i)
		clock.Advance(time.Minute)
	}

	result, err := guard.Check(ctx, chatRequest("u1", "over the day limit"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
	assert.Contains(t, result.Reason, "daily")
}

func TestCheck_BlockOnCeiling(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxPerHour = 0
	cfg.MaxPerDay = 3
	cfg.BlockOnCeiling = config.BoolPtr(true)
	guard := newTestGuard(t, cfg, onTopic(), clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := guard.Check(ctx, chatRequest("u1", "ok"))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	result, err := guard.Check(ctx, chatRequest("u1", "over"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)

	blocked, err := guard.store.IsBlocked(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestCheck_BlockedIdentityDenied(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), onTopic(), clock)
	ctx := context.Background()

	require.NoError(t, guard.Block(ctx, "u1"))

	result, err := guard.Check(ctx, chatRequest("u1", "let me in"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)

	removed, err := guard.Unblock(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	result, err = guard.Check(ctx, chatRequest("u1", "policy question"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)
}

func TestCheck_ProgressiveWarnings(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), offTopic(), clock)
	ctx := context.Background()

	// First off-topic message: friendly redirect.
	result, err := guard.Check(ctx, chatRequest("u1", "tell me about video games"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllowWithWarning, result.Verdict)
	assert.True(t, result.Allowed())
	assert.Equal(t, 1, result.Warnings)
	assert.Contains(t, result.Warning, "gaming")
	assert.Contains(t, result.Warning, "Ask me about business coverage instead.")

	// Second: firm redirect.
	clock.Advance(5 * time.Second)
	result, err = guard.Check(ctx, chatRequest("u1", "more games"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllowWithWarning, result.Verdict)
	assert.Equal(t, 2, result.Warnings)
	assert.Contains(t, result.Warning, "focus on insurance-related topics")

	// Third in a conversation that has been entirely off-topic: denied.
	clock.Advance(5 * time.Second)
	result, err = guard.Check(ctx, chatRequest("u1", "even more games"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
	assert.False(t, result.Allowed())
	assert.Contains(t, result.Reason, "maintain focus on insurance")
}

func TestCheck_WarningLimitOfTwoEngagesOnSecondStrike(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.WarningLimit = 2
	guard := newTestGuard(t, cfg, offTopic(), clock)
	ctx := context.Background()

	result, err := guard.Check(ctx, chatRequest("u1", "video games"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllowWithWarning, result.Verdict)
	assert.Equal(t, 1, result.Warnings)

	// With a limit of two, the second strike in an entirely off-topic
	// conversation is already a denial.
	clock.Advance(5 * time.Second)
	result, err = guard.Check(ctx, chatRequest("u1", "more games"))
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
	assert.Equal(t, 2, result.Warnings)
}

func TestCheck_MostlyOnTopicGetsFinalWarning(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cls := onTopic()
	guard := newTestGuard(t, cfg, cls, clock)
	ctx := context.Background()

	// Build an overwhelmingly on-topic conversation.
	for i := 0; i < 10; i++ {
		_, err := guard.Check(ctx, chatRequest("u1", "coverage question"))
		require.NoError(t, err)
		clock.Advance(5 * time.Second)
	}

	// Now drift off-topic three times. The ratio stays above the
	// threshold, so the third strike is a final warning, not a denial.
	cls.result = offTopic().result
	var result *Result
	var err error
	for i := 0; i < 3; i++ {
		result, err = guard.Check(ctx, chatRequest("u1", "off topic"))
		require.NoError(t, err)
		clock.Advance(5 * time.Second)
	}
	assert.Equal(t, VerdictAllowWithWarning, result.Verdict)
	assert.Equal(t, 3, result.Warnings)
	assert.Contains(t, result.Warning, "Final Notice")
}

func TestCheck_WarningsResetAfterQuietPeriod(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), offTopic(), clock)
	ctx := context.Background()

	result, err := guard.Check(ctx, chatRequest("u1", "off topic"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warnings)

	clock.Advance(5 * time.Second)
	result, err = guard.Check(ctx, chatRequest("u1", "off topic"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Warnings)

	// A day later the slate is clean.
	clock.Advance(25 * time.Hour)
	result, err = guard.Check(ctx, chatRequest("u1", "off topic"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warnings)
}

func TestCheck_AdminResetWarnings(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), offTopic(), clock)
	ctx := context.Background()

	_, err := guard.Check(ctx, chatRequest("u1", "off topic"))
	require.NoError(t, err)

	require.NoError(t, guard.ResetWarnings(ctx, "u1"))

	clock.Advance(5 * time.Second)
	result, err := guard.Check(ctx, chatRequest("u1", "off topic"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Warnings)
}

func TestCheck_FailsOpenOnStoreError(t *testing.T) {
	guard, err := NewGuard(testConfig(), &failingStore{}, onTopic())
	require.NoError(t, err)
	defer guard.Close()

	result, err := guard.Check(context.Background(), chatRequest("u1", "hello"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, result.Verdict)
}

func TestCheck_DisabledAllowsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = config.BoolPtr(false)
	guard := newTestGuard(t, cfg, offTopic(), newFakeClock())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := guard.Check(ctx, chatRequest("u1", "anything at all"))
		require.NoError(t, err)
		assert.Equal(t, VerdictAllow, result.Verdict)
	}
}

func TestBlockedIPDeniedUnderNewIdentity(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), onTopic(), clock)
	ctx := context.Background()

	require.NoError(t, guard.Block(ctx, "ip:198.51.100.9"))

	result, err := guard.Check(ctx, &Request{
		IdentityKey: "fresh-user",
		IP:          "198.51.100.9",
		Message:     "what does cyber cover?",
	})
	require.NoError(t, err)
	assert.Equal(t, VerdictDeny, result.Verdict)
}

func TestStatus(t *testing.T) {
	clock := newFakeClock()
	guard := newTestGuard(t, testConfig(), offTopic(), clock)
	ctx := context.Background()

	_, err := guard.Check(ctx, chatRequest("u1", "off topic"))
	require.NoError(t, err)
	require.NoError(t, guard.Block(ctx, "bad-actor"))
	require.NoError(t, guard.Block(ctx, "worse-actor"))

	status, err := guard.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.BlockedCount)
	assert.ElementsMatch(t, []string{"bad-actor", "worse-actor"}, status.BlockedKeys)
	assert.Equal(t, 1, status.WarningsIssued)
	assert.Equal(t, 1, status.RequestsLastHour)

	n, err := guard.UnblockAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status, err = guard.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.BlockedCount)
}

// failingStore errors on every lookup, simulating a store outage.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (f *failingStore) AppendRequest(ctx context.Context, key string, at time.Time) error {
	return errStoreDown
}
func (f *failingStore) CountRequestsSince(ctx context.Context, key string, since time.Time) (int, error) {
	return 0, errStoreDown
}
func (f *failingStore) CountAllRequestsSince(ctx context.Context, since time.Time) (int, error) {
	return 0, errStoreDown
}
func (f *failingStore) LastRequestAt(ctx context.Context, key string) (time.Time, bool, error) {
	return time.Time{}, false, errStoreDown
}
func (f *failingStore) PruneRequestsBefore(ctx context.Context, before time.Time) error {
	return errStoreDown
}
func (f *failingStore) WarningState(ctx context.Context, key string) (int, time.Time, error) {
	return 0, time.Time{}, errStoreDown
}
func (f *failingStore) IncrementWarnings(ctx context.Context, key string, at time.Time) (int, error) {
	return 0, errStoreDown
}
func (f *failingStore) ResetWarnings(ctx context.Context, key string) error { return errStoreDown }
func (f *failingStore) TotalWarnings(ctx context.Context) (int, error)      { return 0, errStoreDown }
func (f *failingStore) IsBlocked(ctx context.Context, key string) (bool, error) {
	return false, errStoreDown
}
func (f *failingStore) Block(ctx context.Context, key string, at time.Time) error {
	return errStoreDown
}
func (f *failingStore) Unblock(ctx context.Context, key string) (bool, error) {
	return false, errStoreDown
}
func (f *failingStore) UnblockAll(ctx context.Context) (int, error) { return 0, errStoreDown }
func (f *failingStore) BlockedKeys(ctx context.Context) ([]string, error) {
	return nil, errStoreDown
}
func (f *failingStore) AddRelevanceSample(ctx context.Context, conversationID string, sample RelevanceSample) error {
	return errStoreDown
}
func (f *failingStore) RecentRelevanceSamples(ctx context.Context, conversationID string, limit int) ([]RelevanceSample, error) {
	return nil, errStoreDown
}
func (f *failingStore) Close() error { return nil }
