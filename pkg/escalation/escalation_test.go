package escalation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/supportgw/pkg/config"
)

func testConfig(webhookURL string) *config.EscalationConfig {
	cfg := &config.EscalationConfig{WebhookURL: webhookURL}
	cfg.SetDefaults()
	return cfg
}

func TestNotify_DeliversToWebhook(t *testing.T) {
	var mu sync.Mutex
	var payloads []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier, err := NewSlackNotifier(testConfig(srv.URL))
	require.NoError(t, err)

	ok := notifier.Notify(Event{
		ConversationID: "conv-1",
		Identity:       "u1",
		Category:       "claim",
		Reason:         "user wants to file a claim",
		Message:        "I need to file a claim for my flooded warehouse",
	})
	assert.True(t, ok)

	require.NoError(t, notifier.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	text, _ := payloads[0]["text"].(string)
	assert.Contains(t, text, "conv-1")
	assert.Contains(t, text, "file a claim")
}

func TestChannelRouting(t *testing.T) {
	cfg := testConfig("https://hooks.example.com/x")
	cfg.Channels = map[string]string{
		"default": "#support-general",
		"claim":   "#claims-desk",
	}

	notifier, err := NewSlackNotifier(cfg)
	require.NoError(t, err)
	defer notifier.Close()

	assert.Equal(t, "#claims-desk", notifier.channelFor("claim"))
	assert.Equal(t, "#claims-desk", notifier.channelFor("CLAIM"))
	assert.Equal(t, "#support-general", notifier.channelFor("unknown"))
}

func TestNotify_DropsWhenQueueFull(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.QueueSize = 1

	notifier, err := NewSlackNotifier(cfg)
	require.NoError(t, err)

	// First event occupies the worker, second fills the queue.
	notifier.Notify(Event{ConversationID: "conv-1", Category: "claim"})
	time.Sleep(50 * time.Millisecond)
	notifier.Notify(Event{ConversationID: "conv-2", Category: "claim"})

	dropped := notifier.Notify(Event{ConversationID: "conv-3", Category: "claim"})
	assert.False(t, dropped)

	close(blocked)
	require.NoError(t, notifier.Close())
}

func TestNewSlackNotifier_RequiresWebhook(t *testing.T) {
	_, err := NewSlackNotifier(&config.EscalationConfig{})
	require.Error(t, err)
}

func TestFormatEvent(t *testing.T) {
	text := formatEvent(Event{
		ConversationID: "conv-9",
		Category:       "complaint",
		Reason:         "repeated frustration",
		At:             time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, text, "conv-9")
	assert.Contains(t, text, "complaint")
	assert.Contains(t, text, "2025-06-01T12:00:00Z")
}
