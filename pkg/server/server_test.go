package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverbridge/supportgw/pkg/admission"
	"github.com/coverbridge/supportgw/pkg/agent"
	"github.com/coverbridge/supportgw/pkg/classifier"
	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/llms"
	"github.com/coverbridge/supportgw/pkg/observability"
	"github.com/coverbridge/supportgw/pkg/session"
)

type stubClassifier struct {
	result classifier.Result
}

func (c *stubClassifier) Classify(ctx context.Context, message string) (classifier.Result, error) {
	return c.result, nil
}

type stubProvider struct {
	response string
}

func (p *stubProvider) Generate(ctx context.Context, messages []llms.Message, opts *llms.GenerateOptions) (string, llms.Usage, error) {
	return p.response, llms.Usage{}, nil
}

func (p *stubProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, opts *llms.GenerateOptions) (<-chan llms.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) ModelName() string { return "gpt-4o" }
func (p *stubProvider) Close() error      { return nil }

type serverFixture struct {
	server *Server
	guard  *admission.Guard
}

func newTestServer(t *testing.T, opts ...func(*config.ServerConfig, *config.AdmissionConfig, *stubClassifier)) *serverFixture {
	t.Helper()

	serverCfg := &config.ServerConfig{}
	serverCfg.SetDefaults()

	admissionCfg := &config.AdmissionConfig{}
	admissionCfg.SetDefaults()
	// Keep the interval throttle out of the way unless a test opts in.
	admissionCfg.MinIntervalSeconds = 0

	cls := &stubClassifier{result: classifier.Result{Relevant: true, Topic: "insurance", Confidence: 1.0}}

	for _, opt := range opts {
		opt(serverCfg, admissionCfg, cls)
	}

	guard, err := admission.NewGuard(admissionCfg, admission.NewMemoryStore(), cls)
	require.NoError(t, err)
	t.Cleanup(func() { guard.Close() })

	svc, err := agent.NewService(&stubProvider{response: "Cyber covers data breaches."}, session.NewMemoryStore())
	require.NoError(t, err)

	srv, err := New(serverCfg, guard, svc)
	require.NoError(t, err)

	return &serverFixture{server: srv, guard: guard}
}

func postChat(t *testing.T, handler http.Handler, body ChatRequest) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(payload))
	req.RemoteAddr = "203.0.113.7:41000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChat_AllowedMessage(t *testing.T) {
	fixture := newTestServer(t)
	router := fixture.server.Router()

	rec := postChat(t, router, ChatRequest{Message: "What does cyber insurance cover?", UserID: "u1", ConversationID: "conv-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, "Cyber covers data breaches.", resp.Response)
	assert.Empty(t, resp.Warning)
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	fixture := newTestServer(t)

	rec := postChat(t, fixture.server.Router(), ChatRequest{UserID: "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_RejectsInvalidJSON(t *testing.T) {
	fixture := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader([]byte("{not json")))
	req.RemoteAddr = "203.0.113.7:41000"
	rec := httptest.NewRecorder()
	fixture.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_FallsBackToClientIP(t *testing.T) {
	fixture := newTestServer(t)
	router := fixture.server.Router()

	rec := postChat(t, router, ChatRequest{Message: "What is a premium?"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The anonymous request was bucketed under its IP.
	status, err := fixture.guard.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.RequestsLastHour)
}

func TestChat_DeniedWhenOverHourlyCeiling(t *testing.T) {
	fixture := newTestServer(t, func(_ *config.ServerConfig, admissionCfg *config.AdmissionConfig, _ *stubClassifier) {
		admissionCfg.MaxPerHour = 2
	})
	router := fixture.server.Router()

	for i := 0; i < 2; i++ {
		rec := postChat(t, router, ChatRequest{Message: "What is a deductible?", UserID: "u1"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postChat(t, router, ChatRequest{Message: "What is a deductible?", UserID: "u1"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp blockedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Blocked)
	assert.Contains(t, resp.Error, "hourly message limit")
}

func TestChat_SurfacesOffTopicWarning(t *testing.T) {
	fixture := newTestServer(t, func(_ *config.ServerConfig, _ *config.AdmissionConfig, cls *stubClassifier) {
		cls.result = classifier.Result{Relevant: false, Topic: "gaming", Confidence: 0.6, Suggestion: "ask about cyber coverage"}
	})

	rec := postChat(t, fixture.server.Router(), ChatRequest{Message: "best video games?", UserID: "u1", ConversationID: "conv-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Warning)
	assert.Contains(t, resp.Warning, "gaming")
}

func TestChat_BlockedIdentity(t *testing.T) {
	fixture := newTestServer(t)
	require.NoError(t, fixture.guard.Block(context.Background(), "u1"))

	rec := postChat(t, fixture.server.Router(), ChatRequest{Message: "What is a premium?", UserID: "u1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAdmin_StatusAndUnblock(t *testing.T) {
	fixture := newTestServer(t)
	router := fixture.server.Router()
	require.NoError(t, fixture.guard.Block(context.Background(), "u1"))
	require.NoError(t, fixture.guard.Block(context.Background(), "u2"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admission/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status admission.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 2, status.BlockedCount)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/admission/blocks/u1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/admission/blocks/u1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/admission/blocks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unblocked_count":1`)
}

func TestAdmin_ResetWarnings(t *testing.T) {
	fixture := newTestServer(t)

	rec := httptest.NewRecorder()
	fixture.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/admission/warnings/u1/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_DisabledHidesEndpoints(t *testing.T) {
	fixture := newTestServer(t, func(serverCfg *config.ServerConfig, _ *config.AdmissionConfig, _ *stubClassifier) {
		serverCfg.AdminEnabled = config.BoolPtr(false)
	})

	rec := httptest.NewRecorder()
	fixture.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admission/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	fixture := newTestServer(t)

	rec := httptest.NewRecorder()
	fixture.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	method string
	route  string
	status int
}

func (m *recordingMetrics) RecordAdmission(ctx context.Context, verdict string, failedOpen bool) {}
func (m *recordingMetrics) RecordClassification(ctx context.Context, mode string, duration time.Duration, err error) {
}
func (m *recordingMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
}
func (m *recordingMetrics) RecordEscalation(ctx context.Context, category string, err error) {}

func (m *recordingMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method: method, route: route, status: status})
}

func TestRequestMetricsRecorded(t *testing.T) {
	recorder := &recordingMetrics{}
	observability.SetGlobalMetrics(recorder)
	t.Cleanup(func() { observability.SetGlobalMetrics(nil) })

	fixture := newTestServer(t)
	rec := postChat(t, fixture.server.Router(), ChatRequest{Message: "What is a premium?", UserID: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, recorder.requests, 1)
	assert.Equal(t, http.MethodPost, recorder.requests[0].method)
	assert.Equal(t, "/v1/chat", recorder.requests[0].route)
	assert.Equal(t, http.StatusOK, recorder.requests[0].status)
}

func TestMetricsRouteOnlyWhenConfigured(t *testing.T) {
	fixture := newTestServer(t)

	rec := httptest.NewRecorder()
	fixture.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
