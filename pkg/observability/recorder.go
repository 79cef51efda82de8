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

package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records service-level events. A nil Metrics is valid and
// records nothing.
type Metrics interface {
	RecordAdmission(ctx context.Context, verdict string, failedOpen bool)
	RecordClassification(ctx context.Context, mode string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordEscalation(ctx context.Context, category string, err error)
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)
}

// PrometheusMetrics implements Metrics on OpenTelemetry instruments.
type PrometheusMetrics struct {
	admissionChecks   metric.Int64Counter
	admissionFailOpen metric.Int64Counter

	classifierDuration metric.Float64Histogram
	classifierErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	escalationsTotal metric.Int64Counter
	escalationErrors metric.Int64Counter

	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram
}

// RecordAdmission counts an admission verdict.
func (m *PrometheusMetrics) RecordAdmission(ctx context.Context, verdict string, failedOpen bool) {
	if m == nil || m.admissionChecks == nil {
		return
	}

	m.admissionChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("verdict", verdict),
	))

	if failedOpen && m.admissionFailOpen != nil {
		m.admissionFailOpen.Add(ctx, 1)
	}
}

// RecordClassification observes a relevance classification.
func (m *PrometheusMetrics) RecordClassification(ctx context.Context, mode string, duration time.Duration, err error) {
	if m == nil || m.classifierDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
	}

	m.classifierDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.classifierErrors != nil {
		m.classifierErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordLLMCall observes a completion request.
func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if m.llmInputTokens != nil {
		m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	}
	if m.llmOutputTokens != nil {
		m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))
	}

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordEscalation counts a human-handoff attempt.
func (m *PrometheusMetrics) RecordEscalation(ctx context.Context, category string, err error) {
	if m == nil || m.escalationsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("category", category),
	}

	m.escalationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil && m.escalationErrors != nil {
		m.escalationErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordHTTPRequest observes one served HTTP request.
func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	}

	m.httpRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.httpDuration != nil {
		m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("route", route),
		))
	}
}

// SetGlobalMetrics installs the process-wide recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder, nil when
// metrics are disabled.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
