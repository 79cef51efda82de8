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

// Package observability exposes service metrics through OpenTelemetry
// with a Prometheus exporter.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics creates the service meter backed by a Prometheus
// exporter and installs it as the global recorder. The returned
// handler serves the scrape endpoint.
func InitMetrics() (*PrometheusMetrics, http.Handler, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("supportgw")

	admissionChecks, err := meter.Int64Counter(
		"supportgw_admission_checks_total",
		metric.WithDescription("Total admission checks by verdict"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create admission counter: %w", err)
	}

	admissionFailOpen, err := meter.Int64Counter(
		"supportgw_admission_fail_open_total",
		metric.WithDescription("Admission checks allowed because the check itself failed"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create fail-open counter: %w", err)
	}

	classifierDuration, err := meter.Float64Histogram(
		"supportgw_classifier_duration_seconds",
		metric.WithDescription("Relevance classification duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create classifier duration histogram: %w", err)
	}

	classifierErrors, err := meter.Int64Counter(
		"supportgw_classifier_errors_total",
		metric.WithDescription("Total relevance classification errors"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create classifier errors counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"supportgw_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"supportgw_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"supportgw_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"supportgw_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	escalations, err := meter.Int64Counter(
		"supportgw_escalations_total",
		metric.WithDescription("Total conversations escalated to a human"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create escalations counter: %w", err)
	}

	escalationErrors, err := meter.Int64Counter(
		"supportgw_escalation_errors_total",
		metric.WithDescription("Total escalation delivery failures"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create escalation errors counter: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"supportgw_http_requests_total",
		metric.WithDescription("Total HTTP requests by method, route, and status"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"supportgw_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	metrics := &PrometheusMetrics{
		admissionChecks:    admissionChecks,
		admissionFailOpen:  admissionFailOpen,
		classifierDuration: classifierDuration,
		classifierErrors:   classifierErrors,
		llmDuration:        llmDuration,
		llmInputTokens:     llmInputTokens,
		llmOutputTokens:    llmOutputTokens,
		llmErrorsTotal:     llmErrors,
		escalationsTotal:   escalations,
		escalationErrors:   escalationErrors,
		httpRequests:       httpRequests,
		httpDuration:       httpDuration,
	}

	SetGlobalMetrics(metrics)
	return metrics, promhttp.Handler(), nil
}
