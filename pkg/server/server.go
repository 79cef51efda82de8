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

// Package server exposes the chat and admission admin HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/coverbridge/supportgw/pkg/admission"
	"github.com/coverbridge/supportgw/pkg/agent"
	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/observability"
)

// Server is the HTTP front door: chat requests flow through the
// admission guard before reaching the agent service.
type Server struct {
	config  *config.ServerConfig
	guard   *admission.Guard
	agents  *agent.Service
	metrics http.Handler

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts a metrics scrape endpoint.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = handler
	}
}

// New creates the HTTP server.
func New(cfg *config.ServerConfig, guard *admission.Guard, agents *agent.Service, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if guard == nil {
		return nil, fmt.Errorf("admission guard is required")
	}
	if agents == nil {
		return nil, fmt.Errorf("agent service is required")
	}

	s := &Server{
		config: cfg,
		guard:  guard,
		agents: agents,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(requestMetrics)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)

		if s.config.IsAdminEnabled() {
			r.Route("/admission", func(r chi.Router) {
				r.Get("/status", s.handleAdmissionStatus)
				r.Delete("/blocks", s.handleUnblockAll)
				r.Delete("/blocks/{key}", s.handleUnblock)
				r.Post("/warnings/{key}/reset", s.handleResetWarnings)
			})
		}
	})

	return r
}

// Start serves HTTP until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Address(),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", s.config.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestMetrics records request count and duration per route.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metrics := observability.GetGlobalMetrics()
		if metrics == nil {
			return
		}

		// The route pattern is only resolved after routing, so it is
		// read on the way out. Unmatched requests keep the raw path.
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		metrics.RecordHTTPRequest(r.Context(), r.Method, route, ww.Status(), time.Since(start))
	})
}

// requestLogger logs each request with its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
