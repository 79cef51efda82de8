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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coverbridge/supportgw/pkg/admission"
	"github.com/coverbridge/supportgw/pkg/agent"
	"github.com/coverbridge/supportgw/pkg/classifier"
	"github.com/coverbridge/supportgw/pkg/config"
	"github.com/coverbridge/supportgw/pkg/embedder"
	"github.com/coverbridge/supportgw/pkg/escalation"
	"github.com/coverbridge/supportgw/pkg/llms"
	"github.com/coverbridge/supportgw/pkg/observability"
	"github.com/coverbridge/supportgw/pkg/server"
	"github.com/coverbridge/supportgw/pkg/session"
	"github.com/coverbridge/supportgw/pkg/vector"
)

// janitorInterval is how often expired admission state is pruned.
const janitorInterval = 10 * time.Minute

// ServeCmd starts the chat gateway.
type ServeCmd struct {
	Port  int  `help:"Override the configured listen port."`
	Watch bool `help:"Watch config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := c.loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	// A single SQLite connection pool is shared between the admission
	// and session stores to avoid "database is locked" errors.
	dbPool := config.NewDBPool()
	defer dbPool.Close()

	var metricsHandler http.Handler
	if cfg.Observability.Metrics.IsEnabled() {
		_, handler, err := observability.InitMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		metricsHandler = handler
	}

	provider, err := llms.NewOpenAIProvider(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create llm provider: %w", err)
	}
	defer provider.Close()

	cls, err := classifier.New(&cfg.Classifier, provider)
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}

	admissionStore, err := admission.NewStoreFromConfig(&cfg.Admission, cfg, dbPool)
	if err != nil {
		return fmt.Errorf("failed to create admission store: %w", err)
	}
	defer admissionStore.Close()

	guard, err := admission.NewGuard(&cfg.Admission, admissionStore, cls)
	if err != nil {
		return fmt.Errorf("failed to create admission guard: %w", err)
	}
	defer guard.Close()
	guard.StartJanitor(ctx, janitorInterval)

	sessionStore, err := session.NewStoreFromConfig(&cfg.Session, cfg, dbPool)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	defer sessionStore.Close()

	agentOpts := []agent.ServiceOption{
		agent.WithHistoryLimit(cfg.Session.HistoryLimit),
		agent.WithIntentRouter(agent.NewIntentRouter(provider, "")),
	}

	if kb, err := buildKnowledgeBase(cfg); err != nil {
		return err
	} else if kb != nil {
		agentOpts = append(agentOpts, agent.WithKnowledgeBase(kb))
	}

	if cfg.Escalation.IsEnabled() {
		notifier, err := escalation.NewSlackNotifier(&cfg.Escalation)
		if err != nil {
			return fmt.Errorf("failed to create escalation notifier: %w", err)
		}
		defer notifier.Close()
		agentOpts = append(agentOpts,
			agent.WithEscalation(agent.NewEscalationDetector(provider, ""), notifier))
		slog.Info("Escalation routing enabled", "channels", len(cfg.Escalation.Channels))
	}

	agents, err := agent.NewService(provider, sessionStore, agentOpts...)
	if err != nil {
		return fmt.Errorf("failed to create agent service: %w", err)
	}

	serverOpts := []server.Option{}
	if metricsHandler != nil {
		serverOpts = append(serverOpts, server.WithMetricsHandler(metricsHandler))
	}

	srv, err := server.New(&cfg.Server, guard, agents, serverOpts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("supportgw ready",
		"address", cfg.Server.Address(),
		"model", cfg.LLM.Model,
		"classifier", cfg.Classifier.Mode,
		"admission_backend", cfg.Admission.Backend,
		"session_backend", cfg.Session.Backend)

	return srv.Start(ctx)
}

func (c *ServeCmd) loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		slog.Info("No config file given, using defaults")
		return config.Default(), nil, nil
	}

	loader := config.NewLoader(path)
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "path", path)
	return cfg, loader, nil
}

// buildKnowledgeBase wires the embedder and vector store. Without an
// embedder API key the knowledge base is skipped and the agent answers
// from the model alone.
func buildKnowledgeBase(cfg *config.Config) (*agent.KnowledgeBase, error) {
	if cfg.Embedder.APIKey == "" {
		slog.Info("No embedder credentials, knowledge base disabled")
		return nil, nil
	}

	emb, err := embedder.NewOpenAIEmbedder(&cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	vectors, err := vector.NewProviderFromConfig(&cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector provider: %w", err)
	}

	slog.Info("Knowledge base enabled", "backend", cfg.Vector.Type, "collection", cfg.Vector.Collection)
	return agent.NewKnowledgeBase(emb, vectors, cfg.Vector.Collection, cfg.Vector.TopK), nil
}
