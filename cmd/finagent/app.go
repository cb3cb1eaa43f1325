package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/agent"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/config"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/events"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/logging"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/memory"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/orchestrator"
	"github.com/Madhan-mohan14/Self-Improving-Finance-Agent/internal/telemetry"
)

// app holds the wired dependencies for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	publisher events.Publisher
	orch      *orchestrator.Orchestrator
}

type appOptions struct {
	// needsAgent is false for commands that only read or reset memory;
	// they run with the offline agent so no API keys are required.
	needsAgent bool
	// registerer receives the orchestrator's Prometheus collectors. Nil
	// keeps them unregistered.
	registerer prometheus.Registerer
	progress   orchestrator.ProgressCallback
}

// newApp initializes dependencies in order:
//  1. Loads and validates configuration
//  2. Initializes telemetry and the logger
//  3. Connects the event publisher (NATS when enabled)
//  4. Opens the memory store and builds the agent
//  5. Wires the orchestrator
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	overrides := []config.Override{config.WithMemoryPath(memoryPath)}
	if offline || !opts.needsAgent {
		overrides = append(overrides, config.WithAgentMode(config.AgentModeOffline))
	}
	cfg, err := config.Load(configPath, overrides...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a := &app{cfg: cfg, publisher: events.Nop{}}

	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging, cfg.Observability.EnableTelemetry)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zl := a.logger.Underlying()

	if cfg.NATS.Enabled {
		pub, err := events.Connect(cfg.NATS)
		if err != nil {
			a.close(ctx)
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.publisher = pub
		a.logger.Info(ctx, "publishing run events",
			zap.String("url", cfg.NATS.URL),
			zap.String("subject_prefix", cfg.NATS.SubjectPrefix))
	}

	store, err := memory.NewFileStore(cfg.Memory.Path, zl.Named("memory"))
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	executor, err := agent.New(cfg, zl.Named("agent"))
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to build agent: %w", err)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(zl.Named("orchestrator")),
		orchestrator.WithMetrics(orchestrator.NewMetrics(opts.registerer)),
		orchestrator.WithTracer(a.telemetry.Tracer("finagent/orchestrator")),
		orchestrator.WithPublisher(a.publisher),
	}
	if opts.progress != nil {
		orchOpts = append(orchOpts, orchestrator.WithProgress(opts.progress))
	}
	a.orch, err = orchestrator.New(store, executor, orchOpts...)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	a.logger.Debug(ctx, "finagent initialized",
		zap.String("agent_mode", cfg.Agent.Mode),
		zap.String("memory_path", cfg.Memory.Path),
		logging.Secret("agent_api_key", cfg.Agent.APIKey))
	return a, nil
}

// close retries any unsaved run and releases resources. Errors are
// logged; shutdown continues regardless.
func (a *app) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	if a.orch != nil && a.orch.Dirty() {
		if err := a.orch.Flush(ctx); err != nil {
			a.logf(ctx, "memory still not persisted", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logf(ctx, "failed to close event publisher", err)
		}
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logf(ctx, "telemetry shutdown failed", err)
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync() // Best-effort sync on shutdown
	}
}

func (a *app) logf(ctx context.Context, msg string, err error) {
	if a.logger == nil || errors.Is(err, context.Canceled) {
		return
	}
	a.logger.Warn(ctx, msg, zap.Error(err))
}
