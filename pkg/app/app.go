// Package app assembles and runs the concierge service: configuration,
// logging, telemetry, stores, provider, tools, gateway, and scheduler, with
// signal-driven graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/casahub/concierge/internal/agent"
	"github.com/casahub/concierge/internal/archive"
	"github.com/casahub/concierge/internal/config"
	"github.com/casahub/concierge/internal/conversation"
	"github.com/casahub/concierge/internal/cron"
	"github.com/casahub/concierge/internal/gateway"
	"github.com/casahub/concierge/internal/hub"
	"github.com/casahub/concierge/internal/logging"
	"github.com/casahub/concierge/internal/provider/openai"
	"github.com/casahub/concierge/internal/telemetry"
	"github.com/casahub/concierge/internal/tool"
)

// shutdownGrace bounds the whole stop sequence.
const shutdownGrace = 15 * time.Second

// App is the fully wired application. Build with New, drive with Run (or
// Start/Shutdown under a service manager).
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	gateway  *gateway.Gateway
	schedule *cron.Scheduler
	archiver *archive.Store
	sessions *conversation.Store
	otelStop func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New loads the config at path, validates it, and wires every component.
func New(path, version string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Log.Level, cfg.Provider.APIKey, os.Getenv(cfg.Provider.APIKeyEnv))
	slog.SetDefault(logger)

	otelStop, err := telemetry.Setup(context.Background(), cfg.Telemetry, logger)
	if err != nil {
		return nil, err
	}

	var archiver *archive.Store
	if cfg.Archive.Enabled {
		archiver, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			otelStop()
			return nil, err
		}
	}

	sessions := conversation.NewStore(archiverOrNil(archiver), logger)
	sessions.SetMaxSessions(cfg.Sessions.Max)

	registry := tool.NewRegistry()
	hubStore := hub.NewStore(hub.DefaultState())
	if err := hub.RegisterTools(registry, hubStore); err != nil {
		otelStop()
		return nil, err
	}

	provCfg := openai.Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		APIKeyEnv: cfg.Provider.APIKeyEnv,
		Model:     cfg.Provider.Model,
		MaxTokens: cfg.Provider.MaxTokens,
		Timeout:   cfg.Provider.Timeout,
	}
	if err := provCfg.Validate(); err != nil {
		otelStop()
		return nil, err
	}
	prov := openai.New(provCfg, logger)

	loop := agent.NewLoop(prov, registry, sessions, agent.Config{
		SystemPrompt: cfg.Agent.SystemPrompt,
		ModelTimeout: cfg.Agent.ModelTimeout,
	}, logger)

	gw := gateway.New(cfg.Server, loop, sessions, prov, logger)

	sched := cron.NewScheduler(logger)
	if err := sched.RegisterJob(&cron.SessionPruneJob{
		Sessions:     sessions,
		Lanes:        loop.Lanes(),
		MaxIdle:      cfg.Sessions.MaxIdle,
		Logger:       logger,
		ScheduleExpr: cfg.Sessions.PruneSchedule,
	}); err != nil {
		otelStop()
		return nil, err
	}

	logger.Info("concierge assembled",
		"version", version,
		"model", prov.ModelName(),
		"listen", cfg.Server.Listen,
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		gateway:  gw,
		schedule: sched,
		archiver: archiver,
		sessions: sessions,
		otelStop: otelStop,
		stopCh:   make(chan struct{}),
	}, nil
}

// archiverOrNil avoids a typed-nil interface when archiving is disabled.
func archiverOrNil(s *archive.Store) conversation.Archiver {
	if s == nil {
		return nil
	}
	return s
}

// Run starts everything and blocks until SIGINT/SIGTERM or Shutdown.
func (a *App) Run() error {
	if err := a.schedule.Start(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := a.gateway.Start(); err != nil {
		_ = a.schedule.Stop(context.Background())
		return fmt.Errorf("app: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received", "signal", sig.String())
	case <-a.stopCh:
		a.logger.Info("shutdown requested")
	}

	return a.stop()
}

// Shutdown unblocks Run. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := a.gateway.Stop(ctx); err != nil {
		a.logger.Error("gateway stop", "error", err)
	}
	if err := a.schedule.Stop(ctx); err != nil {
		a.logger.Error("scheduler stop", "error", err)
	}
	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			a.logger.Error("archive close", "error", err)
		}
	}
	a.otelStop()

	a.logger.Info("shutdown complete")
	return nil
}
