// Package app provides the top-level application lifecycle: it wires the
// acquisition, analysis, correlation, and output dependencies together and
// executes one pipeline run under a distributed run lock.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cardhawk/internal/config"
)

// runLockTTL bounds how long a crashed process can hold the run lock.
const runLockTTL = 2 * time.Hour

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and executes one pipeline run. The run lock
// serializes concurrent invocations across processes; a second invocation
// while one is active fails fast with domain.ErrRunInProgress.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("search_terms", len(a.cfg.Marketplace.SearchTerms)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	release, err := deps.RunLock.Acquire(ctx, runLockTTL)
	if err != nil {
		return fmt.Errorf("app: acquire run lock: %w", err)
	}
	defer release()

	summary, _, err := deps.Pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: run %s: %w", summary.RunID, err)
	}

	a.logger.InfoContext(ctx, "run complete",
		slog.String("run_id", summary.RunID),
		slog.Int("emitted", summary.Emitted),
		slog.Int("excluded", summary.Excluded()),
	)
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
