package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/repsync/repsync/internal/config"
	"github.com/repsync/repsync/internal/local"
	"github.com/repsync/repsync/internal/remote"
	syncp "github.com/repsync/repsync/internal/sync"
	"github.com/repsync/repsync/internal/telemetry"
)

// app holds the wired stores for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	local  *local.Store
	remote *remote.Resilient
	repo   *syncp.Repository

	closers []func()
}

// openApp loads the config, installs telemetry and opens both stores.
// The caller must call close.
func openApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	logger := newLogger(cmd.Bool("verbose"))
	cfgPath := cmd.String("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w\n\nRun 'repsync setup' to create one", cfgPath, err)
	}
	logger.Debug("config loaded", "path", cfgPath, "backend", cfg.Remote.Backend, "poll_interval", cfg.Sync.PollInterval)

	a := &app{cfg: cfg, logger: logger}

	// --- Telemetry (optional) ------------------------------------------------

	telCfg := telemetry.FromConfig(cfg.Telemetry, version)
	shutdownTel, err := telemetry.Setup(ctx, telCfg)
	if err != nil {
		logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
	} else if telCfg.Enabled() {
		logger.Info("telemetry enabled", "endpoint", telCfg.OTLPEndpoint)
	}
	a.closers = append(a.closers, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTel(flushCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	})

	// --- Local store ---------------------------------------------------------

	store, err := local.Open(cfg.Local.Path)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening local store at %q: %w", cfg.Local.Path, err)
	}
	a.local = store
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			logger.Error("closing local store", "error", err)
		}
	})
	logger.Debug("local store opened", "path", cfg.Local.Path)

	// --- Remote store --------------------------------------------------------

	rs, err := remote.Open(ctx, cfg.Remote, logger)
	if err != nil {
		// The local copy stays usable; the repository degrades to offline.
		logger.Warn("remote store unavailable, running local-only", "backend", cfg.Remote.Backend, "error", err)
		rs = nil
	}
	a.remote = rs

	var remoteStore syncp.Store
	if rs != nil {
		remoteStore = rs
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := rs.Close(closeCtx); err != nil {
				logger.Error("closing remote store", "error", err)
			}
		})
	}

	var opts []syncp.Option
	if cfg.Sync.UploadRate > 0 {
		opts = append(opts, syncp.WithUploadRate(cfg.Sync.UploadRate))
	}
	a.repo = syncp.NewRepository(store, remoteStore, logger, opts...)
	return a, nil
}

// close waits for background remote writes and releases everything in
// reverse order of opening.
func (a *app) close() {
	if a.repo != nil {
		a.repo.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// checkRemote is the wizard's connectivity test: open the backend and list
// workouts once.
func checkRemote(logger *slog.Logger) func(context.Context, config.RemoteConfig) error {
	return func(ctx context.Context, rc config.RemoteConfig) error {
		if rc.Timeout == 0 {
			rc.Timeout = 10 * time.Second
		}
		rs, err := remote.Open(ctx, rc, logger)
		if err != nil {
			return err
		}
		if rs == nil {
			return nil
		}
		defer func() { _ = rs.Close(context.WithoutCancel(ctx)) }()

		if _, err := rs.Workouts(ctx); err != nil {
			return fmt.Errorf("listing workouts: %w", err)
		}
		return nil
	}
}
