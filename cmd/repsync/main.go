// Repsync keeps a local workout log in sync with a remote store.
//
// Usage:
//
//	repsync setup                          # interactive first-run wizard
//	repsync daemon [--config <path>]       # reconcile every poll interval
//	repsync sync-once [--config <path>]    # single reconcile pass then exit
//	repsync list workouts|templates        # print the merged records
//	repsync import <file.json>             # save records from a JSON export
//	repsync delete workout|template <id>   # delete a record everywhere
//	repsync status                         # show config and local store state
//	repsync version                        # print version
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/repsync/repsync/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

// newApp builds the command tree. The config and verbose flags are inherited
// by every subcommand.
func newApp() *cli.Command {
	defaultCfg, _ := config.DefaultPath()

	return &cli.Command{
		Name:    "repsync",
		Usage:   "Sync workouts and templates between this device and a remote store",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.yaml",
				Value:   defaultCfg,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			setupCommand(),
			daemonCommand(),
			syncOnceCommand(),
			listCommand(),
			importCommand(),
			deleteCommand(),
			statusCommand(),
			versionCommand(),
		},
	}
}

// newLogger returns a slog.Logger backed by a charm log handler on stderr and
// installs it as the default logger.
func newLogger(verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
