package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/repsync/repsync/internal/config"
)

// CheckFunc verifies that a remote configuration can be reached. The wizard
// calls it before saving; a nil CheckFunc skips the check.
type CheckFunc func(ctx context.Context, cfg config.RemoteConfig) error

// backendOptions are offered in this order by the remote step.
var backendOptions = []struct {
	name  string
	label string
}{
	{config.BackendNone, "None (local only)"},
	{config.BackendMongo, "MongoDB"},
	{config.BackendS3, "S3-compatible object storage"},
	{config.BackendPostgres, "Postgres"},
}

// Wizard guides the user through first-run configuration.
type Wizard struct {
	prompt  *Prompter
	logger  *slog.Logger
	w       io.Writer
	cfgPath string
	check   CheckFunc
}

// NewWizard creates a Wizard that writes its result to cfgPath.
func NewWizard(r io.Reader, w io.Writer, cfgPath string, check CheckFunc, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt:  NewPrompter(r, w),
		logger:  logger,
		w:       w,
		cfgPath: cfgPath,
		check:   check,
	}
}

// Run executes the interactive setup wizard: local store, remote store,
// sync cadence, then writing the config file.
func (wiz *Wizard) Run(ctx context.Context) error {
	fmt.Fprintf(wiz.w, "\nWelcome to repsync setup!\n")
	fmt.Fprintf(wiz.w, "This wizard writes %s.\n\n", wiz.cfgPath)

	if _, statErr := os.Stat(wiz.cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", wiz.cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	// Step 1: local store.
	fmt.Fprintf(wiz.w, "Step 1/4: Local Store\n")
	defaultDB, err := config.DefaultLocalPath()
	if err != nil {
		return fmt.Errorf("resolving default database path: %w", err)
	}
	cfg := &config.Config{
		Local: config.LocalConfig{Path: wiz.prompt.String("Database file", defaultDB)},
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 2: remote store.
	fmt.Fprintf(wiz.w, "Step 2/4: Remote Store\n")
	remote, err := wiz.buildRemote()
	if err != nil {
		return err
	}
	cfg.Remote = remote

	if wiz.check != nil && remote.Backend != config.BackendNone {
		fmt.Fprintf(wiz.w, "  Connecting to %s...", remote.Backend)
		if err := wiz.check(ctx, remote); err != nil {
			fmt.Fprintf(wiz.w, " failed\n")
			wiz.logger.Warn("remote check failed", "backend", remote.Backend, "error", err)
			if !wiz.prompt.Confirm("Remote store is unreachable. Save anyway?", false) {
				return fmt.Errorf("cannot reach %s backend: %w", remote.Backend, err)
			}
		} else {
			fmt.Fprintf(wiz.w, " ok\n")
		}
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 3: sync cadence.
	fmt.Fprintf(wiz.w, "Step 3/4: Sync\n")
	cfg.Sync.PollInterval = wiz.prompt.Duration("How often should the daemon sync? (30s-24h)", 5*time.Minute, 30*time.Second, 24*time.Hour)
	cfg.Sync.UploadRate = wiz.prompt.Float("Max uploads per second (0 = unlimited)", 0)
	cfg.MetricsAddr = wiz.prompt.Optional("Prometheus metrics address, e.g. :9464")
	fmt.Fprintf(wiz.w, "\n")

	// Step 4: write config.
	fmt.Fprintf(wiz.w, "Step 4/4: Save Configuration\n")
	if err := config.Save(wiz.cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  Config written to %s\n\n", wiz.cfgPath)
	fmt.Fprintf(wiz.w, "Next steps:\n")
	fmt.Fprintf(wiz.w, "  repsync sync-once   # one pass now\n")
	fmt.Fprintf(wiz.w, "  repsync daemon      # keep syncing in the background\n\n")
	return nil
}

// buildRemote asks for the backend and its settings.
func (wiz *Wizard) buildRemote() (config.RemoteConfig, error) {
	labels := make([]string, len(backendOptions))
	for i, o := range backendOptions {
		labels[i] = o.label
	}
	idx, err := wiz.prompt.Select("Where should workouts be mirrored?", labels)
	if err != nil {
		return config.RemoteConfig{}, fmt.Errorf("selecting remote backend: %w", err)
	}

	rc := config.RemoteConfig{Backend: backendOptions[idx].name}
	switch rc.Backend {
	case config.BackendMongo:
		rc.Mongo = &config.MongoConfig{
			URI:      wiz.prompt.String("Connection URI", "mongodb://localhost:27017"),
			Database: wiz.prompt.String("Database", "repsync"),
		}
	case config.BackendS3:
		rc.S3 = &config.S3Config{
			Endpoint: wiz.prompt.Optional("Endpoint URL for S3-compatible services"),
			Region:   wiz.prompt.String("Region", "us-east-1"),
			Bucket:   wiz.prompt.String("Bucket", ""),
			Prefix:   wiz.prompt.Optional("Key prefix"),
		}
		if wiz.prompt.Confirm("Use static access keys instead of the AWS credential chain?", false) {
			rc.S3.AccessKeyID = wiz.prompt.String("Access key ID", "")
			rc.S3.SecretAccessKey = wiz.prompt.Secret("Secret access key", false)
		}
	case config.BackendPostgres:
		rc.Postgres = &config.PostgresConfig{
			DSN: wiz.prompt.Secret("Connection string (postgres://...)", false),
		}
	}
	return rc, nil
}
