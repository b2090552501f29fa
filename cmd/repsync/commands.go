package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/repsync/repsync/internal/config"
	"github.com/repsync/repsync/internal/local"
	"github.com/repsync/repsync/internal/model"
	"github.com/repsync/repsync/internal/observability"
	"github.com/repsync/repsync/internal/setup"
	syncp "github.com/repsync/repsync/internal/sync"
)

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Interactive first-run wizard",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := newLogger(cmd.Bool("verbose"))
			wiz := setup.NewWizard(os.Stdin, os.Stdout, cmd.String("config"), checkRemote(logger), logger)
			return wiz.Run(ctx)
		},
	}
}

func daemonCommand() *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Reconcile continuously every poll interval",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.MetricsAddr != "" {
				stopMetrics := serveMetrics(a.cfg.MetricsAddr, a)
				defer stopMetrics()
			}

			engine := syncp.NewEngine(a.repo, a.cfg.Sync.PollInterval, a.logger)
			a.logger.Info("daemon starting", "poll_interval", a.cfg.Sync.PollInterval, "backend", a.cfg.Remote.Backend)
			if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("sync engine: %w", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}
}

// serveMetrics exposes the Prometheus registry on addr until the returned
// func is called.
func serveMetrics(addr string, a *app) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown", "error", err)
		}
	}
}

func syncOnceCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync-once",
		Usage: "Single reconcile pass then exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info("running single sync pass")
			stats, err := syncp.NewEngine(a.repo, a.cfg.Sync.PollInterval, a.logger).RunOnce(ctx)
			a.logger.Info("sync complete",
				"workouts", stats.Workouts,
				"templates", stats.Templates,
				"uploaded", stats.Uploaded,
				"downloaded", stats.Downloaded,
				"diverged", stats.Diverged,
				"failures", stats.Failures,
				"skipped", stats.Skipped,
			)
			return err
		},
	}
}

func listCommand() *cli.Command {
	jsonFlag := func() cli.Flag { return &cli.BoolFlag{Name: "json", Usage: "print records as JSON"} }
	return &cli.Command{
		Name:  "list",
		Usage: "Print the merged workouts or templates",
		Commands: []*cli.Command{
			{
				Name:  "workouts",
				Usage: "Most recent first",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := openApp(ctx, cmd)
					if err != nil {
						return err
					}
					defer a.close()

					workouts, rec, err := a.repo.FetchWorkouts(ctx)
					if err != nil {
						return err
					}
					if err := printWorkouts(os.Stdout, workouts, cmd.Bool("json")); err != nil {
						return err
					}
					logReconcile(a, model.KindWorkout, rec)
					return nil
				},
			},
			{
				Name:  "templates",
				Usage: "Sorted by name",
				Flags: []cli.Flag{jsonFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := openApp(ctx, cmd)
					if err != nil {
						return err
					}
					defer a.close()

					templates, rec, err := a.repo.FetchTemplates(ctx)
					if err != nil {
						return err
					}
					if err := printTemplates(os.Stdout, templates, cmd.Bool("json")); err != nil {
						return err
					}
					logReconcile(a, model.KindTemplate, rec)
					return nil
				},
			},
		},
	}
}

// logReconcile waits for the background reconciliation of a list call so
// that the process does not exit mid-copy.
func logReconcile(a *app, kind model.Kind, rec *syncp.Reconciliation) {
	stats, _ := rec.Wait(context.Background())
	if stats.Skipped {
		a.logger.Debug("reconciliation skipped", "kind", kind)
		return
	}
	a.logger.Debug("reconciliation finished",
		"kind", kind,
		"uploaded", stats.Uploaded,
		"downloaded", stats.Downloaded,
		"failures", stats.Failures(),
	)
}

func printWorkouts(w io.Writer, workouts []model.Workout, asJSON bool) error {
	if asJSON {
		return writeJSON(w, workouts)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tEXERCISES\tDONE")
	for _, wo := range workouts {
		done := ""
		if wo.Completed {
			done = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", wo.ID, wo.ModifiedAt.Local().Format("2006-01-02 15:04"), wo.Name, len(wo.Exercises), done)
	}
	return tw.Flush()
}

func printTemplates(w io.Writer, templates []model.Template, asJSON bool) error {
	if asJSON {
		return writeJSON(w, templates)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEXERCISES")
	for _, t := range templates {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.ID, t.Name, len(t.Exercises))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// importFile is the layout accepted by the import command and produced by
// "list --json" output combined by hand.
type importFile struct {
	Workouts  []model.Workout  `json:"workouts"`
	Templates []model.Template `json:"templates"`
}

// decodeImport reads an import file and fills in missing IDs and timestamps.
func decodeImport(r io.Reader, now time.Time) (importFile, error) {
	var f importFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return importFile{}, fmt.Errorf("decoding import file: %w", err)
	}
	for i := range f.Workouts {
		if f.Workouts[i].ID == "" {
			f.Workouts[i].ID = model.NewID()
		}
		if f.Workouts[i].ModifiedAt.IsZero() {
			f.Workouts[i].ModifiedAt = now.UTC()
		}
	}
	for i := range f.Templates {
		if f.Templates[i].ID == "" {
			f.Templates[i].ID = model.NewID()
		}
		if f.Templates[i].UpdatedAt.IsZero() {
			f.Templates[i].UpdatedAt = now.UTC()
		}
	}
	return f, nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Save workouts and templates from a JSON file",
		ArgsUsage: "<file.json>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().Get(0)
			if path == "" {
				return errors.New("import: missing file argument")
			}
			fh, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer fh.Close()

			f, err := decodeImport(fh, time.Now())
			if err != nil {
				return err
			}

			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var failed int
			for _, t := range f.Templates {
				if err := a.repo.SaveTemplate(ctx, t); err != nil {
					a.logger.Error("import template", "id", t.ID, "error", err)
					failed++
				}
			}
			for _, w := range f.Workouts {
				if err := a.repo.SaveWorkout(ctx, w); err != nil {
					a.logger.Error("import workout", "id", w.ID, "error", err)
					failed++
				}
			}
			a.repo.Wait()

			a.logger.Info("import complete",
				"workouts", len(f.Workouts),
				"templates", len(f.Templates),
				"failed", failed,
			)
			if failed > 0 {
				return fmt.Errorf("%d record(s) could not be imported", failed)
			}
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a record locally and remotely",
		ArgsUsage: "workout|template <id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			kind, id := cmd.Args().Get(0), cmd.Args().Get(1)
			if id == "" {
				return errors.New("delete: usage: repsync delete workout|template <id>")
			}

			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			switch kind {
			case "workout":
				err = a.repo.DeleteWorkout(ctx, model.Workout{ID: id})
			case "template":
				err = a.repo.DeleteTemplate(ctx, model.Template{ID: id})
			default:
				return fmt.Errorf("delete: unknown kind %q (want workout or template)", kind)
			}
			if err != nil {
				return err
			}
			a.repo.Wait()
			a.logger.Info("deleted", "kind", kind, "id", id)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show config and local store state",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return printStatus(ctx, os.Stdout, cmd.String("config"))
		},
	}
}

// printStatus reads the config and local database without contacting the
// remote store.
func printStatus(ctx context.Context, w io.Writer, cfgPath string) error {
	fmt.Fprintln(w, "Repsync Status")
	fmt.Fprintln(w, "--------------")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(cfgPath); statErr != nil {
			fmt.Fprintf(w, "  Config:    not found (%s)\n", cfgPath)
		} else {
			fmt.Fprintf(w, "  Config:    %s (invalid: %v)\n", cfgPath, err)
		}
		return nil
	}
	fmt.Fprintf(w, "  Config:    %s\n", cfgPath)
	fmt.Fprintf(w, "  Remote:    %s\n", cfg.Remote.Backend)
	fmt.Fprintf(w, "  Poll:      %s\n", cfg.Sync.PollInterval)
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:   %s\n", cfg.MetricsAddr)
	}

	info, err := os.Stat(cfg.Local.Path)
	if err != nil {
		fmt.Fprintf(w, "  Local DB:  not found (%s)\n", cfg.Local.Path)
		return nil
	}
	fmt.Fprintf(w, "  Local DB:  %s (%s)\n", cfg.Local.Path, humanSize(info.Size()))

	store, err := local.Open(cfg.Local.Path)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer store.Close()

	workouts, templates, err := store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}
	fmt.Fprintf(w, "  Records:   %d workout(s), %d template(s)\n", workouts, templates)
	return nil
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Println("repsync", version)
			return nil
		},
	}
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
