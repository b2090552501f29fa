package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope        = "repsync/sync"
	spanReconcile    = "sync.reconcile"
	metricUploaded   = "repsync.sync.uploaded"
	metricDownloaded = "repsync.sync.downloaded"
	metricFailures   = "repsync.sync.failures"
	metricSkipped    = "repsync.sync.skipped"
)

// Stats summarises one engine pass over both record kinds.
type Stats struct {
	Workouts   int // merged workouts
	Templates  int // merged templates
	Uploaded   int
	Downloaded int
	Failures   int
	Diverged   int
	Skipped    int // kinds whose reconciliation was skipped
}

// Engine drives periodic fetches through a [Repository] so that one-sided
// records are reconciled without an interactive caller. Create one with
// [NewEngine] and start it with [Engine.Run].
type Engine struct {
	repo         *Repository
	pollInterval time.Duration
	log          *slog.Logger

	// OTel instruments, never nil (no-op when telemetry is disabled).
	tracer        trace.Tracer
	cntUploaded   metric.Int64Counter
	cntDownloaded metric.Int64Counter
	cntFailures   metric.Int64Counter
	cntSkipped    metric.Int64Counter
}

// NewEngine creates an Engine that polls repo every pollInterval.
func NewEngine(repo *Repository, pollInterval time.Duration, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		repo:         repo,
		pollInterval: pollInterval,
		log:          logger,

		tracer:        tracer,
		cntUploaded:   mustCounter(metricUploaded, "Number of records uploaded by reconciliation"),
		cntDownloaded: mustCounter(metricDownloaded, "Number of records downloaded by reconciliation"),
		cntFailures:   mustCounter(metricFailures, "Number of per-record reconciliation failures"),
		cntSkipped:    mustCounter(metricSkipped, "Number of reconciliations skipped because no remote store is configured"),
	}
}

// reconcile runs one full pass, recording a trace span and metrics.
func (e *Engine) reconcile(ctx context.Context) (Stats, error) {
	ctx, span := e.tracer.Start(ctx, spanReconcile)
	defer span.End()

	stats, err := e.pass(ctx)

	if stats.Uploaded > 0 {
		e.cntUploaded.Add(ctx, int64(stats.Uploaded))
	}
	if stats.Downloaded > 0 {
		e.cntDownloaded.Add(ctx, int64(stats.Downloaded))
	}
	if stats.Failures > 0 {
		e.cntFailures.Add(ctx, int64(stats.Failures))
	}
	if stats.Skipped > 0 {
		e.cntSkipped.Add(ctx, int64(stats.Skipped))
	}

	span.SetAttributes(
		attribute.Int("sync.workouts", stats.Workouts),
		attribute.Int("sync.templates", stats.Templates),
		attribute.Int("sync.uploaded", stats.Uploaded),
		attribute.Int("sync.downloaded", stats.Downloaded),
		attribute.Int("sync.failures", stats.Failures),
		attribute.Int("sync.diverged", stats.Diverged),
		attribute.Int("sync.skipped", stats.Skipped),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return stats, err
}

func (e *Engine) pass(ctx context.Context) (Stats, error) {
	var stats Stats

	workouts, wrec, err := e.repo.FetchWorkouts(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetching workouts: %w", err)
	}
	stats.Workouts = len(workouts)

	templates, trec, err := e.repo.FetchTemplates(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetching templates: %w", err)
	}
	stats.Templates = len(templates)

	for _, rec := range []*Reconciliation{wrec, trec} {
		rs, err := rec.Wait(ctx)
		if err != nil {
			return stats, fmt.Errorf("waiting for reconciliation: %w", err)
		}
		stats.Uploaded += rs.Uploaded
		stats.Downloaded += rs.Downloaded
		stats.Failures += rs.Failures()
		stats.Diverged += rs.Diverged
		if rs.Skipped {
			stats.Skipped++
		}
	}

	e.log.Info("sync pass complete",
		"workouts", stats.Workouts,
		"templates", stats.Templates,
		"uploaded", stats.Uploaded,
		"downloaded", stats.Downloaded,
		"failures", stats.Failures,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// RunOnce performs a single pass and waits for its reconciliation.
func (e *Engine) RunOnce(ctx context.Context) (Stats, error) {
	return e.reconcile(ctx)
}

// Run does an immediate pass and then one per poll interval. It blocks until
// ctx is cancelled, then waits for in-flight background writes.
func (e *Engine) Run(ctx context.Context) error {
	defer e.repo.Wait()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	if _, err := e.reconcile(ctx); err != nil {
		e.log.Error("initial sync pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.reconcile(ctx); err != nil {
				e.log.Error("sync pass failed", "error", err)
			}
		}
	}
}
