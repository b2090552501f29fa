package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/repsync/repsync/internal/merge"
	"github.com/repsync/repsync/internal/model"
	"github.com/repsync/repsync/internal/observability"
)

// Option configures a [Repository].
type Option func(*Repository)

// WithUploadRate limits background uploads to perSecond records per second.
// Zero or a negative value means unlimited.
func WithUploadRate(perSecond float64) Option {
	return func(r *Repository) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithClock overrides the time source used for metric watermarks.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// Repository is the read/write facade over the local and remote stores.
// Create one with [NewRepository]. It owns no durable state; the merged views
// it returns are built per call.
//
// Reads never fail because of the remote store. Writes fail only when the
// local store does. Remote work happens on background goroutines that
// [Repository.Wait] can drain.
type Repository struct {
	local   Store
	remote  Store
	log     *slog.Logger
	limiter *rate.Limiter
	now     func() time.Time

	workouts  *collection[model.Workout]
	templates *collection[model.Template]

	// bg tracks every background goroutine.
	bg sync.WaitGroup

	mu      sync.Mutex
	subs    map[int]func(model.Kind)
	nextSub int
}

// NewRepository wires a Repository to its stores. remote may be nil, in which
// case the repository runs local-only and every remote call is treated as
// unavailable.
func NewRepository(local, remote Store, logger *slog.Logger, opts ...Option) *Repository {
	if remote == nil {
		remote = offline{}
	}
	r := &Repository{
		local:   local,
		remote:  remote,
		log:     logger,
		limiter: rate.NewLimiter(rate.Inf, 1),
		now:     time.Now,
		subs:    make(map[int]func(model.Kind)),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.workouts = &collection[model.Workout]{
		repo:         r,
		kind:         model.KindWorkout,
		fetchLocal:   local.Workouts,
		fetchRemote:  remote.Workouts,
		saveLocal:    local.SaveWorkout,
		saveRemote:   remote.SaveWorkout,
		deleteLocal:  local.DeleteWorkout,
		deleteRemote: remote.DeleteWorkout,
		merge:        merge.Workouts,
	}
	r.templates = &collection[model.Template]{
		repo:         r,
		kind:         model.KindTemplate,
		fetchLocal:   local.Templates,
		fetchRemote:  remote.Templates,
		saveLocal:    local.SaveTemplate,
		saveRemote:   remote.SaveTemplate,
		deleteLocal:  local.DeleteTemplate,
		deleteRemote: remote.DeleteTemplate,
		merge:        merge.Templates,
	}
	return r
}

// FetchWorkouts returns the merged workouts, most recent first. When both
// stores hold the same workout the later ModifiedAt wins; ties keep the local
// copy. The returned [Reconciliation] tracks the background copy of one-sided
// workouts and may be ignored.
func (r *Repository) FetchWorkouts(ctx context.Context) ([]model.Workout, *Reconciliation, error) {
	return r.workouts.fetch(ctx)
}

// FetchTemplates returns the merged templates ordered by name. When both
// stores hold the same template the remote copy wins.
func (r *Repository) FetchTemplates(ctx context.Context) ([]model.Template, *Reconciliation, error) {
	return r.templates.fetch(ctx)
}

// SaveWorkout stores w locally and mirrors it to the remote store in the
// background. A nil error means the workout is durable and the next fetch
// includes it.
func (r *Repository) SaveWorkout(ctx context.Context, w model.Workout) error {
	return r.workouts.save(ctx, w)
}

// SaveTemplate stores t locally and mirrors it to the remote store in the
// background.
func (r *Repository) SaveTemplate(ctx context.Context, t model.Template) error {
	return r.templates.save(ctx, t)
}

// DeleteWorkout removes w locally and from the remote store in the
// background. If the remote delete fails, a later fetch can download the
// workout again.
func (r *Repository) DeleteWorkout(ctx context.Context, w model.Workout) error {
	return r.workouts.delete(ctx, w)
}

// DeleteTemplate removes t locally and from the remote store in the
// background.
func (r *Repository) DeleteTemplate(ctx context.Context, t model.Template) error {
	return r.templates.delete(ctx, t)
}

// Subscribe registers fn to be called after the data of a kind may have
// changed: a fetch produced a merged view, a local save or delete succeeded,
// or a background download wrote to the local store. fn runs on the
// goroutine that made the change and must not block.
func (r *Repository) Subscribe(fn func(model.Kind)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Wait blocks until every background task started so far has finished.
func (r *Repository) Wait() {
	r.bg.Wait()
}

func (r *Repository) notify(kind model.Kind) {
	r.mu.Lock()
	fns := make([]func(model.Kind), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// background runs fn on its own goroutine with a context that keeps ctx's
// values but not its cancellation.
func (r *Repository) background(ctx context.Context, fn func(context.Context)) {
	bgCtx := context.WithoutCancel(ctx)
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		fn(bgCtx)
	}()
}

// logRemote logs a failed remote call. Running without a remote store is
// expected and only logged at debug level.
func (r *Repository) logRemote(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, ErrRemoteUnavailable) {
		r.log.Debug(msg, args...)
		return
	}
	r.log.Warn(msg, args...)
}

// --- per-kind protocol -------------------------------------------------------

// collection runs the fetch/save/delete protocol for one record kind. The
// function fields bind it to the kind-specific store methods and merge policy.
type collection[T model.Record] struct {
	repo *Repository
	kind model.Kind

	fetchLocal   func(context.Context) ([]T, error)
	fetchRemote  func(context.Context) ([]T, error)
	saveLocal    func(context.Context, T) error
	saveRemote   func(context.Context, T) error
	deleteLocal  func(context.Context, string) error
	deleteRemote func(context.Context, string) error
	merge        func(local, cloud []T) []T
}

func (c *collection[T]) fetch(ctx context.Context) ([]T, *Reconciliation, error) {
	r := c.repo

	// The local snapshot is taken before the remote read starts.
	local, err := c.fetchLocal(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetching %ss: %w", ErrLocalStorage, c.kind, err)
	}

	cloud, err := c.fetchRemote(ctx)
	remoteOK := err == nil
	if !remoteOK {
		r.logRemote("remote fetch failed, serving local data", err, "kind", c.kind)
		cloud = nil
	}
	observability.RecordRemoteFetch(c.kind.String(), remoteOK, r.now())

	merged := c.merge(local, cloud)
	r.log.Debug("merged records",
		"kind", c.kind,
		"local", len(local),
		"remote", len(cloud),
		"merged", len(merged),
		"remote_ok", remoteOK,
	)

	// A failing remote counts as empty, so every local record is queued for
	// upload. Only the offline store, which has nothing to write to, skips.
	rec := newReconciliation()
	if !remoteOK && errors.Is(err, ErrRemoteUnavailable) {
		rec.finish(ReconcileStats{Skipped: true})
	} else {
		c.reconcile(ctx, local, cloud, rec)
	}

	r.notify(c.kind)
	return merged, rec, nil
}

// reconcile copies one-sided records across in the background. Upload and
// download run concurrently; a failed record is logged and skipped.
func (c *collection[T]) reconcile(ctx context.Context, local, cloud []T, rec *Reconciliation) {
	toUpload, toDownload := merge.OneSided(local, cloud)
	diverged := merge.Diverged(local, cloud)
	if len(toUpload) == 0 && len(toDownload) == 0 {
		rec.finish(ReconcileStats{Diverged: diverged})
		return
	}

	r := c.repo
	r.background(ctx, func(ctx context.Context) {
		var (
			wg                     sync.WaitGroup
			uploaded, uploadFailed int
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			uploaded, uploadFailed = c.upload(ctx, toUpload)
		}()
		downloaded, downloadFailed := c.download(ctx, toDownload)
		wg.Wait()

		stats := ReconcileStats{
			Uploaded:         uploaded,
			Downloaded:       downloaded,
			UploadFailures:   uploadFailed,
			DownloadFailures: downloadFailed,
			Diverged:         diverged,
		}
		observability.RecordReconcile(c.kind.String(), uploaded, uploadFailed, downloaded, downloadFailed, r.now())
		r.log.Info("reconcile complete",
			"kind", c.kind,
			"uploaded", uploaded,
			"downloaded", downloaded,
			"failures", stats.Failures(),
			"diverged", diverged,
		)
		if downloaded > 0 {
			r.notify(c.kind)
		}
		rec.finish(stats)
	})
}

func (c *collection[T]) upload(ctx context.Context, records []T) (ok, failed int) {
	r := c.repo
	for _, v := range records {
		if err := r.limiter.Wait(ctx); err != nil {
			r.log.Warn("upload pacing failed", "kind", c.kind, "id", v.RecordID(), "error", err)
			failed++
			continue
		}
		if err := c.saveRemote(ctx, v); err != nil {
			r.logRemote("upload failed", err, "kind", c.kind, "id", v.RecordID())
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}

func (c *collection[T]) download(ctx context.Context, records []T) (ok, failed int) {
	r := c.repo
	for _, v := range records {
		if err := c.saveLocal(ctx, v); err != nil {
			r.log.Warn("download failed", "kind", c.kind, "id", v.RecordID(), "error", err)
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}

func (c *collection[T]) save(ctx context.Context, v T) error {
	id := v.RecordID()
	if err := v.Validate(); err != nil {
		return &OpError{Op: "save", Kind: c.kind, ID: id, Err: fmt.Errorf("%w: %w", ErrInvalidRecord, err)}
	}
	if err := c.saveLocal(ctx, v); err != nil {
		return &OpError{Op: "save", Kind: c.kind, ID: id, Err: fmt.Errorf("%w: %w", ErrLocalStorage, err)}
	}
	c.repo.notify(c.kind)

	c.repo.background(ctx, func(ctx context.Context) {
		if err := c.saveRemote(ctx, v); err != nil {
			c.repo.logRemote("remote save failed, will retry on next fetch", err, "kind", c.kind, "id", id)
			observability.RecordRemoteWriteFailure(c.kind.String(), "save")
		}
	})
	return nil
}

func (c *collection[T]) delete(ctx context.Context, v T) error {
	id := v.RecordID()
	if id == "" {
		return &OpError{Op: "delete", Kind: c.kind, Err: fmt.Errorf("%w: empty id", ErrInvalidRecord)}
	}
	if err := c.deleteLocal(ctx, id); err != nil {
		return &OpError{Op: "delete", Kind: c.kind, ID: id, Err: fmt.Errorf("%w: %w", ErrLocalStorage, err)}
	}
	c.repo.notify(c.kind)

	c.repo.background(ctx, func(ctx context.Context) {
		if err := c.deleteRemote(ctx, id); err != nil {
			c.repo.logRemote("remote delete failed", err, "kind", c.kind, "id", id)
			observability.RecordRemoteWriteFailure(c.kind.String(), "delete")
		}
	})
	return nil
}
