package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/repsync/repsync/internal/model"
)

// Resilient wraps a Backend so that every call is bounded by a timeout and
// retried with backoff. Callers see one error per logical call.
type Resilient struct {
	backend     Backend
	name        string
	timeout     time.Duration
	maxAttempts int
	log         *slog.Logger
}

// NewResilient wraps b. name identifies the backend in errors and logs.
func NewResilient(b Backend, name string, timeout time.Duration, maxAttempts int, logger *slog.Logger) *Resilient {
	return &Resilient{
		backend:     b,
		name:        name,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		log:         logger,
	}
}

// do runs fn with a fresh timeout per attempt.
func (r *Resilient) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := Retry(ctx, r.maxAttempts, func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		err := fn(callCtx)
		if err != nil && attempt < r.maxAttempts {
			r.log.Debug("remote call failed, retrying", "backend", r.name, "op", op, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.name, op, err)
	}
	return nil
}

func (r *Resilient) Workouts(ctx context.Context) ([]model.Workout, error) {
	var out []model.Workout
	err := r.do(ctx, "list workouts", func(ctx context.Context) error {
		var err error
		out, err = r.backend.Workouts(ctx)
		return err
	})
	return out, err
}

func (r *Resilient) SaveWorkout(ctx context.Context, w model.Workout) error {
	return r.do(ctx, "save workout", func(ctx context.Context) error {
		return r.backend.SaveWorkout(ctx, w)
	})
}

func (r *Resilient) DeleteWorkout(ctx context.Context, id string) error {
	return r.do(ctx, "delete workout", func(ctx context.Context) error {
		return r.backend.DeleteWorkout(ctx, id)
	})
}

func (r *Resilient) Templates(ctx context.Context) ([]model.Template, error) {
	var out []model.Template
	err := r.do(ctx, "list templates", func(ctx context.Context) error {
		var err error
		out, err = r.backend.Templates(ctx)
		return err
	})
	return out, err
}

func (r *Resilient) SaveTemplate(ctx context.Context, t model.Template) error {
	return r.do(ctx, "save template", func(ctx context.Context) error {
		return r.backend.SaveTemplate(ctx, t)
	})
}

func (r *Resilient) DeleteTemplate(ctx context.Context, id string) error {
	return r.do(ctx, "delete template", func(ctx context.Context) error {
		return r.backend.DeleteTemplate(ctx, id)
	})
}

// Close closes the wrapped backend.
func (r *Resilient) Close(ctx context.Context) error {
	return r.backend.Close(ctx)
}
