// Package remote implements the off-device record stores: MongoDB, S3
// compatible object storage and Postgres. Every backend satisfies
// [Backend]; [Open] builds the configured one and wraps it in [Resilient],
// which adds a per-call timeout and a [Retry] loop.
package remote

import (
	"context"

	"github.com/repsync/repsync/internal/model"
)

// Backend is a remote record store. Saves are upserts keyed by id and
// deleting an unknown id succeeds.
type Backend interface {
	Workouts(ctx context.Context) ([]model.Workout, error)
	SaveWorkout(ctx context.Context, w model.Workout) error
	DeleteWorkout(ctx context.Context, id string) error

	Templates(ctx context.Context) ([]model.Template, error)
	SaveTemplate(ctx context.Context, t model.Template) error
	DeleteTemplate(ctx context.Context, id string) error

	// Close releases connections. The backend must not be used afterwards.
	Close(ctx context.Context) error
}
