// Package sync keeps the on-device record store and the remote record store
// in step behind a single read/write facade.
//
// The package contains two main components:
//
//   - [Repository] is the facade the rest of the application reads from and
//     writes to. Reads merge both stores and return immediately; one-sided
//     records are copied across in the background. Writes land in the local
//     store first and reach the remote store on a best-effort basis.
//   - [Engine] drives periodic fetches so that reconciliation also happens
//     while nobody is looking at the data.
package sync

import (
	"context"

	"github.com/repsync/repsync/internal/model"
)

// Store is the contract both the local and the remote store satisfy.
// Implemented by [local.Store] and by the backends in package remote.
//
// Saves are upserts keyed by id. Deleting an unknown id is not an error.
// All methods must be safe for concurrent use.
type Store interface {
	Workouts(ctx context.Context) ([]model.Workout, error)
	SaveWorkout(ctx context.Context, w model.Workout) error
	DeleteWorkout(ctx context.Context, id string) error

	Templates(ctx context.Context) ([]model.Template, error)
	SaveTemplate(ctx context.Context, t model.Template) error
	DeleteTemplate(ctx context.Context, id string) error
}

// offline stands in for the remote store when none is configured.
type offline struct{}

func (offline) Workouts(context.Context) ([]model.Workout, error) { return nil, ErrRemoteUnavailable }
func (offline) SaveWorkout(context.Context, model.Workout) error { return ErrRemoteUnavailable }
func (offline) DeleteWorkout(context.Context, string) error { return ErrRemoteUnavailable }
func (offline) Templates(context.Context) ([]model.Template, error) { return nil, ErrRemoteUnavailable }
func (offline) SaveTemplate(context.Context, model.Template) error { return ErrRemoteUnavailable }
func (offline) DeleteTemplate(context.Context, string) error { return ErrRemoteUnavailable }
