package sync

import (
	"errors"
	"fmt"

	"github.com/repsync/repsync/internal/model"
)

var (
	// ErrLocalStorage marks a failure of the local store. It is the only
	// store failure that reaches callers of the [Repository].
	ErrLocalStorage = errors.New("local storage failure")

	// ErrRemoteUnavailable is returned by the stand-in remote store when the
	// repository runs without one. Remote errors are never surfaced.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrInvalidRecord is returned when a record fails validation before
	// any store is touched.
	ErrInvalidRecord = errors.New("invalid record")
)

// OpError describes a failed save or delete. Err wraps [ErrLocalStorage] or
// [ErrInvalidRecord].
type OpError struct {
	Op   string // "save" or "delete"
	Kind model.Kind
	ID   string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
