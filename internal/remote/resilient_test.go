package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/repsync/repsync/internal/config"
	"github.com/repsync/repsync/internal/model"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// flakyBackend fails the first failN calls of every method, then succeeds.
// If hang is set every call blocks until its context is done.
type flakyBackend struct {
	mu     sync.Mutex
	failN  int
	calls  int
	hang   bool
	closed bool
	saved  []string
}

func (f *flakyBackend) call(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	n := f.calls
	hang := f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if n <= f.failN {
		return errors.New("connection reset")
	}
	return nil
}

func (f *flakyBackend) Workouts(ctx context.Context) ([]model.Workout, error) {
	if err := f.call(ctx); err != nil {
		return nil, err
	}
	return []model.Workout{{ID: "w1", Name: "Legs"}}, nil
}

func (f *flakyBackend) SaveWorkout(ctx context.Context, w model.Workout) error {
	if err := f.call(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.saved = append(f.saved, w.ID)
	f.mu.Unlock()
	return nil
}

func (f *flakyBackend) DeleteWorkout(ctx context.Context, _ string) error { return f.call(ctx) }

func (f *flakyBackend) Templates(ctx context.Context) ([]model.Template, error) {
	if err := f.call(ctx); err != nil {
		return nil, err
	}
	return []model.Template{{ID: "t1", Name: "Push"}}, nil
}

func (f *flakyBackend) SaveTemplate(ctx context.Context, _ model.Template) error {
	return f.call(ctx)
}

func (f *flakyBackend) DeleteTemplate(ctx context.Context, _ string) error { return f.call(ctx) }

func (f *flakyBackend) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestResilient_RetriesTransientFailure(t *testing.T) {
	fb := &flakyBackend{failN: 1}
	r := NewResilient(fb, "fake", time.Second, 3, testLogger)

	got, err := r.Workouts(context.Background())
	if err != nil {
		t.Fatalf("Workouts: %v", err)
	}
	if len(got) != 1 || got[0].ID != "w1" {
		t.Errorf("Workouts = %+v, want [w1]", got)
	}
	if fb.calls != 2 {
		t.Errorf("calls = %d, want 2", fb.calls)
	}
}

func TestResilient_GivesUp(t *testing.T) {
	fb := &flakyBackend{failN: 100}
	r := NewResilient(fb, "fake", time.Second, 2, testLogger)

	err := r.SaveWorkout(context.Background(), model.Workout{ID: "w1", Name: "Legs"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "fake save workout") {
		t.Errorf("error = %q, want backend and op in message", err)
	}
	if fb.calls != 2 {
		t.Errorf("calls = %d, want 2", fb.calls)
	}
}

func TestResilient_TimeoutPerCall(t *testing.T) {
	fb := &flakyBackend{hang: true}
	r := NewResilient(fb, "fake", 20*time.Millisecond, 1, testLogger)

	start := time.Now()
	_, err := r.Templates(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call took %v, want it bounded by the timeout", elapsed)
	}
}

func TestResilient_PassesThrough(t *testing.T) {
	fb := &flakyBackend{}
	r := NewResilient(fb, "fake", time.Second, 3, testLogger)
	ctx := context.Background()

	if err := r.SaveWorkout(ctx, model.Workout{ID: "w9", Name: "Run"}); err != nil {
		t.Fatalf("SaveWorkout: %v", err)
	}
	if err := r.DeleteWorkout(ctx, "w9"); err != nil {
		t.Fatalf("DeleteWorkout: %v", err)
	}
	if err := r.SaveTemplate(ctx, model.Template{ID: "t1", Name: "Push"}); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if err := r.DeleteTemplate(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(fb.saved) != 1 || fb.saved[0] != "w9" {
		t.Errorf("saved = %v, want [w9]", fb.saved)
	}
	if !fb.closed {
		t.Error("backend was not closed")
	}
}

func TestOpen_None(t *testing.T) {
	r, err := Open(context.Background(), config.RemoteConfig{Backend: config.BackendNone}, testLogger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r != nil {
		t.Errorf("Open(none) = %v, want nil", r)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.RemoteConfig{Backend: "ftp"}, testLogger)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
