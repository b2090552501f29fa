package sync

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestEngineRunOnce(t *testing.T) {
	local := newMockStore()
	remote := newMockStore()
	local.seedWorkouts(workout("1", day(1)))
	remote.seedWorkouts(workout("2", day(2)))
	local.seedTemplates(template("t1", "Push"))
	remote.seedTemplates(template("t1", "Push day"), template("t2", "Pull"))

	repo := NewRepository(local, remote, testLogger)
	engine := NewEngine(repo, time.Minute, testLogger)

	stats, err := engine.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	repo.Wait()

	if stats.Workouts != 2 {
		t.Errorf("Workouts = %d, want 2", stats.Workouts)
	}
	if stats.Templates != 2 {
		t.Errorf("Templates = %d, want 2", stats.Templates)
	}
	if stats.Uploaded != 1 {
		t.Errorf("Uploaded = %d, want 1", stats.Uploaded)
	}
	if stats.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2", stats.Downloaded)
	}
	if stats.Diverged != 1 {
		t.Errorf("Diverged = %d, want 1", stats.Diverged)
	}
	if stats.Failures != 0 || stats.Skipped != 0 {
		t.Errorf("stats = %+v, want no failures or skips", stats)
	}
}

func TestEngineRunOnce_SecondPassIsQuiet(t *testing.T) {
	local := newMockStore()
	remote := newMockStore()
	local.seedWorkouts(workout("1", day(1)))
	remote.seedWorkouts(workout("2", day(2)))

	repo := NewRepository(local, remote, testLogger)
	engine := NewEngine(repo, time.Minute, testLogger)

	if _, err := engine.RunOnce(context.Background()); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	stats, err := engine.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	repo.Wait()

	if stats.Uploaded != 0 || stats.Downloaded != 0 {
		t.Errorf("second pass stats = %+v, want nothing copied", stats)
	}
}

func TestEngineRunOnce_RemoteDown(t *testing.T) {
	local := newMockStore()
	remote := newMockStore()
	local.seedWorkouts(workout("1", day(1)))
	remote.setFetchErr(errors.New("no route to host"))

	repo := NewRepository(local, remote, testLogger)
	stats, err := NewEngine(repo, time.Minute, testLogger).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", stats.Skipped)
	}
	if stats.Uploaded != 1 {
		t.Errorf("Uploaded = %d, want 1", stats.Uploaded)
	}
	if saved := remote.savedIDs(); !slices.Equal(saved, []string{"1"}) {
		t.Errorf("remote saves = %v, want [1]", saved)
	}
	if stats.Workouts != 1 {
		t.Errorf("Workouts = %d, want 1", stats.Workouts)
	}
}

func TestEngineRunOnce_LocalFailure(t *testing.T) {
	local := newMockStore()
	local.setFetchErr(errors.New("database is locked"))

	repo := NewRepository(local, newMockStore(), testLogger)
	_, err := NewEngine(repo, time.Minute, testLogger).RunOnce(context.Background())
	if !errors.Is(err, ErrLocalStorage) {
		t.Errorf("err = %v, want ErrLocalStorage", err)
	}
}

func TestEngineRun_StopsOnCancel(t *testing.T) {
	local := newMockStore()
	remote := newMockStore()
	local.seedWorkouts(workout("1", day(1)))

	repo := NewRepository(local, remote, testLogger)
	engine := NewEngine(repo, 10*time.Millisecond, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		if _, ok := remote.workout("1"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("workout was never uploaded")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
