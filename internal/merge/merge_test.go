package merge

import (
	"reflect"
	"testing"
	"time"

	"github.com/repsync/repsync/internal/model"
)

var (
	jan1 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	jan2 = time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	jan3 = time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC)
)

func workout(id, name string, at time.Time) model.Workout {
	return model.Workout{ID: id, Name: name, ModifiedAt: at}
}

func template(id, name string) model.Template {
	return model.Template{ID: id, Name: name}
}

func workoutIDs(ws []model.Workout) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}

func templateIDs(ts []model.Template) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

// ---------------------------------------------------------------------------
// Workouts
// ---------------------------------------------------------------------------

func TestWorkouts_TimestampTieBreak(t *testing.T) {
	tests := []struct {
		name      string
		local     time.Time
		cloud     time.Time
		wantCloud bool
	}{
		{"cloud newer", jan1, jan2, true},
		{"cloud older", jan2, jan1, false},
		{"equal keeps local", jan1, jan1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := []model.Workout{workout("1", "local", tt.local)}
			cloud := []model.Workout{workout("1", "cloud", tt.cloud)}

			got := Workouts(local, cloud)
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			wantName := "local"
			if tt.wantCloud {
				wantName = "cloud"
			}
			if got[0].Name != wantName {
				t.Errorf("winner = %q, want %q", got[0].Name, wantName)
			}
		})
	}
}

func TestWorkouts_LocalOnlyRecordsUnchanged(t *testing.T) {
	localOnly := model.Workout{
		ID:         "L",
		Name:       "Legs",
		ModifiedAt: jan1,
		Completed:  true,
		Exercises: []model.WorkoutExercise{
			{Name: "Squat", Sets: []model.Set{{Reps: 5, Weight: 100, Completed: true}}},
		},
	}
	local := []model.Workout{localOnly, workout("S", "shared", jan1)}
	cloud := []model.Workout{workout("S", "shared", jan2), workout("C", "cloud", jan3)}

	got := Workouts(local, cloud)

	var found bool
	for _, w := range got {
		if w.ID == "L" {
			found = true
			if !reflect.DeepEqual(w, localOnly) {
				t.Errorf("local-only record changed: got %+v, want %+v", w, localOnly)
			}
		}
	}
	if !found {
		t.Error("local-only record missing from merge")
	}
}

func TestWorkouts_SortedDescending(t *testing.T) {
	local := []model.Workout{workout("a", "a", jan1), workout("b", "b", jan3)}
	cloud := []model.Workout{workout("c", "c", jan2)}

	got := Workouts(local, cloud)
	for i := 1; i < len(got); i++ {
		if got[i].ModifiedAt.After(got[i-1].ModifiedAt) {
			t.Fatalf("not descending at %d: %v after %v", i, got[i].ModifiedAt, got[i-1].ModifiedAt)
		}
	}
	if want := []string{"b", "c", "a"}; !reflect.DeepEqual(workoutIDs(got), want) {
		t.Errorf("order = %v, want %v", workoutIDs(got), want)
	}
}

func TestWorkouts_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	local := []model.Workout{workout("x", "x", jan1), workout("y", "y", jan1)}
	cloud := []model.Workout{workout("z", "z", jan1), workout("x", "x-cloud", jan1)}

	got := Workouts(local, cloud)
	if want := []string{"x", "y", "z"}; !reflect.DeepEqual(workoutIDs(got), want) {
		t.Errorf("order = %v, want %v", workoutIDs(got), want)
	}
	if got[0].Name != "x" {
		t.Errorf("tie on x resolved to %q, want local", got[0].Name)
	}
}

func TestWorkouts_Idempotent(t *testing.T) {
	local := []model.Workout{workout("1", "l1", jan1), workout("2", "l2", jan3)}
	cloud := []model.Workout{workout("1", "c1", jan2), workout("3", "c3", jan1)}

	first := Workouts(local, cloud)
	again := Workouts(first, nil)
	if !reflect.DeepEqual(first, again) {
		t.Errorf("merge(merge(l,c), nil) = %v, want %v", again, first)
	}
	if repeat := Workouts(local, cloud); !reflect.DeepEqual(first, repeat) {
		t.Errorf("repeated merge = %v, want %v", repeat, first)
	}
}

func TestWorkouts_DuplicateLocalIDLastWins(t *testing.T) {
	local := []model.Workout{workout("1", "first", jan1), workout("1", "second", jan1)}

	got := Workouts(local, nil)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Name != "second" {
		t.Errorf("Name = %q, want %q", got[0].Name, "second")
	}
}

func TestWorkouts_DoesNotMutateInputs(t *testing.T) {
	local := []model.Workout{workout("a", "a", jan1), workout("b", "b", jan3)}
	before := append([]model.Workout(nil), local...)

	_ = Workouts(local, []model.Workout{workout("a", "a2", jan2)})
	if !reflect.DeepEqual(local, before) {
		t.Errorf("local input mutated: %v, want %v", local, before)
	}
}

func TestWorkouts_EmptyInputs(t *testing.T) {
	if got := Workouts(nil, nil); len(got) != 0 {
		t.Errorf("Workouts(nil, nil) = %v, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

func TestTemplates_RemoteWins(t *testing.T) {
	local := []model.Template{template("1", "A")}
	cloud := []model.Template{template("1", "B")}

	got := Templates(local, cloud)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Name != "B" {
		t.Errorf("Name = %q, want %q", got[0].Name, "B")
	}
}

func TestTemplates_RemoteWinsIgnoresTimestamps(t *testing.T) {
	local := []model.Template{{ID: "1", Name: "local", UpdatedAt: jan3}}
	cloud := []model.Template{{ID: "1", Name: "cloud", UpdatedAt: jan1}}

	if got := Templates(local, cloud); got[0].Name != "cloud" {
		t.Errorf("Name = %q, want %q", got[0].Name, "cloud")
	}
}

func TestTemplates_SortedAscendingByName(t *testing.T) {
	local := []model.Template{template("1", "Pull"), template("2", "Legs")}
	cloud := []model.Template{template("3", "Push"), template("4", "Core")}

	got := Templates(local, cloud)
	for i := 1; i < len(got); i++ {
		if got[i].Name < got[i-1].Name {
			t.Fatalf("not ascending at %d: %q before %q", i, got[i-1].Name, got[i].Name)
		}
	}
	if want := []string{"4", "2", "1", "3"}; !reflect.DeepEqual(templateIDs(got), want) {
		t.Errorf("order = %v, want %v", templateIDs(got), want)
	}
}

func TestTemplates_CaseSensitiveOrdering(t *testing.T) {
	got := Templates([]model.Template{template("1", "arms"), template("2", "Back")}, nil)
	if want := []string{"2", "1"}; !reflect.DeepEqual(templateIDs(got), want) {
		t.Errorf("order = %v, want %v (uppercase sorts first)", templateIDs(got), want)
	}
}

// ---------------------------------------------------------------------------
// OneSided
// ---------------------------------------------------------------------------

func TestOneSided(t *testing.T) {
	local := []model.Workout{workout("1", "", jan1), workout("2", "", jan1)}
	cloud := []model.Workout{workout("2", "", jan2), workout("3", "", jan1)}

	up, down := OneSided(local, cloud)
	if want := []string{"1"}; !reflect.DeepEqual(workoutIDs(up), want) {
		t.Errorf("toUpload = %v, want %v", workoutIDs(up), want)
	}
	if want := []string{"3"}; !reflect.DeepEqual(workoutIDs(down), want) {
		t.Errorf("toDownload = %v, want %v", workoutIDs(down), want)
	}

	up2, down2 := OneSided(local, cloud)
	if !reflect.DeepEqual(up, up2) || !reflect.DeepEqual(down, down2) {
		t.Error("OneSided is not idempotent")
	}
}

func TestOneSided_Templates(t *testing.T) {
	up, down := OneSided([]model.Template{template("a", "A")}, []model.Template{template("a", "B")})
	if len(up) != 0 || len(down) != 0 {
		t.Errorf("records on both sides reported one-sided: up=%v down=%v", up, down)
	}
}

func TestOneSided_EmptyCloudUploadsEverything(t *testing.T) {
	local := []model.Workout{workout("1", "", jan1), workout("2", "", jan2)}
	up, down := OneSided(local, nil)
	if len(up) != 2 || len(down) != 0 {
		t.Errorf("up=%d down=%d, want 2 and 0", len(up), len(down))
	}
}

// ---------------------------------------------------------------------------
// Diverged
// ---------------------------------------------------------------------------

func TestDiverged(t *testing.T) {
	local := []model.Workout{workout("1", "same", jan1), workout("2", "old", jan1), workout("3", "only-local", jan1)}
	cloud := []model.Workout{workout("1", "same", jan2), workout("2", "new", jan2), workout("4", "only-cloud", jan1)}

	if got := Diverged(local, cloud); got != 1 {
		t.Errorf("Diverged = %d, want 1", got)
	}
}
