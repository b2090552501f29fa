package model

import (
	"errors"
	"time"
)

// Workout is one logged training session.
type Workout struct {
	// ID is assigned at creation and never reassigned.
	ID string `json:"id" bson:"_id"`

	// Name is the display name shown in history views.
	Name string `json:"name" bson:"name"`

	// ModifiedAt is the session date. It is the only signal used to pick a
	// winner when the local and remote copies of a workout differ.
	ModifiedAt time.Time `json:"modified_at" bson:"modifiedAt"`

	// Completed is true once the user has finished the session.
	Completed bool `json:"completed" bson:"completed"`

	// TemplateID links back to the template the workout was started from.
	// Empty for workouts started from scratch.
	TemplateID string `json:"template_id,omitempty" bson:"templateId,omitempty"`

	// Exercises are the performed exercises in display order.
	Exercises []WorkoutExercise `json:"exercises" bson:"exercises"`
}

// WorkoutExercise is one exercise performed during a workout.
type WorkoutExercise struct {
	Name  string `json:"name" bson:"name"`
	Notes string `json:"notes,omitempty" bson:"notes,omitempty"`
	Sets  []Set  `json:"sets" bson:"sets"`
}

// Set is one set of an exercise.
type Set struct {
	Reps      int     `json:"reps" bson:"reps"`
	Weight    float64 `json:"weight" bson:"weight"`
	Completed bool    `json:"completed" bson:"completed"`
}

// RecordID implements [Record].
func (w Workout) RecordID() string { return w.ID }

// ContentHash returns a digest of the workout payload. ModifiedAt is left
// out: it orders versions, it does not describe them.
func (w Workout) ContentHash() string {
	return hashPayload(struct {
		Name       string
		Completed  bool
		TemplateID string
		Exercises  []WorkoutExercise
	}{w.Name, w.Completed, w.TemplateID, w.Exercises})
}

// Validate reports whether the workout can be persisted.
func (w Workout) Validate() error {
	if w.ID == "" {
		return errors.New("workout id is required")
	}
	return nil
}

// NewWorkout returns an empty workout dated now.
func NewWorkout(name string, now time.Time) Workout {
	return Workout{
		ID:         NewID(),
		Name:       name,
		ModifiedAt: now.UTC(),
		Exercises:  []WorkoutExercise{},
	}
}

// NewWorkoutFromTemplate starts a workout from t. Every planned exercise becomes
// a workout exercise with t's planned number of sets, none completed yet.
func NewWorkoutFromTemplate(t Template, now time.Time) Workout {
	w := NewWorkout(t.Name, now)
	w.TemplateID = t.ID
	w.Exercises = make([]WorkoutExercise, 0, len(t.Exercises))
	for _, plan := range t.Exercises {
		sets := make([]Set, plan.Sets)
		for i := range sets {
			sets[i] = Set{Reps: plan.Reps, Weight: plan.Weight}
		}
		w.Exercises = append(w.Exercises, WorkoutExercise{
			Name:  plan.Name,
			Notes: plan.Notes,
			Sets:  sets,
		})
	}
	return w
}
