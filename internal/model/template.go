package model

import (
	"errors"
	"fmt"
	"time"
)

// Template is a reusable workout plan.
type Template struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`

	// UpdatedAt is informational. Template merges are remote-wins and never
	// compare timestamps.
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`

	Exercises []TemplateExercise `json:"exercises" bson:"exercises"`
}

// TemplateExercise is the plan for one exercise in a template.
type TemplateExercise struct {
	Name   string  `json:"name" bson:"name"`
	Notes  string  `json:"notes,omitempty" bson:"notes,omitempty"`
	Sets   int     `json:"sets" bson:"sets"`
	Reps   int     `json:"reps" bson:"reps"`
	Weight float64 `json:"weight" bson:"weight"`
}

// RecordID implements [Record].
func (t Template) RecordID() string { return t.ID }

// ContentHash returns a digest of the template name and exercises.
func (t Template) ContentHash() string {
	return hashPayload(struct {
		Name      string
		Exercises []TemplateExercise
	}{t.Name, t.Exercises})
}

// Validate reports whether the template can be persisted.
func (t Template) Validate() error {
	if t.ID == "" {
		return errors.New("template id is required")
	}
	for _, ex := range t.Exercises {
		if ex.Sets < 0 {
			return fmt.Errorf("template exercise %q has negative sets", ex.Name)
		}
	}
	return nil
}
