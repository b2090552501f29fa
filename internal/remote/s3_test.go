package remote

import (
	"testing"

	"github.com/repsync/repsync/internal/model"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		kind   model.Kind
		id     string
		want   string
	}{
		{"", model.KindWorkout, "abc", "workouts/abc.json"},
		{"users/alice/", model.KindTemplate, "t-1", "users/alice/templates/t-1.json"},
		{"", model.KindWorkout, "a/b", "workouts/a%2Fb.json"},
	}
	for _, tt := range tests {
		if got := objectKey(tt.prefix, tt.kind, tt.id); got != tt.want {
			t.Errorf("objectKey(%q, %v, %q) = %q, want %q", tt.prefix, tt.kind, tt.id, got, tt.want)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		kind   model.Kind
		key    string
		wantID string
		wantOK bool
	}{
		{"plain", "", model.KindWorkout, "workouts/abc.json", "abc", true},
		{"prefixed", "p/", model.KindTemplate, "p/templates/t1.json", "t1", true},
		{"escaped slash", "", model.KindWorkout, "workouts/a%2Fb.json", "a/b", true},
		{"wrong kind", "", model.KindTemplate, "workouts/abc.json", "", false},
		{"wrong prefix", "p/", model.KindWorkout, "q/workouts/abc.json", "", false},
		{"no suffix", "", model.KindWorkout, "workouts/abc", "", false},
		{"nested", "", model.KindWorkout, "workouts/x/abc.json", "", false},
		{"empty id", "", model.KindWorkout, "workouts/.json", "", false},
		{"bad escape", "", model.KindWorkout, "workouts/%zz.json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := parseKey(tt.prefix, tt.kind, tt.key)
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("parseKey(%q) = (%q, %v), want (%q, %v)", tt.key, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	for _, id := range []string{"plain", "with space", "ünïcode", "a/b/c", "100%"} {
		key := objectKey("pre/", model.KindWorkout, id)
		got, ok := parseKey("pre/", model.KindWorkout, key)
		if !ok || got != id {
			t.Errorf("round trip of %q via %q = (%q, %v)", id, key, got, ok)
		}
	}
}
