// Package model defines the records shared by the merge engine, the sync
// repository and the store adapters.
//
// The sync engine only looks at a record's ID and its ordering key
// (Workout.ModifiedAt, Template.Name). Everything else is payload that is
// carried through merges unchanged.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Kind names one of the two record collections.
type Kind int

const (
	// KindWorkout is the workout collection.
	KindWorkout Kind = iota
	// KindTemplate is the template collection.
	KindTemplate
)

// String returns the collection name used in logs, metrics and store keys.
func (k Kind) String() string {
	switch k {
	case KindWorkout:
		return "workout"
	case KindTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// Record is implemented by every type the sync engine moves between stores.
type Record interface {
	Workout | Template
	RecordID() string
	ContentHash() string
	Validate() error
}

// NewID returns a fresh random record identifier.
func NewID() string {
	return uuid.NewString()
}

// hashPayload returns the hex SHA-256 of v's JSON encoding. Values that do
// not encode (none of the record payloads) are hashed from their %#v form.
func hashPayload(v any) string {
	h := sha256.New()
	if err := json.NewEncoder(h).Encode(v); err != nil {
		h.Reset()
		_, _ = fmt.Fprintf(h, "%#v", v)
	}
	return hex.EncodeToString(h.Sum(nil))
}
