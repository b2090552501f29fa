// Package merge reconciles the local and remote copies of a record
// collection into one view. It performs no I/O and cannot fail.
//
// Two policies exist:
//
//   - [Workouts] keeps the copy with the later ModifiedAt; ties keep local.
//   - [Templates] always takes the remote copy when both exist.
//
// [OneSided] finds the records that only one side has, which is what the
// background reconciliation pushes across.
package merge

import (
	"slices"
	"strings"

	"github.com/repsync/repsync/internal/model"
)

// index is an id-keyed map that remembers first-insertion order so that
// merges stay deterministic.
type index[T model.Record] struct {
	pos  map[string]int
	vals []T
}

func newIndex[T model.Record](capacity int) *index[T] {
	return &index[T]{pos: make(map[string]int, capacity), vals: make([]T, 0, capacity)}
}

// put inserts v or replaces the value stored under its id in place.
func (ix *index[T]) put(v T) {
	id := v.RecordID()
	if i, ok := ix.pos[id]; ok {
		ix.vals[i] = v
		return
	}
	ix.pos[id] = len(ix.vals)
	ix.vals = append(ix.vals, v)
}

func (ix *index[T]) get(id string) (T, bool) {
	i, ok := ix.pos[id]
	if !ok {
		var zero T
		return zero, false
	}
	return ix.vals[i], true
}

// seed builds an index from local. A duplicated id keeps its first position
// and its last value.
func seed[T model.Record](local []T, extra int) *index[T] {
	ix := newIndex[T](len(local) + extra)
	for _, v := range local {
		ix.put(v)
	}
	return ix
}

// Workouts merges two workout collections. A cloud copy replaces the local
// copy only when its ModifiedAt is strictly later. The result is ordered by
// ModifiedAt, most recent first.
func Workouts(local, cloud []model.Workout) []model.Workout {
	ix := seed(local, len(cloud))
	for _, c := range cloud {
		l, ok := ix.get(c.ID)
		if !ok || c.ModifiedAt.After(l.ModifiedAt) {
			ix.put(c)
		}
	}
	slices.SortStableFunc(ix.vals, func(a, b model.Workout) int {
		return b.ModifiedAt.Compare(a.ModifiedAt)
	})
	return ix.vals
}

// Templates merges two template collections. Every cloud copy overwrites the
// local copy with the same id. The result is ordered by Name ascending.
func Templates(local, cloud []model.Template) []model.Template {
	ix := seed(local, len(cloud))
	for _, c := range cloud {
		ix.put(c)
	}
	slices.SortStableFunc(ix.vals, func(a, b model.Template) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ix.vals
}

// OneSided returns the local records whose id the cloud lacks (toUpload) and
// the cloud records whose id local lacks (toDownload), each in input order.
func OneSided[T model.Record](local, cloud []T) (toUpload, toDownload []T) {
	localIDs := ids(local)
	cloudIDs := ids(cloud)

	for _, l := range local {
		if _, ok := cloudIDs[l.RecordID()]; !ok {
			toUpload = append(toUpload, l)
		}
	}
	for _, c := range cloud {
		if _, ok := localIDs[c.RecordID()]; !ok {
			toDownload = append(toDownload, c)
		}
	}
	return toUpload, toDownload
}

// Diverged counts ids present on both sides whose payloads differ. It is
// informational; the merge policies decide which copy is shown.
func Diverged[T model.Record](local, cloud []T) int {
	localHash := make(map[string]string, len(local))
	for _, l := range local {
		localHash[l.RecordID()] = l.ContentHash()
	}
	n := 0
	seen := make(map[string]bool, len(cloud))
	for _, c := range cloud {
		id := c.RecordID()
		h, ok := localHash[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		if h != c.ContentHash() {
			n++
		}
	}
	return n
}

func ids[T model.Record](records []T) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, r := range records {
		set[r.RecordID()] = struct{}{}
	}
	return set
}
