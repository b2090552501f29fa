package sync

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/repsync/repsync/internal/model"
)

var errInjected = errors.New("injected failure")

// --- Mock Store ----------------------------------------------------------------

// mockStore is an in-memory Store. Records are returned in insertion order.
// Failures can be injected per operation or per record id.
type mockStore struct {
	mu sync.Mutex

	workouts  []model.Workout
	templates []model.Template

	fetchErr  error
	saveErr   error
	deleteErr error
	failIDs   map[string]bool // saves of these ids fail

	// gate, when non-nil, blocks every save until it is closed.
	gate chan struct{}

	saved   []string
	deleted []string
}

func newMockStore() *mockStore {
	return &mockStore{failIDs: make(map[string]bool)}
}

func (m *mockStore) seedWorkouts(ws ...model.Workout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workouts = append(m.workouts, ws...)
}

func (m *mockStore) seedTemplates(ts ...model.Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, ts...)
}

func (m *mockStore) setFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func (m *mockStore) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *mockStore) setDeleteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

func (m *mockStore) failID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failIDs[id] = true
}

func (m *mockStore) Workouts(_ context.Context) ([]model.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return slices.Clone(m.workouts), nil
}

func (m *mockStore) SaveWorkout(_ context.Context, w model.Workout) error {
	if err := m.beforeSave(w.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, w.ID)
	m.workouts = upsert(m.workouts, w)
	return nil
}

func (m *mockStore) DeleteWorkout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	m.workouts = slices.DeleteFunc(m.workouts, func(w model.Workout) bool { return w.ID == id })
	return nil
}

func (m *mockStore) Templates(_ context.Context) ([]model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return slices.Clone(m.templates), nil
}

func (m *mockStore) SaveTemplate(_ context.Context, t model.Template) error {
	if err := m.beforeSave(t.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, t.ID)
	m.templates = upsert(m.templates, t)
	return nil
}

func (m *mockStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	m.templates = slices.DeleteFunc(m.templates, func(t model.Template) bool { return t.ID == id })
	return nil
}

func (m *mockStore) beforeSave(id string) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.failIDs[id] {
		return errInjected
	}
	return nil
}

func (m *mockStore) savedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.saved)
}

func (m *mockStore) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deleted)
}

func (m *mockStore) workout(id string) (model.Workout, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workouts {
		if w.ID == id {
			return w, true
		}
	}
	return model.Workout{}, false
}

func (m *mockStore) template(id string) (model.Template, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.ID == id {
			return t, true
		}
	}
	return model.Template{}, false
}

func upsert[T model.Record](list []T, v T) []T {
	for i := range list {
		if list[i].RecordID() == v.RecordID() {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

// --- Subscription recorder -----------------------------------------------------

type notifications struct {
	mu    sync.Mutex
	kinds []model.Kind
}

func (n *notifications) record(k model.Kind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, k)
}

func (n *notifications) count(k model.Kind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, got := range n.kinds {
		if got == k {
			c++
		}
	}
	return c
}
