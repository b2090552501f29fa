// Package local is the on-device record store: a SQLite database holding the
// user's workouts and templates.
//
// Only this package opens or queries the database. The sync repository
// treats it as the authoritative copy: every save lands here before any
// remote write is attempted.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/repsync/repsync/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS workouts (
    id          TEXT    PRIMARY KEY,
    name        TEXT    NOT NULL,
    modified_at TEXT    NOT NULL DEFAULT '',
    completed   INTEGER NOT NULL DEFAULT 0,
    template_id TEXT    NOT NULL DEFAULT '',
    exercises   TEXT    NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS templates (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT '',
    exercises  TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_workouts_modified_at ON workouts (modified_at);
CREATE INDEX IF NOT EXISTS idx_templates_name       ON templates (name);
`

// Store is the SQLite-backed local record store. It is safe for concurrent
// use; writes are serialised on a single connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- Workouts ----------------------------------------------------------------

// Workouts returns every stored workout, most recent first.
func (s *Store) Workouts(ctx context.Context) ([]model.Workout, error) {
	const q = `
		SELECT id, name, modified_at, completed, template_id, exercises
		FROM workouts ORDER BY modified_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	workouts := []model.Workout{}
	for rows.Next() {
		var (
			w         model.Workout
			modified  string
			exercises string
		)
		if err := rows.Scan(&w.ID, &w.Name, &modified, &w.Completed, &w.TemplateID, &exercises); err != nil {
			return nil, fmt.Errorf("scanning workout row: %w", err)
		}
		if w.ModifiedAt, err = parseTime(modified); err != nil {
			return nil, fmt.Errorf("workout %s: parsing modified_at: %w", w.ID, err)
		}
		if err := json.Unmarshal([]byte(exercises), &w.Exercises); err != nil {
			return nil, fmt.Errorf("workout %s: decoding exercises: %w", w.ID, err)
		}
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}

// SaveWorkout inserts the workout or replaces the row with the same id.
func (s *Store) SaveWorkout(ctx context.Context, w model.Workout) error {
	const q = `
		INSERT INTO workouts (id, name, modified_at, completed, template_id, exercises)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name        = excluded.name,
		    modified_at = excluded.modified_at,
		    completed   = excluded.completed,
		    template_id = excluded.template_id,
		    exercises   = excluded.exercises`

	exercises, err := encodeList(w.Exercises)
	if err != nil {
		return fmt.Errorf("encoding exercises of workout %s: %w", w.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, q,
		w.ID, w.Name, formatTime(w.ModifiedAt), w.Completed, w.TemplateID, exercises,
	); err != nil {
		return fmt.Errorf("upserting workout %s: %w", w.ID, err)
	}
	return nil
}

// DeleteWorkout removes the workout with the given id. Deleting an unknown
// id is not an error.
func (s *Store) DeleteWorkout(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workouts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting workout %s: %w", id, err)
	}
	return nil
}

// --- Templates ---------------------------------------------------------------

// Templates returns every stored template ordered by name.
func (s *Store) Templates(ctx context.Context) ([]model.Template, error) {
	const q = `SELECT id, name, updated_at, exercises FROM templates ORDER BY name, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	templates := []model.Template{}
	for rows.Next() {
		var (
			t         model.Template
			updated   string
			exercises string
		)
		if err := rows.Scan(&t.ID, &t.Name, &updated, &exercises); err != nil {
			return nil, fmt.Errorf("scanning template row: %w", err)
		}
		if t.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("template %s: parsing updated_at: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(exercises), &t.Exercises); err != nil {
			return nil, fmt.Errorf("template %s: decoding exercises: %w", t.ID, err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// SaveTemplate inserts the template or replaces the row with the same id.
func (s *Store) SaveTemplate(ctx context.Context, t model.Template) error {
	const q = `
		INSERT INTO templates (id, name, updated_at, exercises)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    name       = excluded.name,
		    updated_at = excluded.updated_at,
		    exercises  = excluded.exercises`

	exercises, err := encodeList(t.Exercises)
	if err != nil {
		return fmt.Errorf("encoding exercises of template %s: %w", t.ID, err)
	}
	if _, err := s.db.ExecContext(ctx, q, t.ID, t.Name, formatTime(t.UpdatedAt), exercises); err != nil {
		return fmt.Errorf("upserting template %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTemplate removes the template with the given id. Deleting an unknown
// id is not an error.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	return nil
}

// Counts returns the number of stored workouts and templates.
// Used by the status command.
func (s *Store) Counts(ctx context.Context) (workouts, templates int, err error) {
	const q = `SELECT (SELECT COUNT(*) FROM workouts), (SELECT COUNT(*) FROM templates)`
	if err := s.db.QueryRowContext(ctx, q).Scan(&workouts, &templates); err != nil {
		return 0, 0, fmt.Errorf("counting records: %w", err)
	}
	return workouts, templates, nil
}

// --- helpers -----------------------------------------------------------------

// encodeList stores nil slices as "[]" so reads never yield null.
func encodeList[T any](list []T) (string, error) {
	if list == nil {
		list = []T{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
