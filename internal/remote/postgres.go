package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repsync/repsync/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS workouts (
    id          TEXT PRIMARY KEY,
    modified_at TIMESTAMPTZ NOT NULL,
    doc         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workouts_modified_at ON workouts (modified_at DESC);

CREATE TABLE IF NOT EXISTS templates (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    doc  JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_templates_name ON templates (name);
`

// Postgres stores each record as a JSONB document next to its sort key.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the tables if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Workouts(ctx context.Context) ([]model.Workout, error) {
	return queryDocs[model.Workout](ctx, p.pool, `SELECT doc FROM workouts ORDER BY modified_at DESC, id`)
}

func (p *Postgres) SaveWorkout(ctx context.Context, w model.Workout) error {
	doc, err := json.Marshal(w)
	if err != nil {
		return Permanent(fmt.Errorf("encoding workout %q: %w", w.ID, err))
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO workouts (id, modified_at, doc) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET modified_at = EXCLUDED.modified_at, doc = EXCLUDED.doc`,
		w.ID, w.ModifiedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("upserting workout %q: %w", w.ID, err)
	}
	return nil
}

func (p *Postgres) DeleteWorkout(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM workouts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting workout %q: %w", id, err)
	}
	return nil
}

func (p *Postgres) Templates(ctx context.Context) ([]model.Template, error) {
	return queryDocs[model.Template](ctx, p.pool, `SELECT doc FROM templates ORDER BY name, id`)
}

func (p *Postgres) SaveTemplate(ctx context.Context, t model.Template) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return Permanent(fmt.Errorf("encoding template %q: %w", t.ID, err))
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO templates (id, name, doc) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, doc = EXCLUDED.doc`,
		t.ID, t.Name, doc,
	)
	if err != nil {
		return fmt.Errorf("upserting template %q: %w", t.ID, err)
	}
	return nil
}

func (p *Postgres) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting template %q: %w", id, err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// queryDocs runs a single-column JSONB query and decodes each row into T.
func queryDocs[T any](ctx context.Context, pool *pgxpool.Pool, query string) ([]T, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[T])
	if err != nil {
		return nil, fmt.Errorf("scanning rows: %w", err)
	}
	return out, nil
}
