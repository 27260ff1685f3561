package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы истории runs.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            uuid PRIMARY KEY,
	pipeline      text        NOT NULL,
	status        text        NOT NULL,
	phase         text,
	trigger       text        NOT NULL,
	scheduled_for timestamptz,
	started_at    timestamptz,
	finished_at   timestamptz,
	error         text,
	created_at    timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created_at_idx ON runs (created_at DESC);

CREATE TABLE IF NOT EXISTS tasks (
	id          uuid PRIMARY KEY,
	run_id      uuid        NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	step_id     text        NOT NULL,
	type        text        NOT NULL,
	status      text        NOT NULL,
	output      jsonb,
	next        text,
	started_at  timestamptz,
	finished_at timestamptz,
	error       text,
	created_at  timestamptz NOT NULL,
	UNIQUE (run_id, step_id)
);
`

// EnsureSchema создаёт таблицы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
