package runs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the run history table.
const Schema = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	id            UUID PRIMARY KEY,
	registry      TEXT NOT NULL,
	status        TEXT NOT NULL,
	sources       INTEGER NOT NULL DEFAULT 0,
	records       INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	error_kind    TEXT NOT NULL DEFAULT '',
	failed_source TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_scrape_runs_started_at ON scrape_runs (started_at DESC);
`

const defaultListLimit = 50

// Querier is the subset of database.DB the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create scrape_runs: %w", err)
	}
	return nil
}

func (s *PostgresStore) Start(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO scrape_runs (id, registry, status, sources, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query, run.ID, run.Registry, string(run.Status), run.Sources, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Finish(ctx context.Context, run *Run) error {
	query := `
		UPDATE scrape_runs
		SET status = $2, records = $3, error = $4, error_kind = $5,
		    failed_source = $6, finished_at = $7
		WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		run.ID, string(run.Status), run.Records, run.Error, run.ErrorKind,
		run.FailedSource, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, registry, status, sources, records, error, error_kind,
		       failed_source, started_at, finished_at
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var list []*Run
	for rows.Next() {
		run := &Run{}
		var status string
		if err := rows.Scan(
			&run.ID, &run.Registry, &status, &run.Sources, &run.Records,
			&run.Error, &run.ErrorKind, &run.FailedSource, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = Status(status)
		list = append(list, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return list, nil
}
