package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// Table names are substituted with a sanitized identifier before execution.
const (
	qCreateJobsTable = `--sql 8d2e61a0-4b1f-4c9e-a7d3-5f0b9c2e1a74
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	qUpsertJob = `--sql 2c7a9f14-6e3b-4d58-b1a0-93e4f7c6d215
INSERT INTO %[1]s AS t (id, status, metadata, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    metadata = t.metadata || EXCLUDED.metadata,
    updated_at = now()`

	qSelectJob = `--sql b54e0d3c-1f2a-4e7b-8c96-0a3d5e7f9b12
SELECT status, metadata FROM %s WHERE id = $1`
)

// Postgres keeps one row per job with metadata in a jsonb column. Upserts
// merge metadata with the jsonb concatenation operator.
type Postgres struct {
	pool  *pgxpool.Pool
	sql   infra.SQLExecutor
	table string
}

// OpenPostgres dials the pool and creates the table when missing.
func OpenPostgres(ctx context.Context, databaseURL, table string, logger infra.Logger) (*Postgres, error) {
	pool, err := infra.NewDBPool(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("jobstore: %w", err)
	}
	p := &Postgres{
		pool:  pool,
		sql:   infra.NewSQLRunner(pool, logger),
		table: pgx.Identifier{table}.Sanitize(),
	}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	q := fmt.Sprintf(qCreateJobsTable, p.table)
	if _, err := p.sql.Exec(ctx, q); err != nil {
		return fmt.Errorf("jobstore: create table: %w", err)
	}
	return nil
}

func (p *Postgres) Upsert(ctx context.Context, jobID string, status domain.JobStatus, metadata map[string]any) error {
	fields := mergeFields(status, metadata)
	delete(fields, "status")
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("jobstore: encode metadata: %w", err)
	}
	q := fmt.Sprintf(qUpsertJob, p.table)
	if _, err := p.sql.Exec(ctx, q, jobID, string(status), string(raw)); err != nil {
		return fmt.Errorf("jobstore: upsert %s: %w", jobID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var (
		status string
		raw    []byte
	)
	q := fmt.Sprintf(qSelectJob, p.table)
	err := p.sql.QueryRow(ctx, q, jobID).Scan(&status, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: select %s: %w", jobID, err)
	}
	fields := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("jobstore: decode metadata: %w", err)
		}
	}
	fields["status"] = status
	return jobFromFields(jobID, fields), nil
}

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

var _ Store = (*Postgres)(nil)
