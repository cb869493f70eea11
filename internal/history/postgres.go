package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetflow/internal/config"
	"github.com/JonMunkholm/sheetflow/internal/core"
)

const (
	statusSucceeded = "succeeded"
	statusRejected  = "rejected"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sheetflow_runs (
	run_id      UUID PRIMARY KEY,
	mode        TEXT NOT NULL,
	trigger     TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	succeeded   INT NOT NULL,
	rejected    INT NOT NULL
);

CREATE INDEX IF NOT EXISTS sheetflow_runs_started_at_idx ON sheetflow_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS sheetflow_run_files (
	run_id         UUID NOT NULL REFERENCES sheetflow_runs (run_id) ON DELETE CASCADE,
	seq            INT NOT NULL,
	status         TEXT NOT NULL,
	file           TEXT NOT NULL,
	type_id        TEXT NOT NULL DEFAULT '',
	method         TEXT NOT NULL DEFAULT '',
	output         TEXT NOT NULL DEFAULT '',
	row_count      INT NOT NULL DEFAULT 0,
	column_count   INT NOT NULL DEFAULT 0,
	substitutions  INT NOT NULL DEFAULT 0,
	date_fallbacks INT NOT NULL DEFAULT 0,
	error_kind     TEXT NOT NULL DEFAULT '',
	error_code     TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);

ALTER TABLE sheetflow_run_files ADD COLUMN IF NOT EXISTS separator_replacements INT NOT NULL DEFAULT 0;`

// Connect opens a pool sized by cfg and verifies the connection.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PGStore persists runs in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store on an open pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the history tables if they do not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// SaveRun stores a report and its files in one transaction. Saving the same
// run again replaces it.
func (s *PGStore) SaveRun(ctx context.Context, report core.RunReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sheetflow_runs WHERE run_id = $1`, report.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO sheetflow_runs (run_id, mode, trigger, started_at, finished_at, succeeded, rejected)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		report.RunID, string(report.Mode), report.Trigger, report.StartedAt, report.FinishedAt,
		len(report.Succeeded), len(report.Rejected),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	seq := 0
	queue := func(status string, files []core.FileResult) {
		for _, f := range files {
			batch.Queue(
				`INSERT INTO sheetflow_run_files (run_id, seq, status, file, type_id, method, output,
				 row_count, column_count, substitutions, separator_replacements, date_fallbacks,
				 error_kind, error_code, error)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				report.RunID, seq, status, f.File, f.TypeID, string(f.Method), f.Output,
				f.Rows, f.Columns, f.Substitutions, f.SeparatorReplacements, f.DateFallbacks,
				f.ErrorKind, f.ErrorCode, f.Error,
			)
			seq++
		}
	}
	queue(statusSucceeded, report.Succeeded)
	queue(statusRejected, report.Rejected)

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert run files: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRuns returns run summaries newest first, filtered and paged by opts.
func (s *PGStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	opts = opts.normalized()
	where, args := opts.filter().build()

	query := `SELECT run_id::text, mode, trigger, started_at, finished_at, succeeded, rejected
		FROM sheetflow_runs` + where +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RunSummary, 0)
	for rows.Next() {
		var (
			sum  RunSummary
			mode string
		)
		if err := rows.Scan(&sum.RunID, &mode, &sum.Trigger, &sum.StartedAt, &sum.FinishedAt, &sum.Succeeded, &sum.Rejected); err != nil {
			return nil, err
		}
		sum.Mode = core.InputMode(mode)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetRun returns the full report of runID with its files in processing
// order. Unknown or malformed ids yield ErrNotFound.
func (s *PGStore) GetRun(ctx context.Context, runID string) (core.RunReport, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return core.RunReport{}, ErrNotFound
	}

	var (
		report core.RunReport
		mode   string
		n1, n2 int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT run_id::text, mode, trigger, started_at, finished_at, succeeded, rejected
		 FROM sheetflow_runs WHERE run_id = $1`, runID,
	).Scan(&report.RunID, &mode, &report.Trigger, &report.StartedAt, &report.FinishedAt, &n1, &n2)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.RunReport{}, ErrNotFound
	}
	if err != nil {
		return core.RunReport{}, err
	}
	report.Mode = core.InputMode(mode)

	rows, err := s.pool.Query(ctx,
		`SELECT status, file, type_id, method, output, row_count, column_count,
		 substitutions, separator_replacements, date_fallbacks, error_kind, error_code, error
		 FROM sheetflow_run_files WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return core.RunReport{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f      core.FileResult
			status string
			method string
		)
		if err := rows.Scan(&status, &f.File, &f.TypeID, &method, &f.Output, &f.Rows, &f.Columns,
			&f.Substitutions, &f.SeparatorReplacements, &f.DateFallbacks, &f.ErrorKind, &f.ErrorCode, &f.Error); err != nil {
			return core.RunReport{}, err
		}
		f.Method = core.MatchMethod(method)
		if status == statusRejected {
			report.Rejected = append(report.Rejected, f)
		} else {
			report.Succeeded = append(report.Succeeded, f)
		}
	}
	return report, rows.Err()
}

// whereBuilder assembles a parameterized WHERE clause.
type whereBuilder struct {
	conds []string
	args  []any
}

// eq adds "column = $n" when value is non-empty.
func (w *whereBuilder) eq(column, value string) {
	if value == "" {
		return
	}
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w *whereBuilder) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) build() (string, []any) {
	if len(w.conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conds, " AND "), w.args
}

func (o ListOptions) filter() *whereBuilder {
	w := &whereBuilder{}
	w.eq("mode", string(o.Mode))
	w.eq("trigger", o.Trigger)
	if o.OnlyFailed {
		w.raw("rejected > 0")
	}
	return w
}
