package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tripleyak/marginal-roas-optimizer/internal/db"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
	"github.com/tripleyak/marginal-roas-optimizer/internal/resilience"
)

// PostgresStore implements Store using pgxpool. Operations are retried on
// transient connection errors according to retry.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	retry   resilience.Policy
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	s := &PostgresStore{pool: pool, closeFn: pool.Close, retry: resilience.DefaultPolicy()}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	mode         TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	observations INTEGER NOT NULL DEFAULT 0,
	settings     JSONB NOT NULL,
	margin       JSONB NOT NULL,
	result       JSONB,
	portfolio    JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	err := resilience.Do(ctx, s.retry, "postgres ping", s.pool.Ping)
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	p, err := prepareRun(run)
	if err != nil {
		return err
	}

	err = resilience.Do(ctx, s.retry, "postgres insert run", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, string(run.Mode), run.Source, run.Observations,
			p.settings, p.margin, p.result, p.rows, run.CreatedAt,
		)
		return err
	})
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r *model.Run
	err := resilience.Do(ctx, s.retry, "postgres get run", func(ctx context.Context) error {
		var err error
		r, err = scanPgRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Mode != "" {
		query += fmt.Sprintf(` AND mode = $%d`, argIdx)
		args = append(args, string(filter.Mode))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	var rows pgx.Rows
	err := resilience.Do(ctx, s.retry, "postgres list runs", func(ctx context.Context) error {
		var err error
		rows, err = s.pool.Query(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	err := resilience.Do(ctx, s.retry, "postgres delete run", func(ctx context.Context) error {
		var err error
		tag, err = s.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "postgres: delete run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var (
		r    model.Run
		mode string
		p    runPayload
	)
	if err := row.Scan(&r.ID, &mode, &r.Source, &r.Observations, &p.settings, &p.margin, &p.result, &p.rows, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Mode = model.RunMode(mode)
	if err := p.decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
