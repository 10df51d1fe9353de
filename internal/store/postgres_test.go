package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
	"github.com/tripleyak/marginal-roas-optimizer/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumnNames = []string{"id", "mode", "source", "observations", "settings", "margin", "result", "portfolio", "created_at"}

// insertArgs matches the nine SaveRun parameters.
func insertArgs() []any {
	args := make([]any, 9)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs \(id, mode, source, observations, settings, margin, result, portfolio, created_at\)`).
		WithArgs(pgxmock.AnyArg(), "single", "daily.csv", 3,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := singleRun(time.Time{})
	require.NoError(t, s.SaveRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(insertArgs()...).
		WillReturnError(errors.New("connection reset"))

	err := s.SaveRun(context.Background(), singleRunWithID("r1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run r1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	want := singleRun(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	want.ID = "run-1"

	mock.ExpectQuery(`SELECT id, mode, source, observations, settings, margin, result, portfolio, created_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow(
			"run-1", "single", "daily.csv", 3,
			mustJSON(t, want.Settings), mustJSON(t, want.Margin), mustJSON(t, want.Result), []byte("null"),
			want.CreatedAt,
		))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunModeSingle, got.Mode)
	assert.Equal(t, want.Margin, got.Margin)
	require.NotNil(t, got.Result)
	assert.Equal(t, *want.Result, *got.Result)
	assert.Nil(t, got.Rows)
	assert.Equal(t, want.CreatedAt, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: nonexistent-run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := portfolioRun(time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(`AND mode = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("portfolio", 10, 20).
		WillReturnRows(pgxmock.NewRows(runColumnNames).AddRow(
			"run-2", "portfolio", "", 7,
			mustJSON(t, run.Settings), mustJSON(t, run.Margin), []byte("null"), mustJSON(t, run.Rows),
			run.CreatedAt,
		))

	runs, err := s.ListRuns(context.Background(), RunFilter{Mode: model.RunModePortfolio, Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Nil(t, runs[0].Result)
	require.Len(t, runs[0].Rows, 2)
	assert.Equal(t, model.OutcomeSuccess, runs[0].Rows[1].Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE true ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows(runColumnNames))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteRun(context.Background(), "run-1"))

	err := s.DeleteRun(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_RetriesTransient(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.retry = resilience.Policy{Attempts: 2, Backoff: time.Millisecond}

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(insertArgs()...).
		WillReturnError(errors.New("write tcp 10.0.0.1:5432: broken pipe"))
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(insertArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRun(context.Background(), singleRunWithID("r2")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFoundIsNotRetried(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.retry = resilience.Policy{Attempts: 3, Backoff: time.Millisecond}

	mock.ExpectQuery(`FROM runs WHERE id = \$1`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
