package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func singleRun(createdAt time.Time) *model.Run {
	return &model.Run{
		Mode:         model.RunModeSingle,
		Source:       "daily.csv",
		Observations: 3,
		Settings:     model.RunSettings{Seasonality: model.SeasonalityNone, Recency: 0.5},
		Margin:       model.NewMarginConfig(25, 14),
		Result: &model.OptimizationResult{
			OptimalSpend:    269.79,
			ExpectedRevenue: 2168.03,
			Feasible:        true,
			Params:          model.CurveParams{Alpha: 3960, Gamma: 2.5, K: 250},
			SeasonalFactor:  1,
		},
		CreatedAt: createdAt,
	}
}

func portfolioRun(createdAt time.Time) *model.Run {
	return &model.Run{
		Mode:         model.RunModePortfolio,
		Observations: 7,
		Margin:       model.MarginFromFraction(0.11),
		Rows: []model.PortfolioRow{
			{EntityID: "A", Outcome: model.OutcomeInsufficientData, Observations: 2},
			{EntityID: "B", Outcome: model.OutcomeSuccess, Action: model.ActionDecrease, Observations: 5, OptimalSpend: 243.08},
		},
		CreatedAt: createdAt,
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	run := singleRun(time.Time{})
	require.NoError(t, s.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID)
	require.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunModeSingle, got.Mode)
	assert.Equal(t, "daily.csv", got.Source)
	assert.Equal(t, 3, got.Observations)
	assert.Equal(t, run.Settings, got.Settings)
	assert.Equal(t, run.Margin, got.Margin)
	require.NotNil(t, got.Result)
	assert.Equal(t, *run.Result, *got.Result)
	assert.Nil(t, got.Rows)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLite_SavePortfolioRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	run := portfolioRun(time.Now().UTC())
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Result)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "B", got.Rows[1].EntityID)
	assert.Equal(t, model.ActionDecrease, got.Rows[1].Action)
}

func TestSQLite_SaveRun_KeepsExplicitID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	run := singleRun(time.Now().UTC())
	run.ID = "fixed-id"
	require.NoError(t, s.SaveRun(ctx, run))
	assert.Equal(t, "fixed-id", run.ID)

	// Duplicate primary key.
	require.Error(t, s.SaveRun(ctx, singleRunWithID("fixed-id")))
}

func singleRunWithID(id string) *model.Run {
	r := singleRun(time.Now().UTC())
	r.ID = id
	return r
}

func TestSQLite_SaveRun_Nil(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)
	require.Error(t, s.SaveRun(context.Background(), nil))
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestSQLite_ListRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	base := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRun(ctx, singleRun(base)))
	require.NoError(t, s.SaveRun(ctx, portfolioRun(base.Add(time.Hour))))
	require.NoError(t, s.SaveRun(ctx, singleRun(base.Add(2*time.Hour))))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
	assert.Equal(t, model.RunModePortfolio, all[1].Mode)

	singles, err := s.ListRuns(ctx, RunFilter{Mode: model.RunModeSingle})
	require.NoError(t, err)
	assert.Len(t, singles, 2)

	page, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	recent, err := s.ListRuns(ctx, RunFilter{CreatedAfter: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSQLite_ListRuns_Empty(t *testing.T) {
	t.Parallel()
	s := newTestSQLite(t)

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLite_DeleteRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestSQLite(t)

	run := singleRun(time.Now().UTC())
	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.DeleteRun(ctx, run.ID))

	_, err := s.GetRun(ctx, run.ID)
	require.Error(t, err)

	err = s.DeleteRun(ctx, run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestRunFilter_Limit(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultListLimit, RunFilter{}.limit())
	assert.Equal(t, DefaultListLimit, RunFilter{Limit: -5}.limit())
	assert.Equal(t, 10, RunFilter{Limit: 10}.limit())
}
