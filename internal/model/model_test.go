package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarginConfig(t *testing.T) {
	t.Parallel()

	m := NewMarginConfig(25, 14)
	assert.InDelta(t, 11.0, m.ContributionMarginPct, 1e-9)
	assert.InDelta(t, 9.0909, m.RequiredMarginalReturn, 1e-4)
	assert.InDelta(t, 0.11, m.Contribution(), 1e-9)
	assert.True(t, m.Optimizable())
}

func TestNewMarginConfig_NonPositive(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name  string
		gross float64
		net   float64
	}{
		{"zero", 20, 20},
		{"negative", 10, 15},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMarginConfig(tc.gross, tc.net)
			assert.Zero(t, m.RequiredMarginalReturn)
			assert.False(t, m.Optimizable())
		})
	}
}

func TestMarginFromFraction(t *testing.T) {
	t.Parallel()

	m := MarginFromFraction(0.2)
	assert.InDelta(t, 20.0, m.ContributionMarginPct, 1e-9)
	assert.InDelta(t, 5.0, m.RequiredMarginalReturn, 1e-9)

	assert.False(t, MarginFromFraction(0).Optimizable())
}

func TestParseSeasonality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want SeasonalityMode
	}{
		{"", SeasonalityNone},
		{"none", SeasonalityNone},
		{"Weekly", SeasonalityWeekly},
		{" monthly ", SeasonalityMonthly},
		{"dow", SeasonalityWeekly},
	}
	for _, tc := range tests {
		got, err := ParseSeasonality(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseSeasonality("quarterly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown seasonality")
}

func TestSortByDate_StableAndCopy(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	in := []Observation{
		{EntityID: "b", Date: d2},
		{EntityID: "a1", Date: d1},
		{EntityID: "a2", Date: d1},
	}

	out := SortByDate(in)
	require.Len(t, out, 3)
	assert.Equal(t, "a1", out[0].EntityID)
	assert.Equal(t, "a2", out[1].EntityID)
	assert.Equal(t, "b", out[2].EntityID)
	assert.Equal(t, "b", in[0].EntityID, "input must not be reordered")
}

func TestObservation_GroupKeyAndMargin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, UnassignedEntity, Observation{}.GroupKey())
	assert.Equal(t, "sku-1", Observation{EntityID: "sku-1"}.GroupKey())

	o := Observation{GrossMarginPct: Float(30)}
	assert.False(t, o.HasMargin())
	o.RequiredNetPct = Float(10)
	assert.True(t, o.HasMargin())
}

func TestClassifyAction(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ActionPause, ClassifyAction(false, 500, 100))
	assert.Equal(t, ActionIncrease, ClassifyAction(true, 500, 100))
	assert.Equal(t, ActionDecrease, ClassifyAction(true, 100, 100))
	assert.Equal(t, ActionDecrease, ClassifyAction(true, 50, 100))
}

func TestPortfolioRow_ActionLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Increase", PortfolioRow{Outcome: OutcomeSuccess, Action: ActionIncrease}.ActionLabel())
	assert.Equal(t, "Insufficient data", PortfolioRow{Outcome: OutcomeInsufficientData}.ActionLabel())
	assert.Equal(t, "Non-positive margin", PortfolioRow{Outcome: OutcomeNonPositiveMargin}.ActionLabel())
	assert.Equal(t, "Error: boom", PortfolioRow{Outcome: OutcomeError, Error: "boom"}.ActionLabel())
}
