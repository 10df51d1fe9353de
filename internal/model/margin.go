package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// MarginConfig describes the financial return threshold for a product.
type MarginConfig struct {
	GrossMarginPct         float64 `json:"gross_margin_pct" yaml:"gross_margin_pct"`
	RequiredNetPct         float64 `json:"required_net_pct" yaml:"required_net_pct"`
	ContributionMarginPct  float64 `json:"contribution_margin_pct" yaml:"contribution_margin_pct"`
	RequiredMarginalReturn float64 `json:"required_marginal_return" yaml:"required_marginal_return"`
}

// NewMarginConfig derives the contribution margin and the required marginal
// return from gross margin and required net margin, both in percent.
// RequiredMarginalReturn is 0 when the contribution margin is not positive.
func NewMarginConfig(grossMarginPct, requiredNetPct float64) MarginConfig {
	m := MarginConfig{
		GrossMarginPct:        grossMarginPct,
		RequiredNetPct:        requiredNetPct,
		ContributionMarginPct: grossMarginPct - requiredNetPct,
	}
	if m.ContributionMarginPct > 0 {
		m.RequiredMarginalReturn = 1 / (m.ContributionMarginPct / 100)
	}
	return m
}

// MarginFromFraction builds a MarginConfig from a contribution margin fraction
// (0.11 for 11%). Gross and required net are left at zero.
func MarginFromFraction(contribution float64) MarginConfig {
	m := MarginConfig{ContributionMarginPct: contribution * 100}
	if contribution > 0 {
		m.RequiredMarginalReturn = 1 / contribution
	}
	return m
}

// Optimizable reports whether a positive contribution margin exists.
func (m MarginConfig) Optimizable() bool {
	return m.ContributionMarginPct > 0 && m.RequiredMarginalReturn > 0
}

// Contribution returns the contribution margin as a fraction.
func (m MarginConfig) Contribution() float64 {
	return m.ContributionMarginPct / 100
}

// SeasonalityMode selects the cyclical adjustment applied before fitting.
type SeasonalityMode string

const (
	SeasonalityNone    SeasonalityMode = "none"
	SeasonalityWeekly  SeasonalityMode = "weekly"
	SeasonalityMonthly SeasonalityMode = "monthly"
)

// ParseSeasonality converts a user string into a SeasonalityMode.
// An empty string means none.
func ParseSeasonality(s string) (SeasonalityMode, error) {
	switch SeasonalityMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeasonalityNone:
		return SeasonalityNone, nil
	case SeasonalityWeekly, "week", "dow":
		return SeasonalityWeekly, nil
	case SeasonalityMonthly, "month":
		return SeasonalityMonthly, nil
	default:
		return "", eris.Errorf("model: unknown seasonality %q (want none, weekly or monthly)", s)
	}
}

// RunSettings are the caller-supplied knobs for one optimization.
type RunSettings struct {
	// CurrentSpend is the baseline daily spend to compare against. 0 disables the comparison.
	CurrentSpend float64 `json:"current_spend" yaml:"current_spend"`
	// MaxSpend caps the spend search range. 0 means no cap.
	MaxSpend    float64         `json:"max_spend" yaml:"max_spend"`
	Seasonality SeasonalityMode `json:"seasonality" yaml:"seasonality"`
	// Recency in [0,1] biases the fit toward recent observations.
	Recency float64 `json:"recency" yaml:"recency"`
}
