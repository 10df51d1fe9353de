package curve

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// DefaultFitBudget bounds how long a single grid search may run.
const DefaultFitBudget = 8 * time.Second

// Grid multipliers. Alpha scales the largest observed revenue, K scales the
// largest observed spend (floored at 1). Enumeration order is alpha, gamma, K.
var (
	alphaMultipliers = []float64{1.05, 1.1, 1.2}
	gammaGrid        = []float64{1.1, 1.3, 1.6, 2.0, 2.5}
	kMultipliers     = []float64{0.25, 0.5, 0.75, 1.0, 1.5}
)

// GridSize is the number of parameter combinations evaluated by a full fit.
var GridSize = len(alphaMultipliers) * len(gammaGrid) * len(kMultipliers)

// Clock supplies the current time to the fit budget check.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// FitOptions bounds the grid search.
type FitOptions struct {
	// Budget is the wall-clock allowance. 0 uses DefaultFitBudget; negative disables it.
	Budget time.Duration
	// Clock defaults to time.Now.
	Clock Clock
	// MaxEvaluations caps the number of combinations scored. 0 means no cap.
	MaxEvaluations int
}

// FitResult is the best combination found by Fit.
type FitResult struct {
	Params      model.CurveParams
	SSE         float64
	Evaluations int
	// Truncated is true when a budget stopped the search before the grid was exhausted.
	Truncated bool
}

// Fit grid-searches curve parameters minimizing the weighted sum of squared
// residuals. weights may be nil or shorter than the data; missing weights are 1.
// The first combination in enumeration order wins exact ties.
//
// The time budget is checked before each pass over the K grid, so a slow run
// can overshoot it by at most one pass. The evaluation budget is exact.
func Fit(spend, revenue, weights []float64, opts FitOptions) (FitResult, error) {
	if len(spend) == 0 {
		return FitResult{}, eris.New("curve: fit requires at least one observation")
	}
	if len(spend) != len(revenue) {
		return FitResult{}, eris.Errorf("curve: spend and revenue length mismatch (%d != %d)", len(spend), len(revenue))
	}

	clock := opts.Clock
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	budget := opts.Budget
	if budget == 0 {
		budget = DefaultFitBudget
	}
	start := clock.Now()

	maxSpend, maxRevenue := 0.0, 0.0
	for i := range spend {
		maxSpend = math.Max(maxSpend, spend[i])
		maxRevenue = math.Max(maxRevenue, revenue[i])
	}
	kBase := math.Max(maxSpend, 1)

	best := FitResult{SSE: math.Inf(1)}

search:
	for _, am := range alphaMultipliers {
		for _, gamma := range gammaGrid {
			if best.Evaluations > 0 && budget > 0 && clock.Now().Sub(start) > budget {
				best.Truncated = true
				break search
			}
			for _, km := range kMultipliers {
				if opts.MaxEvaluations > 0 && best.Evaluations >= opts.MaxEvaluations {
					best.Truncated = true
					break search
				}
				p := model.CurveParams{Alpha: am * maxRevenue, Gamma: gamma, K: km * kBase}
				sse := weightedSSE(spend, revenue, weights, p)
				best.Evaluations++
				if sse < best.SSE {
					best.SSE = sse
					best.Params = p
				}
			}
		}
	}

	if best.Truncated {
		zap.L().Debug("curve: fit stopped early",
			zap.Int("evaluations", best.Evaluations),
			zap.Int("grid_size", GridSize),
			zap.Duration("elapsed", clock.Now().Sub(start)),
		)
	}
	return best, nil
}

func weightedSSE(spend, revenue, weights []float64, p model.CurveParams) float64 {
	var sse float64
	for i := range spend {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		res := Value(spend[i], p) - revenue[i]
		sse += w * res * res
	}
	return sse
}
