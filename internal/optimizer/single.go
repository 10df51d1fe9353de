// Package optimizer recommends the daily ad spend at which the marginal
// return of a fitted response curve falls to the required return.
package optimizer

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/curve"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
	"github.com/tripleyak/marginal-roas-optimizer/internal/seasonal"
)

// MinObservations is the fewest daily observations a curve is fitted on.
const MinObservations = 3

// DefaultWorkers is the portfolio concurrency used when Options.Workers is unset.
const DefaultWorkers = 4

// Options configures an Optimizer.
type Options struct {
	Fit curve.FitOptions
	// Workers bounds concurrent entities in OptimizePortfolio.
	Workers int
}

// Optimizer runs the fit-bound-search pipeline. It holds no per-run state and
// is safe for concurrent use.
type Optimizer struct {
	opts Options
}

// New creates an Optimizer.
func New(opts Options) *Optimizer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Optimizer{opts: opts}
}

// Workers returns the configured portfolio concurrency.
func (o *Optimizer) Workers() int { return o.opts.Workers }

// series is a sorted, deseasonalized observation set ready for fitting.
type series struct {
	sorted   []model.Observation
	adj      *seasonal.Adjustment
	spend    []float64
	maxSpend float64
}

func prepare(obs []model.Observation, mode model.SeasonalityMode) (*series, error) {
	sorted := model.SortByDate(obs)
	adj, err := seasonal.Adjust(sorted, mode)
	if err != nil {
		return nil, eris.Wrap(err, "optimizer: seasonal adjustment")
	}
	s := &series{sorted: sorted, adj: adj, spend: make([]float64, len(sorted))}
	for i, ob := range sorted {
		s.spend[i] = ob.Spend
		s.maxSpend = math.Max(s.maxSpend, ob.Spend)
	}
	return s, nil
}

// OptimizeSingle fits a response curve to one product's observations and
// returns the spend at which its marginal return meets the margin's required
// return. It returns a *ValidationError for fewer than MinObservations
// observations or a non-positive contribution margin.
func (o *Optimizer) OptimizeSingle(ctx context.Context, obs []model.Observation, margin model.MarginConfig, settings model.RunSettings) (*model.OptimizationResult, error) {
	if len(obs) < MinObservations {
		return nil, newInsufficientData(len(obs))
	}
	if !margin.Optimizable() {
		return nil, newNonPositiveMargin(margin.ContributionMarginPct)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := prepare(obs, settings.Seasonality)
	if err != nil {
		return nil, err
	}

	weights := curve.RecencyWeights(len(s.sorted), settings.Recency)
	fit, err := curve.Fit(s.spend, s.adj.Revenue, weights, o.opts.Fit)
	if err != nil {
		return nil, eris.Wrap(err, "optimizer: fit response curve")
	}

	cf := s.adj.CurrentFactor
	target := margin.RequiredMarginalReturn
	bound := EstimateBound(fit.Params, s.maxSpend, cf, target)
	if settings.MaxSpend > 0 {
		bound = math.Min(bound, settings.MaxSpend)
	}

	res := Search(fit.Params, cf, target, bound)
	res.FitTruncated = fit.Truncated

	if cs := settings.CurrentSpend; cs > 0 {
		currentRevenue := curve.Value(cs, fit.Params) * cf
		res.CurrentSpend = model.Float(cs)
		res.CurrentExpectedRevenue = model.Float(currentRevenue)
		res.CurrentMarginalReturn = model.Float(curve.Derivative(cs, fit.Params) * cf)
		res.DeltaSpend = model.Float(res.OptimalSpend - cs)
		res.RevenueLift = model.Float(res.ExpectedRevenue - currentRevenue)
	}

	zap.L().Debug("optimizer: single optimization complete",
		zap.Int("observations", len(s.sorted)),
		zap.Bool("feasible", res.Feasible),
		zap.Float64("optimal_spend", res.OptimalSpend),
		zap.Float64("target_return", target),
		zap.Int("fit_evaluations", fit.Evaluations),
		zap.Bool("fit_truncated", fit.Truncated),
	)
	return &res, nil
}
