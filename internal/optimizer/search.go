package optimizer

import (
	"math"

	"github.com/tripleyak/marginal-roas-optimizer/internal/curve"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

const (
	peakSamples         = 513
	bisectionIterations = 60
)

// Search finds the spend in [0, maxSearchSpend] where the seasonally scaled
// marginal return falls to target. The marginal return curve is assumed
// unimodal: a coarse scan finds its peak, then bisection runs on the
// declining branch. When the peak is below target the result is infeasible
// and carries the peak marginal return.
func Search(p model.CurveParams, seasonalFactor, target, maxSearchSpend float64) model.OptimizationResult {
	res := model.OptimizationResult{
		Params:         p,
		SeasonalFactor: seasonalFactor,
		MaxSearchSpend: maxSearchSpend,
		TargetReturn:   target,
	}

	marginal := func(s float64) float64 {
		return curve.Derivative(s, p) * seasonalFactor
	}

	peakSpend, peak := 0.0, math.Inf(-1)
	step := maxSearchSpend / float64(peakSamples-1)
	for i := 0; i < peakSamples; i++ {
		s := step * float64(i)
		if m := marginal(s); m > peak {
			peak, peakSpend = m, s
		}
	}

	if peak < target {
		res.MarginalReturnAtOptimal = peak
		return res
	}

	lo, hi := peakSpend, maxSearchSpend
	for i := 0; i < bisectionIterations; i++ {
		mid := (lo + hi) / 2
		if marginal(mid) >= target {
			lo = mid
		} else {
			hi = mid
		}
	}

	res.Feasible = true
	res.OptimalSpend = lo
	res.ExpectedRevenue = curve.Value(lo, p) * seasonalFactor
	res.TotalReturnAtOptimal = res.ExpectedRevenue / math.Max(lo, 1)
	res.MarginalReturnAtOptimal = marginal(lo)
	return res
}
