// Package seasonal removes weekly or monthly multiplicative effects from
// observed revenue before curve fitting.
package seasonal

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// Factors maps a period bucket (weekday 0-6 or month 0-11) to a multiplier.
type Factors map[int]float64

// Adjustment is the result of deseasonalizing a sorted observation series.
type Adjustment struct {
	Mode model.SeasonalityMode
	// Revenue holds the deseasonalized ad revenue, aligned with the input.
	Revenue []float64
	Factors Factors
	// CurrentFactor is the factor of the most recent observation's bucket.
	// Multiply model outputs by it to express them "as of now".
	CurrentFactor float64
}

// Bucket returns the period bucket for t under mode: weekday with Sunday=0,
// or calendar month with January=0. Mode none always yields 0.
func Bucket(t time.Time, mode model.SeasonalityMode) int {
	switch mode {
	case model.SeasonalityWeekly:
		return int(t.Weekday())
	case model.SeasonalityMonthly:
		return int(t.Month()) - 1
	default:
		return 0
	}
}

func bucketCount(mode model.SeasonalityMode) int {
	switch mode {
	case model.SeasonalityWeekly:
		return 7
	case model.SeasonalityMonthly:
		return 12
	default:
		return 1
	}
}

// Adjust computes seasonal factors for obs, which must be sorted by date
// ascending, and returns the deseasonalized revenue series.
//
// factor[b] = mean(adRevenue in b) / mean(adRevenue overall), falling back to 1
// for empty buckets, non-positive bucket means, or a non-positive overall mean.
func Adjust(obs []model.Observation, mode model.SeasonalityMode) (*Adjustment, error) {
	if mode == "" {
		mode = model.SeasonalityNone
	}
	switch mode {
	case model.SeasonalityNone, model.SeasonalityWeekly, model.SeasonalityMonthly:
	default:
		return nil, eris.Errorf("seasonal: unsupported mode %q", mode)
	}

	adj := &Adjustment{
		Mode:          mode,
		Revenue:       make([]float64, len(obs)),
		Factors:       Factors{},
		CurrentFactor: 1,
	}

	if mode == model.SeasonalityNone || len(obs) == 0 {
		for i, o := range obs {
			adj.Revenue[i] = o.AdRevenue
		}
		adj.Factors[0] = 1
		return adj, nil
	}

	n := bucketCount(mode)
	sums := make([]float64, n)
	counts := make([]int, n)
	var total float64
	for _, o := range obs {
		b := Bucket(o.Date, mode)
		sums[b] += o.AdRevenue
		counts[b]++
		total += o.AdRevenue
	}
	overall := total / float64(len(obs))

	for b := 0; b < n; b++ {
		f := 1.0
		if counts[b] > 0 && overall > 0 {
			if avg := sums[b] / float64(counts[b]); avg > 0 {
				f = avg / overall
			}
		}
		adj.Factors[b] = f
	}

	for i, o := range obs {
		adj.Revenue[i] = o.AdRevenue / adj.Factors[Bucket(o.Date, mode)]
	}
	adj.CurrentFactor = adj.Factors[Bucket(obs[len(obs)-1].Date, mode)]

	return adj, nil
}
