package optimizer

import (
	"math"

	"github.com/tripleyak/marginal-roas-optimizer/internal/curve"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

const (
	boundGrowth     = 1.8
	boundIterations = 32
)

// EstimateBound returns an upper spend bound past which the seasonally scaled
// marginal return no longer exceeds target. The bound grows geometrically
// from max(2*maxSpend, 4*K, 1) and never passes max(50*maxSpend, 20*K).
func EstimateBound(p model.CurveParams, maxSpend, seasonalFactor, target float64) float64 {
	hi := math.Max(math.Max(2*maxSpend, 4*p.K), 1)
	ceiling := math.Max(50*maxSpend, 20*p.K)

	for i := 0; i < boundIterations; i++ {
		if curve.Derivative(hi, p)*seasonalFactor <= target || hi >= ceiling {
			break
		}
		hi *= boundGrowth
	}
	return math.Min(hi, ceiling)
}
