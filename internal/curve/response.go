// Package curve models the saturating spend-to-revenue response curve and fits it
// to observed data with a fixed grid search.
package curve

import (
	"math"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
)

// minParam floors K and gamma so the curve never divides by zero.
const minParam = 1e-9

// Value returns expected revenue at spend:
//
//	alpha * r^gamma / (1 + r^gamma), r = spend / max(K, 1e-9)
//
// It is 0 at zero spend, increasing in spend, and approaches alpha.
func Value(spend float64, p model.CurveParams) float64 {
	if spend <= 0 {
		return 0
	}
	r := spend / math.Max(p.K, minParam)
	rg := math.Pow(r, p.Gamma)
	if math.IsInf(rg, 1) {
		return p.Alpha
	}
	return p.Alpha * rg / (1 + rg)
}

// Derivative returns the marginal return at spend: incremental revenue per
// incremental dollar. It returns 0 when the denominator is not positive.
func Derivative(spend float64, p model.CurveParams) float64 {
	if spend < 0 {
		spend = 0
	}
	k := math.Max(p.K, minParam)
	gamma := math.Max(p.Gamma, minParam)
	r := spend / k
	rg := math.Pow(r, gamma)
	denom := k * (1 + rg) * (1 + rg)
	if denom <= 0 || math.IsInf(denom, 1) || math.IsNaN(denom) {
		return 0
	}
	d := p.Alpha * gamma * math.Pow(r, gamma-1) / denom
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}
