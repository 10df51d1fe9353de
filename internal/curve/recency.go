package curve

import "math"

// RecencyWeights returns n fit weights in chronological order, favoring recent
// observations. Weight i is ((i+1)/n)^(1+4*recency), rescaled so the mean is 1.
// Recency is clamped to [0,1]; at 0 the weights are a linear ramp.
func RecencyWeights(n int, recency float64) []float64 {
	if n <= 0 {
		return nil
	}
	recency = math.Min(math.Max(recency, 0), 1)
	exp := 1 + 4*recency

	w := make([]float64, n)
	var sum float64
	for i := range w {
		w[i] = math.Pow(float64(i+1)/float64(n), exp)
		sum += w[i]
	}
	if sum <= 0 {
		for i := range w {
			w[i] = 1
		}
		return w
	}

	scale := float64(n) / sum
	for i := range w {
		w[i] *= scale
	}
	return w
}
