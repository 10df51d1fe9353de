package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecencyWeights_MeanIsOne(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 2, 3, 7, 30, 365} {
		for _, r := range []float64{0, 0.25, 0.5, 0.75, 1} {
			w := RecencyWeights(n, r)
			require.Len(t, w, n)
			var sum float64
			for _, x := range w {
				sum += x
			}
			assert.InDelta(t, 1.0, sum/float64(n), 1e-9, "n=%d recency=%.2f", n, r)
		}
	}
}

func TestRecencyWeights_IncreaseWithRecency(t *testing.T) {
	t.Parallel()
	w := RecencyWeights(10, 0.5)
	for i := 1; i < len(w); i++ {
		assert.Greater(t, w[i], w[i-1])
	}
}

func TestRecencyWeights_ZeroIsLinearRamp(t *testing.T) {
	t.Parallel()
	n := 4
	w := RecencyWeights(n, 0)
	// (i+1) * n / sum(1..n) = (i+1) * 2 / (n+1)
	for i, x := range w {
		assert.InDelta(t, float64(i+1)*2/float64(n+1), x, 1e-12)
	}
}

func TestRecencyWeights_Clamped(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RecencyWeights(5, 1), RecencyWeights(5, 3))
	assert.Equal(t, RecencyWeights(5, 0), RecencyWeights(5, -2))
}

func TestRecencyWeights_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, RecencyWeights(0, 0.5))
}

func TestRecencyWeights_SingleObservation(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []float64{1}, RecencyWeights(1, 0.8))
}
