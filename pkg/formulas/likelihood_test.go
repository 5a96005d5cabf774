package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnivariateNormalLogLikelihood(t *testing.T) {
	got := UnivariateNormalLogLikelihood([]float64{0, 1}, []float64{0})
	assert.InDelta(t, -0.5*math.Log(2*math.Pi), got, 1e-12)

	// The likelihood is highest at the true parameters.
	data := []float64{-1, 0, 1}
	best := UnivariateNormalLogLikelihood([]float64{0, math.Sqrt(2.0 / 3.0)}, data)
	shifted := UnivariateNormalLogLikelihood([]float64{0.5, math.Sqrt(2.0 / 3.0)}, data)
	assert.Greater(t, best, shifted)
}

func TestBivariateNormalLogLikelihood(t *testing.T) {
	t.Run("standard normal at origin", func(t *testing.T) {
		got := BivariateNormalLogLikelihood([]float64{0, 0, 1, 1, 0}, [][2]float64{{0, 0}})
		assert.InDelta(t, -math.Log(2*math.Pi), got, 1e-12)
	})

	t.Run("singular covariance", func(t *testing.T) {
		got := BivariateNormalLogLikelihood([]float64{0, 0, 1, 1, 1}, [][2]float64{{0, 0}})
		assert.True(t, math.IsInf(got, 1))
	})
}

func TestQQSeries(t *testing.T) {
	sample := []float64{0.4, -1.1, 0.2, 2.3, -0.3, 0.9}
	series, err := QQSeries(sample)
	require.NoError(t, err)
	require.Len(t, series, len(sample))

	for i := 1; i < len(series); i++ {
		assert.Greater(t, series[i].Theoretical, series[i-1].Theoretical)
		assert.GreaterOrEqual(t, series[i].Sample, series[i-1].Sample)
	}

	single, err := QQSeries([]float64{7})
	require.NoError(t, err)
	assert.InDelta(t, 0, single[0].Theoretical, 1e-12)
	assert.Equal(t, 7.0, single[0].Sample)

	_, err = QQSeries(nil)
	assert.True(t, IsSampleSizeError(err))
}
