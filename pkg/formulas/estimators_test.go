package formulas

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	regressionX = []float64{1, 2, 3, 4, 5, 6, 7}
	regressionY = []float64{20, 19, 23, 20, 26, 22, 30}
)

func TestMean(t *testing.T) {
	mean, err := Mean([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mean, 1e-12)

	_, err = Mean(nil)
	assert.True(t, IsSampleSizeError(err))
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name     string
		data     []float64
		expected float64
		wantErr  bool
	}{
		{name: "empty", data: []float64{}, wantErr: true},
		{name: "single point", data: []float64{3}, wantErr: true},
		{name: "two points", data: []float64{1, 3}, expected: 2},
		{name: "constant", data: []float64{5, 5, 5, 5}, expected: 0},
		{name: "regression sample", data: regressionY, expected: 92.857142857142857 / 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Variance(tt.data)
			if tt.wantErr {
				var sse *SampleSizeError
				require.True(t, errors.As(err, &sse))
				assert.Equal(t, 2, sse.Required)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, v, 1e-9)
			assert.GreaterOrEqual(t, v, 0.0)
		})
	}
}

func TestCovariance_Errors(t *testing.T) {
	_, err := Covariance([]float64{1, 2, 3}, []float64{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comparable length")

	_, err = Covariance([]float64{1}, []float64{1})
	assert.True(t, IsSampleSizeError(err))
}

func TestCorrelation(t *testing.T) {
	t.Run("concrete scenario", func(t *testing.T) {
		corr, err := Correlation(regressionX, regressionY)
		require.NoError(t, err)
		assert.InDelta(t, 0.7649, corr, 1e-4)
	})

	t.Run("symmetric", func(t *testing.T) {
		xy, err := Correlation(regressionX, regressionY)
		require.NoError(t, err)
		yx, err := Correlation(regressionY, regressionX)
		require.NoError(t, err)
		assert.Equal(t, xy, yx)
	})

	t.Run("bounded", func(t *testing.T) {
		samples := [][2][]float64{
			{{1, 2, 3}, {2, 4, 6}},
			{{1, 2, 3}, {6, 4, 2}},
			{{0.3, -1.2, 4.4, 0.01}, {9, 2, -3, 1}},
		}
		for _, s := range samples {
			corr, err := Correlation(s[0], s[1])
			require.NoError(t, err)
			assert.LessOrEqual(t, math.Abs(corr), 1+1e-12)
		}
	})

	t.Run("perfect", func(t *testing.T) {
		corr, err := Correlation([]float64{1, 2, 3}, []float64{2, 4, 6})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, corr, 1e-12)
	})

	t.Run("degenerate", func(t *testing.T) {
		_, err := Correlation([]float64{1, 1, 1}, []float64{1, 2, 3})
		assert.ErrorIs(t, err, ErrDegenerateCorrelation)
	})

	t.Run("too small", func(t *testing.T) {
		_, err := Correlation([]float64{1}, []float64{1})
		assert.True(t, IsSampleSizeError(err))
	})
}

func TestPercentile(t *testing.T) {
	data := []float64{9, 3, 7, 1, 5, 2, 8, 4, 6}

	tests := []struct {
		name     string
		p        float64
		expected float64
	}{
		{name: "exact median rank", p: 0.5, expected: 5},
		{name: "exact first rank", p: 0.1, expected: 1},
		{name: "interpolated", p: 0.25, expected: 2.5},
		{name: "rank past end clamps", p: 0.99, expected: 9},
		{name: "rank before start clamps", p: 0.05, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Percentile(data, tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("does not mutate input", func(t *testing.T) {
		in := []float64{3, 1, 2}
		_, err := Percentile(in, 0.5)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 1, 2}, in)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Percentile(nil, 0.5)
		assert.True(t, IsSampleSizeError(err))
	})
}

func TestRegression(t *testing.T) {
	beta, err := RegressionBeta(regressionX, regressionY)
	require.NoError(t, err)
	assert.InDelta(t, 1.3929, beta, 1e-4)

	alpha, err := RegressionAlpha(regressionX, regressionY)
	require.NoError(t, err)
	assert.InDelta(t, 17.2857, alpha, 1e-4)

	corr, _ := Correlation(regressionX, regressionY)
	varX, _ := Variance(regressionX)
	varY, _ := Variance(regressionY)
	assert.InDelta(t, corr*math.Sqrt(varY/varX), beta, 1e-9)
}

func TestRegression_Errors(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
	}{
		{name: "two points", x: []float64{1, 2}, y: []float64{1, 2}},
		{name: "mismatched", x: []float64{1, 2, 3}, y: []float64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RegressionBeta(tt.x, tt.y)
			assert.True(t, IsSampleSizeError(err))
			_, err = RegressionAlpha(tt.x, tt.y)
			assert.True(t, IsSampleSizeError(err))
		})
	}
}
