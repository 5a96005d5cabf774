package optimization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEfficientFrontier(t *testing.T) {
	p := threeAssets(t)
	o := newTestOptimizer()

	frontier, err := o.EfficientFrontier(context.Background(), p, 4)
	require.NoError(t, err)
	require.Len(t, frontier, 5)

	for i, point := range frontier {
		assertFeasible(t, point.Weights)
		assert.InDelta(t, p.Return(point.Weights), point.Return, 1e-12)
		if i > 0 {
			assert.GreaterOrEqual(t, point.Return, frontier[i-1].Return-1e-6, "return at point %d", i)
			assert.GreaterOrEqual(t, point.Volatility, frontier[i-1].Volatility-1e-6, "volatility at point %d", i)
		}
	}

	minVar, err := o.MinimizeVariance(p, nil)
	require.NoError(t, err)
	assert.InDelta(t, p.Volatility(minVar), frontier[0].Volatility, 1e-4)
	assert.InDelta(t, 0.14, frontier[4].Return, 1e-4)
}

func TestEfficientFrontier_BoundaryPortfolios(t *testing.T) {
	steps := map[string]int{
		"corner minimum variance":               5,
		"zero volatility asset":                 5,
		"perfectly correlated equal volatility": 8,
	}

	for _, tc := range boundaryCases() {
		t.Run(tc.name, func(t *testing.T) {
			p := newPortfolio(t, tc.returns, tc.vols, tc.corr, 0.02)
			o := newTestOptimizer()
			n := steps[tc.name]

			frontier, err := o.EfficientFrontier(context.Background(), p, n)
			require.NoError(t, err)
			require.Len(t, frontier, n+1)

			low, high := frontier[0].Return, frontier[n].Return
			assert.InDelta(t, tc.returns[1], high, 1e-4)
			for i, point := range frontier {
				assertFeasible(t, point.Weights)
				assert.InDelta(t, low+(high-low)*float64(i)/float64(n), point.Return, 3e-4, "return at point %d", i)
				if i > 0 {
					assert.GreaterOrEqual(t, point.Return, frontier[i-1].Return-1e-6, "return at point %d", i)
					assert.GreaterOrEqual(t, point.Volatility, frontier[i-1].Volatility-1e-6, "volatility at point %d", i)
				}
			}
		})
	}
}

func TestEfficientFrontier_DefaultSteps(t *testing.T) {
	frontier, err := newTestOptimizer().EfficientFrontier(context.Background(), threeAssets(t), 0)
	require.NoError(t, err)
	assert.Len(t, frontier, DefaultFrontierSteps+1)
}

func TestEfficientFrontier_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOptimizer().EfficientFrontier(ctx, threeAssets(t), 3)
	assert.ErrorIs(t, err, context.Canceled)
}
