package formulas

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyVolatilityCondition(t *testing.T) {
	tests := []struct {
		name     string
		vol      func(float64) float64
		bounded  bool
		integral float64
	}{
		{name: "exponential decay", vol: func(t float64) float64 { return math.Exp(-t) }, bounded: true, integral: 0.5},
		{name: "hyperbolic decay", vol: func(t float64) float64 { return 1 / (1 + t) }, bounded: true, integral: 1},
		{name: "zero", vol: func(float64) float64 { return 0 }, bounded: true, integral: 0},
		{name: "constant", vol: func(float64) float64 { return 0.2 }, bounded: false},
		{name: "square root decay", vol: func(t float64) float64 { return 1 / math.Sqrt(1+t) }, bounded: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, integral := VerifyVolatilityCondition(tt.vol)
			assert.Equal(t, tt.bounded, ok)
			if tt.bounded {
				assert.InDelta(t, tt.integral, integral, 1e-4)
			}
		})
	}
}

func TestItoIntegral(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	mean := func(float64) float64 { return 0.1 }
	vol := func(t float64) float64 { return math.Exp(-t) }

	got, err := ItoIntegral(mean, vol, 1, 100, 2000, rng)
	require.NoError(t, err)
	// The stochastic term has zero expectation.
	assert.InDelta(t, 0.1, got, 0.06)
}

func TestItoIntegral_Unbounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	_, err := ItoIntegral(func(float64) float64 { return 0 }, func(float64) float64 { return 1 }, 1, 10, 10, rng)

	var unbounded *UnboundedIntegralError
	require.True(t, errors.As(err, &unbounded))
	assert.Greater(t, unbounded.Integral, 1.0)
}

func TestItoIntegral_InvalidSteps(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	_, err := ItoIntegral(func(float64) float64 { return 0 }, func(t float64) float64 { return math.Exp(-t) }, 1, 0, 10, rng)
	assert.True(t, IsSampleSizeError(err))
}
