package formulas

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/integrate/quad"
)

// Quadrature settings for the finite-energy check. The half line is split into
// decades [0,1], [1,10], ..., [1e5,1e6]; the condition holds when the last decade
// contributes a negligible share of the total.
const (
	quadPointsPerSegment = 256
	quadDecades          = 6
	quadTailTolerance    = 1e-4
)

// VerifyVolatilityCondition reports whether the integral of volFn(t)^2 over
// [0, inf) is finite, which Ito calculus requires of the volatility scaling a Wiener
// process. It also returns the estimated integral.
func VerifyVolatilityCondition(volFn func(t float64) float64) (bool, float64) {
	energy := func(t float64) float64 {
		v := volFn(t)
		return v * v
	}

	total, lower, last := 0.0, 0.0, 0.0
	for k := 0; k <= quadDecades; k++ {
		upper := math.Pow(10, float64(k))
		last = quad.Fixed(energy, lower, upper, quadPointsPerSegment, nil, 0)
		total += last
		lower = upper
	}

	if math.IsNaN(total) || math.IsInf(total, 0) {
		return false, total
	}
	if total == 0 {
		return true, 0
	}
	return math.Abs(last/total) < quadTailTolerance, total
}

// ItoIntegral approximates E[ integral_0^upper mean(t) dt + vol(t) dW(t) ] by averaging
// forward-increment Riemann-Stieltjes sums over independent simulated Wiener paths.
//
// Returns *UnboundedIntegralError when volFn fails VerifyVolatilityCondition.
func ItoIntegral(meanFn, volFn func(t float64) float64, upper float64, steps, iterations int, rng *rand.Rand) (float64, error) {
	ok, energy := VerifyVolatilityCondition(volFn)
	if !ok {
		return 0, &UnboundedIntegralError{Integral: energy}
	}
	if steps <= 0 || iterations <= 0 {
		return 0, sizeError("ito integral", min(steps, iterations), 1)
	}

	dt := upper / float64(steps)
	sqrtDt := math.Sqrt(dt)

	average := 0.0
	for j := 0; j < iterations; j++ {
		path := 0.0
		for i := 0; i < steps; i++ {
			t := dt * float64(i)
			path += meanFn(t)*dt + volFn(t)*sqrtDt*rng.NormFloat64()
		}
		average += path / float64(iterations)
	}
	return average, nil
}
