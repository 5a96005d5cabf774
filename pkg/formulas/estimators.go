// Package formulas provides the statistical point estimators, the lognormal
// (Geometric Brownian Motion) probability model and the stochastic integration
// helpers used by the risk, portfolio and cash flow modules.
//
// Every function here is pure: samples are never mutated and nothing is logged.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a sample.
func Mean(x []float64) (float64, error) {
	if len(x) == 0 {
		return 0, sizeError("mean", 0, 1)
	}
	return stat.Mean(x, nil), nil
}

// Variance calculates the unbiased (n-1) sample variance.
func Variance(x []float64) (float64, error) {
	if len(x) <= 1 {
		return 0, sizeError("variance", len(x), 2)
	}
	return stat.Variance(x, nil), nil
}

// StdDev is the square root of Variance.
func StdDev(x []float64) (float64, error) {
	v, err := Variance(x)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// Covariance calculates the unbiased sample covariance of paired data.
// x and y must preserve order with each other.
func Covariance(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, pairedSizeError("covariance", len(x), len(y), 2)
	}
	if len(x) <= 1 {
		return 0, sizeError("covariance", len(x), 2)
	}
	return stat.Covariance(x, y, nil), nil
}

// Correlation calculates the Pearson correlation coefficient from the raw sums
//
//	(n*Sxy - Sx*Sy) / sqrt((n*Sxx - Sx^2) * (n*Syy - Sy^2))
//
// Returns ErrDegenerateCorrelation when the denominator is zero.
func Correlation(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, pairedSizeError("correlation", len(x), len(y), 2)
	}
	if len(x) <= 1 {
		return 0, sizeError("correlation", len(x), 2)
	}

	var sumXY, sumX, sumY, sumXX, sumYY float64
	for i, xi := range x {
		yi := y[i]
		sumXY += xi * yi
		sumX += xi
		sumY += yi
		sumXX += xi * xi
		sumYY += yi * yi
	}
	n := float64(len(x))

	numerator := n*sumXY - sumX*sumY
	denominator := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if denominator == 0 || math.IsNaN(denominator) {
		return 0, ErrDegenerateCorrelation
	}
	return numerator / denominator, nil
}

// Percentile returns the observation at cumulative probability p of the sorted sample.
// The rank is (n+1)*p. Integer ranks return that order statistic exactly, ranks past
// the end clamp to the largest observation, ranks before the start clamp to the
// smallest, and anything else is linearly interpolated between neighbours.
func Percentile(data []float64, p float64) (float64, error) {
	n := len(data)
	if n == 0 {
		return 0, sizeError("percentile", 0, 1)
	}

	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)

	rank := float64(n+1) * p
	whole := math.Floor(rank)

	switch {
	case rank > float64(n):
		return sorted[n-1], nil
	case rank < 1:
		return sorted[0], nil
	case rank == whole:
		return sorted[int(whole)-1], nil
	}

	first := int(whole) - 1
	weight := rank - whole
	return (1-weight)*sorted[first] + weight*sorted[first+1], nil
}

// RegressionBeta returns the ordinary least squares slope of y on x,
// corr(x, y) * sd(y) / sd(x).
func RegressionBeta(x, y []float64) (float64, error) {
	if err := checkRegressionSample(x, y); err != nil {
		return 0, err
	}

	correl, err := Correlation(x, y)
	if err != nil {
		return 0, err
	}
	volX, err := StdDev(x)
	if err != nil {
		return 0, err
	}
	volY, err := StdDev(y)
	if err != nil {
		return 0, err
	}
	return correl * volY / volX, nil
}

// RegressionAlpha returns the ordinary least squares intercept, mean(y) - beta*mean(x).
func RegressionAlpha(x, y []float64) (float64, error) {
	if err := checkRegressionSample(x, y); err != nil {
		return 0, err
	}

	beta, err := RegressionBeta(x, y)
	if err != nil {
		return 0, err
	}
	xMean, _ := Mean(x)
	yMean, _ := Mean(y)
	return yMean - beta*xMean, nil
}

// checkRegressionSample enforces the degrees of freedom (n > 2) a simple regression needs.
func checkRegressionSample(x, y []float64) error {
	if len(x) != len(y) {
		return pairedSizeError("regression", len(x), len(y), 3)
	}
	if len(x) < 3 {
		return sizeError("regression", len(x), 3)
	}
	return nil
}
