package formulas

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// minCovarianceDeterminant guards the bivariate likelihood against singular matrices.
const minCovarianceDeterminant = 1e-8

// UnivariateNormalLogLikelihood returns the log-likelihood of drawing data from a
// normal population with params = [mean, volatility].
func UnivariateNormalLogLikelihood(params []float64, data []float64) float64 {
	dist := distuv.Normal{Mu: params[0], Sigma: params[1]}
	likelihood := 0.0
	for _, point := range data {
		likelihood += dist.LogProb(point)
	}
	return likelihood
}

// BivariateNormalLogLikelihood returns the log-likelihood of drawing the paired data
// from a bivariate normal population with
// params = [meanX, meanY, varX, varY, covXY].
//
// Returns +Inf when the covariance matrix is singular or not positive definite.
func BivariateNormalLogLikelihood(params []float64, data [][2]float64) float64 {
	determinant := params[2]*params[3] - params[4]*params[4]
	if determinant < minCovarianceDeterminant {
		return math.Inf(1)
	}

	sigma := mat.NewSymDense(2, []float64{params[2], params[4], params[4], params[3]})
	dist, ok := distmv.NewNormal([]float64{params[0], params[1]}, sigma, nil)
	if !ok {
		return math.Inf(1)
	}

	likelihood := 0.0
	for _, point := range data {
		likelihood += dist.LogProb(point[:])
	}
	return likelihood
}

// QQPoint pairs a theoretical standard normal quantile with the sample quantile at the
// same cumulative probability.
type QQPoint struct {
	Theoretical float64
	Sample      float64
}

// QQSeries builds the normal QQ series of a sample. A straight line indicates the
// sample is close to normal.
func QQSeries(sample []float64) ([]QQPoint, error) {
	n := len(sample)
	if n == 0 {
		return nil, sizeError("qq series", 0, 1)
	}

	series := make([]QQPoint, 0, n)
	for i := 0; i < n; i++ {
		p := (float64(i) + 0.5) / float64(n)
		samplePercentile, err := Percentile(sample, p)
		if err != nil {
			return nil, err
		}
		series = append(series, QQPoint{
			Theoretical: distuv.UnitNormal.Quantile(p),
			Sample:      samplePercentile,
		})
	}
	return series, nil
}
