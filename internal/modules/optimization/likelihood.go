package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/riskengine/pkg/formulas"
	"gonum.org/v1/gonum/optimize"
)

// NormalParams are maximum likelihood estimates of a normal population.
type NormalParams struct {
	Mean       float64 `json:"mean"`
	Volatility float64 `json:"volatility"`
}

// MaximizeUnivariateNormalLikelihood fits the mean and volatility of a normal population
// to data by maximizing the log-likelihood with Nelder-Mead, starting from the median
// and half the interquartile range.
func MaximizeUnivariateNormalLikelihood(data []float64) (NormalParams, error) {
	if len(data) < 2 {
		return NormalParams{}, &formulas.SampleSizeError{
			Statistic: "normal likelihood", Size: len(data), Required: 2, OtherSize: -1,
		}
	}

	median, _ := formulas.Percentile(data, 0.5)
	q1, _ := formulas.Percentile(data, 0.25)
	q3, _ := formulas.Percentile(data, 0.75)
	spread := (q3 - q1) / 2
	if spread <= 0 {
		sd, err := formulas.StdDev(data)
		if err != nil {
			return NormalParams{}, err
		}
		spread = math.Max(sd, 1e-8)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if x[1] <= 0 {
				return math.Inf(1)
			}
			return -formulas.UnivariateNormalLogLikelihood(x, data)
		},
	}

	result, err := optimize.Minimize(problem, []float64{median, spread}, newSettings(), &optimize.NelderMead{})
	if err != nil {
		return NormalParams{}, &OptimizationError{
			Objective:   "maximize normal likelihood",
			Constraints: []string{"volatility > 0"},
			Status:      statusOf(result),
			Err:         fmt.Errorf("optimization failed: %w", err),
		}
	}
	if !accepted(result.Status) {
		return NormalParams{}, &OptimizationError{
			Objective:   "maximize normal likelihood",
			Constraints: []string{"volatility > 0"},
			Status:      result.Status,
			Err:         ErrNotConverged,
		}
	}
	return NormalParams{Mean: result.X[0], Volatility: result.X[1]}, nil
}
