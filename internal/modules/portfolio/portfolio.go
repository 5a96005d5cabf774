// Package portfolio implements the multi-asset risk/return model: portfolio return,
// volatility, Sharpe ratio, percentile and conditional value at risk as functions of
// an allocation vector.
//
// A Portfolio is immutable after construction. Allocations are passed per call and
// must follow the order of Tickers().
package portfolio

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/pkg/formulas"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tolerances used when validating a correlation matrix.
const (
	matrixTolerance     = 1e-9
	eigenvalueTolerance = 1e-10
)

var (
	// ErrDimensionMismatch is returned when tickers, profiles and matrix disagree in size.
	ErrDimensionMismatch = errors.New("portfolio dimensions do not match")
	// ErrInvalidCorrelation is returned for a matrix that is not a valid correlation matrix.
	ErrInvalidCorrelation = errors.New("invalid correlation matrix")
	// ErrNotPositiveSemiDefinite is returned when the correlation matrix has a negative
	// eigenvalue, which would make portfolio variance negative for some allocations.
	ErrNotPositiveSemiDefinite = errors.New("correlation matrix is not positive semi-definite")
	// ErrInvalidProfile is returned for a negative or non-finite risk profile entry.
	ErrInvalidProfile = errors.New("invalid risk profile")
	// ErrNegativeVariance is returned for an allocation whose variance is negative under
	// a correlation matrix accepted with AllowNonPSD.
	ErrNegativeVariance = errors.New("allocation has negative variance")
)

// Options tunes portfolio construction.
type Options struct {
	// AllowNonPSD accepts correlation matrices with negative eigenvalues. Volatility
	// then returns NaN for allocations where the quadratic form is negative.
	AllowNonPSD bool
}

// Bound is an inclusive [Lower, Upper] range for one weight.
type Bound struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Portfolio holds per-asset risk profiles and their correlation matrix.
type Portfolio struct {
	tickers      []string
	returns      []float64
	volatilities []float64
	correlation  *mat.SymDense
	riskFreeRate float64
}

// New builds a portfolio from explicit risk profiles and a correlation matrix.
func New(tickers []string, profiles []domain.RiskProfile, correlation [][]float64, riskFreeRate float64, opts Options) (*Portfolio, error) {
	n := len(tickers)
	if n == 0 {
		return nil, fmt.Errorf("%w: portfolio needs at least one asset", ErrDimensionMismatch)
	}
	if len(profiles) != n {
		return nil, fmt.Errorf("%w: %d tickers, %d risk profiles", ErrDimensionMismatch, n, len(profiles))
	}

	returns := make([]float64, n)
	vols := make([]float64, n)
	for i, p := range profiles {
		if math.IsNaN(p.AnnualReturn) || math.IsInf(p.AnnualReturn, 0) {
			return nil, fmt.Errorf("%w: %s return %v", ErrInvalidProfile, tickers[i], p.AnnualReturn)
		}
		if p.AnnualVolatility < 0 || math.IsNaN(p.AnnualVolatility) || math.IsInf(p.AnnualVolatility, 0) {
			return nil, fmt.Errorf("%w: %s volatility %v", ErrInvalidProfile, tickers[i], p.AnnualVolatility)
		}
		returns[i] = p.AnnualReturn
		vols[i] = p.AnnualVolatility
	}

	corr, err := buildCorrelation(correlation, n, opts)
	if err != nil {
		return nil, err
	}

	return &Portfolio{
		tickers:      append([]string(nil), tickers...),
		returns:      returns,
		volatilities: vols,
		correlation:  corr,
		riskFreeRate: riskFreeRate,
	}, nil
}

func buildCorrelation(rows [][]float64, n int, opts Options) (*mat.SymDense, error) {
	if len(rows) != n {
		return nil, fmt.Errorf("%w: correlation matrix has %d rows, want %d", ErrDimensionMismatch, len(rows), n)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(rows[i]) != n {
			return nil, fmt.Errorf("%w: correlation row %d has %d columns, want %d", ErrDimensionMismatch, i, len(rows[i]), n)
		}
		if math.Abs(rows[i][i]-1) > matrixTolerance {
			return nil, fmt.Errorf("%w: diagonal entry %d is %v", ErrInvalidCorrelation, i, rows[i][i])
		}
		for j := i; j < n; j++ {
			v := rows[i][j]
			if math.IsNaN(v) || v < -1-matrixTolerance || v > 1+matrixTolerance {
				return nil, fmt.Errorf("%w: entry (%d,%d) = %v outside [-1, 1]", ErrInvalidCorrelation, i, j, v)
			}
			if math.Abs(v-rows[j][i]) > matrixTolerance {
				return nil, fmt.Errorf("%w: not symmetric at (%d,%d)", ErrInvalidCorrelation, i, j)
			}
			sym.SetSym(i, j, v)
		}
	}

	if !opts.AllowNonPSD {
		var eig mat.EigenSym
		if !eig.Factorize(sym, false) {
			return nil, fmt.Errorf("%w: eigen decomposition failed", ErrNotPositiveSemiDefinite)
		}
		if minEigen := floats.Min(eig.Values(nil)); minEigen < -eigenvalueTolerance {
			return nil, fmt.Errorf("%w: smallest eigenvalue %v", ErrNotPositiveSemiDefinite, minEigen)
		}
	}
	return sym, nil
}

// Size returns the number of assets.
func (p *Portfolio) Size() int { return len(p.tickers) }

// Tickers returns the asset tickers in allocation order.
func (p *Portfolio) Tickers() []string { return append([]string(nil), p.tickers...) }

// Returns returns the annualized asset returns.
func (p *Portfolio) Returns() []float64 { return append([]float64(nil), p.returns...) }

// Volatilities returns the annualized asset volatilities.
func (p *Portfolio) Volatilities() []float64 { return append([]float64(nil), p.volatilities...) }

// RiskFreeRate returns the rate used by SharpeRatio.
func (p *Portfolio) RiskFreeRate() float64 { return p.riskFreeRate }

// Correlation returns a copy of the correlation matrix as rows.
func (p *Portfolio) Correlation() [][]float64 {
	n := p.Size()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = p.correlation.At(i, j)
		}
	}
	return rows
}

// Return is the allocation-weighted asset return.
func (p *Portfolio) Return(w []float64) float64 {
	return floats.Dot(w, p.returns)
}

// Variance is (w*vol)' Corr (w*vol).
func (p *Portfolio) Variance(w []float64) float64 {
	scaled := p.scaled(w)
	return mat.Inner(scaled, p.correlation, scaled)
}

// Volatility is sqrt(Variance).
func (p *Portfolio) Volatility(w []float64) float64 {
	return math.Sqrt(p.Variance(w))
}

// SharpeRatio is (Return - riskFreeRate) / Volatility.
func (p *Portfolio) SharpeRatio(w []float64) float64 {
	return (p.Return(w) - p.riskFreeRate) / p.Volatility(w)
}

// Percentile returns the portfolio value, per unit invested, that the allocation falls
// below with probability prob after horizon years.
func (p *Portfolio) Percentile(w []float64, horizon, prob float64) float64 {
	return p.horizonModel(w, horizon).Percentile(prob)
}

// ConditionalValueAtRisk returns the expected fraction of value lost given the outcome
// falls below the prob-th percentile. A negative value means an expected gain.
func (p *Portfolio) ConditionalValueAtRisk(w []float64, horizon, prob float64) float64 {
	model := p.horizonModel(w, horizon)
	threshold := model.Percentile(prob)
	return 1 - model.ConditionalExpectedValue(threshold, false)
}

func (p *Portfolio) horizonModel(w []float64, horizon float64) formulas.GBM {
	return formulas.GBM{
		S0:     1,
		Ret:    p.Return(w) * horizon,
		Vol:    p.Volatility(w) * math.Sqrt(horizon),
		Expiry: horizon,
	}
}

// Constraint is the full-investment equality constraint, sum(w) - 1.
func (p *Portfolio) Constraint(w []float64) float64 {
	return floats.Sum(w) - 1
}

// TargetReturnConstraint is the target-return equality constraint, Return(w) - target.
func (p *Portfolio) TargetReturnConstraint(w []float64, target float64) float64 {
	return p.Return(w) - target
}

// DefaultBounds returns [0, 1] for every weight: no shorting, no leverage.
func (p *Portfolio) DefaultBounds() []Bound {
	bounds := make([]Bound, p.Size())
	for i := range bounds {
		bounds[i] = Bound{Lower: 0, Upper: 1}
	}
	return bounds
}

// InitialGuess returns the uniform allocation 1/N.
func (p *Portfolio) InitialGuess() []float64 {
	n := p.Size()
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// ReturnGradient writes d Return / d w into grad.
func (p *Portfolio) ReturnGradient(grad, _ []float64) {
	copy(grad, p.returns)
}

// VarianceGradient writes d Variance / d w into grad.
func (p *Portfolio) VarianceGradient(grad, w []float64) {
	var cs mat.VecDense
	cs.MulVec(p.correlation, p.scaled(w))
	for i := range grad {
		grad[i] = 2 * p.volatilities[i] * cs.AtVec(i)
	}
}

// VolatilityGradient writes d Volatility / d w into grad. The gradient is zero at a
// point of zero volatility.
func (p *Portfolio) VolatilityGradient(grad, w []float64) {
	scaled := p.scaled(w)
	sigma := math.Sqrt(mat.Inner(scaled, p.correlation, scaled))
	if sigma == 0 || math.IsNaN(sigma) {
		for i := range grad {
			grad[i] = 0
		}
		return
	}

	var cs mat.VecDense
	cs.MulVec(p.correlation, scaled)
	for i := range grad {
		grad[i] = p.volatilities[i] * cs.AtVec(i) / sigma
	}
}

// SharpeGradient writes d SharpeRatio / d w into grad.
func (p *Portfolio) SharpeGradient(grad, w []float64) {
	sigma := p.Volatility(w)
	excess := p.Return(w) - p.riskFreeRate

	volGrad := make([]float64, len(w))
	p.VolatilityGradient(volGrad, w)
	for i := range grad {
		grad[i] = (p.returns[i]*sigma - excess*volGrad[i]) / (sigma * sigma)
	}
}

// FrontierPoint summarizes one allocation.
type FrontierPoint struct {
	Weights    []float64 `json:"weights" msgpack:"weights"`
	Return     float64   `json:"return" msgpack:"return"`
	Volatility float64   `json:"volatility" msgpack:"volatility"`
	// Sharpe is nil when the ratio is undefined, as for a riskless allocation.
	Sharpe     *float64  `json:"sharpe" msgpack:"sharpe"`
}

// Summarize evaluates the allocation's return, volatility and Sharpe ratio.
func (p *Portfolio) Summarize(w []float64) FrontierPoint {
	return FrontierPoint{
		Weights:    append([]float64(nil), w...),
		Return:     p.Return(w),
		Volatility: p.Volatility(w),
		Sharpe:     Finite(p.SharpeRatio(w)),
	}
}

// CheckVariance returns ErrNegativeVariance when w has no real volatility.
func (p *Portfolio) CheckVariance(w []float64) error {
	if v := p.Variance(w); v < 0 || math.IsNaN(v) {
		return fmt.Errorf("%w: %g", ErrNegativeVariance, v)
	}
	return nil
}

// Finite returns a pointer to v, or nil when v is NaN or infinite.
func Finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// scaled returns the elementwise product w*vol.
func (p *Portfolio) scaled(w []float64) *mat.VecDense {
	scaled := make([]float64, len(w))
	floats.MulTo(scaled, w, p.volatilities)
	return mat.NewVecDense(len(scaled), scaled)
}
