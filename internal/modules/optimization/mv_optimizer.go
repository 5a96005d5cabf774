package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Solver tuning.
const (
	initialPenalty      = 10.0
	maxPenalty          = 1e8
	penaltyGrowth       = 10.0
	violationReduction  = 0.25
	maxOuterIterations  = 50
	multiplierTolerance = 1e-9
	reseedShare        = 0.25

	sumTolerance    = 1e-6
	boundsTolerance = 1e-6
	targetTolerance = 1e-4
)

// DefaultFrontierSteps is used by EfficientFrontier when steps <= 0 and no
// configured default is set.
const DefaultFrontierSteps = 5

// Constraint names reported in OptimizationError.
const (
	constraintFullInvestment = "sum(w) = 1"
	constraintBounds         = "0 <= w <= 1"
)

// Config configures an Optimizer.
type Config struct {
	FrontierSteps int
}

// Optimizer solves constrained allocation problems over a portfolio.
//
// Weights are parameterized as w_i = x_i^2 / sum(x^2), which satisfies the
// full-investment constraint and the [0, 1] bounds for every x. An optional target
// return is enforced with an augmented Lagrangian around gonum's BFGS, falling back to
// Nelder-Mead when BFGS fails.
type Optimizer struct {
	frontierSteps int
	log           zerolog.Logger
}

// NewOptimizer creates a new optimizer.
func NewOptimizer(cfg Config, log zerolog.Logger) *Optimizer {
	steps := cfg.FrontierSteps
	if steps <= 0 {
		steps = DefaultFrontierSteps
	}
	return &Optimizer{
		frontierSteps: steps,
		log:           log.With().Str("component", "optimizer").Logger(),
	}
}

// objective is a function of the allocation with its gradient.
type objective struct {
	name string
	fn   func(w []float64) float64
	grad func(grad, w []float64)
}

// MinimizeVariance returns the allocation with the lowest variance, optionally at a
// target return.
func (o *Optimizer) MinimizeVariance(p *portfolio.Portfolio, target *float64) ([]float64, error) {
	return o.solve(p, objective{
		name: "minimize variance",
		fn:   p.Variance,
		grad: p.VarianceGradient,
	}, target)
}

// MaximizeSharpe returns the allocation with the highest Sharpe ratio, optionally at a
// target return.
func (o *Optimizer) MaximizeSharpe(p *portfolio.Portfolio, target *float64) ([]float64, error) {
	return o.solve(p, objective{
		name: "maximize sharpe ratio",
		fn:   func(w []float64) float64 { return -p.SharpeRatio(w) },
		grad: func(grad, w []float64) {
			p.SharpeGradient(grad, w)
			floats.Scale(-1, grad)
		},
	}, target)
}

// MaximizeReturn returns the allocation with the highest return. Under the default
// bounds this is the whole allocation in the highest-return asset.
func (o *Optimizer) MaximizeReturn(p *portfolio.Portfolio) ([]float64, error) {
	return o.solve(p, objective{
		name: "maximize return",
		fn:   func(w []float64) float64 { return -p.Return(w) },
		grad: func(grad, w []float64) {
			p.ReturnGradient(grad, w)
			floats.Scale(-1, grad)
		},
	}, nil)
}

// MinimizeConditionalValueAtRisk returns the allocation with the lowest conditional
// value at risk at the given horizon (years) and probability, optionally at a target
// return. The gradient is estimated by central differences.
func (o *Optimizer) MinimizeConditionalValueAtRisk(p *portfolio.Portfolio, horizon, prob float64, target *float64) ([]float64, error) {
	cvar := func(w []float64) float64 { return p.ConditionalValueAtRisk(w, horizon, prob) }
	return o.solve(p, objective{
		name: fmt.Sprintf("minimize cvar(horizon=%v, p=%v)", horizon, prob),
		fn:   cvar,
		grad: func(grad, w []float64) {
			fd.Gradient(grad, cvar, w, &fd.Settings{Formula: fd.Central})
		},
	}, target)
}

func (o *Optimizer) solve(p *portfolio.Portfolio, obj objective, target *float64) ([]float64, error) {
	constraints := []string{constraintFullInvestment, constraintBounds}
	if target != nil {
		constraints = append(constraints, fmt.Sprintf("return = %v", *target))
	}
	fail := func(status optimize.Status, err error) error {
		return &OptimizationError{Objective: obj.name, Constraints: constraints, Status: status, Err: err}
	}

	if target != nil {
		returns := p.Returns()
		lo, hi := floats.Min(returns), floats.Max(returns)
		if *target < lo-targetTolerance || *target > hi+targetTolerance {
			return nil, fail(optimize.NotTerminated,
				fmt.Errorf("%w: %v not in [%v, %v]", ErrTargetOutOfRange, *target, lo, hi))
		}
	}

	n := p.Size()
	x := make([]float64, n)
	for i := range x {
		x[i] = 1 / math.Sqrt(float64(n))
	}

	lambda, mu := 0.0, initialPenalty
	prevViolation := math.Inf(1)
	status := optimize.NotTerminated

	for iter := 0; iter < maxOuterIterations; iter++ {
		if iter > 0 {
			x = reseed(x)
		}
		result, err := minimize(augmented(p, obj, target, lambda, mu), x)
		if err != nil {
			return nil, fail(statusOf(result), err)
		}
		x = result.X
		status = result.Status

		if target == nil {
			break
		}
		w := toWeights(x)
		violation := p.TargetReturnConstraint(w, *target)
		o.log.Debug().
			Str("objective", obj.name).
			Int("iteration", iter).
			Float64("violation", violation).
			Float64("penalty", mu).
			Msg("Augmented Lagrangian step")

		if math.Abs(violation) < multiplierTolerance {
			break
		}
		lambda += mu * violation
		if math.Abs(violation) > violationReduction*prevViolation {
			mu = math.Min(mu*penaltyGrowth, maxPenalty)
		}
		prevViolation = math.Abs(violation)
	}

	w := toWeights(x)
	if err := checkFeasible(p, w, target); err != nil {
		return nil, fail(status, err)
	}

	o.log.Debug().
		Str("objective", obj.name).
		Floats64("weights", w).
		Str("status", status.String()).
		Msg("Optimization complete")
	return w, nil
}

// augmented builds the unconstrained problem in parameter space x.
func augmented(p *portfolio.Portfolio, obj objective, target *float64, lambda, mu float64) optimize.Problem {
	n := p.Size()
	returns := p.Returns()

	return optimize.Problem{
		Func: func(x []float64) float64 {
			w := toWeights(x)
			value := obj.fn(w)
			if target != nil {
				h := p.TargetReturnConstraint(w, *target)
				value += lambda*h + 0.5*mu*h*h
			}
			return value
		},
		Grad: func(grad, x []float64) {
			w := make([]float64, n)
			s := weightsInto(w, x)

			g := make([]float64, n)
			obj.grad(g, w)
			if target != nil {
				h := p.TargetReturnConstraint(w, *target)
				floats.AddScaled(g, lambda+mu*h, returns)
			}

			// dw_i/dx_k = (2 x_k / s)(delta_ik - w_i)
			gw := floats.Dot(g, w)
			for k := range grad {
				grad[k] = 2 * x[k] / s * (g[k] - gw)
			}
		},
	}
}

// minimize runs BFGS and falls back to Nelder-Mead from the best point found.
func minimize(problem optimize.Problem, initial []float64) (*optimize.Result, error) {
	result, err := optimize.Minimize(problem, initial, newSettings(), &optimize.BFGS{})
	if err == nil && accepted(result.Status) {
		return result, nil
	}

	start := initial
	if result != nil && len(result.X) == len(initial) && !math.IsNaN(result.F) && !math.IsInf(result.F, 0) {
		start = result.X
	}

	result, err = optimize.Minimize(problem, start, newSettings(), &optimize.NelderMead{})
	if err != nil {
		return result, fmt.Errorf("optimization failed: %w", err)
	}
	if !accepted(result.Status) {
		return result, fmt.Errorf("%w: status=%v", ErrNotConverged, result.Status)
	}
	return result, nil
}

// newSettings returns fresh settings for each run; convergers are stateful.
func newSettings() *optimize.Settings {
	return &optimize.Settings{
		GradientThreshold: 1e-10,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-12,
			Iterations: 50,
		},
		MajorIterations: 10000,
	}
}

func accepted(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

func statusOf(result *optimize.Result) optimize.Status {
	if result == nil {
		return optimize.Failure
	}
	return result.Status
}

// reseed moves x a share of the way toward the uniform allocation. Every x_j = 0 is a
// stationary point of the parameterization, so each outer iteration has to start with
// all weights strictly positive or an asset dropped by one pass can never return.
func reseed(x []float64) []float64 {
	w := toWeights(x)
	uniform := 1 / float64(len(w))
	out := make([]float64, len(w))
	for i, wi := range w {
		out[i] = math.Sqrt((1-reseedShare)*wi + reseedShare*uniform)
	}
	return out
}

func toWeights(x []float64) []float64 {
	w := make([]float64, len(x))
	weightsInto(w, x)
	return w
}

// weightsInto writes x_i^2 / sum(x^2) into dst and returns the sum.
func weightsInto(dst, x []float64) float64 {
	s := floats.Dot(x, x)
	for i, xi := range x {
		dst[i] = xi * xi / s
	}
	return s
}

func checkFeasible(p *portfolio.Portfolio, w []float64, target *float64) error {
	for i, wi := range w {
		if math.IsNaN(wi) {
			return fmt.Errorf("%w: weight %d is NaN", ErrInfeasible, i)
		}
	}
	if c := p.Constraint(w); math.Abs(c) > sumTolerance {
		return fmt.Errorf("%w: weights sum to %v", ErrInfeasible, c+1)
	}
	for i, b := range p.DefaultBounds() {
		if w[i] < b.Lower-boundsTolerance || w[i] > b.Upper+boundsTolerance {
			return fmt.Errorf("%w: weight %d = %v outside [%v, %v]", ErrInfeasible, i, w[i], b.Lower, b.Upper)
		}
	}
	if target != nil {
		if h := p.TargetReturnConstraint(w, *target); math.Abs(h) > targetTolerance {
			return fmt.Errorf("%w: return misses target by %v", ErrInfeasible, h)
		}
	}
	return nil
}
