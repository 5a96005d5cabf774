package optimization

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/optimize"
)

var (
	// ErrNotConverged is returned when neither minimization method reached an accepted
	// termination status.
	ErrNotConverged = errors.New("optimization did not converge")
	// ErrInfeasible is returned when the final allocation violates a constraint beyond
	// tolerance.
	ErrInfeasible = errors.New("optimized allocation is infeasible")
	// ErrTargetOutOfRange is returned for a target return no allocation can achieve.
	ErrTargetOutOfRange = errors.New("target return outside achievable range")
)

// OptimizationError reports a failed optimization together with the objective and the
// constraints that were attempted.
type OptimizationError struct {
	Objective   string
	Constraints []string
	Status      optimize.Status
	Err         error
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("%s subject to [%s] failed (status=%v): %v",
		e.Objective, strings.Join(e.Constraints, ", "), e.Status, e.Err)
}

func (e *OptimizationError) Unwrap() error {
	return e.Err
}
