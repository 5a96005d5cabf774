package cash_flows

import (
	"errors"
	"fmt"
)

// InputValidationError reports a cash flow that lacks the configuration needed to
// complete a computation. It is raised at the point of use, not at construction.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid cash flow input %s: %s", e.Field, e.Reason)
}

// ErrNPVDiverged is returned when the discounted series fails to converge within
// maxNPVTerms terms.
var ErrNPVDiverged = errors.New("net present value series did not converge")
