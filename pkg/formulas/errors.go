package formulas

import (
	"errors"
	"fmt"
)

// SampleSizeError reports that a sample is too small, or two paired samples differ in
// length, for the requested statistic.
type SampleSizeError struct {
	Statistic string
	Size      int
	Required  int
	OtherSize int // length of the paired sample, -1 when unpaired
}

func (e *SampleSizeError) Error() string {
	if e.OtherSize >= 0 && e.OtherSize != e.Size {
		return fmt.Sprintf("%s: samples are not of comparable length (%d != %d)", e.Statistic, e.Size, e.OtherSize)
	}
	return fmt.Sprintf("%s: sample size %d is less than the required %d", e.Statistic, e.Size, e.Required)
}

func sizeError(statistic string, size, required int) error {
	return &SampleSizeError{Statistic: statistic, Size: size, Required: required, OtherSize: -1}
}

func pairedSizeError(statistic string, x, y, required int) error {
	return &SampleSizeError{Statistic: statistic, Size: x, Required: required, OtherSize: y}
}

// UnboundedIntegralError reports a volatility function whose squared integral over
// [0, inf) diverges, so no Ito integral exists for it.
type UnboundedIntegralError struct {
	Integral float64
}

func (e *UnboundedIntegralError) Error() string {
	return fmt.Sprintf("volatility function fails finite-energy condition: integral of vol^2 dt = %v", e.Integral)
}

// ErrDegenerateCorrelation is returned when one of the samples has no dispersion and
// the Pearson denominator vanishes.
var ErrDegenerateCorrelation = errors.New("correlation denominator too small for division")

// IsSampleSizeError reports whether err wraps a *SampleSizeError.
func IsSampleSizeError(err error) bool {
	var sse *SampleSizeError
	return errors.As(err, &sse)
}
