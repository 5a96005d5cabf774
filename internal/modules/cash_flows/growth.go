package cash_flows

import "time"

// GrowthModel projects the value of a future payment t years from the valuation date.
// It is one of ConstantGrowth, FunctionGrowth or RegressionGrowth.
type GrowthModel interface {
	isGrowthModel()
}

// ConstantGrowth projects the same value for every payment.
type ConstantGrowth struct {
	Value float64
	// Markovian marks a constant taken from the latest sample value because no
	// regression could be fitted.
	Markovian bool
}

// FunctionGrowth projects payments with a caller-supplied function of t.
type FunctionGrowth struct {
	Fn func(t float64) float64
}

// RegressionGrowth is a linear trend alpha + beta*s fitted against s, the years since
// Origin (the earliest sample date).
type RegressionGrowth struct {
	Alpha  float64
	Beta   float64
	Origin time.Time
}

func (ConstantGrowth) isGrowthModel()   {}
func (FunctionGrowth) isGrowthModel()   {}
func (RegressionGrowth) isGrowthModel() {}

// project evaluates the model t years after now.
func project(model GrowthModel, t float64, now time.Time) float64 {
	switch m := model.(type) {
	case ConstantGrowth:
		return m.Value
	case FunctionGrowth:
		return m.Fn(t)
	case RegressionGrowth:
		return m.Alpha + m.Beta*(t+yearsBetween(m.Origin, now))
	}
	panic("cash_flows: unknown growth model")
}
