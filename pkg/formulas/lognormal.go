package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// GBM describes an asset whose value follows Geometric Brownian Motion, so that its
// terminal value after Expiry years is lognormally distributed.
//
// This is the real-world (not risk-neutral) distribution: Ret is the asset's expected
// annualized return, not the risk-free rate.
type GBM struct {
	S0     float64 // current value
	Vol    float64 // annualized volatility
	Ret    float64 // annualized return
	Expiry float64 // horizon in years
	Div    float64 // annualized dividend yield
}

// ForwardValue is the expected terminal value, S0*exp((Ret-Div)*Expiry).
func (g GBM) ForwardValue() float64 {
	return g.S0 * math.Exp((g.Ret-g.Div)*g.Expiry)
}

// D1 returns [ln(S0/ST) + (Ret - Div + Vol^2/2)*Expiry] / (Vol*sqrt(Expiry)).
func (g GBM) D1(st float64) float64 {
	numerator := math.Log(g.S0/st) + (g.Ret-g.Div+0.5*g.Vol*g.Vol)*g.Expiry
	return numerator / (g.Vol * math.Sqrt(g.Expiry))
}

// D2 returns D1 - Vol*sqrt(Expiry).
func (g GBM) D2(st float64) float64 {
	return g.D1(st) - g.Vol*math.Sqrt(g.Expiry)
}

// ProbD1 returns N(d1), or N(-d1) when neg is set.
func (g GBM) ProbD1(st float64, neg bool) float64 {
	d1 := g.D1(st)
	if neg {
		d1 = -d1
	}
	return distuv.UnitNormal.CDF(d1)
}

// ProbD2 returns N(d2), or N(-d2) when neg is set.
//
// With zero volatility the terminal value is certain, so the result is 1 when the
// forward value exceeds st and 0 otherwise (flipped for neg).
func (g GBM) ProbD2(st float64, neg bool) float64 {
	if g.Vol == 0 {
		above := g.ForwardValue() > st
		if above != neg {
			return 1
		}
		return 0
	}

	d2 := g.D2(st)
	if neg {
		d2 = -d2
	}
	return distuv.UnitNormal.CDF(d2)
}

// Percentile returns the terminal value v with Pr(S_T < v) = p.
func (g GBM) Percentile(p float64) float64 {
	invNorm := distuv.UnitNormal.Quantile(p)
	exponent := (g.Ret-g.Div-0.5*g.Vol*g.Vol)*g.Expiry + g.Vol*math.Sqrt(g.Expiry)*invNorm
	return g.S0 * math.Exp(exponent)
}

// ConditionalExpectedValue returns E(S_T | S_T > threshold) when greater is set and
// E(S_T | S_T < threshold) otherwise. With zero volatility the terminal value is
// certain and the result is the forward value.
func (g GBM) ConditionalExpectedValue(threshold float64, greater bool) float64 {
	if g.Vol == 0 {
		return g.ForwardValue()
	}
	neg := !greater
	return g.ForwardValue() * g.ProbD1(threshold, neg) / g.ProbD2(threshold, neg)
}
