// Package cash_flows projects future payments, such as dividends, from a growth model
// and discounts them to a net present value. It also stores payment histories.
package cash_flows

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/pkg/formulas"
)

const (
	// npvTolerance stops the discounted series once a term contributes less than this.
	npvTolerance = 1e-7
	// maxNPVTerms bounds the series for models that grow faster than the discount rate.
	maxNPVTerms = 100000
)

// CashflowOptions configures NewCashflow. Growth is resolved with the precedence
// Constant, then GrowthFunction, then a regression on Sample.
type CashflowOptions struct {
	// Sample is the payment history, in any order.
	Sample []domain.Payment
	// Period is the time between payments in years. Inferred from Sample when nil,
	// except for constant cash flows.
	Period *float64
	// GrowthFunction projects payment values t years from the valuation date.
	GrowthFunction func(t float64) float64
	// Constant fixes every payment to one value and discards Sample.
	Constant *float64
	// DiscountRate is the annual rate payments are discounted at.
	DiscountRate float64
}

// Cashflow projects and discounts a stream of future payments.
type Cashflow struct {
	sample       []domain.Payment // earliest first
	period       *float64
	model        GrowthModel
	discountRate float64
}

// NewCashflow resolves the growth model for a cash flow. It fails only when no growth
// model can be formed at all: no constant, no function and an empty sample.
func NewCashflow(opts CashflowOptions) (*Cashflow, error) {
	c := &Cashflow{
		sample:       domain.SortPayments(opts.Sample),
		period:       opts.Period,
		discountRate: opts.DiscountRate,
	}

	switch {
	case opts.Constant != nil:
		c.model = ConstantGrowth{Value: *opts.Constant}
		c.sample = nil
	case opts.GrowthFunction != nil:
		c.model = FunctionGrowth{Fn: opts.GrowthFunction}
	default:
		model, err := regress(c.sample)
		if err != nil {
			return nil, err
		}
		c.model = model
	}

	if c.period == nil {
		c.period = inferPeriod(c.sample)
	}
	return c, nil
}

// regress fits a linear trend to the sample, falling back to the latest value when the
// sample cannot support a regression.
func regress(sample []domain.Payment) (GrowthModel, error) {
	if len(sample) == 0 {
		return nil, &formulas.SampleSizeError{Statistic: "cash flow growth model", Size: 0, Required: 1, OtherSize: -1}
	}

	times, values := timeSeries(sample)
	beta, err := formulas.RegressionBeta(times, values)
	if err == nil {
		var alpha float64
		alpha, err = formulas.RegressionAlpha(times, values)
		if err == nil && !math.IsNaN(alpha) && !math.IsNaN(beta) {
			return RegressionGrowth{Alpha: alpha, Beta: beta, Origin: sample[0].Date}, nil
		}
	}
	if err != nil && !formulas.IsSampleSizeError(err) && !errors.Is(err, formulas.ErrDegenerateCorrelation) {
		return nil, fmt.Errorf("failed to regress cash flow growth: %w", err)
	}

	return ConstantGrowth{Value: sample[len(sample)-1].Amount, Markovian: true}, nil
}

// inferPeriod returns the mean spacing of the sample dates, or nil with fewer than
// three payments.
func inferPeriod(sample []domain.Payment) *float64 {
	if len(sample) < 3 {
		return nil
	}
	intervals := float64(len(sample) - 1)
	mean := 0.0
	for i := 1; i < len(sample); i++ {
		mean += yearsBetween(sample[i-1].Date, sample[i].Date) / intervals
	}
	if mean <= 0 {
		return nil
	}
	return &mean
}

// timeSeries returns each payment's time in years since the earliest payment, with its
// amount.
func timeSeries(sample []domain.Payment) ([]float64, []float64) {
	times := make([]float64, len(sample))
	values := make([]float64, len(sample))
	for i, p := range sample {
		times[i] = yearsBetween(sample[0].Date, p.Date)
		values[i] = p.Amount
	}
	return times, values
}

// Model returns the resolved growth model.
func (c *Cashflow) Model() GrowthModel { return c.model }

// Period returns the payment period in years and whether one is known.
func (c *Cashflow) Period() (float64, bool) {
	if c.period == nil {
		return 0, false
	}
	return *c.period, true
}

// DiscountRate returns the annual discount rate.
func (c *Cashflow) DiscountRate() float64 { return c.discountRate }

// Growth projects the payment value t years after now.
func (c *Cashflow) Growth(t float64, now time.Time) float64 {
	return project(c.model, t, now)
}

// TimeToFirstPayment returns the years from now until the next expected payment.
// Annual, quarterly and monthly periods align to calendar boundaries; other periods
// step forward from the latest sample date.
func (c *Cashflow) TimeToFirstPayment(now time.Time) (float64, error) {
	period, ok := c.Period()
	if !ok {
		return 0, &InputValidationError{Field: "period", Reason: "no period detected for cash flows"}
	}
	if period <= 0 {
		return 0, &InputValidationError{Field: "period", Reason: fmt.Sprintf("period must be positive, got %v", period)}
	}

	switch period {
	case FreqAnnual:
		return timeToNextYear(now), nil
	case FreqQuarterly:
		return timeToNextQuarter(now), nil
	case FreqMonthly:
		return timeToNextMonth(now), nil
	case FreqDaily:
		return FreqDaily, nil
	}

	if len(c.sample) == 0 {
		return period, nil
	}
	return timeToNextPeriod(c.sample[len(c.sample)-1].Date, now, period), nil
}

// NetPresentValue sums growth(t_i) / (1 + rate)^t_i for t_i = t_first + i*period until a
// term contributes less than 1e-7.
func (c *Cashflow) NetPresentValue(now time.Time) (float64, error) {
	terms, err := c.discountedTerms(now, maxNPVTerms)
	if err != nil {
		return 0, err
	}
	npv := 0.0
	for _, term := range terms {
		npv += term
	}
	return npv, nil
}

// DiscountedTerms returns the individual discounted payments summed by NetPresentValue.
func (c *Cashflow) DiscountedTerms(now time.Time) ([]float64, error) {
	return c.discountedTerms(now, maxNPVTerms)
}

func (c *Cashflow) discountedTerms(now time.Time, limit int) ([]float64, error) {
	if c.discountRate <= -1 {
		return nil, &InputValidationError{Field: "discount_rate", Reason: fmt.Sprintf("must exceed -1, got %v", c.discountRate)}
	}
	first, err := c.TimeToFirstPayment(now)
	if err != nil {
		return nil, err
	}
	period := *c.period

	var terms []float64
	for i := 0; i < limit; i++ {
		t := first + float64(i)*period
		term := c.Growth(t, now) / math.Pow(1+c.discountRate, t)
		if math.IsNaN(term) || math.IsInf(term, 0) {
			return nil, fmt.Errorf("%w: term %d is %v", ErrNPVDiverged, i, term)
		}
		terms = append(terms, term)
		if math.Abs(term) < npvTolerance {
			return terms, nil
		}
	}
	return nil, fmt.Errorf("%w after %d terms", ErrNPVDiverged, limit)
}

// ModelPoint compares the fitted model to an actual payment.
type ModelPoint struct {
	Date   time.Time `json:"date"`
	Model  float64   `json:"model"`
	Actual float64   `json:"actual"`
}

// ModelSeries evaluates the growth model at each sample date, with time measured from
// the valuation date now the same way projections are.
func (c *Cashflow) ModelSeries(now time.Time) []float64 {
	series := make([]float64, len(c.sample))
	for i, p := range c.sample {
		series[i] = project(c.model, yearsBetween(now, p.Date), now)
	}
	return series
}

// ModelComparison pairs each sample payment with the model's value on its date.
func (c *Cashflow) ModelComparison(now time.Time) []ModelPoint {
	series := c.ModelSeries(now)
	points := make([]ModelPoint, len(c.sample))
	for i, p := range c.sample {
		points[i] = ModelPoint{Date: p.Date, Model: series[i], Actual: p.Amount}
	}
	return points
}
