package cash_flows

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floatPtr(v float64) *float64 { return &v }

func TestNewCashflow_SinglePointDefaultsToConstant(t *testing.T) {
	now := date(2024, time.June, 1)
	cf, err := NewCashflow(CashflowOptions{
		Sample:       []domain.Payment{{Date: date(2024, time.March, 1), Amount: 2.5}},
		Period:       floatPtr(0.5),
		DiscountRate: 0.05,
	})
	require.NoError(t, err)

	model, ok := cf.Model().(ConstantGrowth)
	require.True(t, ok, "expected constant growth, got %T", cf.Model())
	assert.Equal(t, 2.5, model.Value)
	assert.True(t, model.Markovian)

	first, err := cf.TimeToFirstPayment(now)
	require.NoError(t, err)
	assert.InDelta(t, 0.5-92.0/365, first, 1e-12)

	terms, err := cf.DiscountedTerms(now)
	require.NoError(t, err)
	assert.InDelta(t, 2.5/math.Pow(1.05, first), terms[0], 1e-12)

	npv, err := cf.NetPresentValue(now)
	require.NoError(t, err)
	ratio := math.Pow(1.05, -0.5)
	assert.InDelta(t, terms[0]/(1-ratio), npv, 1e-5)
}

func TestNewCashflow_Regression(t *testing.T) {
	sample := []domain.Payment{
		{Date: date(2023, time.January, 1), Amount: 1.30},
		{Date: date(2020, time.January, 1), Amount: 1.00},
		{Date: date(2021, time.January, 1), Amount: 1.10},
		{Date: date(2022, time.January, 1), Amount: 1.15},
	}
	cf, err := NewCashflow(CashflowOptions{Sample: sample, DiscountRate: 0.04})
	require.NoError(t, err)

	model, ok := cf.Model().(RegressionGrowth)
	require.True(t, ok, "expected regression growth, got %T", cf.Model())
	assert.Equal(t, date(2020, time.January, 1), model.Origin)

	times := []float64{0, 366.0 / 365, 731.0 / 365, 1096.0 / 365}
	values := []float64{1.00, 1.10, 1.15, 1.30}
	beta, _ := formulas.RegressionBeta(times, values)
	alpha, _ := formulas.RegressionAlpha(times, values)
	assert.InDelta(t, beta, model.Beta, 1e-12)
	assert.InDelta(t, alpha, model.Alpha, 1e-12)

	period, ok := cf.Period()
	require.True(t, ok)
	assert.InDelta(t, (1096.0/365)/3, period, 1e-12)

	// Projections are measured from the valuation date, not the first payment.
	now := date(2024, time.January, 1)
	assert.InDelta(t, alpha+beta*(1461.0/365), cf.Growth(0, now), 1e-12)

	npv, err := cf.NetPresentValue(now)
	require.NoError(t, err)
	assert.Greater(t, npv, 0.0)
}

func TestNewCashflow_ModelComparison(t *testing.T) {
	sample := []domain.Payment{
		{Date: date(2020, time.January, 1), Amount: 1.00},
		{Date: date(2021, time.January, 1), Amount: 1.10},
		{Date: date(2022, time.January, 1), Amount: 1.15},
	}
	cf, err := NewCashflow(CashflowOptions{Sample: sample, DiscountRate: 0.04})
	require.NoError(t, err)

	// The fitted trend is the same whatever the valuation date.
	for _, now := range []time.Time{date(2022, time.January, 1), date(2025, time.June, 30)} {
		comparison := cf.ModelComparison(now)
		require.Len(t, comparison, 3)
		for i, point := range comparison {
			assert.Equal(t, sample[i].Date, point.Date)
			assert.Equal(t, sample[i].Amount, point.Actual)
			assert.InDelta(t, point.Actual, point.Model, 0.05)
		}
	}
}

func TestNewCashflow_ModelComparisonFunctionGrowth(t *testing.T) {
	sample := []domain.Payment{
		{Date: date(2020, time.January, 1), Amount: 1.00},
		{Date: date(2021, time.January, 1), Amount: 1.10},
		{Date: date(2022, time.January, 1), Amount: 1.20},
	}
	growth := func(t float64) float64 { return 1.2 + 0.1*t }
	cf, err := NewCashflow(CashflowOptions{Sample: sample, GrowthFunction: growth, DiscountRate: 0.04})
	require.NoError(t, err)

	tests := []struct {
		name   string
		now    time.Time
		models []float64
	}{
		{
			name:   "valued on the latest payment",
			now:    date(2022, time.January, 1),
			models: []float64{1.2 - 0.1*731.0/365, 1.2 - 0.1*365.0/365, 1.2},
		},
		{
			name:   "valued a year later",
			now:    date(2023, time.January, 1),
			models: []float64{1.2 - 0.1*1096.0/365, 1.2 - 0.1*730.0/365, 1.2 - 0.1*365.0/365},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comparison := cf.ModelComparison(tt.now)
			require.Len(t, comparison, len(tt.models))
			for i, point := range comparison {
				assert.InDelta(t, tt.models[i], point.Model, 1e-12)
				// Same clock as the projection used for valuation.
				assert.InDelta(t, growth(yearsBetween(tt.now, point.Date)), point.Model, 1e-12)
			}
		})
	}
}

func TestNewCashflow_FlatSampleFallsBack(t *testing.T) {
	sample := []domain.Payment{
		{Date: date(2020, time.January, 1), Amount: 0.5},
		{Date: date(2020, time.April, 1), Amount: 0.5},
		{Date: date(2020, time.July, 1), Amount: 0.5},
	}
	cf, err := NewCashflow(CashflowOptions{Sample: sample, DiscountRate: 0.04})
	require.NoError(t, err)
	assert.Equal(t, ConstantGrowth{Value: 0.5, Markovian: true}, cf.Model())
}

func TestNewCashflow_Constant(t *testing.T) {
	cf, err := NewCashflow(CashflowOptions{
		Sample:       []domain.Payment{{Date: date(2020, time.January, 1), Amount: 9}},
		Constant:     floatPtr(3),
		DiscountRate: 0.05,
	})
	require.NoError(t, err)
	assert.Equal(t, ConstantGrowth{Value: 3}, cf.Model())

	// A constant cash flow needs an explicit period.
	_, err = cf.NetPresentValue(date(2024, time.January, 1))
	var ive *InputValidationError
	require.True(t, errors.As(err, &ive))
	assert.Equal(t, "period", ive.Field)
}

func TestNewCashflow_GrowthFunctionInfersPeriod(t *testing.T) {
	sample := []domain.Payment{
		{Date: date(2023, time.January, 1), Amount: 1},
		{Date: date(2023, time.April, 1), Amount: 1},
		{Date: date(2023, time.July, 1), Amount: 1},
	}
	cf, err := NewCashflow(CashflowOptions{
		Sample:         sample,
		GrowthFunction: func(t float64) float64 { return 1 + 0.1*t },
		DiscountRate:   0.08,
	})
	require.NoError(t, err)

	_, ok := cf.Model().(FunctionGrowth)
	assert.True(t, ok)

	period, ok := cf.Period()
	require.True(t, ok)
	assert.InDelta(t, (181.0/365)/2, period, 1e-12)

	npv, err := cf.NetPresentValue(date(2023, time.August, 1))
	require.NoError(t, err)
	assert.Greater(t, npv, 0.0)
}

func TestNewCashflow_NoModel(t *testing.T) {
	_, err := NewCashflow(CashflowOptions{DiscountRate: 0.05})
	assert.True(t, formulas.IsSampleSizeError(err))
}

func TestNetPresentValue_Diverges(t *testing.T) {
	cf, err := NewCashflow(CashflowOptions{Constant: floatPtr(1), Period: floatPtr(1), DiscountRate: 0})
	require.NoError(t, err)

	_, err = cf.NetPresentValue(date(2024, time.January, 1))
	assert.ErrorIs(t, err, ErrNPVDiverged)
}

func TestNetPresentValue_AnnualConstant(t *testing.T) {
	cf, err := NewCashflow(CashflowOptions{Constant: floatPtr(10), Period: floatPtr(FreqAnnual), DiscountRate: 0.1})
	require.NoError(t, err)

	now := date(2024, time.July, 1)
	first := 184.0 / 365
	npv, err := cf.NetPresentValue(now)
	require.NoError(t, err)
	assert.InDelta(t, 10*math.Pow(1.1, -first)/(1-1/1.1), npv, 1e-5)
}

func TestNetPresentValue_InvalidDiscountRate(t *testing.T) {
	cf, err := NewCashflow(CashflowOptions{Constant: floatPtr(1), Period: floatPtr(1), DiscountRate: -1})
	require.NoError(t, err)

	_, err = cf.NetPresentValue(date(2024, time.January, 1))
	var ive *InputValidationError
	assert.True(t, errors.As(err, &ive))
}
