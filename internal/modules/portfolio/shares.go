package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ApproximateShares converts an allocation of total into whole share counts at the given
// latest prices. Fractional shares are truncated, so the invested amount never exceeds
// total.
func ApproximateShares(w []float64, total float64, prices []float64) ([]int64, error) {
	if len(w) != len(prices) {
		return nil, fmt.Errorf("%w: %d weights, %d prices", ErrDimensionMismatch, len(w), len(prices))
	}

	investment := decimal.NewFromFloat(total)
	shares := make([]int64, len(w))
	for i, weight := range w {
		if prices[i] <= 0 {
			return nil, fmt.Errorf("price %d must be positive, got %v", i, prices[i])
		}
		amount := decimal.NewFromFloat(weight).Mul(investment)
		shares[i] = amount.Div(decimal.NewFromFloat(prices[i])).Truncate(0).IntPart()
	}
	return shares, nil
}

// ActualTotal is the cost of buying ApproximateShares(w, total, prices).
func ActualTotal(w []float64, total float64, prices []float64) (decimal.Decimal, error) {
	shares, err := ApproximateShares(w, total, prices)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for i, count := range shares {
		sum = sum.Add(decimal.NewFromInt(count).Mul(decimal.NewFromFloat(prices[i])))
	}
	return sum, nil
}
