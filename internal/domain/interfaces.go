package domain

import (
	"context"
	"time"
)

// PriceProvider supplies price history for a ticker.
// Implementations return points in any order; callers wrap them with NewPriceSample.
type PriceProvider interface {
	GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]PricePoint, error)
}

// DividendProvider supplies the dividend history of a ticker.
type DividendProvider interface {
	GetDividends(ctx context.Context, ticker string) ([]Payment, error)
}

// RiskFreeRateProvider supplies the current annualized risk-free rate.
type RiskFreeRateProvider interface {
	GetRiskFreeRate(ctx context.Context) (float64, error)
}

// ResultCache stores computed results under a key.
// Get returns found=false, not an error, on a miss or an expired entry.
type ResultCache interface {
	Get(key string, dest interface{}) (found bool, err error)
	Put(key string, value interface{}) error
}
