// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AssetType selects the trading calendar used to annualize statistics.
type AssetType int

const (
	// AssetTypeEquity trades on exchange days only
	AssetTypeEquity AssetType = iota
	// AssetTypeCrypto trades every calendar day
	AssetTypeCrypto
)

// Trading days per year for each asset type.
const (
	EquityTradingDays = 252
	CryptoTradingDays = 365
)

// TradingPeriod returns the length of one trading day in years.
func (a AssetType) TradingPeriod() float64 {
	if a == AssetTypeCrypto {
		return 1.0 / CryptoTradingDays
	}
	return 1.0 / EquityTradingDays
}

func (a AssetType) String() string {
	switch a {
	case AssetTypeCrypto:
		return "crypto"
	default:
		return "equity"
	}
}

// ParseAssetType converts "equity" or "crypto" (case-insensitive) into an AssetType.
func ParseAssetType(s string) (AssetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "equity", "stock":
		return AssetTypeEquity, nil
	case "crypto":
		return AssetTypeCrypto, nil
	}
	return AssetTypeEquity, fmt.Errorf("unknown asset type %q", s)
}

// MarshalText encodes the asset type by name.
func (a AssetType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a name accepted by ParseAssetType.
func (a *AssetType) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetType(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// RiskProfile is the annualized return and volatility of one asset over one window.
type RiskProfile struct {
	AnnualReturn     float64 `json:"annual_return" msgpack:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility" msgpack:"annual_volatility"`
}

// PricePoint is one day of price history.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	Close float64   `json:"close"`
}

// PriceSample is the chronological price history of one asset, earliest first.
// The ordering is established by NewPriceSample and every estimator relies on it.
type PriceSample struct {
	Ticker    string
	AssetType AssetType
	points    []PricePoint
}

// NewPriceSample copies points and orders them earliest to latest.
func NewPriceSample(ticker string, assetType AssetType, points []PricePoint) PriceSample {
	ordered := make([]PricePoint, len(points))
	copy(ordered, points)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	return PriceSample{Ticker: ticker, AssetType: assetType, points: ordered}
}

// Len returns the number of price points.
func (s PriceSample) Len() int { return len(s.points) }

// Points returns the price points, earliest first.
func (s PriceSample) Points() []PricePoint { return s.points }

// Closes returns the closing prices, earliest first.
func (s PriceSample) Closes() []float64 {
	closes := make([]float64, len(s.points))
	for i, p := range s.points {
		closes[i] = p.Close
	}
	return closes
}

// Earliest returns the first point. The sample must not be empty.
func (s PriceSample) Earliest() PricePoint { return s.points[0] }

// Latest returns the last point. The sample must not be empty.
func (s PriceSample) Latest() PricePoint { return s.points[len(s.points)-1] }

// Payment is one historical cash flow, such as a dividend.
type Payment struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// SortPayments returns a copy of payments ordered earliest to latest.
func SortPayments(payments []Payment) []Payment {
	ordered := make([]Payment, len(payments))
	copy(ordered, payments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	return ordered
}
