package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetType_TradingPeriod(t *testing.T) {
	tests := []struct {
		name      string
		assetType AssetType
		expected  float64
	}{
		{name: "equity", assetType: AssetTypeEquity, expected: 1.0 / 252},
		{name: "crypto", assetType: AssetTypeCrypto, expected: 1.0 / 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.assetType.TradingPeriod())
			assert.Equal(t, tt.name, tt.assetType.String())
		})
	}
}

func TestParseAssetType(t *testing.T) {
	got, err := ParseAssetType("CRYPTO")
	require.NoError(t, err)
	assert.Equal(t, AssetTypeCrypto, got)

	got, err = ParseAssetType("")
	require.NoError(t, err)
	assert.Equal(t, AssetTypeEquity, got)

	_, err = ParseAssetType("bond")
	assert.Error(t, err)
}

func TestNewPriceSample_OrdersEarliestFirst(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	points := []PricePoint{
		{Date: day(3), Close: 103},
		{Date: day(1), Close: 101},
		{Date: day(2), Close: 102},
	}

	sample := NewPriceSample("AAA", AssetTypeEquity, points)

	assert.Equal(t, 3, sample.Len())
	assert.Equal(t, []float64{101, 102, 103}, sample.Closes())
	assert.Equal(t, day(1), sample.Earliest().Date)
	assert.Equal(t, day(3), sample.Latest().Date)
	// input untouched
	assert.Equal(t, 103.0, points[0].Close)
}

func TestSortPayments(t *testing.T) {
	payments := []Payment{
		{Date: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), Amount: 2},
		{Date: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), Amount: 1},
	}
	sorted := SortPayments(payments)
	assert.Equal(t, 1.0, sorted[0].Amount)
	assert.Equal(t, 2.0, payments[0].Amount)
}

func TestAssetType_JSON(t *testing.T) {
	type wrapper struct {
		Type AssetType `json:"type"`
	}

	out, err := json.Marshal(wrapper{Type: AssetTypeCrypto})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"crypto"}`, string(out))

	var in wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"type":"Equity"}`), &in))
	assert.Equal(t, AssetTypeEquity, in.Type)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"bond"}`), &in))
}
