package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/internal/modules/risk"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPrices serves fixed closes as consecutive calendar days ending today.
type stubPrices map[string][]float64

func (s stubPrices) GetPrices(_ context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	closes := s[ticker]
	y, m, d := time.Now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var out []domain.PricePoint
	for i, c := range closes {
		date := today.AddDate(0, 0, i-len(closes)+1)
		if date.Before(start) || date.After(end) {
			continue
		}
		out = append(out, domain.PricePoint{Date: date, Open: c, Close: c})
	}
	return out, nil
}

func newRouter(t *testing.T) *chi.Mux {
	t.Helper()
	prices := stubPrices{
		"AAA":  {100, 102, 99, 103, 101, 104, 102, 106},
		"BBB":  {50, 49, 51, 48, 50, 47, 49, 46},
		"TWO":  {10, 11},
		"FLAT": {20, 20, 20, 20, 20, 20, 20, 20},
	}
	service := risk.NewService(prices, nil, risk.FixedRate(0.03), risk.Config{AnalysisPeriod: 30}, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", NewHandler(service, zerolog.Nop()).RegisterRoutes)
	return router
}

func TestHandleGetRiskProfile(t *testing.T) {
	router := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/risk/profiles/AAA?asset_type=crypto", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Data struct {
			Ticker           string  `json:"ticker"`
			AssetType        string  `json:"asset_type"`
			AnnualReturn     float64 `json:"annual_return"`
			AnnualVolatility float64 `json:"annual_volatility"`
		} `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "AAA", response.Data.Ticker)
	assert.Equal(t, "crypto", response.Data.AssetType)
	assert.Greater(t, response.Data.AnnualVolatility, 0.0)
	assert.Contains(t, response.Metadata, "timestamp")
}

func TestHandleGetRiskProfile_Errors(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "unknown asset type", path: "/api/risk/profiles/AAA?asset_type=bond", wantStatus: http.StatusBadRequest},
		{name: "short history", path: "/api/risk/profiles/TWO?asset_type=crypto", wantStatus: http.StatusUnprocessableEntity},
		{name: "no history", path: "/api/risk/profiles/NONE?asset_type=crypto", wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandlePortfolio(t *testing.T) {
	router := newRouter(t)

	body := `{"assets":[{"ticker":"AAA","asset_type":"crypto"},{"ticker":"BBB","asset_type":"crypto"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/risk/portfolio", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Data struct {
			Tickers      []string    `json:"tickers"`
			Returns      []float64   `json:"returns"`
			Volatilities []float64   `json:"volatilities"`
			Correlation  [][]float64 `json:"correlation"`
			RiskFreeRate float64     `json:"risk_free_rate"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []string{"AAA", "BBB"}, response.Data.Tickers)
	assert.Len(t, response.Data.Returns, 2)
	require.Len(t, response.Data.Correlation, 2)
	assert.Less(t, response.Data.Correlation[0][1], -0.9)
	assert.InDelta(t, 0.03, response.Data.RiskFreeRate, 1e-12)
}

func TestHandlePortfolio_Invalid(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "malformed", body: `{"assets":`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"assets":[{"ticker":"AAA"}],"extra":1}`, wantStatus: http.StatusBadRequest},
		{name: "no assets", body: `{"assets":[]}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "bad ticker", body: `{"assets":[{"ticker":"$$$"}]}`, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/risk/portfolio", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandleMetrics(t *testing.T) {
	router := newRouter(t)

	body := `{
		"assets":[{"ticker":"AAA","asset_type":"crypto"},{"ticker":"BBB","asset_type":"crypto"}],
		"weights":[0.5,0.5],
		"horizon":1,
		"probability":0.05
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/risk/portfolio/metrics", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Data struct {
			Return     float64 `json:"return"`
			Volatility float64 `json:"volatility"`
			Percentile float64 `json:"percentile"`
			CVaR       float64 `json:"cvar"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Greater(t, response.Data.Volatility, 0.0)
	assert.Greater(t, response.Data.Percentile, 0.0)
	assert.Greater(t, response.Data.CVaR, 1-response.Data.Percentile)
}

func TestHandleMetrics_WeightsMismatch(t *testing.T) {
	router := newRouter(t)

	body := `{"assets":[{"ticker":"AAA"},{"ticker":"BBB"}],"weights":[1],"horizon":1,"probability":0.05}`
	req := httptest.NewRequest(http.MethodPost, "/api/risk/portfolio/metrics", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = `{"assets":[{"ticker":"AAA"}],"weights":[1],"horizon":1,"probability":1.5}`
	req = httptest.NewRequest(http.MethodPost, "/api/risk/portfolio/metrics", strings.NewReader(body))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleMetrics_RisklessAllocation(t *testing.T) {
	router := newRouter(t)

	body := `{"assets":[{"ticker":"FLAT","asset_type":"crypto"}],"weights":[1],"horizon":1,"probability":0.05}`
	req := httptest.NewRequest(http.MethodPost, "/api/risk/portfolio/metrics", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		Data struct {
			Volatility float64  `json:"volatility"`
			Sharpe     *float64 `json:"sharpe"`
			Percentile *float64 `json:"percentile"`
			CVaR       *float64 `json:"cvar"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 0.0, response.Data.Volatility)
	assert.Nil(t, response.Data.Sharpe)
	require.NotNil(t, response.Data.Percentile)
	assert.InDelta(t, 1.0, *response.Data.Percentile, 1e-12)
	require.NotNil(t, response.Data.CVaR)
	assert.InDelta(t, 0.0, *response.Data.CVaR, 1e-12)
}

func TestWriteJSON_Unencodable(t *testing.T) {
	h := NewHandler(nil, zerolog.Nop())

	tests := []struct {
		name  string
		value float64
	}{
		{name: "nan", value: math.NaN()},
		{name: "infinity", value: math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.writeJSON(w, http.StatusOK, map[string]float64{"value": tt.value})
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.NotContains(t, w.Body.String(), "value")
		})
	}
}
