// Package handlers provides HTTP handlers for risk estimation operations.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/aristath/riskengine/internal/modules/risk"
	"github.com/aristath/riskengine/internal/validation"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/rs/zerolog"
)

// Handler handles risk estimation HTTP requests
type Handler struct {
	service *risk.Service
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(service *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// PortfolioRequest selects the assets of a portfolio.
type PortfolioRequest struct {
	Assets      []risk.Asset `json:"assets" validate:"required,min=1,max=50,dive"`
	AllowNonPSD bool         `json:"allow_non_psd"`
}

// MetricsRequest evaluates an allocation of a portfolio.
type MetricsRequest struct {
	PortfolioRequest
	Weights     []float64 `json:"weights" validate:"required,min=1"`
	Horizon     float64   `json:"horizon" validate:"gt=0"`
	Probability float64   `json:"probability" validate:"gt=0,lt=1"`
}

// HandleGetRiskProfile handles GET /api/risk/profiles/{ticker}?asset_type=equity
func (h *Handler) HandleGetRiskProfile(w http.ResponseWriter, r *http.Request, ticker string) {
	assetType, err := domain.ParseAssetType(r.URL.Query().Get("asset_type"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	profile, err := h.service.RiskProfile(r.Context(), risk.Asset{Ticker: ticker, AssetType: assetType})
	if err != nil {
		h.writeServiceError(w, err, "Failed to estimate risk profile")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":            ticker,
			"asset_type":        assetType,
			"annual_return":     profile.AnnualReturn,
			"annual_volatility": profile.AnnualVolatility,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandlePortfolio handles POST /api/risk/portfolio
func (h *Handler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	var req PortfolioRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	p, err := h.service.Portfolio(r.Context(), req.Assets, portfolio.Options{AllowNonPSD: req.AllowNonPSD})
	if err != nil {
		h.writeServiceError(w, err, "Failed to build portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"tickers":        p.Tickers(),
			"returns":        p.Returns(),
			"volatilities":   p.Volatilities(),
			"correlation":    p.Correlation(),
			"risk_free_rate": p.RiskFreeRate(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleMetrics handles POST /api/risk/portfolio/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}
	if len(req.Weights) != len(req.Assets) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weights must match assets"})
		return
	}

	p, err := h.service.Portfolio(r.Context(), req.Assets, portfolio.Options{AllowNonPSD: req.AllowNonPSD})
	if err != nil {
		h.writeServiceError(w, err, "Failed to build portfolio")
		return
	}

	if err := p.CheckVariance(req.Weights); err != nil {
		h.writeServiceError(w, err, "Failed to evaluate portfolio")
		return
	}

	summary := p.Summarize(req.Weights)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"weights":     req.Weights,
			"return":      summary.Return,
			"volatility":  summary.Volatility,
			"sharpe":      summary.Sharpe,
			"horizon":     req.Horizon,
			"probability": req.Probability,
			"percentile":  portfolio.Finite(p.Percentile(req.Weights, req.Horizon, req.Probability)),
			"cvar":        portfolio.Finite(p.ConditionalValueAtRisk(req.Weights, req.Horizon, req.Probability)),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeServiceError maps estimation errors to client errors where the request
// itself is at fault.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case formulas.IsSampleSizeError(err),
		errors.Is(err, formulas.ErrDegenerateCorrelation),
		errors.Is(err, portfolio.ErrDimensionMismatch),
		errors.Is(err, portfolio.ErrInvalidCorrelation),
		errors.Is(err, portfolio.ErrNotPositiveSemiDefinite),
		errors.Is(err, portfolio.ErrInvalidProfile),
		errors.Is(err, portfolio.ErrNegativeVariance):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// writeJSON writes a JSON response. The body is encoded before the status is sent so
// an unencodable value turns into a 500 instead of a truncated success.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}
