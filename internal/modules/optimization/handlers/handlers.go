// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/internal/modules/optimization"
	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/aristath/riskengine/internal/modules/risk"
	"github.com/aristath/riskengine/internal/validation"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Objectives accepted by HandleOptimize.
const (
	ObjectiveMinVariance = "min_variance"
	ObjectiveMaxSharpe   = "max_sharpe"
	ObjectiveMaxReturn   = "max_return"
	ObjectiveMinCVaR     = "min_cvar"
)

// Defaults for the conditional value at risk objective.
const (
	defaultHorizon     = 1.0
	defaultProbability = 0.05
)

// LatestPriceProvider returns the most recent close of each ticker.
type LatestPriceProvider interface {
	LatestPrices(ctx context.Context, tickers []string) ([]float64, error)
}

// Handler handles optimization HTTP requests
type Handler struct {
	risk      *risk.Service
	optimizer *optimization.Optimizer
	prices    LatestPriceProvider
	runs      domain.ResultCache
	log       zerolog.Logger
}

// NewHandler creates a new optimization handler. runs may be nil, in which case
// results are not kept for later retrieval.
func NewHandler(
	riskService *risk.Service,
	optimizer *optimization.Optimizer,
	prices LatestPriceProvider,
	runs domain.ResultCache,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		risk:      riskService,
		optimizer: optimizer,
		prices:    prices,
		runs:      runs,
		log:       log.With().Str("handler", "optimization").Logger(),
	}
}

// OptimizeRequest is the body of POST /optimization/optimize.
type OptimizeRequest struct {
	Assets       []risk.Asset `json:"assets" validate:"required,min=1,max=50,dive"`
	Objective    string       `json:"objective" validate:"required,oneof=min_variance max_sharpe max_return min_cvar"`
	TargetReturn *float64     `json:"target_return,omitempty"`
	Horizon      float64      `json:"horizon,omitempty" validate:"omitempty,gt=0"`
	Probability  float64      `json:"probability,omitempty" validate:"omitempty,gt=0,lt=1"`
	TotalValue   float64      `json:"total_value,omitempty" validate:"omitempty,gt=0"`
	AllowNonPSD  bool         `json:"allow_non_psd"`
}

// FrontierRequest is the body of POST /optimization/frontier.
type FrontierRequest struct {
	Assets      []risk.Asset `json:"assets" validate:"required,min=1,max=50,dive"`
	Steps       int          `json:"steps,omitempty" validate:"omitempty,min=1,max=100"`
	AllowNonPSD bool         `json:"allow_non_psd"`
}

// Run is a completed optimization.
type Run struct {
	ID         string                  `json:"run_id" msgpack:"run_id"`
	Objective  string                  `json:"objective" msgpack:"objective"`
	Tickers    []string                `json:"tickers" msgpack:"tickers"`
	Allocation portfolio.FrontierPoint `json:"allocation" msgpack:"allocation"`
	Shares     []int64                 `json:"shares,omitempty" msgpack:"shares,omitempty"`
	Invested   string                  `json:"invested,omitempty" msgpack:"invested,omitempty"`
	CreatedAt  time.Time               `json:"created_at" msgpack:"created_at"`
}

// HandleOptimize handles POST /api/optimization/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}
	if req.Objective == ObjectiveMaxReturn && req.TargetReturn != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target_return is not supported for max_return"})
		return
	}

	p, err := h.risk.Portfolio(r.Context(), req.Assets, portfolio.Options{AllowNonPSD: req.AllowNonPSD})
	if err != nil {
		h.writeServiceError(w, err, "Failed to build portfolio")
		return
	}

	weights, err := h.optimize(p, req)
	if err == nil {
		err = p.CheckVariance(weights)
	}
	if err != nil {
		h.writeServiceError(w, err, "Failed to optimize portfolio")
		return
	}

	run := Run{
		ID:         uuid.New().String(),
		Objective:  req.Objective,
		Tickers:    p.Tickers(),
		Allocation: p.Summarize(weights),
		CreatedAt:  time.Now().UTC(),
	}

	if req.TotalValue > 0 {
		if err := h.allocateShares(r.Context(), &run, req.TotalValue); err != nil {
			h.writeServiceError(w, err, "Failed to approximate shares")
			return
		}
	}

	if h.runs != nil {
		if err := h.runs.Put(runKey(run.ID), run); err != nil {
			h.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to store optimization run")
		}
	}

	h.log.Info().
		Str("run_id", run.ID).
		Str("objective", run.Objective).
		Strs("tickers", run.Tickers).
		Float64("return", run.Allocation.Return).
		Float64("volatility", run.Allocation.Volatility).
		Msg("Optimization complete")

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetRun handles GET /api/optimization/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := uuid.Parse(id); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return
	}
	if h.runs == nil {
		http.Error(w, "Optimization run not found", http.StatusNotFound)
		return
	}

	var run Run
	found, err := h.runs.Get(runKey(id), &run)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load optimization run")
		http.Error(w, "Failed to load optimization run", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Optimization run not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleFrontier handles POST /api/optimization/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req FrontierRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	p, err := h.risk.Portfolio(r.Context(), req.Assets, portfolio.Options{AllowNonPSD: req.AllowNonPSD})
	if err != nil {
		h.writeServiceError(w, err, "Failed to build portfolio")
		return
	}

	frontier, err := h.optimizer.EfficientFrontier(r.Context(), p, req.Steps)
	for i := 0; err == nil && i < len(frontier); i++ {
		err = p.CheckVariance(frontier[i].Weights)
	}
	if err != nil {
		h.writeServiceError(w, err, "Failed to trace efficient frontier")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"tickers":  p.Tickers(),
			"frontier": frontier,
			"count":    len(frontier),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) optimize(p *portfolio.Portfolio, req OptimizeRequest) ([]float64, error) {
	switch req.Objective {
	case ObjectiveMinVariance:
		return h.optimizer.MinimizeVariance(p, req.TargetReturn)
	case ObjectiveMaxSharpe:
		return h.optimizer.MaximizeSharpe(p, req.TargetReturn)
	case ObjectiveMaxReturn:
		return h.optimizer.MaximizeReturn(p)
	case ObjectiveMinCVaR:
		horizon, prob := req.Horizon, req.Probability
		if horizon == 0 {
			horizon = defaultHorizon
		}
		if prob == 0 {
			prob = defaultProbability
		}
		return h.optimizer.MinimizeConditionalValueAtRisk(p, horizon, prob, req.TargetReturn)
	}
	return nil, fmt.Errorf("unknown objective %q", req.Objective)
}

func (h *Handler) allocateShares(ctx context.Context, run *Run, total float64) error {
	if h.prices == nil {
		return errors.New("no price source configured")
	}
	prices, err := h.prices.LatestPrices(ctx, run.Tickers)
	if err != nil {
		return err
	}
	shares, err := portfolio.ApproximateShares(run.Allocation.Weights, total, prices)
	if err != nil {
		return err
	}
	invested, err := portfolio.ActualTotal(run.Allocation.Weights, total, prices)
	if err != nil {
		return err
	}
	run.Shares = shares
	run.Invested = invested.StringFixed(2)
	return nil
}

func runKey(id string) string {
	return "optimization_run:" + id
}

// writeServiceError maps estimation and solver errors to client errors where the
// request itself is at fault.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	var optErr *optimization.OptimizationError
	switch {
	case errors.As(err, &optErr),
		formulas.IsSampleSizeError(err),
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
