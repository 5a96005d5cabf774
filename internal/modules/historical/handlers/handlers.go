// Package handlers provides HTTP handlers for historical data operations.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/internal/modules/historical"
	"github.com/aristath/riskengine/internal/validation"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Handler handles historical data HTTP requests
type Handler struct {
	repo *historical.Repository
	log  zerolog.Logger
}

// NewHandler creates a new historical data handler
func NewHandler(repo *historical.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "historical").Logger(),
	}
}

// PriceInput is one imported daily price.
type PriceInput struct {
	Date  string  `json:"date" validate:"required,datetime=2006-01-02"`
	Open  float64 `json:"open" validate:"gte=0"`
	Close float64 `json:"close" validate:"gt=0"`
}

// ImportPricesRequest is the body of POST /api/historical/prices/{ticker}.
type ImportPricesRequest struct {
	Prices []PriceInput `json:"prices" validate:"required,min=1,dive"`
}

// HandleGetDailyPrices handles GET /api/historical/prices/{ticker}
func (h *Handler) HandleGetDailyPrices(w http.ResponseWriter, r *http.Request, ticker string) {
	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	var (
		prices []domain.PricePoint
		err    error
	)
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" || to != "" {
		start, end, perr := parseRange(from, to)
		if perr != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": perr.Error()})
			return
		}
		prices, err = h.repo.GetPrices(r.Context(), ticker, start, end)
	} else {
		prices, err = h.repo.GetDailyPrices(r.Context(), ticker, limit)
	}
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get daily prices")
		http.Error(w, "Failed to get daily prices", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleImportPrices handles POST /api/historical/prices/{ticker}
func (h *Handler) HandleImportPrices(w http.ResponseWriter, r *http.Request, ticker string) {
	var req ImportPricesRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	points := make([]domain.PricePoint, len(req.Prices))
	for i, p := range req.Prices {
		date, _ := time.Parse(dateLayout, p.Date) // validated above
		points[i] = domain.PricePoint{Date: date, Open: p.Open, Close: p.Close}
	}

	if err := h.repo.UpsertPrices(r.Context(), ticker, points); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to store daily prices")
		http.Error(w, "Failed to store daily prices", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":   ticker,
			"imported": len(points),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetTickers handles GET /api/historical/tickers
func (h *Handler) HandleGetTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.repo.Tickers(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tickers")
		http.Error(w, "Failed to list tickers", http.StatusInternalServerError)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"tickers": tickers,
			"count":   len(tickers),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if from != "" {
		if start, err = time.Parse(dateLayout, from); err != nil {
			return start, end, errors.New("from must be formatted as YYYY-MM-DD")
		}
	}
	if to != "" {
		if end, err = time.Parse(dateLayout, to); err != nil {
			return start, end, errors.New("to must be formatted as YYYY-MM-DD")
		}
	}
	return start, end, nil
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
