// Package handlers provides HTTP handlers for cash flow valuation and payment history.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/riskengine/internal/domain"
	"github.com/aristath/riskengine/internal/modules/cash_flows"
	"github.com/aristath/riskengine/internal/validation"
	"github.com/aristath/riskengine/pkg/formulas"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

var frequencies = map[string]float64{
	"annual":    cash_flows.FreqAnnual,
	"quarterly": cash_flows.FreqQuarterly,
	"monthly":   cash_flows.FreqMonthly,
	"daily":     cash_flows.FreqDaily,
}

// Handler handles cash flow HTTP requests
type Handler struct {
	repo *cash_flows.Repository
	log  zerolog.Logger
}

// NewHandler creates a new cash flow handler
func NewHandler(repo *cash_flows.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "cash_flows").Logger(),
	}
}

// PaymentInput is one historical payment in a request body.
type PaymentInput struct {
	Date   string  `json:"date" validate:"required,datetime=2006-01-02"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

// RecordPaymentsRequest is the body of POST /cashflows/{ticker}/payments.
type RecordPaymentsRequest struct {
	Payments []PaymentInput `json:"payments" validate:"required,min=1,dive"`
}

// NPVRequest is the body of POST /cashflows/npv. Payments default to the stored
// history of Ticker when omitted.
type NPVRequest struct {
	Ticker        string         `json:"ticker,omitempty" validate:"omitempty,ticker"`
	Payments      []PaymentInput `json:"payments,omitempty" validate:"omitempty,dive"`
	Period        *float64       `json:"period,omitempty" validate:"omitempty,gt=0"`
	Frequency     string         `json:"frequency,omitempty" validate:"omitempty,oneof=annual quarterly monthly daily"`
	Constant      *float64       `json:"constant,omitempty"`
	DiscountRate  float64        `json:"discount_rate" validate:"gt=-1"`
	ValuationDate string         `json:"valuation_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// HandleNPV handles POST /api/cashflows/npv
func (h *Handler) HandleNPV(w http.ResponseWriter, r *http.Request) {
	var req NPVRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	payments := toPayments(req.Payments)
	if len(req.Payments) == 0 && req.Ticker != "" && req.Constant == nil {
		stored, err := h.repo.GetDividends(r.Context(), req.Ticker)
		if err != nil {
			h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to load payments")
			http.Error(w, "Failed to load payments", http.StatusInternalServerError)
			return
		}
		payments = stored
	}

	period := req.Period
	if period == nil && req.Frequency != "" {
		f := frequencies[req.Frequency]
		period = &f
	}

	now := time.Now().UTC()
	if req.ValuationDate != "" {
		// validated above
		now, _ = time.Parse(dateLayout, req.ValuationDate)
	}

	cf, err := cash_flows.NewCashflow(cash_flows.CashflowOptions{
		Sample:       payments,
		Period:       period,
		Constant:     req.Constant,
		DiscountRate: req.DiscountRate,
	})
	if err != nil {
		h.writeCashflowError(w, err)
		return
	}

	terms, err := cf.DiscountedTerms(now)
	if err != nil {
		h.writeCashflowError(w, err)
		return
	}
	npv, err := cf.NetPresentValue(now)
	if err != nil {
		h.writeCashflowError(w, err)
		return
	}
	first, err := cf.TimeToFirstPayment(now)
	if err != nil {
		h.writeCashflowError(w, err)
		return
	}
	resolvedPeriod, _ := cf.Period()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":                req.Ticker,
			"valuation_date":        now.Format(dateLayout),
			"net_present_value":     npv,
			"period":                resolvedPeriod,
			"time_to_first_payment": first,
			"discount_rate":         cf.DiscountRate(),
			"model":                 describeModel(cf.Model()),
			"terms":                 len(terms),
			"comparison":            cf.ModelComparison(now),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetPayments handles GET /api/cashflows/{ticker}/payments?from=&to=
func (h *Handler) HandleGetPayments(w http.ResponseWriter, r *http.Request, ticker string) {
	var start, end time.Time
	for param, dst := range map[string]*time.Time{"from": &start, "to": &end} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + param + " date, expected YYYY-MM-DD"})
			return
		}
		*dst = parsed
	}

	payments, err := h.repo.GetByDateRange(r.Context(), ticker, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get payments")
		http.Error(w, "Failed to get payments", http.StatusInternalServerError)
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":   ticker,
			"payments": payments,
			"count":    len(payments),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRecordPayments handles POST /api/cashflows/{ticker}/payments
func (h *Handler) HandleRecordPayments(w http.ResponseWriter, r *http.Request, ticker string) {
	var req RecordPaymentsRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	payments := toPayments(req.Payments)
	if err := h.repo.Record(r.Context(), ticker, payments); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to record payments")
		http.Error(w, "Failed to record payments", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":   ticker,
			"recorded": len(payments),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDeletePayments handles DELETE /api/cashflows/{ticker}/payments
func (h *Handler) HandleDeletePayments(w http.ResponseWriter, r *http.Request, ticker string) {
	deleted, err := h.repo.Delete(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to delete payments")
		http.Error(w, "Failed to delete payments", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":  ticker,
			"deleted": deleted,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func toPayments(inputs []PaymentInput) []domain.Payment {
	payments := make([]domain.Payment, 0, len(inputs))
	for _, in := range inputs {
		// validated by the datetime tag
		date, _ := time.Parse(dateLayout, in.Date)
		payments = append(payments, domain.Payment{Date: date, Amount: in.Amount})
	}
	return payments
}

func describeModel(model cash_flows.GrowthModel) map[string]interface{} {
	switch m := model.(type) {
	case cash_flows.ConstantGrowth:
		return map[string]interface{}{"type": "constant", "value": m.Value, "markovian": m.Markovian}
	case cash_flows.RegressionGrowth:
		return map[string]interface{}{
			"type":   "regression",
			"alpha":  m.Alpha,
			"beta":   m.Beta,
			"origin": m.Origin.Format(dateLayout),
		}
	default:
		return map[string]interface{}{"type": "function"}
	}
}

func (h *Handler) writeCashflowError(w http.ResponseWriter, err error) {
	var inputErr *cash_flows.InputValidationError
	switch {
	case errors.As(err, &inputErr), formulas.IsSampleSizeError(err), errors.Is(err, cash_flows.ErrNPVDiverged):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("Failed to value cash flow")
		http.Error(w, "Failed to value cash flow", http.StatusInternalServerError)
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
