package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all cash flow routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cashflows", func(r chi.Router) {
		r.Post("/npv", h.HandleNPV)

		r.Route("/{ticker}/payments", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetPayments(w, r, chi.URLParam(r, "ticker"))
			})
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleRecordPayments(w, r, chi.URLParam(r, "ticker"))
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleDeletePayments(w, r, chi.URLParam(r, "ticker"))
			})
		})
	})
}
