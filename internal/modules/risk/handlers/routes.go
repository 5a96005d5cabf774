package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk estimation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/profiles/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleGetRiskProfile(w, r, chi.URLParam(r, "ticker"))
		})

		r.Post("/portfolio", h.HandlePortfolio)
		r.Post("/portfolio/metrics", h.HandleMetrics)
	})
}
