package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all historical data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/historical", func(r chi.Router) {
		r.Get("/tickers", h.HandleGetTickers)

		r.Route("/prices/{ticker}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetDailyPrices(w, r, chi.URLParam(r, "ticker"))
			})
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				h.HandleImportPrices(w, r, chi.URLParam(r, "ticker"))
			})
		})
	})
}
