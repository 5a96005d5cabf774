package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/risk/profiles/AAA"},
		{http.MethodPost, "/api/risk/portfolio"},
		{http.MethodPost, "/api/risk/portfolio/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rctx := chi.NewRouteContext()
			assert.True(t, router.Match(rctx, tt.method, tt.path), "route should be registered")
		})
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/risk/portfolio", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
