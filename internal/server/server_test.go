package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskengine/internal/database"
	"github.com/aristath/riskengine/internal/scheduler"
)

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong " + chi.URLParam(r, "id")))
	})
}

type testJob struct {
	name string
	err  error
	runs atomic.Int32
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "cache.db"),
		Name: database.NameCache,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	cfg.Log = zerolog.Nop()
	cfg.DevMode = true
	cfg.Version = "test"
	return New(cfg).Handler()
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	db := openDB(t)
	h := newTestServer(t, Config{Databases: []*database.DB{db}})

	w := get(t, h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "riskengine", body["service"])
	assert.Equal(t, "test", body["version"])

	require.NoError(t, db.Close())
	w = get(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestModulesAreMountedUnderAPI(t *testing.T) {
	h := newTestServer(t, Config{Modules: []RouteRegistrar{pingModule{}}})

	w := get(t, h, http.MethodGet, "/api/ping/7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong 7", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, h, http.MethodGet, "/ping/7").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, Config{Modules: []RouteRegistrar{pingModule{}}})

	get(t, h, http.MethodGet, "/api/ping/1")
	get(t, h, http.MethodGet, "/api/ping/2")

	w := get(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `riskengine_http_requests_total{method="GET",route="/api/ping/{id}",status="200"} 2`)
	assert.Contains(t, string(body), "riskengine_http_request_duration_seconds")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, get(t, h, http.MethodGet, "/api/system/jobs").Code)
	assert.Equal(t, http.StatusOK, get(t, h, http.MethodGet, "/api/system/jobs").Code)

	w := get(t, h, http.MethodGet, "/api/system/jobs")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// health checks are not rate limited
	assert.Equal(t, http.StatusOK, get(t, h, http.MethodGet, "/health").Code)
}

func TestSystemStatus(t *testing.T) {
	sched := scheduler.New(zerolog.Nop())
	require.NoError(t, sched.AddJob("@hourly", &testJob{name: "nightly"}))
	h := newTestServer(t, Config{Databases: []*database.DB{openDB(t)}, Scheduler: sched})

	w := get(t, h, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, []string{"nightly"}, status.Jobs)
	require.Len(t, status.Databases, 1)
	assert.True(t, status.Databases[0].Healthy)
	require.NotNil(t, status.Databases[0].Stats)
	assert.Greater(t, status.Databases[0].Stats.PageSize, int64(0))
	assert.Greater(t, status.Goroutines, 0)
}

func TestRunJob(t *testing.T) {
	sched := scheduler.New(zerolog.Nop())
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	require.NoError(t, sched.AddJob("@hourly", ok))
	require.NoError(t, sched.AddJob("@hourly", failing))
	h := newTestServer(t, Config{Scheduler: sched})

	tests := []struct {
		name       string
		job        string
		wantStatus int
	}{
		{name: "success", job: "ok", wantStatus: http.StatusOK},
		{name: "failure", job: "failing", wantStatus: http.StatusInternalServerError},
		{name: "unknown", job: "missing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, http.MethodPost, "/api/system/jobs/"+tt.job+"/run")
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, int32(1), ok.runs.Load())

	w := get(t, h, http.MethodGet, "/api/system/jobs")
	var listed struct {
		Jobs  []string `json:"jobs"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, []string{"failing", "ok"}, listed.Jobs)
}

func TestRunJob_NoScheduler(t *testing.T) {
	h := newTestServer(t, Config{})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, http.MethodPost, "/api/system/jobs/ok/run").Code)
}
