package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/riskengine/internal/database"
	"github.com/aristath/riskengine/internal/scheduler"
)

// SystemHandlers serves process, database and job endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	version   string
	databases []*database.DB
	scheduler *scheduler.Scheduler
	startTime time.Time
}

// NewSystemHandlers creates a new system handlers instance. scheduler may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	version string,
	databases []*database.DB,
	sched *scheduler.Scheduler,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("service", "system").Logger(),
		version:   version,
		databases: databases,
		scheduler: sched,
		startTime: time.Now(),
	}
}

// DatabaseStatus reports one database
type DatabaseStatus struct {
	Name    string          `json:"name"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	Goroutines    int              `json:"goroutines"`
	Databases     []DatabaseStatus `json:"databases"`
	Jobs          []string         `json:"jobs"`
}

// HandleSystemStatus returns process and database status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Databases:     make([]DatabaseStatus, 0, len(h.databases)),
		Jobs:          []string{},
	}

	for _, db := range h.databases {
		status := DatabaseStatus{Name: db.Name(), Healthy: true}
		if err := db.HealthCheck(r.Context()); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			response.Status = "degraded"
		} else if stats, err := db.GetStats(); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		} else {
			status.Stats = stats
		}
		response.Databases = append(response.Databases, status)
	}

	if h.scheduler != nil {
		response.Jobs = h.scheduler.JobNames()
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListJobs lists the registered background jobs
// GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []string{}
	if h.scheduler != nil {
		jobs = h.scheduler.JobNames()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandleRunJob runs a registered job immediately
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request, name string) {
	if h.scheduler == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Scheduler not running",
		})
		return
	}

	start := time.Now()
	if err := h.scheduler.RunByName(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"job":         name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// checkDatabases pings every database and runs its integrity check.
func (h *SystemHandlers) checkDatabases(ctx context.Context) error {
	for _, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) so the status call does not block for long
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
