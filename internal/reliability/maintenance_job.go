package reliability

import (
	"fmt"
	"time"

	"github.com/aristath/riskengine/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds in gigabytes.
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

// MaintenanceJob checks free disk space and vacuums the databases.
type MaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(databases []*database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job. Critically low disk space fails the job before
// any database is rewritten.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := j.vacuumDatabase(db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	freeGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("free_gb", freeGB).Float64("used_percent", usage.UsedPercent).Msg("Disk space check")

	if freeGB < criticalFreeGB {
		j.log.Error().Float64("free_gb", freeGB).Msg("Insufficient disk space for maintenance")
		return fmt.Errorf("only %.2f GB free", freeGB)
	}
	if freeGB < lowFreeGB {
		j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space running low")
	}
	return nil
}

func (j *MaintenanceJob) vacuumDatabase(db *database.DB) error {
	sizeBefore, err := pageBytes(db)
	if err != nil {
		return err
	}
	if _, err := db.Conn().Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}
	sizeAfter, err := pageBytes(db)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", db.Name()).
		Int64("size_before_bytes", sizeBefore).
		Int64("size_after_bytes", sizeAfter).
		Msg("VACUUM completed")
	return nil
}

func pageBytes(db *database.DB) (int64, error) {
	var pageCount, pageSize int64
	if err := db.Conn().QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	if err := db.Conn().QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to read page size: %w", err)
	}
	return pageCount * pageSize, nil
}
