package di

import (
	"fmt"

	"github.com/aristath/riskengine/internal/clientdata"
	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/reliability"
	"github.com/aristath/riskengine/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed schedules (with seconds) for jobs that are not configurable.
const (
	checkDatabasesSchedule = "0 30 * * * *"   // hourly
	walCheckpointSchedule  = "0 */15 * * * *" // every 15 minutes
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the scheduler and registers every background job. The
// scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	sched := scheduler.New(log)
	dbs := container.Databases()

	jobs := []scheduledJob{
		{cfg.Cache.CleanupSchedule, clientdata.NewCleanupJob(container.ResultCache, log)},
		{checkDatabasesSchedule, scheduler.NewCheckDatabasesJob(log, dbs...)},
		{walCheckpointSchedule, scheduler.NewWALCheckpointJob(log, dbs...)},
		{cfg.MaintenanceSchedule, reliability.NewMaintenanceJob(dbs, cfg.DataDir, log)},
	}
	if container.BackupService != nil {
		jobs = append(jobs, scheduledJob{cfg.Backup.Schedule, reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)})
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", j.job.Name(), err)
		}
	}

	container.Scheduler = sched
	log.Info().Strs("jobs", sched.JobNames()).Msg("Jobs registered")
	return nil
}
