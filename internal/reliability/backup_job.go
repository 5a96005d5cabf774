package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const backupTimeout = 10 * time.Minute

// BackupJob uploads a backup and rotates old ones.
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "cloud_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "cloud_backup"
}

// Run creates and uploads a backup, then rotates. A rotation failure is logged
// because the new backup is already stored.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	archive, err := j.service.CreateAndUploadBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	deleted, err := j.service.RotateOldBackups(ctx, j.retentionDays)
	if err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().
		Str("archive", archive).
		Int("rotated", deleted).
		Msg("Cloud backup job completed")
	return nil
}
