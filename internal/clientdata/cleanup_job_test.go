package clientdata

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJobName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db, time.Hour), zerolog.Nop())
	assert.Equal(t, "result_cache_cleanup", job.Name())
}

func TestCleanupJobRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, time.Hour)
	job := NewCleanupJob(repo, zerolog.Nop())

	require.NoError(t, repo.Put("fresh", 1))
	require.NoError(t, repo.Store("expired", 2, -time.Hour))

	require.NoError(t, job.Run())

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var v int
	found, err := repo.Get("fresh", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, v)
}

func TestCleanupJobRun_Error(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, time.Hour)
	job := NewCleanupJob(repo, zerolog.Nop())
	db.Close()

	assert.Error(t, job.Run())
}
