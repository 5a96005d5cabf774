package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	cache := buildConnectionString("/data/cache.db", ProfileCache)
	assert.Contains(t, cache, "/data/cache.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, cache, "synchronous(OFF)")

	standard := buildConnectionString("file:test?mode=memory", ProfileStandard)
	assert.Contains(t, standard, "file:test?mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, standard, "synchronous(NORMAL)")
}

func TestMigrate_CreatesTables(t *testing.T) {
	tests := []struct {
		name    string
		profile DatabaseProfile
		tables  []string
	}{
		{name: NameCache, profile: ProfileCache, tables: []string{"results"}},
		{name: NameHistory, profile: ProfileStandard, tables: []string{"daily_prices", "payments"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t, tt.name, tt.profile)
			require.NoError(t, db.Migrate())
			// Migrations are idempotent.
			require.NoError(t, db.Migrate())

			for _, table := range tt.tables {
				var name string
				err := db.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
				require.NoError(t, err)
				assert.Equal(t, table, name)
			}
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, NameHistory, ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO payments (ticker, date, amount, created_at) VALUES ('AAA', 1, 1.5, 0)")
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM payments").Scan(&count))
	assert.Equal(t, 0, count)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO payments (ticker, date, amount, created_at) VALUES ('AAA', 1, 1.5, 0)")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM payments").Scan(&count))
	assert.Equal(t, 1, count)

	assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
}

func TestHealthCheckAndStats(t *testing.T) {
	db := newTestDB(t, NameCache, ProfileCache)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestSnapshot(t *testing.T) {
	db := newTestDB(t, NameHistory, ProfileStandard)
	require.NoError(t, db.Migrate())
	_, err := db.Conn().Exec("INSERT INTO payments (ticker, date, amount, created_at) VALUES ('AAA', 1, 1.5, 0)")
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.Snapshot(context.Background(), dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	copyDB, err := New(Config{Path: dest, Name: "copy"})
	require.NoError(t, err)
	defer copyDB.Close()

	var count int
	require.NoError(t, copyDB.Conn().QueryRow("SELECT COUNT(*) FROM payments").Scan(&count))
	assert.Equal(t, 1, count)
}
