// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. cache.db - Ephemeral results (risk profiles, correlations, optimization runs)
	cacheDB, err := openDatabase(cfg.DataDir, database.NameCache, database.ProfileCache)
	if err != nil {
		return nil, err
	}
	container.CacheDB = cacheDB

	// 2. history.db - Daily closes and payment histories
	historyDB, err := openDatabase(cfg.DataDir, database.NameHistory, database.ProfileStandard)
	if err != nil {
		cacheDB.Close()
		return nil, err
	}
	container.HistoryDB = historyDB

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func openDatabase(dataDir, name string, profile database.DatabaseProfile) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
