package di

import (
	"github.com/aristath/riskengine/internal/clientdata"
	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/cash_flows"
	"github.com/aristath/riskengine/internal/modules/historical"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the data access layer over the open databases
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Result cache (cache.db), entries expire after the configured TTL
	container.ResultCache = clientdata.NewRepository(container.CacheDB.Conn(), cfg.Cache.TTL)

	// Price and payment histories (history.db)
	container.PriceRepo = historical.NewRepository(container.HistoryDB.Conn(), log)
	container.CashflowRepo = cash_flows.NewRepository(container.HistoryDB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
