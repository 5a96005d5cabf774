/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is created by Wire and handed to the server, which mounts the
 * module handlers it carries.
 */
package di

import (
	"github.com/aristath/riskengine/internal/clientdata"
	"github.com/aristath/riskengine/internal/database"
	"github.com/aristath/riskengine/internal/modules/cash_flows"
	cashflowhandlers "github.com/aristath/riskengine/internal/modules/cash_flows/handlers"
	"github.com/aristath/riskengine/internal/modules/historical"
	historicalhandlers "github.com/aristath/riskengine/internal/modules/historical/handlers"
	"github.com/aristath/riskengine/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/riskengine/internal/modules/optimization/handlers"
	"github.com/aristath/riskengine/internal/modules/risk"
	riskhandlers "github.com/aristath/riskengine/internal/modules/risk/handlers"
	"github.com/aristath/riskengine/internal/reliability"
	"github.com/aristath/riskengine/internal/scheduler"
	"github.com/aristath/riskengine/internal/server"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: cache.db (ephemeral results) and history.db (prices, payments)
 * - Repositories: result cache, price history, payment history
 * - Services: risk estimation and the optimizer
 * - Handlers: one per HTTP module
 * - Scheduler: maintenance and backup jobs
 */
type Container struct {
	// Databases
	CacheDB   *database.DB
	HistoryDB *database.DB

	// Repositories
	ResultCache  *clientdata.Repository
	PriceRepo    *historical.Repository
	CashflowRepo *cash_flows.Repository

	// Services
	RiskService   *risk.Service
	Optimizer     *optimization.Optimizer
	BackupService *reliability.BackupService // nil when backups are disabled

	// Handlers
	RiskHandler         *riskhandlers.Handler
	OptimizationHandler *optimizationhandlers.Handler
	CashflowHandler     *cashflowhandlers.Handler
	HistoricalHandler   *historicalhandlers.Handler

	Scheduler *scheduler.Scheduler
}

// Databases returns every open database, cache first.
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.CacheDB, c.HistoryDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Modules returns the route registrars to mount under /api.
func (c *Container) Modules() []server.RouteRegistrar {
	return []server.RouteRegistrar{
		c.RiskHandler,
		c.OptimizationHandler,
		c.CashflowHandler,
		c.HistoricalHandler,
	}
}

// Close closes all databases. The scheduler must be stopped first.
func (c *Container) Close() error {
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
