package di

import (
	"context"
	"fmt"

	"github.com/aristath/riskengine/internal/config"
	cashflowhandlers "github.com/aristath/riskengine/internal/modules/cash_flows/handlers"
	historicalhandlers "github.com/aristath/riskengine/internal/modules/historical/handlers"
	"github.com/aristath/riskengine/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/riskengine/internal/modules/optimization/handlers"
	"github.com/aristath/riskengine/internal/modules/risk"
	riskhandlers "github.com/aristath/riskengine/internal/modules/risk/handlers"
	"github.com/aristath/riskengine/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the services and the HTTP handlers that expose them
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.RiskService = risk.NewService(
		container.PriceRepo,
		container.ResultCache,
		risk.FixedRate(cfg.Model.RiskFreeRate),
		risk.Config{AnalysisPeriod: cfg.Model.AnalysisPeriod},
		log,
	)
	container.Optimizer = optimization.NewOptimizer(optimization.Config{FrontierSteps: cfg.Model.FrontierSteps}, log)

	if cfg.Backup.Enabled {
		store, err := reliability.NewS3Client(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Region:          cfg.Backup.Region,
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(store, container.Databases(), cfg.DataDir, log)
	}

	container.RiskHandler = riskhandlers.NewHandler(container.RiskService, log)
	container.OptimizationHandler = optimizationhandlers.NewHandler(
		container.RiskService,
		container.Optimizer,
		container.PriceRepo,
		container.ResultCache,
		log,
	)
	container.CashflowHandler = cashflowhandlers.NewHandler(container.CashflowRepo, log)
	container.HistoricalHandler = historicalhandlers.NewHandler(container.PriceRepo, log)

	log.Debug().Bool("backups", container.BackupService != nil).Msg("Services initialized")
	return nil
}
