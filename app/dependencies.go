package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/config"
	"github.com/corebanking/pipeline-audit/handlers"
	"github.com/corebanking/pipeline-audit/repositories"
	"github.com/corebanking/pipeline-audit/repositories/postgres"
	"github.com/corebanking/pipeline-audit/services/discrepancy"
	"github.com/corebanking/pipeline-audit/services/reconciliation"
	"github.com/corebanking/pipeline-audit/services/statistics"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Event store gateway
	EventStore repositories.EventStore

	// Engine services
	Statistics *statistics.Service
	Detector   *discrepancy.Detector
	Reconciler *reconciliation.Service

	// Handlers
	EventHandler          *handlers.EventHandler
	StatisticsHandler     *handlers.StatisticsHandler
	DiscrepancyHandler    *handlers.DiscrepancyHandler
	ReconciliationHandler *handlers.ReconciliationHandler
	HealthHandler         *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	db, err := postgres.NewDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = db

	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	deps.EventStore = postgres.NewEventRepository(db, logger)

	deps.Statistics = statistics.NewService(logger)
	deps.Detector = discrepancy.NewDetector(cfg.Reconciliation, logger)
	deps.Reconciler = reconciliation.NewService(deps.EventStore, deps.Detector, logger)

	deps.EventHandler = handlers.NewEventHandler(deps.EventStore, logger)
	deps.StatisticsHandler = handlers.NewStatisticsHandler(deps.EventStore, deps.Statistics, logger)
	deps.DiscrepancyHandler = handlers.NewDiscrepancyHandler(deps.EventStore, deps.Detector, logger)
	deps.ReconciliationHandler = handlers.NewReconciliationHandler(deps.Reconciler, logger)
	deps.HealthHandler = handlers.NewHealthHandler(db, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
