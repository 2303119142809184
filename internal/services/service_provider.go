package services

import (
	"context"
	"fmt"

	"github.com/farmpulse/backend/internal/bus"
	"github.com/farmpulse/backend/internal/config"
	"github.com/farmpulse/backend/internal/db"
	"github.com/farmpulse/backend/internal/db/repository"
	"github.com/farmpulse/backend/internal/kafka"
	"github.com/farmpulse/backend/internal/live"
	"github.com/farmpulse/backend/internal/rules"
	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// ServiceProvider wires and manages all services for the application
type ServiceProvider struct {
	logger   *utils.Logger
	config   *config.Config
	database *db.Database

	eventBus       *bus.Bus
	engine         *rules.Engine
	liveManager    *live.Manager
	kafkaManager   *kafka.Manager
	ingestService  *IngestService
	historyService *HistoryService
	ruleService    *RuleService
}

// NewServiceProvider creates a new service provider
func NewServiceProvider(
	logger *utils.Logger,
	config *config.Config,
	database *db.Database,
) *ServiceProvider {
	return &ServiceProvider{
		logger:   logger.Named("services"),
		config:   config,
		database: database,
	}
}

// Initialize wires the pipeline: bus, engine, live manager, ingestion, and
// the optional Kafka transport
func (sp *ServiceProvider) Initialize(ctx context.Context) error {
	sp.eventBus = bus.New(sp.logger)
	sp.engine = rules.NewEngine(sp.logger)

	sp.liveManager = live.NewManager(&sp.config.Live, sp.eventBus, sp.logger)
	sp.liveManager.Start(ctx)
	sp.logger.Info("Live channel manager initialized")

	sp.ruleService = NewRuleService(sp.database, sp.engine, sp.logger)
	if err := sp.ruleService.ReloadEngine(); err != nil {
		return fmt.Errorf("failed to load rule configuration: %w", err)
	}

	sp.historyService = NewHistoryService(sp.database, sp.engine, sp.logger)

	var producer AlertProducer
	if sp.config.Kafka.Enabled {
		kafkaManager, err := kafka.NewManager(&sp.config.Kafka, sp.logger)
		if err != nil {
			return fmt.Errorf("failed to create Kafka manager: %w", err)
		}
		sp.kafkaManager = kafkaManager
		producer = kafkaManager.Producer()
	}

	repoFactory := repository.NewRepositoryFactory(sp.database.DB)
	ingestService, err := NewIngestService(
		&sp.config.Ingest,
		repoFactory,
		sp.engine,
		sp.eventBus,
		producer,
		sp.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create ingest service: %w", err)
	}
	sp.ingestService = ingestService

	if sp.kafkaManager != nil {
		sp.kafkaManager.RegisterReadingHandler(func(ctx context.Context, payload []byte) error {
			_, err := sp.ingestService.Ingest(ctx, payload)
			if utils.IsValidationError(err) {
				// A malformed broker message is logged, not retried.
				sp.logger.Warn("Rejected reading from broker", zap.Error(err))
				return nil
			}
			return err
		})

		if err := sp.kafkaManager.Start(); err != nil {
			return fmt.Errorf("failed to start Kafka manager: %w", err)
		}
		sp.logger.Info("Kafka manager started")
	}

	sp.logger.Info("All services initialized successfully")
	return nil
}

// Shutdown performs a graceful shutdown of all services
func (sp *ServiceProvider) Shutdown() error {
	sp.logger.Info("Shutting down services")

	if sp.kafkaManager != nil && sp.kafkaManager.IsRunning() {
		if err := sp.kafkaManager.Stop(); err != nil {
			sp.logger.Error("Failed to stop Kafka manager", zap.Error(err))
		}
	}

	if sp.liveManager != nil {
		sp.liveManager.Stop()
	}

	sp.logger.Info("Services shut down successfully")
	return nil
}

// GetIngestService returns the ingest service
func (sp *ServiceProvider) GetIngestService() *IngestService {
	return sp.ingestService
}

// GetHistoryService returns the history service
func (sp *ServiceProvider) GetHistoryService() *HistoryService {
	return sp.historyService
}

// GetRuleService returns the rule service
func (sp *ServiceProvider) GetRuleService() *RuleService {
	return sp.ruleService
}

// GetLiveManager returns the live channel manager
func (sp *ServiceProvider) GetLiveManager() *live.Manager {
	return sp.liveManager
}

// GetEventBus returns the event bus
func (sp *ServiceProvider) GetEventBus() *bus.Bus {
	return sp.eventBus
}
