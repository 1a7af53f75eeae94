package services

import (
	"context"
	"fmt"

	"github.com/wattflow/backend/internal/aggregation"
	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/db"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/ingest"
	"github.com/wattflow/backend/internal/jobs"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/mqtt"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// ServiceProvider wires and manages all services for the application
type ServiceProvider struct {
	logger   *utils.Logger
	config   *config.Config
	database *db.Database

	repos           *repository.Factory
	kafkaManager    *kafka.Manager
	mqttBridge      *mqtt.Bridge
	liveService     *LiveService
	coordinator     *ingest.Coordinator
	busHandler      *BusHandler
	reportScheduler *jobs.ReportScheduler

	userService   *UserService
	deviceService *DeviceService
	dataService   *DataService
	alertService  *AlertService
	reportService *ReportService
}

// NewServiceProvider creates a new service provider
func NewServiceProvider(logger *utils.Logger, cfg *config.Config, database *db.Database) *ServiceProvider {
	return &ServiceProvider{
		logger:   logger.Named("services"),
		config:   cfg,
		database: database,
	}
}

// Initialize builds the full processing graph and starts the consumers.
func (sp *ServiceProvider) Initialize(ctx context.Context) error {
	var err error

	sp.repos = repository.NewFactory(sp.database.DB, sp.logger)

	sp.kafkaManager, err = kafka.NewManager(&sp.config.Kafka, sp.logger)
	if err != nil {
		return fmt.Errorf("failed to create Kafka manager: %w", err)
	}

	loc, err := sp.config.Aggregation.Location()
	if err != nil {
		return fmt.Errorf("failed to resolve aggregation timezone: %w", err)
	}
	engine := aggregation.NewEngine(loc)

	sp.liveService = NewLiveService(sp.logger)
	enqueuer := NewQueueEnqueuer(sp.kafkaManager)

	sp.userService = NewUserService(sp.repos, &sp.config.JWT, sp.logger)
	sp.deviceService = NewDeviceService(sp.repos, sp.liveService, enqueuer, sp.logger)
	sp.dataService = NewDataService(sp.repos, engine, &sp.config.Aggregation, sp.logger)
	sp.alertService = NewAlertService(sp.repos, sp.logger)
	sp.reportService = NewReportService(sp.repos, sp.logger)

	sp.coordinator = ingest.NewCoordinator(
		sp.repos.Device(),
		sp.repos.Telemetry(),
		sp.liveService,
		enqueuer,
		sp.logger,
	)

	alertProcessor := jobs.NewAlertProcessor(sp.repos, sp.liveService, enqueuer, sp.logger)
	mailProcessor := jobs.NewMailProcessor(jobs.NewLogMailer(sp.logger), sp.logger)

	sp.busHandler = NewBusHandler(
		sp.logger,
		sp.kafkaManager,
		sp.coordinator,
		sp.deviceService,
		alertProcessor,
		mailProcessor,
	)
	if err = sp.busHandler.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize bus handlers: %w", err)
	}

	if err = sp.kafkaManager.Start(); err != nil {
		return fmt.Errorf("failed to start Kafka manager: %w", err)
	}
	sp.logger.Info("Kafka manager started")

	sp.mqttBridge = mqtt.NewBridge(&sp.config.MQTT, sp.kafkaManager, sp.logger)
	if err = sp.mqttBridge.Connect(); err != nil {
		return fmt.Errorf("failed to connect MQTT bridge: %w", err)
	}
	sp.logger.Info("MQTT bridge connected")

	sp.reportScheduler = jobs.NewReportScheduler(sp.repos, enqueuer, sp.liveService, &sp.config.Reports, loc, sp.logger)
	sp.reportScheduler.Start(ctx)

	sp.logger.Info("All services initialized successfully")
	return nil
}

// Shutdown performs a graceful shutdown of all services
func (sp *ServiceProvider) Shutdown() error {
	sp.logger.Info("Shutting down services")

	if sp.reportScheduler != nil {
		sp.reportScheduler.Stop()
	}

	if sp.mqttBridge != nil {
		sp.mqttBridge.Close()
	}

	if sp.kafkaManager != nil && sp.kafkaManager.IsRunning() {
		if err := sp.kafkaManager.Stop(); err != nil {
			sp.logger.Error("Failed to stop Kafka manager", zap.Error(err))
		}
	}

	sp.logger.Info("Services shut down successfully")
	return nil
}

// GetKafkaManager returns the Kafka manager
func (sp *ServiceProvider) GetKafkaManager() *kafka.Manager {
	return sp.kafkaManager
}

// GetLiveService returns the live push service
func (sp *ServiceProvider) GetLiveService() *LiveService {
	return sp.liveService
}

// GetUserService returns the user service
func (sp *ServiceProvider) GetUserService() *UserService {
	return sp.userService
}

// GetDeviceService returns the device service
func (sp *ServiceProvider) GetDeviceService() *DeviceService {
	return sp.deviceService
}

// GetDataService returns the data service
func (sp *ServiceProvider) GetDataService() *DataService {
	return sp.dataService
}

// GetAlertService returns the alert service
func (sp *ServiceProvider) GetAlertService() *AlertService {
	return sp.alertService
}

// GetReportService returns the report service
func (sp *ServiceProvider) GetReportService() *ReportService {
	return sp.reportService
}
