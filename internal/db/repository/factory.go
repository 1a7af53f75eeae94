package repository

import (
	"github.com/wattflow/backend/internal/utils"
	"gorm.io/gorm"
)

// Factory provides access to all repositories
type Factory struct {
	db     *gorm.DB
	logger *utils.Logger

	userRepo         *UserRepository
	subscriptionRepo *SubscriptionRepository
	deviceRepo       *DeviceRepository
	telemetryRepo    *TelemetryRepository
	alertRepo        *AlertRepository
	reportRepo       *ReportRepository
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB, logger *utils.Logger) *Factory {
	return &Factory{
		db:     db,
		logger: logger,
	}
}

// User returns the user repository
func (f *Factory) User() *UserRepository {
	if f.userRepo == nil {
		f.userRepo = NewUserRepository(f.db, f.logger)
	}
	return f.userRepo
}

// Subscription returns the subscription repository
func (f *Factory) Subscription() *SubscriptionRepository {
	if f.subscriptionRepo == nil {
		f.subscriptionRepo = NewSubscriptionRepository(f.db, f.logger)
	}
	return f.subscriptionRepo
}

// Device returns the device repository
func (f *Factory) Device() *DeviceRepository {
	if f.deviceRepo == nil {
		f.deviceRepo = NewDeviceRepository(f.db, f.logger)
	}
	return f.deviceRepo
}

// Telemetry returns the telemetry repository
func (f *Factory) Telemetry() *TelemetryRepository {
	if f.telemetryRepo == nil {
		f.telemetryRepo = NewTelemetryRepository(f.db, f.logger)
	}
	return f.telemetryRepo
}

// Alert returns the alert repository
func (f *Factory) Alert() *AlertRepository {
	if f.alertRepo == nil {
		f.alertRepo = NewAlertRepository(f.db, f.logger)
	}
	return f.alertRepo
}

// Report returns the report repository
func (f *Factory) Report() *ReportRepository {
	if f.reportRepo == nil {
		f.reportRepo = NewReportRepository(f.db, f.logger)
	}
	return f.reportRepo
}
