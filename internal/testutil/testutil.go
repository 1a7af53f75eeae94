// Package testutil provides shared helpers for package tests: an
// isolated in-memory database with the full schema, and identity
// fixtures.
package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB creates an isolated in-memory database with the full schema
// migrated. Each test gets its own database, named after the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open in-memory database")

	err = gdb.AutoMigrate(
		&models.Subscription{},
		&models.User{},
		&models.Device{},
		&models.Metric{},
		&models.TelemetryPoint{},
		&models.AlertRule{},
		&models.TriggeredAlert{},
		&models.Report{},
	)
	require.NoError(t, err, "failed to migrate schema")

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return gdb
}

// NewLogger returns a logger that discards all output
func NewLogger() *utils.Logger {
	return utils.NewNopLogger()
}

// AdminClaims returns claims for an admin user
func AdminClaims(userID uint) *models.UserClaims {
	return &models.UserClaims{UserID: userID, Role: models.RoleAdmin}
}

// ViewerClaims returns claims for a viewer scoped to one subscription
func ViewerClaims(userID, subscriptionID uint) *models.UserClaims {
	return &models.UserClaims{
		UserID:         userID,
		Role:           models.RoleViewer,
		SubscriptionID: &subscriptionID,
	}
}

// ManagerClaims returns claims for a manager scoped to one subscription
func ManagerClaims(userID, subscriptionID uint) *models.UserClaims {
	return &models.UserClaims{
		UserID:         userID,
		Role:           models.RoleManager,
		SubscriptionID: &subscriptionID,
	}
}

// SeedSubscription creates a subscription with the given energy cost
func SeedSubscription(t *testing.T, gdb *gorm.DB, name string, energyCost float64) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{Name: name, EnergyCost: energyCost, Currency: "EUR"}
	require.NoError(t, gdb.Create(sub).Error)
	return sub
}

// SeedDevice creates a device with energy and power metrics declared
func SeedDevice(t *testing.T, gdb *gorm.DB, subscriptionID uint, externalID string) *models.Device {
	t.Helper()
	device := &models.Device{
		ExternalID:     externalID,
		Name:           "Meter " + externalID,
		Type:           models.DeviceTypeMono,
		SubscriptionID: subscriptionID,
		Metrics: []models.Metric{
			{Name: "Energy", Accessor: models.AccessorEnergy, Unit: "kWh"},
			{Name: "Power", Accessor: models.AccessorPower, Unit: "W"},
		},
	}
	require.NoError(t, gdb.Create(device).Error)
	return device
}

// SeedUser creates a user with the given role and subscription
func SeedUser(t *testing.T, gdb *gorm.DB, email string, role models.Role, subscriptionID *uint) *models.User {
	t.Helper()
	user := &models.User{
		Email:          email,
		Password:       "test-password-123",
		Role:           role,
		SubscriptionID: subscriptionID,
	}
	require.NoError(t, gdb.Create(user).Error)
	return user
}
