package repository

import (
	"context"
	"time"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TelemetryRepository stores and queries append-only telemetry points.
type TelemetryRepository struct {
	BaseRepository
}

// NewTelemetryRepository creates a new telemetry repository
func NewTelemetryRepository(db *gorm.DB, logger *utils.Logger) *TelemetryRepository {
	return &TelemetryRepository{
		BaseRepository: NewBaseRepository(db, logger.Named("telemetry_repository")),
	}
}

// Append inserts a batch of points atomically. Points are never updated
// afterwards.
func (r *TelemetryRepository) Append(ctx context.Context, points []models.TelemetryPoint) error {
	if len(points) == 0 {
		return nil
	}
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(points, 500).Error
	})
	return r.handleError(err, "failed to append telemetry points",
		zap.Int("count", len(points)))
}

// QueryRange returns all points of one (subscription, device, metric)
// partition with time >= from and time < to, ordered ascending.
func (r *TelemetryRepository) QueryRange(ctx context.Context, subscriptionID, deviceID uint, metric string, from, to time.Time) ([]models.TelemetryPoint, error) {
	var points []models.TelemetryPoint
	err := r.DB(ctx).
		Where("subscription_id = ? AND device_id = ? AND metric = ?", subscriptionID, deviceID, metric).
		Where("time >= ? AND time < ?", from, to).
		Order("time ASC").
		Find(&points).Error
	if err != nil {
		return nil, r.handleError(err, "failed to query telemetry range",
			zap.Uint("device_id", deviceID),
			zap.String("metric", metric))
	}
	return points, nil
}

// QuerySince returns all points of one partition with time >= from,
// ordered ascending.
func (r *TelemetryRepository) QuerySince(ctx context.Context, subscriptionID, deviceID uint, metric string, from time.Time) ([]models.TelemetryPoint, error) {
	var points []models.TelemetryPoint
	err := r.DB(ctx).
		Where("subscription_id = ? AND device_id = ? AND metric = ?", subscriptionID, deviceID, metric).
		Where("time >= ?", from).
		Order("time ASC").
		Find(&points).Error
	if err != nil {
		return nil, r.handleError(err, "failed to query telemetry since",
			zap.Uint("device_id", deviceID),
			zap.String("metric", metric))
	}
	return points, nil
}

// LastBefore returns the most recent point of a partition strictly before
// the given instant, or ErrNotFound when the partition has no earlier data.
func (r *TelemetryRepository) LastBefore(ctx context.Context, subscriptionID, deviceID uint, metric string, before time.Time) (*models.TelemetryPoint, error) {
	var point models.TelemetryPoint
	err := r.DB(ctx).
		Where("subscription_id = ? AND device_id = ? AND metric = ?", subscriptionID, deviceID, metric).
		Where("time < ?", before).
		Order("time DESC").
		First(&point).Error
	if err != nil {
		return nil, r.handleError(err, "failed to query last point before",
			zap.Uint("device_id", deviceID),
			zap.String("metric", metric))
	}
	return &point, nil
}
