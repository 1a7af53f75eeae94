package repository

import (
	"context"
	"time"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DeviceRepository handles database operations for devices and their
// declared metrics.
type DeviceRepository struct {
	BaseRepository
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *gorm.DB, logger *utils.Logger) *DeviceRepository {
	return &DeviceRepository{
		BaseRepository: NewBaseRepository(db, logger.Named("device_repository")),
	}
}

// Create persists a new device together with its declared metrics.
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	err := r.DB(ctx).Create(device).Error
	return r.handleError(err, "failed to create device",
		zap.String("external_id", device.ExternalID))
}

// GetByID retrieves a device by its numeric ID, with declared metrics.
func (r *DeviceRepository) GetByID(ctx context.Context, id uint) (*models.Device, error) {
	var device models.Device
	err := r.DB(ctx).Preload("Metrics").First(&device, id).Error
	if err != nil {
		return nil, r.handleError(err, "failed to get device", zap.Uint("id", id))
	}
	return &device, nil
}

// GetByExternalID retrieves a device by the identifier it reports on the
// wire, with declared metrics.
func (r *DeviceRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Device, error) {
	var device models.Device
	err := r.DB(ctx).Preload("Metrics").Where("external_id = ?", externalID).First(&device).Error
	if err != nil {
		return nil, r.handleError(err, "failed to get device by external id",
			zap.String("external_id", externalID))
	}
	return &device, nil
}

// ListBySubscription returns all devices of one subscription.
func (r *DeviceRepository) ListBySubscription(ctx context.Context, subscriptionID uint) ([]models.Device, error) {
	var devices []models.Device
	err := r.DB(ctx).Preload("Metrics").Where("subscription_id = ?", subscriptionID).Find(&devices).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list devices",
			zap.Uint("subscription_id", subscriptionID))
	}
	return devices, nil
}

// ListAll returns every device across subscriptions.
func (r *DeviceRepository) ListAll(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	err := r.DB(ctx).Preload("Metrics").Find(&devices).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list all devices")
	}
	return devices, nil
}

// Update saves changed device fields.
func (r *DeviceRepository) Update(ctx context.Context, device *models.Device) error {
	err := r.DB(ctx).Save(device).Error
	return r.handleError(err, "failed to update device", zap.Uint("id", device.ID))
}

// SetBlocked flips the blocked flag of a device.
func (r *DeviceRepository) SetBlocked(ctx context.Context, id uint, blocked bool) error {
	result := r.DB(ctx).Model(&models.Device{}).Where("id = ?", id).Update("blocked", blocked)
	if result.Error != nil {
		return r.handleError(result.Error, "failed to set device blocked", zap.Uint("id", id))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes a device.
func (r *DeviceRepository) Delete(ctx context.Context, id uint) error {
	result := r.DB(ctx).Delete(&models.Device{}, id)
	if result.Error != nil {
		return r.handleError(result.Error, "failed to delete device", zap.Uint("id", id))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyNotification updates, in one transaction, the latest value and
// timestamp of each declared metric present in the payload, plus the
// denormalized power/energy snapshot fields on the device row. Payload
// fields without a declared metric are skipped.
func (r *DeviceRepository) ApplyNotification(ctx context.Context, device *models.Device, values map[string]float64, at time.Time) error {
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		deviceUpdates := map[string]interface{}{}
		for i := range device.Metrics {
			m := &device.Metrics[i]
			v, ok := values[m.Accessor]
			if !ok {
				continue
			}
			if err := tx.Model(&models.Metric{}).Where("id = ?", m.ID).
				Updates(map[string]interface{}{
					"latest_value": v,
					"latest_time":  at,
				}).Error; err != nil {
				return err
			}
			switch m.Accessor {
			case models.AccessorPower:
				deviceUpdates["power"] = v
			case models.AccessorEnergy:
				deviceUpdates["energy"] = v
			}
		}
		if len(deviceUpdates) > 0 {
			if err := tx.Model(&models.Device{}).Where("id = ?", device.ID).
				Updates(deviceUpdates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return r.handleError(err, "failed to apply notification",
		zap.Uint("device_id", device.ID))
}
