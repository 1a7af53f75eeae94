package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/jobs"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// DeviceService handles device registry management and lifecycle events
type DeviceService struct {
	repos  *repository.Factory
	live   *LiveService
	mail   MailEnqueuer
	logger *utils.Logger
}

// MailEnqueuer hands outbound mail to the mail topic.
type MailEnqueuer interface {
	ProduceMailJob(job kafka.MailJob) error
}

// NewDeviceService creates a new device service
func NewDeviceService(repos *repository.Factory, live *LiveService, mail MailEnqueuer, logger *utils.Logger) *DeviceService {
	return &DeviceService{
		repos:  repos,
		live:   live,
		mail:   mail,
		logger: logger.Named("device_service"),
	}
}

// Create registers a new device with its declared metrics.
func (s *DeviceService) Create(ctx context.Context, claims *models.UserClaims, device *models.Device) error {
	if !claims.Role.CanManageDevices() {
		return utils.ErrForbidden
	}
	if err := scopeSubscription(claims, device.SubscriptionID); err != nil {
		return err
	}
	switch device.Type {
	case models.DeviceTypePV, models.DeviceTypeTri, models.DeviceTypeMono:
	default:
		return fmt.Errorf("%w: unknown device type %q", utils.ErrValidation, device.Type)
	}
	if device.ExternalID == "" {
		return fmt.Errorf("%w: external id is required", utils.ErrValidation)
	}

	if err := s.repos.Device().Create(ctx, device); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return fmt.Errorf("%w: device %q already registered", utils.ErrAlreadyExists, device.ExternalID)
		}
		return utils.ErrInternalServer
	}
	return nil
}

// Get retrieves a device, enforcing subscription scope.
func (s *DeviceService) Get(ctx context.Context, claims *models.UserClaims, id uint) (*models.Device, error) {
	device, err := s.repos.Device().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, utils.ErrInternalServer
	}
	if err := scopeSubscription(claims, device.SubscriptionID); err != nil {
		return nil, err
	}
	return device, nil
}

// List returns the devices visible to the caller: every device for
// admins, the caller's subscription otherwise.
func (s *DeviceService) List(ctx context.Context, claims *models.UserClaims) ([]models.Device, error) {
	if claims.Role.CanSeeAllSubscriptions() {
		devices, err := s.repos.Device().ListAll(ctx)
		if err != nil {
			return nil, utils.ErrInternalServer
		}
		return devices, nil
	}
	if claims.SubscriptionID == nil {
		return []models.Device{}, nil
	}
	devices, err := s.repos.Device().ListBySubscription(ctx, *claims.SubscriptionID)
	if err != nil {
		return nil, utils.ErrInternalServer
	}
	return devices, nil
}

// SetBlocked blocks or unblocks a device. Blocked devices have their
// notifications dropped at ingestion.
func (s *DeviceService) SetBlocked(ctx context.Context, claims *models.UserClaims, id uint, blocked bool) error {
	if !claims.Role.CanManageDevices() {
		return utils.ErrForbidden
	}
	if _, err := s.Get(ctx, claims, id); err != nil {
		return err
	}
	if err := s.repos.Device().SetBlocked(ctx, id, blocked); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrNotFound
		}
		return utils.ErrInternalServer
	}
	return nil
}

// Delete removes a device from the registry.
func (s *DeviceService) Delete(ctx context.Context, claims *models.UserClaims, id uint) error {
	if !claims.Role.CanManageDevices() {
		return utils.ErrForbidden
	}
	if _, err := s.Get(ctx, claims, id); err != nil {
		return err
	}
	if err := s.repos.Device().Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrNotFound
		}
		return utils.ErrInternalServer
	}
	return nil
}

// HandleLifecycle reacts to a device connectivity transition: it pushes
// the event to live clients and mails the admins on failures.
func (s *DeviceService) HandleLifecycle(ctx context.Context, externalID string, event kafka.LifecycleEvent, at time.Time) error {
	device, err := s.repos.Device().GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("lifecycle event for unknown device",
				zap.String("device", externalID), zap.String("event", string(event)))
			return nil
		}
		return err
	}

	s.live.PublishLifecycle(device, event, at)

	// Failures are worth an admin mail; routine transitions are not.
	if event != kafka.LifecycleAuthFailed && event != kafka.LifecycleConnectionLost {
		return nil
	}

	admins, err := s.repos.User().ListAdmins(ctx)
	if err != nil {
		s.logger.Error("failed to list admins for lifecycle mail", zap.Error(err))
		return nil
	}
	var recipients []string
	for i := range admins {
		recipients = append(recipients, admins[i].Email)
	}
	if len(recipients) == 0 {
		return nil
	}

	if err := s.mail.ProduceMailJob(kafka.MailJob{
		Template: jobs.MailTemplateDeviceLifecycle,
		To:       recipients,
		Data: map[string]interface{}{
			"device": device.ExternalID,
			"name":   device.Name,
			"event":  string(event),
			"time":   at,
		},
	}); err != nil {
		s.logger.Error("failed to enqueue lifecycle mail", zap.Error(err))
	}
	return nil
}

// scopeSubscription rejects access to another tenant's data unless the
// caller may see every subscription.
func scopeSubscription(claims *models.UserClaims, subscriptionID uint) error {
	if claims.Role.CanSeeAllSubscriptions() {
		return nil
	}
	if claims.SubscriptionID != nil && *claims.SubscriptionID == subscriptionID {
		return nil
	}
	return utils.ErrForbidden
}
