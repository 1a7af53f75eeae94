package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/utils"
)

// AlertService manages user alert rules
type AlertService struct {
	repos  *repository.Factory
	logger *utils.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(repos *repository.Factory, logger *utils.Logger) *AlertService {
	return &AlertService{
		repos:  repos,
		logger: logger.Named("alert_service"),
	}
}

// CreateRule validates and persists a new alert rule. The rule's
// accessor must be one of the device's declared metrics, and the device
// must be within the caller's subscription scope.
func (s *AlertService) CreateRule(ctx context.Context, claims *models.UserClaims, rule *models.AlertRule) error {
	if !rule.Condition.Valid() {
		return fmt.Errorf("%w: unknown condition %q", utils.ErrValidation, rule.Condition)
	}

	device, err := s.repos.Device().GetByID(ctx, rule.DeviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrNotFound
		}
		return utils.ErrInternalServer
	}
	if err := scopeSubscription(claims, device.SubscriptionID); err != nil {
		return err
	}
	if !device.HasAccessor(rule.Accessor) {
		return fmt.Errorf("%w: device %q declares no metric %q",
			utils.ErrValidation, device.ExternalID, rule.Accessor)
	}

	rule.UserID = claims.UserID
	rule.TriggerCount = 0

	if err := s.repos.Alert().Create(ctx, rule); err != nil {
		return utils.ErrInternalServer
	}
	return nil
}

// ListRules returns the caller's alert rules.
func (s *AlertService) ListRules(ctx context.Context, claims *models.UserClaims) ([]models.AlertRule, error) {
	rules, err := s.repos.Alert().ListByUser(ctx, claims.UserID)
	if err != nil {
		return nil, utils.ErrInternalServer
	}
	return rules, nil
}

// DeleteRule removes a rule. Only its owner or an admin may delete it.
func (s *AlertService) DeleteRule(ctx context.Context, claims *models.UserClaims, id uint) error {
	rule, err := s.repos.Alert().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrNotFound
		}
		return utils.ErrInternalServer
	}
	if rule.UserID != claims.UserID && !claims.Role.CanSeeAllSubscriptions() {
		return utils.ErrForbidden
	}
	if err := s.repos.Alert().Delete(ctx, id); err != nil {
		return utils.ErrInternalServer
	}
	return nil
}

// ListTriggered returns the firing history of one of the caller's rules.
func (s *AlertService) ListTriggered(ctx context.Context, claims *models.UserClaims, ruleID uint) ([]models.TriggeredAlert, error) {
	rule, err := s.repos.Alert().GetByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, utils.ErrInternalServer
	}
	if rule.UserID != claims.UserID && !claims.Role.CanSeeAllSubscriptions() {
		return nil, utils.ErrForbidden
	}

	triggered, err := s.repos.Alert().ListTriggeredByRule(ctx, ruleID)
	if err != nil {
		return nil, utils.ErrInternalServer
	}
	return triggered, nil
}
