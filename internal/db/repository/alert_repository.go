package repository

import (
	"context"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AlertRepository handles database operations for alert rules and their
// trigger records.
type AlertRepository struct {
	BaseRepository
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB, logger *utils.Logger) *AlertRepository {
	return &AlertRepository{
		BaseRepository: NewBaseRepository(db, logger.Named("alert_repository")),
	}
}

// Create persists a new alert rule.
func (r *AlertRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	err := r.DB(ctx).Create(rule).Error
	return r.handleError(err, "failed to create alert rule",
		zap.Uint("device_id", rule.DeviceID))
}

// GetByID retrieves one alert rule.
func (r *AlertRepository) GetByID(ctx context.Context, id uint) (*models.AlertRule, error) {
	var rule models.AlertRule
	err := r.DB(ctx).First(&rule, id).Error
	if err != nil {
		return nil, r.handleError(err, "failed to get alert rule", zap.Uint("id", id))
	}
	return &rule, nil
}

// ListByDevice returns all rules watching one device.
func (r *AlertRepository) ListByDevice(ctx context.Context, deviceID uint) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := r.DB(ctx).Where("device_id = ?", deviceID).Find(&rules).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list alert rules",
			zap.Uint("device_id", deviceID))
	}
	return rules, nil
}

// ListByUser returns all rules owned by one user.
func (r *AlertRepository) ListByUser(ctx context.Context, userID uint) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := r.DB(ctx).Where("user_id = ?", userID).Find(&rules).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list alert rules by user",
			zap.Uint("user_id", userID))
	}
	return rules, nil
}

// Delete removes an alert rule.
func (r *AlertRepository) Delete(ctx context.Context, id uint) error {
	result := r.DB(ctx).Delete(&models.AlertRule{}, id)
	if result.Error != nil {
		return r.handleError(result.Error, "failed to delete alert rule", zap.Uint("id", id))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTriggered records one rule firing.
func (r *AlertRepository) CreateTriggered(ctx context.Context, triggered *models.TriggeredAlert) error {
	err := r.DB(ctx).Create(triggered).Error
	return r.handleError(err, "failed to record triggered alert",
		zap.Uint("alert_rule_id", triggered.AlertRuleID))
}

// ListTriggeredByRule returns the firing history of one rule, most
// recent first.
func (r *AlertRepository) ListTriggeredByRule(ctx context.Context, ruleID uint) ([]models.TriggeredAlert, error) {
	var triggered []models.TriggeredAlert
	err := r.DB(ctx).Where("alert_rule_id = ?", ruleID).Order("created_at DESC").Find(&triggered).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list triggered alerts",
			zap.Uint("alert_rule_id", ruleID))
	}
	return triggered, nil
}

// IncrementTriggerCount bumps the rule's trigger counter atomically in
// the database so concurrent evaluations never lose an increment.
func (r *AlertRepository) IncrementTriggerCount(ctx context.Context, ruleID uint) error {
	result := r.DB(ctx).Model(&models.AlertRule{}).Where("id = ?", ruleID).
		Update("trigger_count", gorm.Expr("trigger_count + ?", 1))
	if result.Error != nil {
		return r.handleError(result.Error, "failed to increment trigger count",
			zap.Uint("alert_rule_id", ruleID))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
