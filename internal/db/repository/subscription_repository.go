package repository

import (
	"context"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubscriptionRepository handles database operations for subscriptions
type SubscriptionRepository struct {
	BaseRepository
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *utils.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		BaseRepository: NewBaseRepository(db, logger.Named("subscription_repository")),
	}
}

// Create persists a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	err := r.DB(ctx).Create(sub).Error
	return r.handleError(err, "failed to create subscription", zap.String("name", sub.Name))
}

// GetByID retrieves a subscription by ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.DB(ctx).First(&sub, id).Error
	if err != nil {
		return nil, r.handleError(err, "failed to get subscription", zap.Uint("id", id))
	}
	return &sub, nil
}

// ListAll returns every subscription.
func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.DB(ctx).Find(&subs).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list subscriptions")
	}
	return subs, nil
}

// Update saves changed subscription fields.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *models.Subscription) error {
	err := r.DB(ctx).Save(sub).Error
	return r.handleError(err, "failed to update subscription", zap.Uint("id", sub.ID))
}

// Delete soft-deletes a subscription.
func (r *SubscriptionRepository) Delete(ctx context.Context, id uint) error {
	result := r.DB(ctx).Delete(&models.Subscription{}, id)
	if result.Error != nil {
		return r.handleError(result.Error, "failed to delete subscription", zap.Uint("id", id))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
