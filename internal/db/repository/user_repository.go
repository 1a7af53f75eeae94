package repository

import (
	"context"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserRepository handles database operations for users
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB, logger *utils.Logger) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db, logger.Named("user_repository")),
	}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.DB(ctx).Create(user).Error
	return r.handleError(err, "failed to create user", zap.String("email", user.Email))
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.DB(ctx).First(&user, id).Error
	if err != nil {
		return nil, r.handleError(err, "failed to get user", zap.Uint("id", id))
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.DB(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, r.handleError(err, "failed to get user by email", zap.String("email", email))
	}
	return &user, nil
}

// ListBySubscription returns every user of one subscription.
func (r *UserRepository) ListBySubscription(ctx context.Context, subscriptionID uint) ([]models.User, error) {
	var users []models.User
	err := r.DB(ctx).Where("subscription_id = ?", subscriptionID).Find(&users).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list users",
			zap.Uint("subscription_id", subscriptionID))
	}
	return users, nil
}

// ListAdmins returns every user with the admin role.
func (r *UserRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.DB(ctx).Where("role = ?", models.RoleAdmin).Find(&users).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list admins")
	}
	return users, nil
}

// Update saves changed user fields.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	err := r.DB(ctx).Save(user).Error
	return r.handleError(err, "failed to update user", zap.Uint("id", user.ID))
}

// Delete soft-deletes a user.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	result := r.DB(ctx).Delete(&models.User{}, id)
	if result.Error != nil {
		return r.handleError(result.Error, "failed to delete user", zap.Uint("id", id))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
