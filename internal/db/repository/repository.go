package repository

import (
	"context"
	"errors"

	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Common repository errors
var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned on unique constraint violations
	ErrDuplicateKey = errors.New("duplicate key violation")
	// ErrDatabase is returned for general database errors
	ErrDatabase = errors.New("database error")
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db     *gorm.DB
	logger *utils.Logger
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *gorm.DB, logger *utils.Logger) BaseRepository {
	return BaseRepository{
		db:     db,
		logger: logger,
	}
}

// DB returns the database handle, honoring any transaction in the context.
func (r *BaseRepository) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// handleError maps gorm errors to repository errors and logs them
func (r *BaseRepository) handleError(err error, msg string, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	r.logger.Error(msg, append(fields, zap.Error(err))...)
	return ErrDatabase
}
