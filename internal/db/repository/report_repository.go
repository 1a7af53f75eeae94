package repository

import (
	"context"
	"time"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReportRepository handles database operations for generated reports
type ReportRepository struct {
	BaseRepository
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB, logger *utils.Logger) *ReportRepository {
	return &ReportRepository{
		BaseRepository: NewBaseRepository(db, logger.Named("report_repository")),
	}
}

// Create persists a generated report.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	err := r.DB(ctx).Create(report).Error
	return r.handleError(err, "failed to create report",
		zap.Uint("subscription_id", report.SubscriptionID))
}

// ListBySubscription returns all reports of one subscription, newest first.
func (r *ReportRepository) ListBySubscription(ctx context.Context, subscriptionID uint) ([]models.Report, error) {
	var reports []models.Report
	err := r.DB(ctx).Where("subscription_id = ?", subscriptionID).
		Order("period_start DESC").Find(&reports).Error
	if err != nil {
		return nil, r.handleError(err, "failed to list reports",
			zap.Uint("subscription_id", subscriptionID))
	}
	return reports, nil
}

// ExistsForPeriod reports whether a subscription already has a report
// covering the given period start.
func (r *ReportRepository) ExistsForPeriod(ctx context.Context, subscriptionID uint, periodStart time.Time) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Report{}).
		Where("subscription_id = ? AND period_start = ?", subscriptionID, periodStart).
		Count(&count).Error
	if err != nil {
		return false, r.handleError(err, "failed to check report existence",
			zap.Uint("subscription_id", subscriptionID))
	}
	return count > 0, nil
}
