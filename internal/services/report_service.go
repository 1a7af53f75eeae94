package services

import (
	"context"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/utils"
)

// ReportService exposes generated consumption reports
type ReportService struct {
	repos  *repository.Factory
	logger *utils.Logger
}

// NewReportService creates a new report service
func NewReportService(repos *repository.Factory, logger *utils.Logger) *ReportService {
	return &ReportService{
		repos:  repos,
		logger: logger.Named("report_service"),
	}
}

// List returns a subscription's reports, newest first.
func (s *ReportService) List(ctx context.Context, claims *models.UserClaims, subscriptionID uint) ([]models.Report, error) {
	if err := scopeSubscription(claims, subscriptionID); err != nil {
		return nil, err
	}
	reports, err := s.repos.Report().ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, utils.ErrInternalServer
	}
	return reports, nil
}
