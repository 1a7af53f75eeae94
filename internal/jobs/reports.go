package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/wattflow/backend/internal/config"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// ReportPublisher announces generated reports to connected clients.
type ReportPublisher interface {
	PublishReportGenerated(report *models.Report)
}

// ReportScheduler periodically generates the previous month's
// consumption report for every subscription that doesn't have one yet.
// Generation is idempotent, so the check interval only affects latency.
type ReportScheduler struct {
	repos     *repository.Factory
	mail      MailEnqueuer
	publisher ReportPublisher
	cfg       *config.ReportsConfig
	loc       *time.Location
	logger    *utils.Logger
	stopChan  chan struct{}
}

// NewReportScheduler creates the report generation worker.
func NewReportScheduler(repos *repository.Factory, mail MailEnqueuer, publisher ReportPublisher, cfg *config.ReportsConfig, loc *time.Location, logger *utils.Logger) *ReportScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &ReportScheduler{
		repos:     repos,
		mail:      mail,
		publisher: publisher,
		cfg:       cfg,
		loc:       loc,
		logger:    logger.Named("report_scheduler"),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic generation loop.
func (s *ReportScheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("report generation disabled")
		return
	}

	interval := time.Duration(s.cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Catch up immediately on startup
		s.RunOnce(ctx, time.Now())

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.RunOnce(ctx, time.Now())
			}
		}
	}()
}

// Stop halts the generation loop.
func (s *ReportScheduler) Stop() {
	close(s.stopChan)
}

// RunOnce generates the previous month's report for every subscription
// that is still missing one.
func (s *ReportScheduler) RunOnce(ctx context.Context, now time.Time) {
	periodStart, periodEnd := previousMonth(now, s.loc)

	subs, err := s.repos.Subscription().ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to list subscriptions for reports", zap.Error(err))
		return
	}

	for i := range subs {
		if err := s.generateFor(ctx, &subs[i], periodStart, periodEnd); err != nil {
			s.logger.Error("failed to generate report",
				zap.Uint("subscription_id", subs[i].ID),
				zap.Error(err))
		}
	}
}

// previousMonth returns the closed-open bounds of the month before now.
func previousMonth(now time.Time, loc *time.Location) (time.Time, time.Time) {
	n := now.In(loc)
	periodEnd := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
	periodStart := periodEnd.AddDate(0, -1, 0)
	return periodStart, periodEnd
}

// generateFor builds and persists one subscription's report. Per-device
// consumption is the cumulative-energy delta across the period: the last
// reading inside the period minus the last reading before it.
func (s *ReportScheduler) generateFor(ctx context.Context, sub *models.Subscription, periodStart, periodEnd time.Time) error {
	exists, err := s.repos.Report().ExistsForPeriod(ctx, sub.ID, periodStart)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	devices, err := s.repos.Device().ListBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}

	report := &models.Report{
		SubscriptionID: sub.ID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Currency:       sub.Currency,
	}

	for i := range devices {
		device := &devices[i]
		consumed, err := s.deviceConsumption(ctx, sub.ID, device.ID, periodStart, periodEnd)
		if err != nil {
			s.logger.Warn("skipping device in report",
				zap.Uint("device_id", device.ID), zap.Error(err))
			continue
		}
		cost := consumed * sub.EnergyCost
		report.Items = append(report.Items, models.ReportItem{
			DeviceID:   device.ID,
			DeviceName: device.Name,
			Consumed:   consumed,
			Cost:       cost,
		})
		report.TotalConsumed += consumed
		report.TotalCost += cost
	}

	if err := s.repos.Report().Create(ctx, report); err != nil {
		return err
	}

	s.logger.Info("generated monthly report",
		zap.Uint("subscription_id", sub.ID),
		zap.Time("period_start", periodStart),
		zap.Float64("total_consumed", report.TotalConsumed))

	s.publisher.PublishReportGenerated(report)
	s.notifyManagers(ctx, sub, report)
	return nil
}

// deviceConsumption computes one device's energy delta over the period.
func (s *ReportScheduler) deviceConsumption(ctx context.Context, subscriptionID, deviceID uint, periodStart, periodEnd time.Time) (float64, error) {
	points, err := s.repos.Telemetry().QueryRange(ctx, subscriptionID, deviceID, models.AccessorEnergy, periodStart, periodEnd)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	last := points[len(points)-1].Value

	baseline := 0.0
	if prev, err := s.repos.Telemetry().LastBefore(ctx, subscriptionID, deviceID, models.AccessorEnergy, periodStart); err == nil {
		baseline = prev.Value
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}

	return last - baseline, nil
}

// notifyManagers mails the report summary to the subscription's members
// who can manage devices.
func (s *ReportScheduler) notifyManagers(ctx context.Context, sub *models.Subscription, report *models.Report) {
	users, err := s.repos.User().ListBySubscription(ctx, sub.ID)
	if err != nil {
		s.logger.Error("failed to list report recipients", zap.Error(err))
		return
	}

	var recipients []string
	for i := range users {
		if users[i].Role.CanManageDevices() {
			recipients = append(recipients, users[i].Email)
		}
	}
	if len(recipients) == 0 {
		return
	}

	if err := s.mail.ProduceMailJob(kafka.MailJob{
		Template: MailTemplateMonthlyReport,
		To:       recipients,
		Data: map[string]interface{}{
			"subscription":   sub.Name,
			"period_start":   report.PeriodStart,
			"period_end":     report.PeriodEnd,
			"total_consumed": report.TotalConsumed,
			"total_cost":     report.TotalCost,
			"currency":       report.Currency,
		},
	}); err != nil {
		s.logger.Error("failed to enqueue report mail", zap.Error(err))
	}
}
