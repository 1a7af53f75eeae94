// Package jobs hosts the asynchronous workers fed by the queue topics:
// alert evaluation, outbound mail and scheduled report generation.
package jobs

import (
	"context"
	"time"

	"github.com/wattflow/backend/internal/alerting"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// Mail templates produced by the workers
const (
	MailTemplateAlertTriggered  = "alert-triggered"
	MailTemplateDeviceLifecycle = "device-lifecycle"
	MailTemplateMonthlyReport   = "monthly-report"
)

// AlertPublisher pushes fired alerts to connected clients.
type AlertPublisher interface {
	PublishAlertTriggered(rule *models.AlertRule, value float64, at time.Time)
}

// MailEnqueuer hands outbound mail to the mail topic.
type MailEnqueuer interface {
	ProduceMailJob(job kafka.MailJob) error
}

// AlertProcessor evaluates alert rules against queued notifications.
// Every side effect of a firing is best-effort and independent: a failed
// mail enqueue never blocks the trigger record, and vice versa.
type AlertProcessor struct {
	repos     *repository.Factory
	publisher AlertPublisher
	mail      MailEnqueuer
	logger    *utils.Logger
}

// NewAlertProcessor creates the alert evaluation worker.
func NewAlertProcessor(repos *repository.Factory, publisher AlertPublisher, mail MailEnqueuer, logger *utils.Logger) *AlertProcessor {
	return &AlertProcessor{
		repos:     repos,
		publisher: publisher,
		mail:      mail,
		logger:    logger.Named("alert_processor"),
	}
}

// Process evaluates every rule watching the device against the payload.
// It returns an error only when the rules cannot be loaded at all; a
// rule that fires is then handled best-effort so one broken side effect
// cannot force the whole job into redelivery.
func (p *AlertProcessor) Process(ctx context.Context, job kafka.AlertJob, at time.Time) error {
	rules, err := p.repos.Alert().ListByDevice(ctx, job.DeviceID)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	for i := range rules {
		if trigger, ok := alerting.Evaluate(&rules[i], job.Values, at); ok {
			p.handleTrigger(ctx, &rules[i], trigger)
		}
	}
	return nil
}

// handleTrigger persists and fans out one firing.
func (p *AlertProcessor) handleTrigger(ctx context.Context, rule *models.AlertRule, trigger *alerting.Trigger) {
	log := p.logger.With(
		zap.Uint("alert_rule_id", rule.ID),
		zap.Uint("device_id", rule.DeviceID),
		zap.Float64("value", trigger.Value),
	)
	log.Info("alert rule fired")

	if err := p.repos.Alert().CreateTriggered(ctx, &models.TriggeredAlert{
		AlertRuleID: rule.ID,
		Value:       trigger.Value,
	}); err != nil {
		log.Error("failed to record triggered alert", zap.Error(err))
	}

	if err := p.repos.Alert().IncrementTriggerCount(ctx, rule.ID); err != nil {
		log.Error("failed to increment trigger count", zap.Error(err))
	}

	p.publisher.PublishAlertTriggered(rule, trigger.Value, trigger.At)

	user, err := p.repos.User().GetByID(ctx, rule.UserID)
	if err != nil {
		log.Error("failed to load rule owner for mail", zap.Error(err))
		return
	}

	if err := p.mail.ProduceMailJob(kafka.MailJob{
		Template: MailTemplateAlertTriggered,
		To:       []string{user.Email},
		Data: map[string]interface{}{
			"device_id": rule.DeviceID,
			"accessor":  rule.Accessor,
			"condition": string(rule.Condition),
			"threshold": rule.Threshold,
			"value":     trigger.Value,
			"time":      trigger.At,
		},
	}); err != nil {
		log.Error("failed to enqueue alert mail", zap.Error(err))
	}
}
