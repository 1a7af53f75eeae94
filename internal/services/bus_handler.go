package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/ingest"
	"github.com/wattflow/backend/internal/jobs"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// BusHandler binds the queue topics to their workers: raw notifications
// to the ingestion coordinator, lifecycle events to the device service,
// alert jobs and mail jobs to their processors.
type BusHandler struct {
	logger         *utils.Logger
	kafkaManager   *kafka.Manager
	coordinator    *ingest.Coordinator
	deviceService  *DeviceService
	alertProcessor *jobs.AlertProcessor
	mailProcessor  *jobs.MailProcessor
}

// NewBusHandler creates the topic-to-worker binding.
func NewBusHandler(
	logger *utils.Logger,
	kafkaManager *kafka.Manager,
	coordinator *ingest.Coordinator,
	deviceService *DeviceService,
	alertProcessor *jobs.AlertProcessor,
	mailProcessor *jobs.MailProcessor,
) *BusHandler {
	return &BusHandler{
		logger:         logger.Named("bus_handler"),
		kafkaManager:   kafkaManager,
		coordinator:    coordinator,
		deviceService:  deviceService,
		alertProcessor: alertProcessor,
		mailProcessor:  mailProcessor,
	}
}

// Initialize registers all topic handlers. Must run before the Kafka
// manager starts.
func (h *BusHandler) Initialize(ctx context.Context) error {
	if err := h.kafkaManager.RegisterNotificationHandler("ingest",
		func(payload json.RawMessage, receivedAt time.Time) error {
			return h.handleNotification(ctx, payload, receivedAt)
		}); err != nil {
		return err
	}

	if err := h.kafkaManager.RegisterLifecycleHandler("devices",
		func(deviceID string, event kafka.LifecycleEvent, at time.Time) error {
			return h.deviceService.HandleLifecycle(ctx, deviceID, event, at)
		}); err != nil {
		return err
	}

	if err := h.kafkaManager.RegisterAlertJobHandler("alerts",
		func(job kafka.AlertJob, at time.Time) error {
			return h.alertProcessor.Process(ctx, job, at)
		}); err != nil {
		return err
	}

	if err := h.kafkaManager.RegisterMailJobHandler("mail",
		func(job kafka.MailJob) error {
			return h.mailProcessor.Process(job)
		}); err != nil {
		return err
	}

	h.logger.Info("bus handlers registered")
	return nil
}

// handleNotification decodes a raw report and hands it to the
// coordinator. Malformed payloads are dropped rather than retried; the
// DLQ keeps a copy.
func (h *BusHandler) handleNotification(ctx context.Context, payload json.RawMessage, receivedAt time.Time) error {
	notification, err := ingest.ParseNotification(payload)
	if err != nil {
		h.logger.Warn("dropping malformed notification", zap.Error(err))
		return err
	}
	return h.coordinator.HandleNotification(ctx, notification, receivedAt)
}

// QueueEnqueuer adapts the Kafka manager to the coordinator's enqueue
// interface.
type QueueEnqueuer struct {
	manager *kafka.Manager
}

// NewQueueEnqueuer wraps a Kafka manager for job enqueueing.
func NewQueueEnqueuer(manager *kafka.Manager) *QueueEnqueuer {
	return &QueueEnqueuer{manager: manager}
}

// EnqueueAlertEvaluation publishes an alert evaluation job.
func (q *QueueEnqueuer) EnqueueAlertEvaluation(_ context.Context, device *models.Device, values map[string]float64, at time.Time) error {
	return q.manager.ProduceAlertJob(device.ID, values, at)
}

// ProduceMailJob publishes a mail job.
func (q *QueueEnqueuer) ProduceMailJob(job kafka.MailJob) error {
	return q.manager.ProduceMailJob(job)
}
