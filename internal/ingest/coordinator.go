// Package ingest coordinates the fan-out of one device notification to
// the registry, the point store, live subscribers and the job queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
	"go.uber.org/zap"
)

// Notification is the wire form of one device report. Field names are
// kept short to match what devices actually send.
type Notification struct {
	Device string             `json:"d"`
	Values map[string]float64 `json:"p"`
	Time   *time.Time         `json:"t,omitempty"`
}

// ParseNotification decodes and validates a raw notification payload.
func ParseNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: malformed notification: %v", utils.ErrValidation, err)
	}
	if n.Device == "" {
		return nil, fmt.Errorf("%w: notification missing device id", utils.ErrValidation)
	}
	if len(n.Values) == 0 {
		return nil, fmt.Errorf("%w: notification carries no values", utils.ErrValidation)
	}
	return &n, nil
}

// At returns the effective observation time: the device-reported
// timestamp when present, otherwise the receive time.
func (n *Notification) At(received time.Time) time.Time {
	if n.Time != nil && !n.Time.IsZero() {
		return *n.Time
	}
	return received
}

// Registry resolves and updates device records.
type Registry interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.Device, error)
	ApplyNotification(ctx context.Context, device *models.Device, values map[string]float64, at time.Time) error
}

// PointStore appends telemetry points.
type PointStore interface {
	Append(ctx context.Context, points []models.TelemetryPoint) error
}

// LivePublisher pushes a notification to connected clients.
type LivePublisher interface {
	PublishNotification(device *models.Device, values map[string]float64, at time.Time)
}

// JobEnqueuer hands the notification to asynchronous processing.
type JobEnqueuer interface {
	EnqueueAlertEvaluation(ctx context.Context, device *models.Device, values map[string]float64, at time.Time) error
}

// Coordinator routes one notification through all sinks. Sink failures
// are independent: a failing store never suppresses the live push or the
// job enqueue, and vice versa.
type Coordinator struct {
	registry Registry
	points   PointStore
	live     LivePublisher
	jobs     JobEnqueuer
	logger   *utils.Logger
}

// NewCoordinator creates a notification coordinator.
func NewCoordinator(registry Registry, points PointStore, live LivePublisher, jobs JobEnqueuer, logger *utils.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		points:   points,
		live:     live,
		jobs:     jobs,
		logger:   logger.Named("ingest"),
	}
}

// HandleNotification processes one notification. Only an unknown device
// yields an error; once the device is resolved the notification counts
// as handled. All downstream sinks run to completion regardless of each
// other's outcome, and sink failures are logged rather than propagated,
// so a storage or broker hiccup never pushes the notification back onto
// the transport.
func (c *Coordinator) HandleNotification(ctx context.Context, n *Notification, received time.Time) error {
	device, err := c.registry.GetByExternalID(ctx, n.Device)
	if err != nil {
		return fmt.Errorf("unknown device %q: %w", n.Device, err)
	}
	if device.Blocked {
		c.logger.Warn("dropping notification from blocked device",
			zap.String("device", n.Device))
		return nil
	}

	at := n.At(received)
	points := c.buildPoints(device, n.Values, at)

	// Registry update and point append settle independently.
	var wg sync.WaitGroup
	var registryErr, pointsErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		registryErr = c.registry.ApplyNotification(ctx, device, n.Values, at)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		pointsErr = c.points.Append(ctx, points)
	}()

	wg.Wait()

	if registryErr != nil {
		c.logger.Error("registry update failed",
			zap.String("device", n.Device), zap.Error(registryErr))
	}
	if pointsErr != nil {
		c.logger.Error("point append failed",
			zap.String("device", n.Device), zap.Error(pointsErr))
	}

	// Live push and job enqueue happen even when storage failed.
	c.live.PublishNotification(device, n.Values, at)

	if err := c.jobs.EnqueueAlertEvaluation(ctx, device, n.Values, at); err != nil {
		c.logger.Error("alert job enqueue failed",
			zap.String("device", n.Device), zap.Error(err))
	}

	return nil
}

// buildPoints derives storable points from the payload: one per declared
// metric present in the payload. Undeclared payload fields are dropped.
func (c *Coordinator) buildPoints(device *models.Device, values map[string]float64, at time.Time) []models.TelemetryPoint {
	var points []models.TelemetryPoint
	for i := range device.Metrics {
		m := &device.Metrics[i]
		v, ok := values[m.Accessor]
		if !ok {
			continue
		}
		points = append(points, models.TelemetryPoint{
			Time:           at,
			SubscriptionID: device.SubscriptionID,
			DeviceID:       device.ID,
			Metric:         m.Accessor,
			Value:          v,
		})
	}
	return points
}
