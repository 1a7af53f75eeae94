package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/utils"
)

type fakeRegistry struct {
	device   *models.Device
	getErr   error
	applyErr error
	applied  bool
}

func (f *fakeRegistry) GetByExternalID(_ context.Context, externalID string) (*models.Device, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.device, nil
}

func (f *fakeRegistry) ApplyNotification(_ context.Context, _ *models.Device, _ map[string]float64, _ time.Time) error {
	f.applied = true
	return f.applyErr
}

type fakePointStore struct {
	mu     sync.Mutex
	points []models.TelemetryPoint
	err    error
}

func (f *fakePointStore) Append(_ context.Context, points []models.TelemetryPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, points...)
	return f.err
}

type fakeLive struct {
	published bool
	values    map[string]float64
}

func (f *fakeLive) PublishNotification(_ *models.Device, values map[string]float64, _ time.Time) {
	f.published = true
	f.values = values
}

type fakeJobs struct {
	enqueued bool
	err      error
}

func (f *fakeJobs) EnqueueAlertEvaluation(_ context.Context, _ *models.Device, _ map[string]float64, _ time.Time) error {
	f.enqueued = true
	return f.err
}

func testDevice() *models.Device {
	return &models.Device{
		ID:             3,
		ExternalID:     "meter-01",
		SubscriptionID: 2,
		Metrics: []models.Metric{
			{ID: 1, DeviceID: 3, Accessor: "e"},
			{ID: 2, DeviceID: 3, Accessor: "p"},
		},
	}
}

func newTestCoordinator(registry *fakeRegistry, points *fakePointStore, live *fakeLive, jobs *fakeJobs) *Coordinator {
	return NewCoordinator(registry, points, live, jobs, utils.NewNopLogger())
}

func TestParseNotification(t *testing.T) {
	t.Run("Valid payload", func(t *testing.T) {
		n, err := ParseNotification([]byte(`{"d":"meter-01","p":{"e":12.5,"p":230}}`))
		require.NoError(t, err)
		assert.Equal(t, "meter-01", n.Device)
		assert.Equal(t, 12.5, n.Values["e"])
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		_, err := ParseNotification([]byte(`{"d":`))
		assert.ErrorIs(t, err, utils.ErrValidation)
	})

	t.Run("Missing device id", func(t *testing.T) {
		_, err := ParseNotification([]byte(`{"p":{"e":1}}`))
		assert.ErrorIs(t, err, utils.ErrValidation)
	})

	t.Run("Empty values", func(t *testing.T) {
		_, err := ParseNotification([]byte(`{"d":"meter-01","p":{}}`))
		assert.ErrorIs(t, err, utils.ErrValidation)
	})
}

func TestNotificationAt(t *testing.T) {
	received := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

	reported := time.Date(2024, 7, 15, 11, 59, 0, 0, time.UTC)
	n := &Notification{Device: "meter-01", Time: &reported}
	assert.Equal(t, reported, n.At(received))

	n = &Notification{Device: "meter-01"}
	assert.Equal(t, received, n.At(received))
}

func TestHandleNotificationHappyPath(t *testing.T) {
	registry := &fakeRegistry{device: testDevice()}
	points := &fakePointStore{}
	live := &fakeLive{}
	jobs := &fakeJobs{}
	c := newTestCoordinator(registry, points, live, jobs)

	n := &Notification{Device: "meter-01", Values: map[string]float64{"e": 12.5, "p": 230}}
	err := c.HandleNotification(context.Background(), n, time.Now())
	require.NoError(t, err)

	assert.True(t, registry.applied)
	assert.Len(t, points.points, 2)
	assert.True(t, live.published)
	assert.True(t, jobs.enqueued)
}

func TestHandleNotificationUnknownDeviceAborts(t *testing.T) {
	registry := &fakeRegistry{getErr: errors.New("record not found")}
	points := &fakePointStore{}
	live := &fakeLive{}
	jobs := &fakeJobs{}
	c := newTestCoordinator(registry, points, live, jobs)

	n := &Notification{Device: "ghost", Values: map[string]float64{"e": 1}}
	err := c.HandleNotification(context.Background(), n, time.Now())
	require.Error(t, err)

	// Nothing downstream runs for an unknown device
	assert.Empty(t, points.points)
	assert.False(t, live.published)
	assert.False(t, jobs.enqueued)
}

func TestHandleNotificationBlockedDeviceDropped(t *testing.T) {
	device := testDevice()
	device.Blocked = true
	registry := &fakeRegistry{device: device}
	points := &fakePointStore{}
	live := &fakeLive{}
	jobs := &fakeJobs{}
	c := newTestCoordinator(registry, points, live, jobs)

	n := &Notification{Device: "meter-01", Values: map[string]float64{"e": 1}}
	err := c.HandleNotification(context.Background(), n, time.Now())
	require.NoError(t, err)

	assert.False(t, registry.applied)
	assert.Empty(t, points.points)
	assert.False(t, live.published)
	assert.False(t, jobs.enqueued)
}

func TestHandleNotificationPointStoreFailureDoesNotSuppressOthers(t *testing.T) {
	registry := &fakeRegistry{device: testDevice()}
	points := &fakePointStore{err: errors.New("disk full")}
	live := &fakeLive{}
	jobs := &fakeJobs{}
	c := newTestCoordinator(registry, points, live, jobs)

	n := &Notification{Device: "meter-01", Values: map[string]float64{"e": 12.5}}
	err := c.HandleNotification(context.Background(), n, time.Now())

	// The failure is logged, not surfaced; the transport must not redeliver
	require.NoError(t, err)
	assert.True(t, registry.applied)
	assert.True(t, live.published)
	assert.True(t, jobs.enqueued)
}

func TestHandleNotificationRegistryFailureDoesNotSuppressOthers(t *testing.T) {
	registry := &fakeRegistry{device: testDevice(), applyErr: errors.New("deadlock")}
	points := &fakePointStore{}
	live := &fakeLive{}
	jobs := &fakeJobs{}
	c := newTestCoordinator(registry, points, live, jobs)

	n := &Notification{Device: "meter-01", Values: map[string]float64{"e": 12.5}}
	err := c.HandleNotification(context.Background(), n, time.Now())
	require.NoError(t, err)

	assert.Len(t, points.points, 1)
	assert.True(t, live.published)
	assert.True(t, jobs.enqueued)
}

func TestHandleNotificationUndeclaredMetricsDropped(t *testing.T) {
	registry := &fakeRegistry{device: testDevice()}
	points := &fakePointStore{}
	live := &fakeLive{}
	jobs := &fakeJobs{}
	c := newTestCoordinator(registry, points, live, jobs)

	// "x" is not declared on the device; only "e" becomes a point
	n := &Notification{Device: "meter-01", Values: map[string]float64{"e": 12.5, "x": 99}}
	err := c.HandleNotification(context.Background(), n, time.Now())
	require.NoError(t, err)

	require.Len(t, points.points, 1)
	assert.Equal(t, "e", points.points[0].Metric)
	assert.Equal(t, uint(2), points.points[0].SubscriptionID)

	// The live push still carries the full payload
	assert.Equal(t, 99.0, live.values["x"])
}

func TestHandleNotificationJobEnqueueFailureSwallowed(t *testing.T) {
	registry := &fakeRegistry{device: testDevice()}
	points := &fakePointStore{}
	live := &fakeLive{}
	jobs := &fakeJobs{err: errors.New("broker down")}
	c := newTestCoordinator(registry, points, live, jobs)

	n := &Notification{Device: "meter-01", Values: map[string]float64{"e": 1}}
	err := c.HandleNotification(context.Background(), n, time.Now())
	require.NoError(t, err)

	// Storage still succeeded
	assert.True(t, registry.applied)
	assert.Len(t, points.points, 1)
}

func TestHandleNotificationAllSinksFailingStillHandled(t *testing.T) {
	registry := &fakeRegistry{device: testDevice(), applyErr: errors.New("deadlock")}
	points := &fakePointStore{err: errors.New("disk full")}
	live := &fakeLive{}
	jobs := &fakeJobs{err: errors.New("broker down")}
	c := newTestCoordinator(registry, points, live, jobs)

	n := &Notification{Device: "meter-01", Values: map[string]float64{"e": 1}}
	err := c.HandleNotification(context.Background(), n, time.Now())
	require.NoError(t, err)

	assert.True(t, live.published)
}
