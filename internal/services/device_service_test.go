package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/jobs"
	"github.com/wattflow/backend/internal/kafka"
	"github.com/wattflow/backend/internal/testutil"
	"github.com/wattflow/backend/internal/utils"
	"gorm.io/gorm"
)

type fakeMailEnqueuer struct {
	jobs []kafka.MailJob
}

func (f *fakeMailEnqueuer) ProduceMailJob(job kafka.MailJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestDeviceService(t *testing.T) (*DeviceService, *gorm.DB, *fakeMailEnqueuer) {
	t.Helper()
	gdb := testutil.NewTestDB(t)
	repos := repository.NewFactory(gdb, testutil.NewLogger())
	mail := &fakeMailEnqueuer{}
	svc := NewDeviceService(repos, NewLiveService(testutil.NewLogger()), mail, testutil.NewLogger())
	return svc, gdb, mail
}

func newDevice(subscriptionID uint, externalID string) *models.Device {
	return &models.Device{
		ExternalID:     externalID,
		Name:           "Meter " + externalID,
		Type:           models.DeviceTypeMono,
		SubscriptionID: subscriptionID,
		Metrics: []models.Metric{
			{Name: "Energy", Accessor: models.AccessorEnergy, Unit: "kWh"},
		},
	}
}

func TestDeviceServiceCreate(t *testing.T) {
	svc, gdb, _ := newTestDeviceService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	manager := testutil.ManagerClaims(1, sub.ID)

	require.NoError(t, svc.Create(ctx, manager, newDevice(sub.ID, "meter-01")))

	t.Run("Viewers cannot create", func(t *testing.T) {
		err := svc.Create(ctx, testutil.ViewerClaims(2, sub.ID), newDevice(sub.ID, "meter-02"))
		assert.ErrorIs(t, err, utils.ErrForbidden)
	})

	t.Run("Managers cannot create outside their subscription", func(t *testing.T) {
		err := svc.Create(ctx, manager, newDevice(sub.ID+1, "meter-03"))
		assert.ErrorIs(t, err, utils.ErrForbidden)
	})

	t.Run("Unknown device type rejected", func(t *testing.T) {
		device := newDevice(sub.ID, "meter-04")
		device.Type = "windmill"
		assert.ErrorIs(t, svc.Create(ctx, manager, device), utils.ErrValidation)
	})

	t.Run("External id required", func(t *testing.T) {
		assert.ErrorIs(t, svc.Create(ctx, manager, newDevice(sub.ID, "")), utils.ErrValidation)
	})

	t.Run("Duplicate external id rejected", func(t *testing.T) {
		err := svc.Create(ctx, manager, newDevice(sub.ID, "meter-01"))
		assert.ErrorIs(t, err, utils.ErrAlreadyExists)
	})
}

func TestDeviceServiceListVisibility(t *testing.T) {
	svc, gdb, _ := newTestDeviceService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	other := testutil.SeedSubscription(t, gdb, "Globex", 0.30)
	testutil.SeedDevice(t, gdb, sub.ID, "meter-01")
	testutil.SeedDevice(t, gdb, other.ID, "meter-02")

	all, err := svc.List(ctx, testutil.AdminClaims(1))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.List(ctx, testutil.ViewerClaims(2, sub.ID))
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "meter-01", scoped[0].ExternalID)

	// A viewer without a subscription sees nothing
	none, err := svc.List(ctx, &models.UserClaims{UserID: 3, Role: models.RoleViewer})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeviceServiceHandleLifecycle(t *testing.T) {
	svc, gdb, mail := newTestDeviceService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	testutil.SeedDevice(t, gdb, sub.ID, "meter-01")
	testutil.SeedUser(t, gdb, "admin@wattflow.test", models.RoleAdmin, nil)

	at := time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

	// Routine transitions don't mail anyone
	require.NoError(t, svc.HandleLifecycle(ctx, "meter-01", kafka.LifecycleConnected, at))
	assert.Empty(t, mail.jobs)

	// Failures do
	require.NoError(t, svc.HandleLifecycle(ctx, "meter-01", kafka.LifecycleAuthFailed, at))
	require.Len(t, mail.jobs, 1)
	assert.Equal(t, jobs.MailTemplateDeviceLifecycle, mail.jobs[0].Template)
	assert.Equal(t, []string{"admin@wattflow.test"}, mail.jobs[0].To)

	// Unknown devices are logged and dropped, not errors
	require.NoError(t, svc.HandleLifecycle(ctx, "ghost", kafka.LifecycleConnectionLost, at))
	assert.Len(t, mail.jobs, 1)
}
