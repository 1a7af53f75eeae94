package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/testutil"
)

func TestDeviceRepositoryGetByExternalID(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewDeviceRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	seeded := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	device, err := repo.GetByExternalID(ctx, "meter-01")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, device.ID)
	assert.Len(t, device.Metrics, 2, "declared metrics must be preloaded")

	_, err = repo.GetByExternalID(ctx, "unknown")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeviceRepositoryApplyNotification(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewDeviceRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	device, err := repo.GetByExternalID(ctx, "meter-01")
	require.NoError(t, err)

	at := time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)
	err = repo.ApplyNotification(ctx, device, map[string]float64{"e": 55.5, "p": 1200, "x": 9}, at)
	require.NoError(t, err)

	updated, err := repo.GetByID(ctx, device.ID)
	require.NoError(t, err)

	// Snapshot fields are denormalized from the well-known accessors
	assert.Equal(t, 1200.0, updated.Power)
	assert.Equal(t, 55.5, updated.Energy)

	for _, m := range updated.Metrics {
		switch m.Accessor {
		case models.AccessorEnergy:
			require.NotNil(t, m.LatestValue)
			assert.Equal(t, 55.5, *m.LatestValue)
			require.NotNil(t, m.LatestTime)
			assert.Equal(t, at.Unix(), m.LatestTime.Unix())
		case models.AccessorPower:
			require.NotNil(t, m.LatestValue)
			assert.Equal(t, 1200.0, *m.LatestValue)
		}
	}
}

func TestDeviceRepositoryApplyNotificationPartialPayload(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewDeviceRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	device, err := repo.GetByExternalID(ctx, "meter-01")
	require.NoError(t, err)

	// Only power reported: energy metric stays untouched
	err = repo.ApplyNotification(ctx, device, map[string]float64{"p": 800}, time.Now())
	require.NoError(t, err)

	updated, err := repo.GetByID(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, 800.0, updated.Power)
	assert.Equal(t, 0.0, updated.Energy)

	for _, m := range updated.Metrics {
		if m.Accessor == models.AccessorEnergy {
			assert.Nil(t, m.LatestValue)
		}
	}
}

func TestDeviceRepositorySetBlocked(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewDeviceRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	require.NoError(t, repo.SetBlocked(ctx, device.ID, true))

	updated, err := repo.GetByID(ctx, device.ID)
	require.NoError(t, err)
	assert.True(t, updated.Blocked)

	assert.ErrorIs(t, repo.SetBlocked(ctx, 9999, true), repository.ErrNotFound)
}
