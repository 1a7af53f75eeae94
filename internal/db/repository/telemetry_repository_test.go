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

func seedPoints(t *testing.T, repo *repository.TelemetryRepository, points []models.TelemetryPoint) {
	t.Helper()
	require.NoError(t, repo.Append(context.Background(), points))
}

func TestTelemetryRepositoryAppendAndQuery(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewTelemetryRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	base := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	seedPoints(t, repo, []models.TelemetryPoint{
		{Time: base, SubscriptionID: 1, DeviceID: 1, Metric: "e", Value: 10},
		{Time: base.Add(time.Hour), SubscriptionID: 1, DeviceID: 1, Metric: "e", Value: 12},
		{Time: base.Add(2 * time.Hour), SubscriptionID: 1, DeviceID: 1, Metric: "e", Value: 15},
		// Different metric and different device must not leak into queries
		{Time: base, SubscriptionID: 1, DeviceID: 1, Metric: "p", Value: 230},
		{Time: base, SubscriptionID: 1, DeviceID: 2, Metric: "e", Value: 99},
	})

	t.Run("QueryRange is inclusive below and exclusive above", func(t *testing.T) {
		points, err := repo.QueryRange(ctx, 1, 1, "e", base, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, 10.0, points[0].Value)
		assert.Equal(t, 12.0, points[1].Value)
	})

	t.Run("QuerySince returns ascending order", func(t *testing.T) {
		points, err := repo.QuerySince(ctx, 1, 1, "e", base)
		require.NoError(t, err)
		require.Len(t, points, 3)
		assert.True(t, points[0].Time.Before(points[1].Time))
		assert.True(t, points[1].Time.Before(points[2].Time))
	})

	t.Run("Partitions are isolated", func(t *testing.T) {
		points, err := repo.QuerySince(ctx, 1, 2, "e", base)
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, 99.0, points[0].Value)
	})
}

func TestTelemetryRepositoryLastBefore(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewTelemetryRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	seedPoints(t, repo, []models.TelemetryPoint{
		{Time: base.Add(-48 * time.Hour), SubscriptionID: 1, DeviceID: 1, Metric: "e", Value: 100},
		{Time: base.Add(-24 * time.Hour), SubscriptionID: 1, DeviceID: 1, Metric: "e", Value: 110},
		{Time: base.Add(time.Hour), SubscriptionID: 1, DeviceID: 1, Metric: "e", Value: 120},
	})

	point, err := repo.LastBefore(ctx, 1, 1, "e", base)
	require.NoError(t, err)
	assert.Equal(t, 110.0, point.Value)

	_, err = repo.LastBefore(ctx, 1, 1, "e", base.Add(-72*time.Hour))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTelemetryRepositoryAppendEmpty(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewTelemetryRepository(gdb, testutil.NewLogger())

	assert.NoError(t, repo.Append(context.Background(), nil))
}
