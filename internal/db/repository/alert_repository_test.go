package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/testutil"
)

func seedRule(t *testing.T, repo *repository.AlertRepository, userID, deviceID uint) *models.AlertRule {
	t.Helper()
	rule := &models.AlertRule{
		UserID:    userID,
		DeviceID:  deviceID,
		Accessor:  "p",
		Condition: models.ConditionGreaterThan,
		Threshold: 1000,
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	return rule
}

func TestAlertRepositoryCRUD(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewAlertRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	rule := seedRule(t, repo, 1, 3)
	require.NotZero(t, rule.ID)

	byDevice, err := repo.ListByDevice(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, byDevice, 1)

	byUser, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	require.NoError(t, repo.Delete(ctx, rule.ID))
	assert.ErrorIs(t, repo.Delete(ctx, rule.ID), repository.ErrNotFound)
}

func TestAlertRepositoryTriggeredHistory(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewAlertRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	rule := seedRule(t, repo, 1, 3)

	require.NoError(t, repo.CreateTriggered(ctx, &models.TriggeredAlert{AlertRuleID: rule.ID, Value: 1100}))
	require.NoError(t, repo.CreateTriggered(ctx, &models.TriggeredAlert{AlertRuleID: rule.ID, Value: 1250}))

	triggered, err := repo.ListTriggeredByRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Len(t, triggered, 2)
}

func TestAlertRepositoryIncrementTriggerCount(t *testing.T) {
	gdb := testutil.NewTestDB(t)
	repo := repository.NewAlertRepository(gdb, testutil.NewLogger())
	ctx := context.Background()

	rule := seedRule(t, repo, 1, 3)

	// The counter is bumped in the database, not read-modify-written in
	// Go, so repeated increments never lose updates.
	const n = 10
	for i := 0; i < n; i++ {
		require.NoError(t, repo.IncrementTriggerCount(ctx, rule.ID))
	}

	updated, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), updated.TriggerCount)

	assert.ErrorIs(t, repo.IncrementTriggerCount(ctx, 9999), repository.ErrNotFound)
}
