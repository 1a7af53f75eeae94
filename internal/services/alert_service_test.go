package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/db/models"
	"github.com/wattflow/backend/internal/db/repository"
	"github.com/wattflow/backend/internal/testutil"
	"github.com/wattflow/backend/internal/utils"
	"gorm.io/gorm"
)

func newTestAlertService(t *testing.T) (*AlertService, *repository.Factory, *gorm.DB) {
	t.Helper()
	gdb := testutil.NewTestDB(t)
	repos := repository.NewFactory(gdb, testutil.NewLogger())
	return NewAlertService(repos, testutil.NewLogger()), repos, gdb
}

func TestAlertServiceCreateRule(t *testing.T) {
	svc, _, gdb := newTestAlertService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")
	claims := testutil.ViewerClaims(7, sub.ID)

	rule := &models.AlertRule{
		DeviceID:  device.ID,
		Accessor:  models.AccessorPower,
		Condition: models.ConditionGreaterThan,
		Threshold: 2000,
	}
	require.NoError(t, svc.CreateRule(ctx, claims, rule))
	require.NotZero(t, rule.ID)

	// Ownership comes from the token, not the request body
	assert.Equal(t, uint(7), rule.UserID)
	assert.Zero(t, rule.TriggerCount)

	rules, err := svc.ListRules(ctx, claims)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestAlertServiceCreateRuleRejectsUndeclaredAccessor(t *testing.T) {
	svc, _, gdb := newTestAlertService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	rule := &models.AlertRule{
		DeviceID:  device.ID,
		Accessor:  "voltage",
		Condition: models.ConditionGreaterThan,
		Threshold: 240,
	}
	err := svc.CreateRule(ctx, testutil.ViewerClaims(7, sub.ID), rule)
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestAlertServiceCreateRuleRejectsUnknownCondition(t *testing.T) {
	svc, _, gdb := newTestAlertService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	rule := &models.AlertRule{
		DeviceID:  device.ID,
		Accessor:  models.AccessorPower,
		Condition: ">=",
		Threshold: 2000,
	}
	err := svc.CreateRule(ctx, testutil.ViewerClaims(7, sub.ID), rule)
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestAlertServiceCreateRuleScopeAndExistence(t *testing.T) {
	svc, _, gdb := newTestAlertService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	other := testutil.SeedSubscription(t, gdb, "Globex", 0.30)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")

	rule := &models.AlertRule{
		DeviceID:  device.ID,
		Accessor:  models.AccessorPower,
		Condition: models.ConditionGreaterThan,
		Threshold: 2000,
	}
	err := svc.CreateRule(ctx, testutil.ViewerClaims(7, other.ID), rule)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	rule.DeviceID = 9999
	err = svc.CreateRule(ctx, testutil.ViewerClaims(7, sub.ID), rule)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestAlertServiceDeleteRuleOwnership(t *testing.T) {
	svc, _, gdb := newTestAlertService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")
	owner := testutil.ViewerClaims(7, sub.ID)

	rule := &models.AlertRule{
		DeviceID:  device.ID,
		Accessor:  models.AccessorEnergy,
		Condition: models.ConditionLessThan,
		Threshold: 5,
	}
	require.NoError(t, svc.CreateRule(ctx, owner, rule))

	// Another viewer in the same subscription cannot delete it
	err := svc.DeleteRule(ctx, testutil.ViewerClaims(8, sub.ID), rule.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	// Admins can
	require.NoError(t, svc.DeleteRule(ctx, testutil.AdminClaims(1), rule.ID))
	assert.ErrorIs(t, svc.DeleteRule(ctx, owner, rule.ID), utils.ErrNotFound)
}

func TestAlertServiceListTriggeredOwnership(t *testing.T) {
	svc, repos, gdb := newTestAlertService(t)
	ctx := context.Background()

	sub := testutil.SeedSubscription(t, gdb, "Acme", 0.25)
	device := testutil.SeedDevice(t, gdb, sub.ID, "meter-01")
	owner := testutil.ViewerClaims(7, sub.ID)

	rule := &models.AlertRule{
		DeviceID:  device.ID,
		Accessor:  models.AccessorPower,
		Condition: models.ConditionGreaterThan,
		Threshold: 1000,
	}
	require.NoError(t, svc.CreateRule(ctx, owner, rule))
	require.NoError(t, repos.Alert().CreateTriggered(ctx, &models.TriggeredAlert{AlertRuleID: rule.ID, Value: 1100}))

	triggered, err := svc.ListTriggered(ctx, owner, rule.ID)
	require.NoError(t, err)
	assert.Len(t, triggered, 1)

	_, err = svc.ListTriggered(ctx, testutil.ViewerClaims(8, sub.ID), rule.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)
}
