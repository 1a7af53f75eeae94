package alerting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wattflow/backend/internal/db/models"
)

func TestEvaluateGreaterThan(t *testing.T) {
	rule := &models.AlertRule{
		ID:        1,
		UserID:    7,
		DeviceID:  3,
		Accessor:  "p",
		Condition: models.ConditionGreaterThan,
		Threshold: 1000,
	}
	at := time.Now()

	trigger, fired := Evaluate(rule, map[string]float64{"p": 1500}, at)
	require.True(t, fired)
	assert.Equal(t, 1500.0, trigger.Value)
	assert.Equal(t, uint(7), trigger.UserID)
	assert.Equal(t, at, trigger.At)

	_, fired = Evaluate(rule, map[string]float64{"p": 1000}, at)
	assert.False(t, fired, "threshold itself must not fire a greater-than rule")

	_, fired = Evaluate(rule, map[string]float64{"p": 900}, at)
	assert.False(t, fired)
}

func TestEvaluateLessThan(t *testing.T) {
	rule := &models.AlertRule{
		Accessor:  "p",
		Condition: models.ConditionLessThan,
		Threshold: 10,
	}

	_, fired := Evaluate(rule, map[string]float64{"p": 5}, time.Now())
	assert.True(t, fired)

	_, fired = Evaluate(rule, map[string]float64{"p": 10}, time.Now())
	assert.False(t, fired)
}

func TestEvaluateEqualsIsExact(t *testing.T) {
	rule := &models.AlertRule{
		Accessor:  "e",
		Condition: models.ConditionEquals,
		Threshold: 42,
	}

	_, fired := Evaluate(rule, map[string]float64{"e": 42}, time.Now())
	assert.True(t, fired)

	_, fired = Evaluate(rule, map[string]float64{"e": 42.0001}, time.Now())
	assert.False(t, fired)
}

func TestEvaluateMissingAccessorNeverFires(t *testing.T) {
	rule := &models.AlertRule{
		Accessor:  "temp",
		Condition: models.ConditionGreaterThan,
		Threshold: 0,
	}

	_, fired := Evaluate(rule, map[string]float64{"p": 9999}, time.Now())
	assert.False(t, fired)
}

func TestEvaluateUnknownConditionNeverFires(t *testing.T) {
	rule := &models.AlertRule{
		Accessor:  "p",
		Condition: models.AlertCondition(">="),
		Threshold: 0,
	}

	_, fired := Evaluate(rule, map[string]float64{"p": 100}, time.Now())
	assert.False(t, fired)
}

func TestEvaluateAll(t *testing.T) {
	rules := []models.AlertRule{
		{ID: 1, Accessor: "p", Condition: models.ConditionGreaterThan, Threshold: 100},
		{ID: 2, Accessor: "p", Condition: models.ConditionLessThan, Threshold: 100},
		{ID: 3, Accessor: "e", Condition: models.ConditionGreaterThan, Threshold: 0},
	}
	values := map[string]float64{"p": 150, "e": 12}

	triggers := EvaluateAll(rules, values, time.Now())
	require.Len(t, triggers, 2)
	assert.Equal(t, uint(1), triggers[0].RuleID)
	assert.Equal(t, uint(3), triggers[1].RuleID)
}

func TestConditionValid(t *testing.T) {
	assert.True(t, models.ConditionGreaterThan.Valid())
	assert.True(t, models.ConditionLessThan.Valid())
	assert.True(t, models.ConditionEquals.Valid())
	assert.False(t, models.AlertCondition("!=").Valid())
	assert.False(t, models.AlertCondition("").Valid())
}
