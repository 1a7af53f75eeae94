// Package alerting evaluates user alert rules against incoming device
// notifications. Evaluation is pure; persistence and fan-out happen in
// the job layer.
package alerting

import (
	"time"

	"github.com/wattflow/backend/internal/db/models"
)

// Trigger describes one rule firing against one notification.
type Trigger struct {
	RuleID    uint
	UserID    uint
	DeviceID  uint
	Accessor  string
	Condition models.AlertCondition
	Threshold float64
	Value     float64
	At        time.Time
}

// Evaluate checks a single rule against a notification payload. It
// returns the trigger and true when the rule fires. A rule whose
// accessor is absent from the payload, or whose condition is not a
// supported operator, never fires.
func Evaluate(rule *models.AlertRule, values map[string]float64, at time.Time) (*Trigger, bool) {
	value, ok := values[rule.Accessor]
	if !ok {
		return nil, false
	}

	var fired bool
	switch rule.Condition {
	case models.ConditionGreaterThan:
		fired = value > rule.Threshold
	case models.ConditionLessThan:
		fired = value < rule.Threshold
	case models.ConditionEquals:
		fired = value == rule.Threshold
	default:
		return nil, false
	}
	if !fired {
		return nil, false
	}

	return &Trigger{
		RuleID:    rule.ID,
		UserID:    rule.UserID,
		DeviceID:  rule.DeviceID,
		Accessor:  rule.Accessor,
		Condition: rule.Condition,
		Threshold: rule.Threshold,
		Value:     value,
		At:        at,
	}, true
}

// EvaluateAll runs every rule against the payload and returns the
// triggers that fired, preserving rule order.
func EvaluateAll(rules []models.AlertRule, values map[string]float64, at time.Time) []Trigger {
	var triggers []Trigger
	for i := range rules {
		if t, ok := Evaluate(&rules[i], values, at); ok {
			triggers = append(triggers, *t)
		}
	}
	return triggers
}
