package models

import (
	"time"
)

// AlertCondition is the comparison operator of an alert rule
type AlertCondition string

const (
	// ConditionGreaterThan fires when the observed value exceeds the threshold
	ConditionGreaterThan AlertCondition = ">"
	// ConditionLessThan fires when the observed value is below the threshold
	ConditionLessThan AlertCondition = "<"
	// ConditionEquals fires on exact equality with the threshold
	ConditionEquals AlertCondition = "="
)

// Valid reports whether the condition is one of the supported operators.
func (c AlertCondition) Valid() bool {
	switch c {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals:
		return true
	}
	return false
}

// AlertRule is a user-owned watch condition on one metric of one device.
// The accessor is validated against the device's declared metrics at
// creation time only; a rule referencing a since-removed accessor simply
// never matches.
type AlertRule struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	User         *User          `json:"user,omitempty"`
	DeviceID     uint           `gorm:"index;not null" json:"device_id"`
	Device       *Device        `json:"device,omitempty"`
	Accessor     string         `gorm:"type:varchar(16);not null" json:"accessor"`
	Condition    AlertCondition `gorm:"type:varchar(2);not null" json:"condition"`
	Threshold    float64        `gorm:"not null" json:"threshold"`
	TriggerCount int64          `gorm:"default:0" json:"trigger_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TriggeredAlert is an immutable record of one rule firing against one
// notification. A rule can fire repeatedly across notifications; there
// is no deduplication beyond (rule, notification).
type TriggeredAlert struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	AlertRuleID uint       `gorm:"index;not null" json:"alert_rule_id"`
	AlertRule   *AlertRule `json:"alert_rule,omitempty"`
	Value       float64    `gorm:"not null" json:"value"`
	CreatedAt   time.Time  `json:"created_at"`
}
