package models

import (
	"time"
)

// TelemetryPoint is one scalar reading, append-only and never updated.
// The (subscription, device, metric) triple is the partition key; rows
// within a partition are ordered by time.
type TelemetryPoint struct {
	Time           time.Time `gorm:"type:timestamptz;primaryKey;not null" json:"time"`
	SubscriptionID uint      `gorm:"primaryKey;not null" json:"subscription_id"`
	DeviceID       uint      `gorm:"primaryKey;not null" json:"device_id"`
	Metric         string    `gorm:"type:varchar(16);primaryKey;not null" json:"metric"`
	Value          float64   `json:"value"`
}

// TableName overrides the table name for TelemetryPoint
func (TelemetryPoint) TableName() string {
	return "telemetry_points"
}
