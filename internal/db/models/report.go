package models

import (
	"time"
)

// ReportItem is one device line of a monthly consumption report.
type ReportItem struct {
	DeviceID   uint    `json:"device_id"`
	DeviceName string  `json:"device_name"`
	Consumed   float64 `json:"consumed"`
	Cost       float64 `json:"cost"`
}

// Report is a generated monthly consumption summary for a subscription.
// Items are stored as a JSON document; reports are immutable once written.
type Report struct {
	ID             uint         `gorm:"primarykey" json:"id"`
	SubscriptionID uint         `gorm:"index;not null" json:"subscription_id"`
	PeriodStart    time.Time    `gorm:"type:timestamptz;not null" json:"period_start"`
	PeriodEnd      time.Time    `gorm:"type:timestamptz;not null" json:"period_end"`
	TotalConsumed  float64      `json:"total_consumed"`
	TotalCost      float64      `json:"total_cost"`
	Currency       string       `gorm:"type:varchar(8)" json:"currency"`
	Items          []ReportItem `gorm:"serializer:json" json:"items"`
	CreatedAt      time.Time    `json:"created_at"`
}
