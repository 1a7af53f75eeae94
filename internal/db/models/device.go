package models

import (
	"time"

	"gorm.io/gorm"
)

// DeviceType identifies the electrical installation kind of a device
type DeviceType string

const (
	// DeviceTypePV photovoltaic installation
	DeviceTypePV DeviceType = "PV"
	// DeviceTypeTri three-phase meter
	DeviceTypeTri DeviceType = "TRI"
	// DeviceTypeMono single-phase meter
	DeviceTypeMono DeviceType = "MONO"
)

// Well-known metric accessors used by the denormalized snapshot fields
const (
	AccessorPower  = "p"
	AccessorEnergy = "e"
)

// Device is the registry snapshot of a physical device: its declared
// metrics, the latest observed value per metric, and the denormalized
// current power / cumulative energy readings.
type Device struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	ExternalID     string         `gorm:"uniqueIndex;not null" json:"external_id"`
	Name           string         `gorm:"not null" json:"name"`
	Description    string         `json:"description"`
	Type           DeviceType     `gorm:"type:varchar(10);not null" json:"type"`
	SubscriptionID uint           `gorm:"index;not null" json:"subscription_id"`
	Power          float64        `gorm:"default:0" json:"power"`
	Energy         float64        `gorm:"default:0" json:"energy"`
	Metrics        []Metric       `gorm:"constraint:OnDelete:CASCADE" json:"metrics"`
	Blocked        bool           `gorm:"default:false" json:"blocked"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Metric is one declared value channel on a device, identified by its
// accessor code, together with its latest observed value.
type Metric struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	DeviceID    uint       `gorm:"index;not null" json:"device_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Accessor    string     `gorm:"type:varchar(16);not null" json:"accessor"`
	Unit        string     `gorm:"type:varchar(16)" json:"unit"`
	LatestValue *float64   `json:"latest_value"`
	LatestTime  *time.Time `gorm:"type:timestamptz" json:"latest_time"`
}

// HasAccessor reports whether the device declares a metric with the
// given accessor code.
func (d *Device) HasAccessor(accessor string) bool {
	for i := range d.Metrics {
		if d.Metrics[i].Accessor == accessor {
			return true
		}
	}
	return false
}
