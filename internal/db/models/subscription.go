package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription is the tenant boundary: every device, user and telemetry
// partition belongs to exactly one subscription.
type Subscription struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	EnergyCost float64        `gorm:"default:0" json:"energy_cost"`
	Currency   string         `gorm:"type:varchar(8);default:'EUR'" json:"currency"`
	Users      []User         `json:"users,omitempty"`
	Devices    []Device       `json:"devices,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
