package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Role defines the access level of a user
type Role string

const (
	// RoleAdmin sees every subscription and receives operational events
	RoleAdmin Role = "admin"
	// RoleManager manages the devices and users of one subscription
	RoleManager Role = "manager"
	// RoleViewer has read-only access to one subscription
	RoleViewer Role = "viewer"
)

// CanSeeAllSubscriptions reports whether the role may query data across
// every subscription.
func (r Role) CanSeeAllSubscriptions() bool {
	return r == RoleAdmin
}

// CanManageDevices reports whether the role may create, update or block
// devices within its subscription.
func (r Role) CanManageDevices() bool {
	return r == RoleAdmin || r == RoleManager
}

// User represents a user account in the system
type User struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	Password       string         `gorm:"not null" json:"-"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Role           Role           `gorm:"type:varchar(20);default:'viewer'" json:"role"`
	SubscriptionID *uint          `gorm:"index" json:"subscription_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserClaims represents the JWT claims for a user
type UserClaims struct {
	UserID         uint  `json:"user_id"`
	Role           Role  `json:"role"`
	SubscriptionID *uint `json:"subscription_id,omitempty"`
	jwt.RegisteredClaims
}

// BeforeSave hashes the password before storing, unless it is already a
// bcrypt hash from a previous save.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Password == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(u.Password)); err == nil {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	return u.FirstName + " " + u.LastName
}
