package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKeyScope limits what a key may do on its owner's behalf.
type APIKeyScope string

const (
	// APIKeyScopeSubmit keys act as a regular member, even when an admin owns them.
	APIKeyScopeSubmit APIKeyScope = "submit"
	// APIKeyScopeAdmin keys carry the owner's admin role, e.g. for bulk import scripts.
	APIKeyScopeAdmin APIKeyScope = "admin"
)

// Valid reports whether s is a known scope.
func (s APIKeyScope) Valid() bool {
	return s == APIKeyScopeSubmit || s == APIKeyScopeAdmin
}

// APIKey lets scripts submit resources without a password login
type APIKey struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	KeyHash     string         `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix   string         `gorm:"not null" json:"key_prefix"`
	Description string         `json:"description"`
	Scope       APIKeyScope    `gorm:"type:varchar(20);not null;default:'submit'" json:"scope"`
	LastUsedAt  *time.Time     `json:"last_used_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
