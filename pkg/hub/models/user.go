package models

import (
	"time"

	"gorm.io/gorm"
)

// SystemRole represents a user's system-wide role
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// User represents an account that can submit resources
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	SystemRole   SystemRole     `gorm:"type:varchar(20);default:'user'" json:"system_role"`

	// Relationships
	APIKeys   []APIKey   `gorm:"foreignKey:UserID" json:"api_keys,omitempty"`
	Resources []Resource `gorm:"foreignKey:AuthorID" json:"resources,omitempty"`
}

// IsAdmin reports whether the user holds the admin system role
func (u User) IsAdmin() bool {
	return u.SystemRole == SystemRoleAdmin
}
