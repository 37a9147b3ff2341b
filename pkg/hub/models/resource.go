package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResourceType is the single required classification of a resource (article, video, ...)
type ResourceType struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"size:191;uniqueIndex;not null" json:"name"`
}

// Category is a label attached to resources. Categories double as tags.
type Category struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"size:191;uniqueIndex;not null" json:"name"`
}

// Resource is a catalog entry shown in the resource library
type Resource struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Title          string    `gorm:"not null" json:"title"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Content        *string   `gorm:"type:text" json:"content,omitempty"`
	URL            string    `gorm:"not null" json:"url"`
	ResourceTypeID uint      `gorm:"not null;index" json:"resource_type_id"`
	AuthorID       uint      `gorm:"not null;index" json:"author_id"`
	Featured       bool      `gorm:"not null;default:false" json:"featured"`

	// Relationships
	ResourceType ResourceType       `gorm:"foreignKey:ResourceTypeID" json:"resource_type,omitempty"`
	Categories   []ResourceCategory `gorm:"foreignKey:ResourceID" json:"categories,omitempty"`
}

// BeforeCreate assigns a UUID when the caller did not supply one
func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ResourceCategory links a resource to one of its categories.
// Position keeps the order the names were supplied in, so the first one is stable.
type ResourceCategory struct {
	ResourceID string `gorm:"type:char(36);primaryKey" json:"resource_id"`
	CategoryID uint   `gorm:"primaryKey" json:"category_id"`
	Position   int    `gorm:"not null;default:0" json:"position"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
