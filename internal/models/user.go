package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a case owner. Account management lives outside this service; the
// engine only reads the address and activity flags when routing notifications.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	Cases         []PermCase         `gorm:"foreignKey:UserID" json:"-"`
	Subscriptions []PushSubscription `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
