package models

import (
	"time"

	"gorm.io/gorm"
)

// User mirrors an identity owned by the external authentication provider.
// Only existence and display fields are kept locally.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"size:64;not null" json:"username"`
	DisplayName string         `gorm:"size:128" json:"display_name"`
	Email       string         `gorm:"size:255" json:"email"`
	AvatarURL   string         `gorm:"size:512" json:"avatar_url"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}
