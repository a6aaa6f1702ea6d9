package models

import "time"

// Forum is a discussion space. Posts are only accepted while it is active and not archived.
type Forum struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Slug           string     `gorm:"size:64;not null;uniqueIndex" json:"slug"`
	Name           string     `gorm:"size:128;not null" json:"name"`
	Description    string     `gorm:"type:text" json:"description"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	IsArchived     bool       `gorm:"not null" json:"is_archived"`
	PostCount      int64      `gorm:"not null;default:0" json:"post_count"`
	LastActivityAt *time.Time `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AcceptsPosts reports whether new posts may be created in the forum.
func (f Forum) AcceptsPosts() bool {
	return f.IsActive && !f.IsArchived
}

// Category groups posts inside a single forum.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ForumID   uint      `gorm:"index;not null" json:"forum_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Slug      string    `gorm:"size:64;not null" json:"slug"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	PostCount int64     `gorm:"not null;default:0" json:"post_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ForumMember is a user's membership in a forum together with its activity counters.
type ForumMember struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ForumID    uint      `gorm:"not null;uniqueIndex:idx_forum_members_forum_user" json:"forum_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_forum_members_forum_user;index" json:"user_id"`
	Role       string    `gorm:"size:32" json:"role"`
	PostCount  int64     `gorm:"not null;default:0" json:"post_count"`
	ReplyCount int64     `gorm:"not null;default:0" json:"reply_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
