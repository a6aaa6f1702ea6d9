package models

import "time"

// Document records a pre-uploaded file. PostID / ReplyID are filled once it is attached.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"index;not null" json:"owner_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	URL       string    `gorm:"size:1024;not null" json:"url"`
	MimeType  string    `gorm:"size:128" json:"mime_type"`
	Size      int64     `json:"size"`
	PostID    *uint     `gorm:"index" json:"post_id,omitempty"`
	ReplyID   *uint     `gorm:"index" json:"reply_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
