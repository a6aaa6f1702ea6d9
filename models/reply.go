package models

import "time"

// MaxReplyDepth bounds reply nesting. Top-level replies have depth 0.
const MaxReplyDepth = 3

// Reply answers a post (ParentID nil) or another reply of the same post.
type Reply struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	PostID   uint  `gorm:"not null;index:idx_replies_post_depth" json:"post_id"`
	AuthorID uint  `gorm:"not null;index" json:"author_id"`
	ParentID *uint `gorm:"index" json:"parent_id"`
	Depth    int   `gorm:"not null;default:0;index:idx_replies_post_depth" json:"depth"`

	Content     string         `gorm:"type:text;not null" json:"content"`
	Attachments []string       `gorm:"serializer:json;type:text" json:"attachments"`
	Metadata    map[string]any `gorm:"serializer:json;type:text" json:"metadata,omitempty"`

	UpvoteCount   int64 `gorm:"not null;default:0" json:"upvote_count"`
	DownvoteCount int64 `gorm:"not null;default:0" json:"downvote_count"`
	Score         int64 `gorm:"not null;default:0" json:"score"`

	IsDeleted    bool       `gorm:"not null;index" json:"is_deleted"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	DeletedBy    *uint      `json:"deleted_by,omitempty"`
	DeleteReason string     `gorm:"size:255" json:"delete_reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}
