package models

import "time"

// PostType enumerates the kinds of post a forum accepts.
type PostType string

const (
	PostTypeDiscussion   PostType = "DISCUSSION"
	PostTypeQuestion     PostType = "QUESTION"
	PostTypeAnnouncement PostType = "ANNOUNCEMENT"
	PostTypeResource     PostType = "RESOURCE"
	PostTypePoll         PostType = "POLL"
)

// Valid reports whether t is one of the known post types.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeDiscussion, PostTypeQuestion, PostTypeAnnouncement, PostTypeResource, PostTypePoll:
		return true
	}
	return false
}

// Post is a top-level discussion item inside a forum.
// Score always equals UpvoteCount - DownvoteCount; the three move together in one statement.
type Post struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	ForumID    uint     `gorm:"not null;uniqueIndex:idx_posts_forum_slug;index:idx_posts_forum_created" json:"forum_id"`
	Slug       string   `gorm:"size:64;not null;uniqueIndex:idx_posts_forum_slug" json:"slug"`
	CategoryID *uint    `gorm:"index" json:"category_id"`
	AuthorID   uint     `gorm:"index;not null" json:"author_id"`
	Title      string   `gorm:"size:255;not null" json:"title"`
	Content    string   `gorm:"type:text;not null" json:"content"`
	Type       PostType `gorm:"size:16;not null" json:"type"`

	Tags        []string       `gorm:"serializer:json;type:text" json:"tags"`
	Attachments []string       `gorm:"serializer:json;type:text" json:"attachments"`
	Metadata    map[string]any `gorm:"serializer:json;type:text" json:"metadata,omitempty"`

	IsPinned     bool       `gorm:"not null;index" json:"is_pinned"`
	IsLocked     bool       `gorm:"not null" json:"is_locked"`
	IsDeleted    bool       `gorm:"not null;index" json:"is_deleted"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	DeletedBy    *uint      `json:"deleted_by,omitempty"`
	DeleteReason string     `gorm:"size:255" json:"delete_reason,omitempty"`

	ViewCount     int64 `gorm:"not null;default:0" json:"view_count"`
	ReplyCount    int64 `gorm:"not null;default:0" json:"reply_count"`
	UpvoteCount   int64 `gorm:"not null;default:0" json:"upvote_count"`
	DownvoteCount int64 `gorm:"not null;default:0" json:"downvote_count"`
	Score         int64 `gorm:"not null;default:0;index" json:"score"`

	CreatedAt   time.Time  `gorm:"index:idx_posts_forum_created" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
	LastReplyAt *time.Time `gorm:"index" json:"last_reply_at"`
	LastReplyBy *uint      `json:"last_reply_by,omitempty"`
}

// PostTag is the searchable projection of Post.Tags used for any-of tag filters.
type PostTag struct {
	PostID uint   `gorm:"primaryKey"`
	Tag    string `gorm:"primaryKey;size:64;index"`
}
