package models

import "time"

// SortOrder is the direction applied to a sort key.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// PostSortKey names the columns posts can be ordered by. Pinned posts always come first.
type PostSortKey string

const (
	PostSortCreatedAt   PostSortKey = "createdAt"
	PostSortLastReplyAt PostSortKey = "lastReplyAt"
	PostSortScore       PostSortKey = "score"
	PostSortViewCount   PostSortKey = "viewCount"
	PostSortReplyCount  PostSortKey = "replyCount"
)

// ReplySortKey names the columns replies can be ordered by.
type ReplySortKey string

const (
	ReplySortCreatedAt ReplySortKey = "createdAt"
	ReplySortScore     ReplySortKey = "score"
	ReplySortDepth     ReplySortKey = "depth"
)

// PostFilter narrows a post listing. Zero values mean "any".
// IsDeleted nil is treated as false by the listing.
type PostFilter struct {
	ForumID     uint
	CategoryID  uint
	AuthorID    uint
	Type        PostType
	IsPinned    *bool
	IsLocked    *bool
	IsDeleted   *bool
	Tags        []string // any-of
	Search      string   // case-insensitive substring over title and content
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PostQuery is the normalised paging and ordering for a post listing.
type PostQuery struct {
	Page      int
	Limit     int
	SortBy    PostSortKey
	SortOrder SortOrder
}

// Offset returns the row offset of the page.
func (q PostQuery) Offset() int { return (q.Page - 1) * q.Limit }

// ReplyFilter narrows a reply listing. TopLevelOnly selects replies without a parent.
type ReplyFilter struct {
	PostID       uint
	AuthorID     uint
	ParentID     *uint
	TopLevelOnly bool
	IsDeleted    *bool
}

// ReplyQuery is the normalised paging and ordering for a reply listing. Threaded orders by depth
// before SortBy.
type ReplyQuery struct {
	Page      int
	Limit     int
	SortBy    ReplySortKey
	SortOrder SortOrder
	Threaded  bool
}

// Offset returns the row offset of the page.
func (q ReplyQuery) Offset() int { return (q.Page - 1) * q.Limit }
