package services

import (
	"context"
	"time"

	"github.com/cppla/carecircle/models"
)

// Lookups return gorm.ErrRecordNotFound (possibly wrapped) for missing rows.

// PostStore persists posts.
type PostStore interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id uint) (models.Post, error)
	GetPostBySlug(ctx context.Context, forumSlug, postSlug string) (models.Post, error)
	PostSlugExists(ctx context.Context, forumID uint, slug string, excludeID uint) (bool, error)
	ListPosts(ctx context.Context, filter models.PostFilter, query models.PostQuery) ([]models.Post, int64, error)
	// UpdatePostContent writes the editable columns only; counters are never part of it.
	UpdatePostContent(ctx context.Context, post models.Post) error
	IncrementPostViews(ctx context.Context, id uint) error
	SoftDeletePost(ctx context.Context, id, deletedBy uint, reason string, at time.Time) error
}

// ReplyStore persists replies.
type ReplyStore interface {
	CreateReply(ctx context.Context, reply *models.Reply) error
	GetReply(ctx context.Context, id uint) (models.Reply, error)
	ListReplies(ctx context.Context, filter models.ReplyFilter, query models.ReplyQuery) ([]models.Reply, int64, error)
	// ListChildren returns the direct children of the given replies ordered by score desc,
	// created_at asc. Deleted children are included.
	ListChildren(ctx context.Context, parentIDs []uint) ([]models.Reply, error)
	// ListPostReplies returns replies of a post ordered by depth asc, score desc, created_at asc.
	// A limit <= 0 returns all of them.
	ListPostReplies(ctx context.Context, postID uint, includeDeleted bool, limit int) ([]models.Reply, error)
	CountChildren(ctx context.Context, replyID uint) (int64, error)
	UpdateReplyContent(ctx context.Context, reply models.Reply) error
	SoftDeleteReply(ctx context.Context, id, deletedBy uint, reason string, at time.Time) error
}

// VoteStore is the ledger of (user, target) votes.
type VoteStore interface {
	// GetVote returns nil when the user has not voted on the target.
	GetVote(ctx context.Context, userID uint, target models.Target) (*models.Vote, error)
	// ApplyVote runs the row mutation and the counter deltas in one transaction and returns the
	// target's new score. A vanished row yields gorm.ErrRecordNotFound, a concurrent first vote
	// gorm.ErrDuplicatedKey.
	ApplyVote(ctx context.Context, change models.VoteChange) (int64, error)
	PostVoteStates(ctx context.Context, userID uint, postIDs []uint) (map[uint]models.VoteType, error)
	ReplyVoteStates(ctx context.Context, userID uint, replyIDs []uint) (map[uint]models.VoteType, error)
}

// CounterStore recomputes denormalized aggregates from authoritative rows.
type CounterStore interface {
	RecountForumPosts(ctx context.Context, forumID uint) error
	RecountCategoryPosts(ctx context.Context, categoryID uint) error
	RecountMemberPosts(ctx context.Context, forumID, userID uint) error
	RecountMemberReplies(ctx context.Context, forumID, userID uint) error
	RecountPostReplies(ctx context.Context, postID uint) error
	TouchForumActivity(ctx context.Context, forumID uint, at time.Time) error
	TouchPostLastReply(ctx context.Context, postID, userID uint, at time.Time) error
}

// Directory resolves the forum, category, membership and user collaborators.
type Directory interface {
	GetForum(ctx context.Context, id uint) (models.Forum, error)
	GetCategory(ctx context.Context, id uint) (models.Category, error)
	IsForumMember(ctx context.Context, forumID, userID uint) (bool, error)
	UserExists(ctx context.Context, id uint) (bool, error)
}

// DocumentStore links pre-uploaded documents to posts and replies.
type DocumentStore interface {
	AttachDocuments(ctx context.Context, owner models.Target, documentIDs []uint) error
	ListDocuments(ctx context.Context, owner models.Target) ([]models.Document, error)
}

// Store is everything the discussion engine needs from persistence.
type Store interface {
	PostStore
	ReplyStore
	VoteStore
	CounterStore
	Directory
	DocumentStore
}
