package models

import "time"

// VoteType is the direction of a vote.
type VoteType string

const (
	VoteUp   VoteType = "UPVOTE"
	VoteDown VoteType = "DOWNVOTE"
)

// Valid reports whether v is UPVOTE or DOWNVOTE.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Vote is one user's signal on exactly one post or reply.
// The two composite unique indexes keep a single row per (user, target); NULL target columns
// do not collide.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_votes_user_post;uniqueIndex:idx_votes_user_reply" json:"user_id"`
	PostID    *uint     `gorm:"uniqueIndex:idx_votes_user_post" json:"post_id,omitempty"`
	ReplyID   *uint     `gorm:"uniqueIndex:idx_votes_user_reply" json:"reply_id,omitempty"`
	VoteType  VoteType  `gorm:"size:16;not null" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VoteAction is the ledger mutation a vote request resolves to.
type VoteAction string

const (
	VoteActionCreate VoteAction = "create"
	VoteActionUpdate VoteAction = "update"
	VoteActionDelete VoteAction = "delete"
)

// VoteChange is a resolved vote request: which row operation to run and which counter deltas
// to apply to the target in the same transaction.
type VoteChange struct {
	UserID        uint
	Target        Target
	Action        VoteAction
	From          VoteType // existing vote, empty on create
	To            VoteType // requested vote
	UpvoteDelta   int64
	DownvoteDelta int64
	ScoreDelta    int64
}
