package services

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cppla/carecircle/models"
)

// Transition is the ledger action and counter deltas for one vote request.
type Transition struct {
	Action        models.VoteAction
	UpvoteDelta   int64
	DownvoteDelta int64
	ScoreDelta    int64
}

// NextVote resolves a request against the user's existing vote (nil when none).
// Repeating a vote removes it; the opposite vote replaces it.
func NextVote(existing *models.VoteType, requested models.VoteType) Transition {
	switch {
	case existing == nil && requested == models.VoteUp:
		return Transition{Action: models.VoteActionCreate, UpvoteDelta: 1, ScoreDelta: 1}
	case existing == nil:
		return Transition{Action: models.VoteActionCreate, DownvoteDelta: 1, ScoreDelta: -1}
	case *existing == requested && requested == models.VoteUp:
		return Transition{Action: models.VoteActionDelete, UpvoteDelta: -1, ScoreDelta: -1}
	case *existing == requested:
		return Transition{Action: models.VoteActionDelete, DownvoteDelta: -1, ScoreDelta: 1}
	case requested == models.VoteDown:
		return Transition{Action: models.VoteActionUpdate, UpvoteDelta: -1, DownvoteDelta: 1, ScoreDelta: -2}
	default:
		return Transition{Action: models.VoteActionUpdate, UpvoteDelta: 1, DownvoteDelta: -1, ScoreDelta: 2}
	}
}

// VoteResult is returned by every vote operation. UserVote is the caller's vote after the
// request, nil when it was toggled off.
type VoteResult struct {
	Success  bool             `json:"success"`
	Score    int64            `json:"score"`
	UserVote *models.VoteType `json:"user_vote"`
}

// VoteLedger keeps one vote per (user, target) and moves the target counters with it.
// Callers check that the target exists and is not deleted.
type VoteLedger struct {
	store VoteStore
}

// NewVoteLedger creates a ledger over store.
func NewVoteLedger(store VoteStore) *VoteLedger {
	return &VoteLedger{store: store}
}

// CastVote applies voteType from userID to target.
func (l *VoteLedger) CastVote(ctx context.Context, userID uint, target models.Target, voteType models.VoteType) (VoteResult, error) {
	if !target.Valid() {
		return VoteResult{}, validationError("exactly one of postId or replyId is required")
	}
	if userID == 0 {
		return VoteResult{}, validationError("userId is required")
	}
	if !voteType.Valid() {
		return VoteResult{}, validationError("invalid vote type %q", voteType)
	}

	existing, err := l.store.GetVote(ctx, userID, target)
	if err != nil {
		return VoteResult{}, errors.Wrap(err, "services:CastVote: GetVote")
	}
	var from *models.VoteType
	change := models.VoteChange{UserID: userID, Target: target, To: voteType}
	if existing != nil {
		from = &existing.VoteType
		change.From = existing.VoteType
	}
	tr := NextVote(from, voteType)
	change.Action = tr.Action
	change.UpvoteDelta = tr.UpvoteDelta
	change.DownvoteDelta = tr.DownvoteDelta
	change.ScoreDelta = tr.ScoreDelta

	score, err := l.store.ApplyVote(ctx, change)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return VoteResult{}, &Error{Kind: KindNotFound, Message: "vote changed concurrently", Retryable: true, Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return VoteResult{}, &Error{Kind: KindConflict, Message: "concurrent vote detected", Retryable: true, Err: err}
	case err != nil:
		return VoteResult{}, errors.Wrap(err, "services:CastVote: ApplyVote")
	}

	res := VoteResult{Success: true, Score: score}
	if tr.Action != models.VoteActionDelete {
		v := voteType
		res.UserVote = &v
	}
	return res, nil
}
