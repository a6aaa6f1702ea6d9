package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cppla/carecircle/models"
)

func targetScope(t models.Target) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if t.IsPost() {
			return db.Where("post_id = ?", t.PostID)
		}
		return db.Where("reply_id = ?", t.ReplyID)
	}
}

func (s *Store) GetVote(ctx context.Context, userID uint, target models.Target) (*models.Vote, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).Scopes(targetScope(target)).Where("user_id = ?", userID).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "repository:GetVote: First")
	}
	return &vote, nil
}

// ApplyVote moves the ledger row and the target counters together. Update and delete are guarded
// by the vote type read before, so a concurrent change makes them miss and roll back.
func (s *Store) ApplyVote(ctx context.Context, c models.VoteChange) (int64, error) {
	var score int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyVoteRow(tx, c); err != nil {
			return err
		}

		counters := tx.Model(&models.Post{}).Where("id = ?", c.Target.PostID)
		if !c.Target.IsPost() {
			counters = tx.Model(&models.Reply{}).Where("id = ?", c.Target.ReplyID)
		}
		res := counters.UpdateColumns(map[string]interface{}{
			"upvote_count":   gorm.Expr("upvote_count + ?", c.UpvoteDelta),
			"downvote_count": gorm.Expr("downvote_count + ?", c.DownvoteDelta),
			"score":          gorm.Expr("score + ?", c.ScoreDelta),
		})
		if res.Error != nil {
			return errors.Wrap(res.Error, "repository:ApplyVote: UpdateColumns")
		}
		if res.RowsAffected == 0 {
			return errors.Wrap(gorm.ErrRecordNotFound, "repository:ApplyVote: target")
		}

		read := tx.Model(&models.Post{}).Where("id = ?", c.Target.PostID)
		if !c.Target.IsPost() {
			read = tx.Model(&models.Reply{}).Where("id = ?", c.Target.ReplyID)
		}
		var scores []int64
		if err := read.Pluck("score", &scores).Error; err != nil {
			return errors.Wrap(err, "repository:ApplyVote: Pluck")
		}
		if len(scores) == 0 {
			return errors.Wrap(gorm.ErrRecordNotFound, "repository:ApplyVote: score")
		}
		score = scores[0]
		return nil
	})
	return score, err
}

func applyVoteRow(tx *gorm.DB, c models.VoteChange) error {
	switch c.Action {
	case models.VoteActionCreate:
		vote := models.Vote{UserID: c.UserID, VoteType: c.To}
		if c.Target.IsPost() {
			vote.PostID = &c.Target.PostID
		} else {
			vote.ReplyID = &c.Target.ReplyID
		}
		return errors.Wrap(tx.Create(&vote).Error, "repository:ApplyVote: Create")
	case models.VoteActionUpdate:
		res := tx.Model(&models.Vote{}).Scopes(targetScope(c.Target)).
			Where("user_id = ? AND vote_type = ?", c.UserID, c.From).
			Updates(map[string]interface{}{"vote_type": c.To, "updated_at": time.Now()})
		if res.Error != nil {
			return errors.Wrap(res.Error, "repository:ApplyVote: Updates")
		}
		if res.RowsAffected == 0 {
			return errors.Wrap(gorm.ErrRecordNotFound, "repository:ApplyVote: vote changed")
		}
	case models.VoteActionDelete:
		res := tx.Scopes(targetScope(c.Target)).
			Where("user_id = ? AND vote_type = ?", c.UserID, c.From).
			Delete(&models.Vote{})
		if res.Error != nil {
			return errors.Wrap(res.Error, "repository:ApplyVote: Delete")
		}
		if res.RowsAffected == 0 {
			return errors.Wrap(gorm.ErrRecordNotFound, "repository:ApplyVote: vote removed")
		}
	default:
		return errors.Errorf("repository:ApplyVote: unknown action %q", c.Action)
	}
	return nil
}

func (s *Store) voteStates(ctx context.Context, userID uint, column string, ids []uint) (map[uint]models.VoteType, error) {
	out := make(map[uint]models.VoteType, len(ids))
	if userID == 0 || len(ids) == 0 {
		return out, nil
	}
	var votes []models.Vote
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Where(column+" IN ?", ids).Find(&votes).Error
	if err != nil {
		return nil, errors.Wrap(err, "repository:voteStates: Find")
	}
	for _, v := range votes {
		switch {
		case column == "post_id" && v.PostID != nil:
			out[*v.PostID] = v.VoteType
		case column == "reply_id" && v.ReplyID != nil:
			out[*v.ReplyID] = v.VoteType
		}
	}
	return out, nil
}

func (s *Store) PostVoteStates(ctx context.Context, userID uint, postIDs []uint) (map[uint]models.VoteType, error) {
	return s.voteStates(ctx, userID, "post_id", postIDs)
}

func (s *Store) ReplyVoteStates(ctx context.Context, userID uint, replyIDs []uint) (map[uint]models.VoteType, error) {
	return s.voteStates(ctx, userID, "reply_id", replyIDs)
}
