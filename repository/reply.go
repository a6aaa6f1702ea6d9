package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm/clause"

	"github.com/cppla/carecircle/models"
)

var replySortColumns = map[models.ReplySortKey]string{
	models.ReplySortCreatedAt: "created_at",
	models.ReplySortScore:     "score",
	models.ReplySortDepth:     "depth",
}

func (s *Store) CreateReply(ctx context.Context, reply *models.Reply) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(reply).Error, "repository:CreateReply: Create")
}

func (s *Store) GetReply(ctx context.Context, id uint) (models.Reply, error) {
	var reply models.Reply
	err := s.db.WithContext(ctx).First(&reply, id).Error
	return reply, errors.Wrap(err, "repository:GetReply: First")
}

func (s *Store) ListReplies(ctx context.Context, f models.ReplyFilter, q models.ReplyQuery) ([]models.Reply, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Reply{})
	if f.PostID != 0 {
		query = query.Where("post_id = ?", f.PostID)
	}
	if f.AuthorID != 0 {
		query = query.Where("author_id = ?", f.AuthorID)
	}
	switch {
	case f.ParentID != nil:
		query = query.Where("parent_id = ?", *f.ParentID)
	case f.TopLevelOnly:
		query = query.Where("parent_id IS NULL")
	}
	if f.IsDeleted != nil {
		query = query.Where("is_deleted = ?", *f.IsDeleted)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "repository:ListReplies: Count")
	}

	column, ok := replySortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	desc := q.SortOrder == models.SortDesc
	if q.Threaded {
		query = query.Order("depth ASC")
	}
	var replies []models.Reply
	err := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
		Order("id ASC").
		Offset(q.Offset()).
		Limit(q.Limit).
		Find(&replies).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "repository:ListReplies: Find")
	}
	return replies, total, nil
}

func (s *Store) ListChildren(ctx context.Context, parentIDs []uint) ([]models.Reply, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var replies []models.Reply
	err := s.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("score DESC").Order("created_at ASC").Order("id ASC").
		Find(&replies).Error
	return replies, errors.Wrap(err, "repository:ListChildren: Find")
}

func (s *Store) ListPostReplies(ctx context.Context, postID uint, includeDeleted bool, limit int) ([]models.Reply, error) {
	query := s.db.WithContext(ctx).Where("post_id = ?", postID)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var replies []models.Reply
	err := query.Order("depth ASC").Order("score DESC").Order("created_at ASC").Order("id ASC").
		Find(&replies).Error
	return replies, errors.Wrap(err, "repository:ListPostReplies: Find")
}

func (s *Store) CountChildren(ctx context.Context, replyID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Reply{}).
		Where("parent_id = ? AND is_deleted = ?", replyID, false).
		Count(&n).Error
	return n, errors.Wrap(err, "repository:CountChildren: Count")
}

func (s *Store) UpdateReplyContent(ctx context.Context, reply models.Reply) error {
	err := s.db.WithContext(ctx).Model(&models.Reply{ID: reply.ID}).
		Select("content", "attachments", "metadata", "updated_at", "edited_at").
		Updates(&reply).Error
	return errors.Wrap(err, "repository:UpdateReplyContent: Updates")
}

func (s *Store) SoftDeleteReply(ctx context.Context, id, deletedBy uint, reason string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Reply{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"is_deleted":    true,
		"deleted_at":    at,
		"deleted_by":    deletedBy,
		"delete_reason": reason,
		"updated_at":    at,
	}).Error
	return errors.Wrap(err, "repository:SoftDeleteReply: UpdateColumns")
}
