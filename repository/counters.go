package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cppla/carecircle/models"
)

// Recounts write a COUNT(*) subquery into the aggregate column in one statement.

func (s *Store) RecountForumPosts(ctx context.Context, forumID uint) error {
	db := s.db.WithContext(ctx)
	count := db.Model(&models.Post{}).Select("COUNT(*)").Where("forum_id = ? AND is_deleted = ?", forumID, false)
	err := db.Model(&models.Forum{}).Where("id = ?", forumID).UpdateColumn("post_count", count).Error
	return errors.Wrap(err, "repository:RecountForumPosts: UpdateColumn")
}

func (s *Store) RecountCategoryPosts(ctx context.Context, categoryID uint) error {
	db := s.db.WithContext(ctx)
	count := db.Model(&models.Post{}).Select("COUNT(*)").Where("category_id = ? AND is_deleted = ?", categoryID, false)
	err := db.Model(&models.Category{}).Where("id = ?", categoryID).UpdateColumn("post_count", count).Error
	return errors.Wrap(err, "repository:RecountCategoryPosts: UpdateColumn")
}

func (s *Store) RecountMemberPosts(ctx context.Context, forumID, userID uint) error {
	db := s.db.WithContext(ctx)
	count := db.Model(&models.Post{}).Select("COUNT(*)").
		Where("forum_id = ? AND author_id = ? AND is_deleted = ?", forumID, userID, false)
	err := db.Model(&models.ForumMember{}).Where("forum_id = ? AND user_id = ?", forumID, userID).
		UpdateColumn("post_count", count).Error
	return errors.Wrap(err, "repository:RecountMemberPosts: UpdateColumn")
}

func (s *Store) RecountMemberReplies(ctx context.Context, forumID, userID uint) error {
	db := s.db.WithContext(ctx)
	count := db.Model(&models.Reply{}).Select("COUNT(*)").
		Joins("JOIN posts ON posts.id = replies.post_id").
		Where("posts.forum_id = ? AND replies.author_id = ? AND replies.is_deleted = ?", forumID, userID, false)
	err := db.Model(&models.ForumMember{}).Where("forum_id = ? AND user_id = ?", forumID, userID).
		UpdateColumn("reply_count", count).Error
	return errors.Wrap(err, "repository:RecountMemberReplies: UpdateColumn")
}

func (s *Store) RecountPostReplies(ctx context.Context, postID uint) error {
	db := s.db.WithContext(ctx)
	count := db.Model(&models.Reply{}).Select("COUNT(*)").Where("post_id = ? AND is_deleted = ?", postID, false)
	err := db.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("reply_count", count).Error
	return errors.Wrap(err, "repository:RecountPostReplies: UpdateColumn")
}

func (s *Store) TouchForumActivity(ctx context.Context, forumID uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Forum{}).Where("id = ?", forumID).
		UpdateColumn("last_activity_at", at).Error
	return errors.Wrap(err, "repository:TouchForumActivity: UpdateColumn")
}

func (s *Store) TouchPostLastReply(ctx context.Context, postID, userID uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumns(map[string]interface{}{"last_reply_at": at, "last_reply_by": userID}).Error
	return errors.Wrap(err, "repository:TouchPostLastReply: UpdateColumns")
}
