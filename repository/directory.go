package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cppla/carecircle/models"
)

func (s *Store) GetForum(ctx context.Context, id uint) (models.Forum, error) {
	var forum models.Forum
	err := s.db.WithContext(ctx).First(&forum, id).Error
	return forum, errors.Wrap(err, "repository:GetForum: First")
}

func (s *Store) GetCategory(ctx context.Context, id uint) (models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).First(&category, id).Error
	return category, errors.Wrap(err, "repository:GetCategory: First")
}

func (s *Store) IsForumMember(ctx context.Context, forumID, userID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ForumMember{}).
		Where("forum_id = ? AND user_id = ?", forumID, userID).Count(&n).Error
	return n > 0, errors.Wrap(err, "repository:IsForumMember: Count")
}

func (s *Store) UserExists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error
	return n > 0, errors.Wrap(err, "repository:UserExists: Count")
}
