package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/carecircle/models"
)

var postSortColumns = map[models.PostSortKey]string{
	models.PostSortCreatedAt:   "created_at",
	models.PostSortLastReplyAt: "last_reply_at",
	models.PostSortScore:       "score",
	models.PostSortViewCount:   "view_count",
	models.PostSortReplyCount:  "reply_count",
}

// postEditColumns are the only columns an edit may write. Counters move through their own
// statements.
var postEditColumns = []string{
	"title", "slug", "content", "type", "category_id", "tags", "attachments", "metadata",
	"is_pinned", "is_locked", "updated_at", "edited_at",
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return errors.Wrap(err, "repository:CreatePost: Create")
		}
		return replacePostTags(tx, post.ID, post.Tags)
	})
}

func replacePostTags(tx *gorm.DB, postID uint, tags []string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return errors.Wrap(err, "repository:replacePostTags: Delete")
	}
	if len(tags) == 0 {
		return nil
	}
	rows := make([]models.PostTag, len(tags))
	for i, t := range tags {
		rows[i] = models.PostTag{PostID: postID, Tag: t}
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return errors.Wrap(err, "repository:replacePostTags: Create")
}

func (s *Store) GetPost(ctx context.Context, id uint) (models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, id).Error
	return post, errors.Wrap(err, "repository:GetPost: First")
}

func (s *Store) GetPostBySlug(ctx context.Context, forumSlug, postSlug string) (models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Select("posts.*").
		Joins("JOIN forums ON forums.id = posts.forum_id").
		Where("forums.slug = ? AND posts.slug = ?", forumSlug, postSlug).
		First(&post).Error
	return post, errors.Wrap(err, "repository:GetPostBySlug: First")
}

func (s *Store) PostSlugExists(ctx context.Context, forumID uint, slug string, excludeID uint) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Post{}).Where("forum_id = ? AND slug = ?", forumID, slug)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	err := q.Count(&n).Error
	return n > 0, errors.Wrap(err, "repository:PostSlugExists: Count")
}

func (s *Store) ListPosts(ctx context.Context, f models.PostFilter, q models.PostQuery) ([]models.Post, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Post{})
	if f.ForumID != 0 {
		query = query.Where("forum_id = ?", f.ForumID)
	}
	if f.CategoryID != 0 {
		query = query.Where("category_id = ?", f.CategoryID)
	}
	if f.AuthorID != 0 {
		query = query.Where("author_id = ?", f.AuthorID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.IsPinned != nil {
		query = query.Where("is_pinned = ?", *f.IsPinned)
	}
	if f.IsLocked != nil {
		query = query.Where("is_locked = ?", *f.IsLocked)
	}
	if f.IsDeleted != nil {
		query = query.Where("is_deleted = ?", *f.IsDeleted)
	}
	if len(f.Tags) > 0 {
		query = query.Where("id IN (?)", db.Model(&models.PostTag{}).Select("post_id").Where("tag IN ?", f.Tags))
	}
	if f.Search != "" {
		like := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(content) LIKE ? ESCAPE '!'", like, like)
	}
	if f.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		query = query.Where("created_at <= ?", *f.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "repository:ListPosts: Count")
	}

	column, ok := postSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	desc := q.SortOrder != models.SortAsc
	var posts []models.Post
	err := query.
		Order("is_pinned DESC").
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc}).
		Offset(q.Offset()).
		Limit(q.Limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "repository:ListPosts: Find")
	}
	return posts, total, nil
}

func (s *Store) UpdatePostContent(ctx context.Context, post models.Post) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Post{ID: post.ID}).Select(postEditColumns).Updates(&post).Error
		if err != nil {
			return errors.Wrap(err, "repository:UpdatePostContent: Updates")
		}
		return replacePostTags(tx, post.ID, post.Tags)
	})
}

func (s *Store) IncrementPostViews(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
	return errors.Wrap(err, "repository:IncrementPostViews: UpdateColumn")
}

func (s *Store) SoftDeletePost(ctx context.Context, id, deletedBy uint, reason string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"is_deleted":    true,
		"deleted_at":    at,
		"deleted_by":    deletedBy,
		"delete_reason": reason,
		"updated_at":    at,
	}).Error
	return errors.Wrap(err, "repository:SoftDeletePost: UpdateColumns")
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike quotes LIKE wildcards so the search text matches literally under ESCAPE '!'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
