package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/carecircle/config"
	"github.com/cppla/carecircle/models"
	"github.com/cppla/carecircle/services"
	"github.com/cppla/carecircle/utils"
)

// PostManager is the post surface the HTTP layer drives.
type PostManager interface {
	CreatePost(ctx context.Context, in services.CreatePostInput) (models.Post, error)
	GetPostByID(ctx context.Context, id uint, opts services.GetPostOptions) (*services.PostDetail, error)
	GetPostBySlug(ctx context.Context, forumSlug, postSlug string, opts services.GetPostOptions) (*services.PostDetail, error)
	ListPosts(ctx context.Context, filter models.PostFilter, opts services.ListPostsOptions) (*services.PostPage, error)
	UpdatePost(ctx context.Context, id uint, actor services.Actor, in services.UpdatePostInput) (models.Post, error)
	DeletePost(ctx context.Context, id uint, actor services.Actor, reason string) (models.Post, error)
	VoteOnPost(ctx context.Context, postID, userID uint, voteType models.VoteType) (services.VoteResult, error)
	GetPostStatistics(ctx context.Context, id uint) (services.PostStatistics, error)
}

// PostController exposes posts over JSON.
type PostController struct {
	posts PostManager
	cfg   config.AppConfig
	ttl   time.Duration
	log   *zap.Logger
}

// NewPostController creates a new PostController instance.
func NewPostController(posts PostManager, cfg config.AppConfig, log *zap.Logger) *PostController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostController{
		posts: posts,
		cfg:   cfg,
		ttl:   time.Duration(cfg.CacheTTLSeconds) * time.Second,
		log:   log,
	}
}

type createPostRequest struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	ForumID     uint            `json:"forum_id"`
	Type        models.PostType `json:"type"`
	CategoryID  *uint           `json:"category_id"`
	Tags        []string        `json:"tags"`
	Attachments []string        `json:"attachments"`
	Metadata    map[string]any  `json:"metadata"`
	DocumentIDs []uint          `json:"document_ids"`
}

// CreatePost stores a post authored by the caller.
func (p *PostController) CreatePost(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, p.cfg)
	if !ok {
		unauthorized(ctx)
		return
	}
	var req createPostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request payload")
		return
	}

	post, err := p.posts.CreatePost(ctx.Request.Context(), services.CreatePostInput{
		Title:       req.Title,
		Content:     req.Content,
		ForumID:     req.ForumID,
		AuthorID:    actor.UserID,
		Type:        req.Type,
		CategoryID:  req.CategoryID,
		Tags:        req.Tags,
		Attachments: req.Attachments,
		Metadata:    req.Metadata,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}

	utils.InvalidateByPrefix(ctx.Request.Context(), postListPrefix)
	utils.Created(ctx, post)
}

// ListPosts returns a filtered page of posts. Anonymous pages are served from the cache.
func (p *PostController) ListPosts(ctx *gin.Context) {
	userID, moderator := viewer(ctx, p.cfg)
	q := newQuery(ctx)
	filter := models.PostFilter{
		ForumID:     q.id("forum_id"),
		CategoryID:  q.id("category_id"),
		AuthorID:    q.id("author_id"),
		Type:        models.PostType(q.str("type")),
		IsPinned:    q.flagPtr("is_pinned"),
		IsLocked:    q.flagPtr("is_locked"),
		Tags:        q.list("tags"),
		Search:      q.str("search"),
		CreatedFrom: q.timestamp("created_from"),
		CreatedTo:   q.timestamp("created_to"),
	}
	opts := services.ListPostsOptions{
		Page:           q.integer("page"),
		Limit:          q.integer("limit"),
		SortBy:         models.PostSortKey(q.str("sort_by")),
		SortOrder:      models.SortOrder(q.str("sort_order")),
		IncludeReplies: q.flag("include_replies"),
		UserID:         userID,
	}
	if deleted := q.flagPtr("deleted"); deleted != nil && *deleted {
		if !moderator {
			forbidden(ctx, "only moderators can list deleted posts")
			return
		}
		filter.IsDeleted = deleted
	}
	if q.err != nil {
		badRequest(ctx, q.err.Error())
		return
	}

	cacheable := userID == 0
	key := postListKey(ctx)
	if cacheable {
		if b, ok := utils.CacheGetBytes(ctx.Request.Context(), key); ok {
			writeCached(ctx, b)
			return
		}
	}

	page, err := p.posts.ListPosts(ctx.Request.Context(), filter, opts)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	if cacheable {
		if b, err := envelope(page); err == nil {
			utils.CacheSetBytes(ctx.Request.Context(), key, b, p.ttl)
			writeCached(ctx, b)
			return
		}
	}
	utils.Success(ctx, page)
}

// GetPost returns one post and counts a view.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	opts, ok := p.detailOptions(ctx)
	if !ok {
		return
	}
	detail, err := p.posts.GetPostByID(ctx.Request.Context(), id, opts)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, detail)
}

// GetPostBySlug resolves /forums/:forumSlug/posts/:postSlug.
func (p *PostController) GetPostBySlug(ctx *gin.Context) {
	opts, ok := p.detailOptions(ctx)
	if !ok {
		return
	}
	detail, err := p.posts.GetPostBySlug(ctx.Request.Context(), ctx.Param("forumSlug"), ctx.Param("postSlug"), opts)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, detail)
}

func (p *PostController) detailOptions(ctx *gin.Context) (services.GetPostOptions, bool) {
	userID, moderator := viewer(ctx, p.cfg)
	q := newQuery(ctx)
	opts := services.GetPostOptions{
		IncludeReplies:   q.flag("include_replies"),
		IncludeVotes:     userID != 0,
		IncludeDocuments: q.flag("include_documents"),
		IncludeDeleted:   q.flag("include_deleted"),
		UserID:           userID,
	}
	if q.err != nil {
		badRequest(ctx, q.err.Error())
		return opts, false
	}
	if opts.IncludeDeleted && !moderator {
		forbidden(ctx, "only moderators can view deleted posts")
		return opts, false
	}
	return opts, true
}

type updatePostRequest struct {
	Title         *string          `json:"title"`
	Content       *string          `json:"content"`
	Type          *models.PostType `json:"type"`
	CategoryID    *uint            `json:"category_id"`
	ClearCategory bool             `json:"clear_category"`
	Tags          *[]string        `json:"tags"`
	Attachments   *[]string        `json:"attachments"`
	Metadata      map[string]any   `json:"metadata"`
	IsPinned      *bool            `json:"is_pinned"`
	IsLocked      *bool            `json:"is_locked"`
}

// UpdatePost applies a partial edit. Pin and lock changes need a moderator role.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, p.cfg)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req updatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request payload")
		return
	}

	post, err := p.posts.UpdatePost(ctx.Request.Context(), id, actor, services.UpdatePostInput{
		Title:         req.Title,
		Content:       req.Content,
		Type:          req.Type,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
		Tags:          req.Tags,
		Attachments:   req.Attachments,
		Metadata:      req.Metadata,
		IsPinned:      req.IsPinned,
		IsLocked:      req.IsLocked,
	})
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), postListPrefix)
	utils.Success(ctx, post)
}

// DeletePost soft-deletes a post; ?reason= is recorded.
func (p *PostController) DeletePost(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, p.cfg)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.posts.DeletePost(ctx.Request.Context(), id, actor, ctx.Query("reason"))
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), replyPrefixes(id)...)
	utils.Success(ctx, post)
}

type voteRequest struct {
	VoteType models.VoteType `json:"vote_type"`
}

// VotePost toggles or switches the caller's vote.
func (p *PostController) VotePost(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, p.cfg)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req voteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request payload")
		return
	}

	res, err := withVoteRetry(func() (services.VoteResult, error) {
		return p.posts.VoteOnPost(ctx.Request.Context(), id, actor.UserID, req.VoteType)
	})
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), postListPrefix)
	utils.Success(ctx, res)
}

// PostStats returns engagement figures for a post.
func (p *PostController) PostStats(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	stats, err := p.posts.GetPostStatistics(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, p.log, err)
		return
	}
	utils.Success(ctx, stats)
}

// withVoteRetry repeats a vote once when it lost a race on the ledger row.
func withVoteRetry(vote func() (services.VoteResult, error)) (services.VoteResult, error) {
	res, err := vote()
	if services.IsRetryable(err) {
		res, err = vote()
	}
	return res, err
}
