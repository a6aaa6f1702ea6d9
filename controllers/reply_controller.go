package controllers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cppla/carecircle/config"
	"github.com/cppla/carecircle/models"
	"github.com/cppla/carecircle/services"
	"github.com/cppla/carecircle/utils"
)

// ReplyManager is the reply surface the HTTP layer drives.
type ReplyManager interface {
	CreateReply(ctx context.Context, in services.CreateReplyInput) (models.Reply, error)
	GetReplyByID(ctx context.Context, id uint, opts services.GetReplyOptions) (*services.ReplyDetail, error)
	GetReplies(ctx context.Context, filter models.ReplyFilter, opts services.ListRepliesOptions) (*services.ReplyPage, error)
	GetReplyTree(ctx context.Context, postID, userID uint) ([]*services.ReplyNode, error)
	UpdateReply(ctx context.Context, id uint, actor services.Actor, in services.UpdateReplyInput) (models.Reply, error)
	DeleteReply(ctx context.Context, id uint, actor services.Actor, reason string) (models.Reply, error)
	VoteOnReply(ctx context.Context, replyID, userID uint, voteType models.VoteType) (services.VoteResult, error)
	GetReplyStatistics(ctx context.Context, id uint) (services.ReplyStatistics, error)
}

// ReplyController exposes replies and reply trees over JSON.
type ReplyController struct {
	replies ReplyManager
	cfg     config.AppConfig
	ttl     time.Duration
	log     *zap.Logger
	trees   singleflight.Group
}

// NewReplyController creates a new ReplyController instance.
func NewReplyController(replies ReplyManager, cfg config.AppConfig, log *zap.Logger) *ReplyController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReplyController{
		replies: replies,
		cfg:     cfg,
		ttl:     time.Duration(cfg.CacheTTLSeconds) * time.Second,
		log:     log,
	}
}

type createReplyRequest struct {
	Content     string         `json:"content"`
	ParentID    *uint          `json:"parent_id"`
	Attachments []string       `json:"attachments"`
	Metadata    map[string]any `json:"metadata"`
	DocumentIDs []uint         `json:"document_ids"`
}

// CreateReply answers a post or, with parent_id, another reply.
func (r *ReplyController) CreateReply(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, r.cfg)
	if !ok {
		unauthorized(ctx)
		return
	}
	postID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req createReplyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request payload")
		return
	}

	reply, err := r.replies.CreateReply(ctx.Request.Context(), services.CreateReplyInput{
		Content:     req.Content,
		PostID:      postID,
		AuthorID:    actor.UserID,
		ParentID:    req.ParentID,
		Attachments: req.Attachments,
		Metadata:    req.Metadata,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), replyPrefixes(postID)...)
	utils.Created(ctx, reply)
}

// ListReplies pages the replies of a post.
func (r *ReplyController) ListReplies(ctx *gin.Context) {
	postID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, _ := viewer(ctx, r.cfg)
	q := newQuery(ctx)
	filter := models.ReplyFilter{
		PostID:       postID,
		AuthorID:     q.id("author_id"),
		ParentID:     q.idPtr("parent_id"),
		TopLevelOnly: q.flag("top_level"),
	}
	opts := services.ListRepliesOptions{
		Page:            q.integer("page"),
		Limit:           q.integer("limit"),
		SortBy:          models.ReplySortKey(q.str("sort_by")),
		SortOrder:       models.SortOrder(q.str("sort_order")),
		IncludeChildren: q.flag("include_children"),
		Threaded:        q.flag("threaded"),
		UserID:          userID,
	}
	if q.err != nil {
		badRequest(ctx, q.err.Error())
		return
	}

	cacheable := userID == 0
	key := replyListKey(ctx, postID)
	if cacheable {
		if b, ok := utils.CacheGetBytes(ctx.Request.Context(), key); ok {
			writeCached(ctx, b)
			return
		}
	}
	page, err := r.replies.GetReplies(ctx.Request.Context(), filter, opts)
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	if cacheable {
		if b, err := envelope(page); err == nil {
			utils.CacheSetBytes(ctx.Request.Context(), key, b, r.ttl)
			writeCached(ctx, b)
			return
		}
	}
	utils.Success(ctx, page)
}

// ReplyTree returns the reply forest of a post. Concurrent anonymous loads of one post share a
// single store round trip.
func (r *ReplyController) ReplyTree(ctx *gin.Context) {
	postID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, _ := viewer(ctx, r.cfg)
	if userID != 0 {
		roots, err := r.replies.GetReplyTree(ctx.Request.Context(), postID, userID)
		if err != nil {
			respondError(ctx, r.log, err)
			return
		}
		utils.Success(ctx, roots)
		return
	}

	key := replyTreeKey(postID)
	v, err, _ := r.trees.Do(strconv.FormatUint(uint64(postID), 10), func() (interface{}, error) {
		// Detached so one caller going away does not fail the others.
		loadCtx := context.WithoutCancel(ctx.Request.Context())
		if b, ok := utils.CacheGetBytes(loadCtx, key); ok {
			return b, nil
		}
		roots, err := r.replies.GetReplyTree(loadCtx, postID, 0)
		if err != nil {
			return nil, err
		}
		b, err := envelope(roots)
		if err != nil {
			return nil, err
		}
		utils.CacheSetBytes(loadCtx, key, b, r.ttl)
		return b, nil
	})
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	writeCached(ctx, v.([]byte))
}

// GetReply returns one reply.
func (r *ReplyController) GetReply(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, moderator := viewer(ctx, r.cfg)
	q := newQuery(ctx)
	opts := services.GetReplyOptions{
		IncludeChildren:  q.flag("include_children"),
		IncludeDocuments: q.flag("include_documents"),
		IncludeDeleted:   q.flag("include_deleted"),
		UserID:           userID,
	}
	if q.err != nil {
		badRequest(ctx, q.err.Error())
		return
	}
	if opts.IncludeDeleted && !moderator {
		forbidden(ctx, "only moderators can view deleted replies")
		return
	}
	detail, err := r.replies.GetReplyByID(ctx.Request.Context(), id, opts)
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.Success(ctx, detail)
}

type updateReplyRequest struct {
	Content     *string        `json:"content"`
	Attachments *[]string      `json:"attachments"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateReply edits a reply's content, attachments or metadata.
func (r *ReplyController) UpdateReply(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, r.cfg)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req updateReplyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid request payload")
		return
	}
	reply, err := r.replies.UpdateReply(ctx.Request.Context(), id, actor, services.UpdateReplyInput{
		Content:     req.Content,
		Attachments: req.Attachments,
		Metadata:    req.Metadata,
	})
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), replyPrefixes(reply.PostID)...)
	utils.Success(ctx, reply)
}

// DeleteReply soft-deletes a reply; ?reason= is recorded.
func (r *ReplyController) DeleteReply(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, r.cfg)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	reply, err := r.replies.DeleteReply(ctx.Request.Context(), id, actor, ctx.Query("reason"))
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), replyPrefixes(reply.PostID)...)
	utils.Success(ctx, reply)
}

// VoteReply toggles or switches the caller's vote on a reply.
func (r *ReplyController) VoteReply(ctx *gin.Context) {
	actor, ok := actorFrom(ctx, r.cfg)
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
		return r.replies.VoteOnReply(ctx.Request.Context(), id, actor.UserID, req.VoteType)
	})
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	// The vote result does not name the post, so every cached reply view is dropped.
	utils.InvalidateByPrefix(ctx.Request.Context(), replyTreePrefix, replyListPrefix)
	utils.Success(ctx, res)
}

// ReplyStats returns vote and child counts for a reply.
func (r *ReplyController) ReplyStats(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	stats, err := r.replies.GetReplyStatistics(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.Success(ctx, stats)
}
