package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/carecircle/models"
)

// CounterPropagator keeps forum, category, member and post aggregates in line with the rows
// after a primary write. Every hook recomputes from scratch, so running one twice is harmless.
// Failures are logged and never returned.
type CounterPropagator struct {
	store CounterStore
	log   *zap.Logger
	now   func() time.Time
}

// NewCounterPropagator creates a propagator over store. A nil logger discards output.
func NewCounterPropagator(store CounterStore, log *zap.Logger) *CounterPropagator {
	if log == nil {
		log = zap.NewNop()
	}
	return &CounterPropagator{store: store, log: log, now: time.Now}
}

type counterHook struct {
	name string
	run  func(context.Context) error
}

// runHooks executes hooks in order; one failing does not stop the rest.
func (c *CounterPropagator) runHooks(ctx context.Context, hooks []counterHook, fields ...zap.Field) {
	for _, h := range hooks {
		if err := h.run(ctx); err != nil {
			c.log.Warn("counter propagation failed",
				append([]zap.Field{zap.String("hook", h.name), zap.Error(err)}, fields...)...)
		}
	}
}

func (c *CounterPropagator) forumActivity(forumID uint) counterHook {
	return counterHook{"forum_activity", func(ctx context.Context) error {
		return c.store.TouchForumActivity(ctx, forumID, c.now())
	}}
}

func (c *CounterPropagator) forumPosts(forumID uint) counterHook {
	return counterHook{"forum_post_count", func(ctx context.Context) error {
		return c.store.RecountForumPosts(ctx, forumID)
	}}
}

func (c *CounterPropagator) categoryPosts(categoryID uint) counterHook {
	return counterHook{"category_post_count", func(ctx context.Context) error {
		return c.store.RecountCategoryPosts(ctx, categoryID)
	}}
}

func (c *CounterPropagator) memberPosts(forumID, userID uint) counterHook {
	return counterHook{"member_post_count", func(ctx context.Context) error {
		return c.store.RecountMemberPosts(ctx, forumID, userID)
	}}
}

func (c *CounterPropagator) memberReplies(forumID, userID uint) counterHook {
	return counterHook{"member_reply_count", func(ctx context.Context) error {
		return c.store.RecountMemberReplies(ctx, forumID, userID)
	}}
}

func (c *CounterPropagator) postReplies(postID uint) counterHook {
	return counterHook{"post_reply_count", func(ctx context.Context) error {
		return c.store.RecountPostReplies(ctx, postID)
	}}
}

func (c *CounterPropagator) postLastReply(postID, userID uint, at time.Time) counterHook {
	return counterHook{"post_last_reply", func(ctx context.Context) error {
		return c.store.TouchPostLastReply(ctx, postID, userID, at)
	}}
}

// AfterPostCreated refreshes forum activity and the forum, category and member post counts.
func (c *CounterPropagator) AfterPostCreated(ctx context.Context, post models.Post) {
	hooks := []counterHook{
		c.forumActivity(post.ForumID),
		c.forumPosts(post.ForumID),
	}
	if post.CategoryID != nil {
		hooks = append(hooks, c.categoryPosts(*post.CategoryID))
	}
	hooks = append(hooks, c.memberPosts(post.ForumID, post.AuthorID))
	c.runHooks(ctx, hooks, zap.Uint("post_id", post.ID))
}

// AfterPostDeleted recounts the forum and category the post was counted in.
func (c *CounterPropagator) AfterPostDeleted(ctx context.Context, post models.Post) {
	hooks := []counterHook{c.forumPosts(post.ForumID)}
	if post.CategoryID != nil {
		hooks = append(hooks, c.categoryPosts(*post.CategoryID))
	}
	hooks = append(hooks, c.memberPosts(post.ForumID, post.AuthorID))
	c.runHooks(ctx, hooks, zap.Uint("post_id", post.ID))
}

// AfterPostRecategorized recounts both the previous and the new category.
func (c *CounterPropagator) AfterPostRecategorized(ctx context.Context, post models.Post, previous *uint) {
	var hooks []counterHook
	if previous != nil {
		hooks = append(hooks, c.categoryPosts(*previous))
	}
	if post.CategoryID != nil {
		hooks = append(hooks, c.categoryPosts(*post.CategoryID))
	}
	c.runHooks(ctx, hooks, zap.Uint("post_id", post.ID))
}

// AfterReplyCreated refreshes the post reply count and last reply, forum activity and the
// author's reply count.
func (c *CounterPropagator) AfterReplyCreated(ctx context.Context, post models.Post, reply models.Reply) {
	c.runHooks(ctx, []counterHook{
		c.postReplies(post.ID),
		c.postLastReply(post.ID, reply.AuthorID, reply.CreatedAt),
		c.forumActivity(post.ForumID),
		c.memberReplies(post.ForumID, reply.AuthorID),
	}, zap.Uint("post_id", post.ID), zap.Uint("reply_id", reply.ID))
}

// AfterReplyDeleted recounts the post's replies.
func (c *CounterPropagator) AfterReplyDeleted(ctx context.Context, reply models.Reply) {
	c.runHooks(ctx, []counterHook{c.postReplies(reply.PostID)},
		zap.Uint("post_id", reply.PostID), zap.Uint("reply_id", reply.ID))
}
