package services

import (
	"context"
	"html"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/carecircle/models"
)

const (
	// detailReplyLimit caps the replies eager-loaded with a single post.
	detailReplyLimit = 50
	defaultPostLimit = 20
	maxTagLength     = 64
)

// PostService owns the post lifecycle and query surface.
type PostService struct {
	store    Store
	ledger   *VoteLedger
	counters *CounterPropagator
	log      *zap.Logger
	now      func() time.Time
}

// NewPostService wires a post manager. A nil logger discards output.
func NewPostService(store Store, ledger *VoteLedger, counters *CounterPropagator, log *zap.Logger) *PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostService{store: store, ledger: ledger, counters: counters, log: log, now: time.Now}
}

// CreatePostInput carries the fields of a new post. DocumentIDs reference pre-uploaded documents.
type CreatePostInput struct {
	Title       string
	Content     string
	ForumID     uint
	AuthorID    uint
	Type        models.PostType
	CategoryID  *uint
	Tags        []string
	Attachments []string
	Metadata    map[string]any
	DocumentIDs []uint
}

// GetPostOptions selects what is loaded with a post.
type GetPostOptions struct {
	IncludeReplies   bool
	IncludeVotes     bool
	IncludeDocuments bool
	IncludeDeleted   bool
	UserID           uint
}

// PostDetail is a post with its optional eager-loaded relations.
type PostDetail struct {
	models.Post
	Replies   []ReplyView       `json:"replies,omitempty"`
	UserVote  *models.VoteType  `json:"user_vote,omitempty"`
	Documents []models.Document `json:"documents,omitempty"`
}

// ReplyView is a reply with the caller's vote.
type ReplyView struct {
	models.Reply
	UserVote *models.VoteType `json:"user_vote,omitempty"`
}

// ListPostsOptions pages, orders and decorates a post listing.
type ListPostsOptions struct {
	Page           int
	Limit          int
	SortBy         models.PostSortKey
	SortOrder      models.SortOrder
	IncludeReplies bool
	UserID         uint
}

// PostPage is one page of a post listing.
type PostPage struct {
	Items      []PostDetail `json:"items"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"total_pages"`
}

// UpdatePostInput holds the fields to change; nil leaves a field untouched.
// ClearCategory removes the category.
type UpdatePostInput struct {
	Title         *string
	Content       *string
	Type          *models.PostType
	CategoryID    *uint
	ClearCategory bool
	Tags          *[]string
	Attachments   *[]string
	Metadata      map[string]any
	IsPinned      *bool
	IsLocked      *bool
}

// PostStatistics summarises engagement on a post.
type PostStatistics struct {
	ViewCount      int64   `json:"view_count"`
	ReplyCount     int64   `json:"reply_count"`
	UpvoteCount    int64   `json:"upvote_count"`
	DownvoteCount  int64   `json:"downvote_count"`
	Score          int64   `json:"score"`
	EngagementRate float64 `json:"engagement_rate"`
}

// CreatePost validates the forum, author and category, stores the post under a slug unique in
// its forum and then refreshes the forum counters.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (models.Post, error) {
	title := sanitize(in.Title)
	content := sanitize(in.Content)
	switch {
	case title == "":
		return models.Post{}, validationError("title is required")
	case content == "":
		return models.Post{}, validationError("content is required")
	case in.ForumID == 0:
		return models.Post{}, validationError("forumId is required")
	case in.AuthorID == 0:
		return models.Post{}, validationError("authorId is required")
	}
	postType := in.Type
	if postType == "" {
		postType = models.PostTypeDiscussion
	}
	if !postType.Valid() {
		return models.Post{}, validationError("invalid post type %q", postType)
	}
	tags, err := validTags(in.Tags)
	if err != nil {
		return models.Post{}, err
	}

	if _, err := s.activeForum(ctx, in.ForumID); err != nil {
		return models.Post{}, err
	}
	if err := s.checkMember(ctx, in.ForumID, in.AuthorID); err != nil {
		return models.Post{}, err
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, *in.CategoryID, in.ForumID); err != nil {
			return models.Post{}, err
		}
	}

	slug, err := s.uniqueSlug(ctx, in.ForumID, title, 0)
	if err != nil {
		return models.Post{}, err
	}

	now := s.now()
	post := models.Post{
		ForumID:     in.ForumID,
		Slug:        slug,
		CategoryID:  in.CategoryID,
		AuthorID:    in.AuthorID,
		Title:       title,
		Content:     content,
		Type:        postType,
		Tags:        tags,
		Attachments: in.Attachments,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastReplyAt: &now,
	}
	if err := s.store.CreatePost(ctx, &post); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Post{}, conflictError("slug %q is already taken in this forum", slug)
		}
		return models.Post{}, errors.Wrap(err, "services:CreatePost: CreatePost")
	}

	if ids := uniqueUint(in.DocumentIDs); len(ids) > 0 {
		if err := s.store.AttachDocuments(ctx, models.PostTarget(post.ID), ids); err != nil {
			s.log.Warn("attach documents failed", zap.Uint("post_id", post.ID), zap.Error(err))
		}
	}

	s.counters.AfterPostCreated(ctx, post)
	return post, nil
}

// GetPostByID returns a post and counts the read as a view.
func (s *PostService) GetPostByID(ctx context.Context, id uint, opts GetPostOptions) (*PostDetail, error) {
	post, err := s.visiblePost(ctx, id, opts.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, post, opts)
}

// GetPostBySlug resolves a post through its forum slug and counts the read as a view.
func (s *PostService) GetPostBySlug(ctx context.Context, forumSlug, postSlug string, opts GetPostOptions) (*PostDetail, error) {
	if strings.TrimSpace(forumSlug) == "" || strings.TrimSpace(postSlug) == "" {
		return nil, validationError("forum slug and post slug are required")
	}
	post, err := s.store.GetPostBySlug(ctx, forumSlug, postSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("post not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "services:GetPostBySlug: GetPostBySlug")
	}
	if post.IsDeleted && !opts.IncludeDeleted {
		return nil, notFoundError("post not found")
	}
	return s.detail(ctx, post, opts)
}

func (s *PostService) detail(ctx context.Context, post models.Post, opts GetPostOptions) (*PostDetail, error) {
	if err := s.store.IncrementPostViews(ctx, post.ID); err != nil {
		s.log.Warn("increment post views failed", zap.Uint("post_id", post.ID), zap.Error(err))
	} else {
		post.ViewCount++
	}

	out := &PostDetail{Post: post}
	if opts.IncludeReplies {
		replies, err := s.store.ListPostReplies(ctx, post.ID, false, detailReplyLimit)
		if err != nil {
			return nil, errors.Wrap(err, "services:GetPost: ListPostReplies")
		}
		out.Replies = make([]ReplyView, len(replies))
		for i, r := range replies {
			out.Replies[i] = ReplyView{Reply: r}
		}
	}
	if opts.IncludeVotes && opts.UserID != 0 {
		vote, err := s.store.GetVote(ctx, opts.UserID, models.PostTarget(post.ID))
		if err != nil {
			return nil, errors.Wrap(err, "services:GetPost: GetVote")
		}
		if vote != nil {
			v := vote.VoteType
			out.UserVote = &v
		}
		if err := s.decorateReplyVotes(ctx, opts.UserID, out.Replies); err != nil {
			return nil, err
		}
	}
	if opts.IncludeDocuments {
		docs, err := s.store.ListDocuments(ctx, models.PostTarget(post.ID))
		if err != nil {
			return nil, errors.Wrap(err, "services:GetPost: ListDocuments")
		}
		out.Documents = docs
	}
	return out, nil
}

func (s *PostService) decorateReplyVotes(ctx context.Context, userID uint, replies []ReplyView) error {
	if len(replies) == 0 {
		return nil
	}
	ids := make([]uint, len(replies))
	for i, r := range replies {
		ids[i] = r.ID
	}
	states, err := s.store.ReplyVoteStates(ctx, userID, ids)
	if err != nil {
		return errors.Wrap(err, "services:decorateReplyVotes: ReplyVoteStates")
	}
	for i := range replies {
		if v, ok := states[replies[i].ID]; ok {
			replies[i].UserVote = &v
		}
	}
	return nil
}

// ListPosts returns one page of posts, pinned first, then by the requested key.
func (s *PostService) ListPosts(ctx context.Context, filter models.PostFilter, opts ListPostsOptions) (*PostPage, error) {
	query, err := postQuery(opts)
	if err != nil {
		return nil, err
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, validationError("invalid post type %q", filter.Type)
	}
	if filter.IsDeleted == nil {
		notDeleted := false
		filter.IsDeleted = &notDeleted
	}
	filter.Tags = normalizeTags(filter.Tags)
	filter.Search = strings.TrimSpace(filter.Search)

	posts, total, err := s.store.ListPosts(ctx, filter, query)
	if err != nil {
		return nil, errors.Wrap(err, "services:ListPosts: ListPosts")
	}

	page := &PostPage{
		Items:      make([]PostDetail, len(posts)),
		Page:       query.Page,
		Limit:      query.Limit,
		Total:      total,
		TotalPages: totalPages(total, query.Limit),
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		page.Items[i] = PostDetail{Post: p}
		ids[i] = p.ID
	}

	if opts.IncludeReplies {
		for i := range page.Items {
			replies, err := s.store.ListPostReplies(ctx, page.Items[i].ID, false, detailReplyLimit)
			if err != nil {
				return nil, errors.Wrap(err, "services:ListPosts: ListPostReplies")
			}
			page.Items[i].Replies = make([]ReplyView, len(replies))
			for j, r := range replies {
				page.Items[i].Replies[j] = ReplyView{Reply: r}
			}
		}
	}
	if opts.UserID != 0 && len(ids) > 0 {
		states, err := s.store.PostVoteStates(ctx, opts.UserID, ids)
		if err != nil {
			return nil, errors.Wrap(err, "services:ListPosts: PostVoteStates")
		}
		for i := range page.Items {
			if v, ok := states[page.Items[i].ID]; ok {
				page.Items[i].UserVote = &v
			}
			if opts.IncludeReplies {
				if err := s.decorateReplyVotes(ctx, opts.UserID, page.Items[i].Replies); err != nil {
					return nil, err
				}
			}
		}
	}
	return page, nil
}

func postQuery(opts ListPostsOptions) (models.PostQuery, error) {
	page, limit := normalizePage(opts.Page, opts.Limit, defaultPostLimit)
	q := models.PostQuery{Page: page, Limit: limit, SortBy: opts.SortBy, SortOrder: opts.SortOrder}
	switch q.SortBy {
	case "":
		q.SortBy = models.PostSortCreatedAt
	case models.PostSortCreatedAt, models.PostSortLastReplyAt, models.PostSortScore,
		models.PostSortViewCount, models.PostSortReplyCount:
	default:
		return q, validationError("invalid sort key %q", opts.SortBy)
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = models.SortDesc
	case models.SortAsc, models.SortDesc:
	default:
		return q, validationError("invalid sort order %q", opts.SortOrder)
	}
	return q, nil
}

// UpdatePost applies a partial edit. The slug follows the title; pin and lock are moderator only.
func (s *PostService) UpdatePost(ctx context.Context, id uint, actor Actor, in UpdatePostInput) (models.Post, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if post.IsDeleted {
		return models.Post{}, stateError("cannot edit a deleted post")
	}
	if !actor.canModify(post.AuthorID) {
		return models.Post{}, permissionError("only the author or a moderator can edit this post")
	}
	if (in.IsPinned != nil || in.IsLocked != nil) && !actor.Moderator {
		return models.Post{}, permissionError("only moderators can pin or lock posts")
	}

	previousCategory := post.CategoryID
	categoryChanged := false

	if in.Title != nil {
		title := sanitize(*in.Title)
		if title == "" {
			return models.Post{}, validationError("title cannot be empty")
		}
		if title != post.Title {
			slug, err := s.uniqueSlug(ctx, post.ForumID, title, post.ID)
			if err != nil {
				return models.Post{}, err
			}
			post.Title = title
			post.Slug = slug
		}
	}
	if in.Content != nil {
		content := sanitize(*in.Content)
		if content == "" {
			return models.Post{}, validationError("content cannot be empty")
		}
		post.Content = content
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return models.Post{}, validationError("invalid post type %q", *in.Type)
		}
		post.Type = *in.Type
	}
	switch {
	case in.ClearCategory:
		categoryChanged = post.CategoryID != nil
		post.CategoryID = nil
	case in.CategoryID != nil && (post.CategoryID == nil || *post.CategoryID != *in.CategoryID):
		if err := s.checkCategory(ctx, *in.CategoryID, post.ForumID); err != nil {
			return models.Post{}, err
		}
		categoryID := *in.CategoryID
		post.CategoryID = &categoryID
		categoryChanged = true
	}
	if in.Tags != nil {
		tags, err := validTags(*in.Tags)
		if err != nil {
			return models.Post{}, err
		}
		post.Tags = tags
	}
	if in.Attachments != nil {
		post.Attachments = *in.Attachments
	}
	if in.Metadata != nil {
		post.Metadata = in.Metadata
	}
	if in.IsPinned != nil {
		post.IsPinned = *in.IsPinned
	}
	if in.IsLocked != nil {
		post.IsLocked = *in.IsLocked
	}

	now := s.now()
	post.UpdatedAt = now
	post.EditedAt = &now
	if err := s.store.UpdatePostContent(ctx, post); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Post{}, conflictError("slug %q is already taken in this forum", post.Slug)
		}
		return models.Post{}, errors.Wrap(err, "services:UpdatePost: UpdatePostContent")
	}
	if categoryChanged {
		s.counters.AfterPostRecategorized(ctx, post, previousCategory)
	}
	return post, nil
}

// DeletePost soft-deletes a post and recounts its forum and category.
// Deleting an already deleted post is a no-op.
func (s *PostService) DeletePost(ctx context.Context, id uint, actor Actor, reason string) (models.Post, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if !actor.canModify(post.AuthorID) {
		return models.Post{}, permissionError("only the author or a moderator can delete this post")
	}
	if post.IsDeleted {
		return post, nil
	}
	now := s.now()
	reason = strings.TrimSpace(reason)
	if err := s.store.SoftDeletePost(ctx, post.ID, actor.UserID, reason, now); err != nil {
		return models.Post{}, errors.Wrap(err, "services:DeletePost: SoftDeletePost")
	}
	deletedBy := actor.UserID
	post.IsDeleted = true
	post.DeletedAt = &now
	post.DeletedBy = &deletedBy
	post.DeleteReason = reason
	s.counters.AfterPostDeleted(ctx, post)
	return post, nil
}

// VoteOnPost casts userID's vote on a live post.
func (s *PostService) VoteOnPost(ctx context.Context, postID, userID uint, voteType models.VoteType) (VoteResult, error) {
	if _, err := s.visiblePost(ctx, postID, false); err != nil {
		return VoteResult{}, err
	}
	return s.ledger.CastVote(ctx, userID, models.PostTarget(postID), voteType)
}

// GetPostStatistics reports counters and the engagement rate of a live post.
func (s *PostService) GetPostStatistics(ctx context.Context, id uint) (PostStatistics, error) {
	post, err := s.visiblePost(ctx, id, false)
	if err != nil {
		return PostStatistics{}, err
	}
	return PostStatistics{
		ViewCount:      post.ViewCount,
		ReplyCount:     post.ReplyCount,
		UpvoteCount:    post.UpvoteCount,
		DownvoteCount:  post.DownvoteCount,
		Score:          post.Score,
		EngagementRate: EngagementRate(post),
	}, nil
}

// EngagementRate is (votes + replies) / views rounded to two decimals, 0 without views.
func EngagementRate(p models.Post) float64 {
	if p.ViewCount <= 0 {
		return 0
	}
	rate := float64(p.UpvoteCount+p.DownvoteCount+p.ReplyCount) / float64(p.ViewCount)
	return math.Round(rate*100) / 100
}

func (s *PostService) loadPost(ctx context.Context, id uint) (models.Post, error) {
	post, err := s.store.GetPost(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, notFoundError("post not found")
	}
	if err != nil {
		return models.Post{}, errors.Wrap(err, "services: GetPost")
	}
	return post, nil
}

func (s *PostService) visiblePost(ctx context.Context, id uint, includeDeleted bool) (models.Post, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return models.Post{}, err
	}
	if post.IsDeleted && !includeDeleted {
		return models.Post{}, notFoundError("post not found")
	}
	return post, nil
}

func (s *PostService) activeForum(ctx context.Context, forumID uint) (models.Forum, error) {
	forum, err := s.store.GetForum(ctx, forumID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Forum{}, notFoundError("forum not found")
	}
	if err != nil {
		return models.Forum{}, errors.Wrap(err, "services: GetForum")
	}
	if !forum.AcceptsPosts() {
		return models.Forum{}, stateError("forum is not active or has been archived")
	}
	return forum, nil
}

func (s *PostService) checkMember(ctx context.Context, forumID, userID uint) error {
	return checkMember(ctx, s.store, forumID, userID)
}

func checkMember(ctx context.Context, dir Directory, forumID, userID uint) error {
	exists, err := dir.UserExists(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "services: UserExists")
	}
	if !exists {
		return notFoundError("author not found")
	}
	member, err := dir.IsForumMember(ctx, forumID, userID)
	if err != nil {
		return errors.Wrap(err, "services: IsForumMember")
	}
	if !member {
		return permissionError("author is not a member of this forum")
	}
	return nil
}

func (s *PostService) checkCategory(ctx context.Context, categoryID, forumID uint) error {
	category, err := s.store.GetCategory(ctx, categoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError("category not found")
	}
	if err != nil {
		return errors.Wrap(err, "services: GetCategory")
	}
	if category.ForumID != forumID {
		return validationError("category does not belong to this forum")
	}
	if !category.IsActive {
		return validationError("category is not active")
	}
	return nil
}

func (s *PostService) uniqueSlug(ctx context.Context, forumID uint, title string, excludeID uint) (string, error) {
	return UniqueSlug(ctx, Slugify(html.UnescapeString(title)), func(ctx context.Context, candidate string) (bool, error) {
		return s.store.PostSlugExists(ctx, forumID, candidate, excludeID)
	})
}

func validTags(tags []string) ([]string, error) {
	out := normalizeTags(tags)
	for _, t := range out {
		if len(t) > maxTagLength {
			return nil, validationError("tag %q is longer than %d characters", t, maxTagLength)
		}
	}
	return out, nil
}
