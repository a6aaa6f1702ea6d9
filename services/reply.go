package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/carecircle/models"
)

const defaultReplyLimit = 20

// eagerReplyLevels is how many levels of children a listing unrolls below each reply. A parent at
// depth 0 can carry descendants down to MaxReplyDepth, so the listing covers all but the last level.
const eagerReplyLevels = models.MaxReplyDepth - 1

// ReplyService owns the reply lifecycle, depth bound and tree assembly.
type ReplyService struct {
	store    Store
	ledger   *VoteLedger
	counters *CounterPropagator
	log      *zap.Logger
	now      func() time.Time
}

// NewReplyService wires a reply manager. A nil logger discards output.
func NewReplyService(store Store, ledger *VoteLedger, counters *CounterPropagator, log *zap.Logger) *ReplyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReplyService{store: store, ledger: ledger, counters: counters, log: log, now: time.Now}
}

// CreateReplyInput carries the fields of a new reply.
type CreateReplyInput struct {
	Content     string
	PostID      uint
	AuthorID    uint
	ParentID    *uint
	Attachments []string
	Metadata    map[string]any
	DocumentIDs []uint
}

// ReplyNode is a reply with its children, as returned by tree and threaded reads.
type ReplyNode struct {
	models.Reply
	UserVote *models.VoteType `json:"user_vote,omitempty"`
	Children []*ReplyNode     `json:"children"`
}

// GetReplyOptions selects what is loaded with a reply.
type GetReplyOptions struct {
	IncludeChildren  bool
	IncludeDocuments bool
	IncludeDeleted   bool
	UserID           uint
}

// ReplyDetail is a single reply with its optional relations.
type ReplyDetail struct {
	ReplyNode
	Documents []models.Document `json:"documents,omitempty"`
}

// ListRepliesOptions pages and orders a reply listing.
type ListRepliesOptions struct {
	Page            int
	Limit           int
	SortBy          models.ReplySortKey
	SortOrder       models.SortOrder
	IncludeChildren bool
	Threaded        bool
	UserID          uint
}

// ReplyPage is one page of a reply listing.
type ReplyPage struct {
	Items      []*ReplyNode `json:"items"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	Total      int64        `json:"total"`
	TotalPages int          `json:"total_pages"`
}

// UpdateReplyInput holds the fields to change; nil leaves a field untouched.
type UpdateReplyInput struct {
	Content     *string
	Attachments *[]string
	Metadata    map[string]any
}

// ReplyStatistics summarises votes and direct children of a reply.
type ReplyStatistics struct {
	UpvoteCount   int64 `json:"upvote_count"`
	DownvoteCount int64 `json:"downvote_count"`
	Score         int64 `json:"score"`
	ChildCount    int64 `json:"child_count"`
}

// CreateReply stores a reply under a post or under a parent reply of the same post.
func (s *ReplyService) CreateReply(ctx context.Context, in CreateReplyInput) (models.Reply, error) {
	content := sanitize(in.Content)
	switch {
	case content == "":
		return models.Reply{}, validationError("content is required")
	case in.PostID == 0:
		return models.Reply{}, validationError("postId is required")
	case in.AuthorID == 0:
		return models.Reply{}, validationError("authorId is required")
	}

	post, err := s.store.GetPost(ctx, in.PostID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Reply{}, notFoundError("post not found")
	}
	if err != nil {
		return models.Reply{}, errors.Wrap(err, "services:CreateReply: GetPost")
	}
	if post.IsDeleted {
		return models.Reply{}, notFoundError("post not found")
	}
	if post.IsLocked {
		return models.Reply{}, stateError("Cannot reply to a locked post")
	}
	if err := checkMember(ctx, s.store, post.ForumID, in.AuthorID); err != nil {
		return models.Reply{}, err
	}

	depth := 0
	var parentID *uint
	if in.ParentID != nil {
		parent, err := s.store.GetReply(ctx, *in.ParentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Reply{}, notFoundError("parent reply not found")
		}
		if err != nil {
			return models.Reply{}, errors.Wrap(err, "services:CreateReply: GetReply")
		}
		if parent.IsDeleted {
			return models.Reply{}, notFoundError("parent reply not found")
		}
		if parent.PostID != post.ID {
			return models.Reply{}, validationError("parent reply belongs to another post")
		}
		depth = parent.Depth + 1
		if depth > models.MaxReplyDepth {
			return models.Reply{}, validationError("maximum depth exceeded")
		}
		id := parent.ID
		parentID = &id
	}

	now := s.now()
	reply := models.Reply{
		PostID:      post.ID,
		AuthorID:    in.AuthorID,
		ParentID:    parentID,
		Depth:       depth,
		Content:     content,
		Attachments: in.Attachments,
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateReply(ctx, &reply); err != nil {
		return models.Reply{}, errors.Wrap(err, "services:CreateReply: CreateReply")
	}

	if ids := uniqueUint(in.DocumentIDs); len(ids) > 0 {
		if err := s.store.AttachDocuments(ctx, models.ReplyTarget(reply.ID), ids); err != nil {
			s.log.Warn("attach documents failed", zap.Uint("reply_id", reply.ID), zap.Error(err))
		}
	}

	s.counters.AfterReplyCreated(ctx, post, reply)
	return reply, nil
}

// GetReplyByID returns one reply, optionally with its subtree and documents.
func (s *ReplyService) GetReplyByID(ctx context.Context, id uint, opts GetReplyOptions) (*ReplyDetail, error) {
	reply, err := s.visibleReply(ctx, id, opts.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	out := &ReplyDetail{ReplyNode: ReplyNode{Reply: reply, Children: []*ReplyNode{}}}
	nodes := []*ReplyNode{&out.ReplyNode}
	if opts.IncludeChildren {
		if nodes, err = s.loadChildren(ctx, nodes, models.MaxReplyDepth-reply.Depth); err != nil {
			return nil, err
		}
	}
	if err := s.decorateVotes(ctx, opts.UserID, nodes); err != nil {
		return nil, err
	}
	if opts.IncludeDocuments {
		docs, err := s.store.ListDocuments(ctx, models.ReplyTarget(reply.ID))
		if err != nil {
			return nil, errors.Wrap(err, "services:GetReplyByID: ListDocuments")
		}
		out.Documents = docs
	}
	return out, nil
}

// GetReplies lists replies. Threaded without an explicit parent returns top-level replies only,
// ordered by depth first.
func (s *ReplyService) GetReplies(ctx context.Context, filter models.ReplyFilter, opts ListRepliesOptions) (*ReplyPage, error) {
	query, err := replyQuery(opts)
	if err != nil {
		return nil, err
	}
	if opts.Threaded && filter.ParentID == nil {
		filter.TopLevelOnly = true
	}
	if filter.IsDeleted == nil {
		notDeleted := false
		filter.IsDeleted = &notDeleted
	}

	replies, total, err := s.store.ListReplies(ctx, filter, query)
	if err != nil {
		return nil, errors.Wrap(err, "services:GetReplies: ListReplies")
	}
	page := &ReplyPage{
		Items:      make([]*ReplyNode, len(replies)),
		Page:       query.Page,
		Limit:      query.Limit,
		Total:      total,
		TotalPages: totalPages(total, query.Limit),
	}
	for i, r := range replies {
		page.Items[i] = &ReplyNode{Reply: r, Children: []*ReplyNode{}}
	}

	nodes := page.Items
	if opts.IncludeChildren {
		if nodes, err = s.loadChildren(ctx, page.Items, eagerReplyLevels); err != nil {
			return nil, err
		}
	}
	if err := s.decorateVotes(ctx, opts.UserID, nodes); err != nil {
		return nil, err
	}
	return page, nil
}

func replyQuery(opts ListRepliesOptions) (models.ReplyQuery, error) {
	page, limit := normalizePage(opts.Page, opts.Limit, defaultReplyLimit)
	q := models.ReplyQuery{Page: page, Limit: limit, SortBy: opts.SortBy, SortOrder: opts.SortOrder, Threaded: opts.Threaded}
	switch q.SortBy {
	case "":
		q.SortBy = models.ReplySortCreatedAt
	case models.ReplySortCreatedAt, models.ReplySortScore, models.ReplySortDepth:
	default:
		return q, validationError("invalid sort key %q", opts.SortBy)
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = models.SortAsc
	case models.SortAsc, models.SortDesc:
	default:
		return q, validationError("invalid sort order %q", opts.SortOrder)
	}
	return q, nil
}

// loadChildren attaches up to levels generations below roots, one query per generation.
// It returns every node it touched, roots included.
func (s *ReplyService) loadChildren(ctx context.Context, roots []*ReplyNode, levels int) ([]*ReplyNode, error) {
	all := append([]*ReplyNode(nil), roots...)
	frontier := roots
	for level := 0; level < levels && len(frontier) > 0; level++ {
		byID := make(map[uint]*ReplyNode, len(frontier))
		ids := make([]uint, 0, len(frontier))
		for _, n := range frontier {
			byID[n.ID] = n
			ids = append(ids, n.ID)
		}
		children, err := s.store.ListChildren(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "services:loadChildren: ListChildren")
		}
		next := make([]*ReplyNode, 0, len(children))
		for _, c := range children {
			if c.ParentID == nil {
				continue
			}
			parent, ok := byID[*c.ParentID]
			if !ok {
				continue
			}
			node := &ReplyNode{Reply: c, Children: []*ReplyNode{}}
			parent.Children = append(parent.Children, node)
			next = append(next, node)
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

// GetReplyTree returns the whole reply forest of a live post. Deleted replies stay in place
// while they still have live descendants.
func (s *ReplyService) GetReplyTree(ctx context.Context, postID, userID uint) ([]*ReplyNode, error) {
	post, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("post not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "services:GetReplyTree: GetPost")
	}
	if post.IsDeleted {
		return nil, notFoundError("post not found")
	}

	replies, err := s.store.ListPostReplies(ctx, postID, true, 0)
	if err != nil {
		return nil, errors.Wrap(err, "services:GetReplyTree: ListPostReplies")
	}
	roots := PruneDeleted(BuildReplyForest(replies))

	var nodes []*ReplyNode
	walkForest(roots, func(n *ReplyNode) { nodes = append(nodes, n) })
	if err := s.decorateVotes(ctx, userID, nodes); err != nil {
		return nil, err
	}
	return roots, nil
}

// BuildReplyForest links a flat reply set into a forest. The first pass indexes every reply by
// id, the second appends each reply to its parent in input order. Replies whose parent is not in
// the set become roots.
func BuildReplyForest(replies []models.Reply) []*ReplyNode {
	byID := make(map[uint]*ReplyNode, len(replies))
	for _, r := range replies {
		byID[r.ID] = &ReplyNode{Reply: r, Children: []*ReplyNode{}}
	}
	roots := make([]*ReplyNode, 0)
	for _, r := range replies {
		node := byID[r.ID]
		if r.ParentID != nil {
			if parent, ok := byID[*r.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

// PruneDeleted drops deleted nodes that have no live descendant.
func PruneDeleted(nodes []*ReplyNode) []*ReplyNode {
	kept := make([]*ReplyNode, 0, len(nodes))
	for _, n := range nodes {
		n.Children = PruneDeleted(n.Children)
		if n.IsDeleted && len(n.Children) == 0 {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

func walkForest(nodes []*ReplyNode, fn func(*ReplyNode)) {
	for _, n := range nodes {
		fn(n)
		walkForest(n.Children, fn)
	}
}

func (s *ReplyService) decorateVotes(ctx context.Context, userID uint, nodes []*ReplyNode) error {
	if userID == 0 || len(nodes) == 0 {
		return nil
	}
	ids := make([]uint, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	states, err := s.store.ReplyVoteStates(ctx, userID, ids)
	if err != nil {
		return errors.Wrap(err, "services:decorateVotes: ReplyVoteStates")
	}
	for _, n := range nodes {
		if v, ok := states[n.ID]; ok {
			n.UserVote = &v
		}
	}
	return nil
}

// UpdateReply edits the content of a live reply.
func (s *ReplyService) UpdateReply(ctx context.Context, id uint, actor Actor, in UpdateReplyInput) (models.Reply, error) {
	reply, err := s.loadReply(ctx, id)
	if err != nil {
		return models.Reply{}, err
	}
	if reply.IsDeleted {
		return models.Reply{}, stateError("cannot edit a deleted reply")
	}
	if !actor.canModify(reply.AuthorID) {
		return models.Reply{}, permissionError("only the author or a moderator can edit this reply")
	}
	if in.Content != nil {
		content := sanitize(*in.Content)
		if content == "" {
			return models.Reply{}, validationError("content cannot be empty")
		}
		reply.Content = content
	}
	if in.Attachments != nil {
		reply.Attachments = *in.Attachments
	}
	if in.Metadata != nil {
		reply.Metadata = in.Metadata
	}
	now := s.now()
	reply.UpdatedAt = now
	reply.EditedAt = &now
	if err := s.store.UpdateReplyContent(ctx, reply); err != nil {
		return models.Reply{}, errors.Wrap(err, "services:UpdateReply: UpdateReplyContent")
	}
	return reply, nil
}

// DeleteReply soft-deletes a reply. Children stay attached; only the post reply count is
// recomputed. Deleting an already deleted reply is a no-op.
func (s *ReplyService) DeleteReply(ctx context.Context, id uint, actor Actor, reason string) (models.Reply, error) {
	reply, err := s.loadReply(ctx, id)
	if err != nil {
		return models.Reply{}, err
	}
	if !actor.canModify(reply.AuthorID) {
		return models.Reply{}, permissionError("only the author or a moderator can delete this reply")
	}
	if reply.IsDeleted {
		return reply, nil
	}
	now := s.now()
	reason = strings.TrimSpace(reason)
	if err := s.store.SoftDeleteReply(ctx, reply.ID, actor.UserID, reason, now); err != nil {
		return models.Reply{}, errors.Wrap(err, "services:DeleteReply: SoftDeleteReply")
	}
	deletedBy := actor.UserID
	reply.IsDeleted = true
	reply.DeletedAt = &now
	reply.DeletedBy = &deletedBy
	reply.DeleteReason = reason
	s.counters.AfterReplyDeleted(ctx, reply)
	return reply, nil
}

// VoteOnReply casts userID's vote on a live reply.
func (s *ReplyService) VoteOnReply(ctx context.Context, replyID, userID uint, voteType models.VoteType) (VoteResult, error) {
	if _, err := s.visibleReply(ctx, replyID, false); err != nil {
		return VoteResult{}, err
	}
	return s.ledger.CastVote(ctx, userID, models.ReplyTarget(replyID), voteType)
}

// GetReplyStatistics reports the vote counters and direct child count of a live reply.
func (s *ReplyService) GetReplyStatistics(ctx context.Context, id uint) (ReplyStatistics, error) {
	reply, err := s.visibleReply(ctx, id, false)
	if err != nil {
		return ReplyStatistics{}, err
	}
	children, err := s.store.CountChildren(ctx, reply.ID)
	if err != nil {
		return ReplyStatistics{}, errors.Wrap(err, "services:GetReplyStatistics: CountChildren")
	}
	return ReplyStatistics{
		UpvoteCount:   reply.UpvoteCount,
		DownvoteCount: reply.DownvoteCount,
		Score:         reply.Score,
		ChildCount:    children,
	}, nil
}

func (s *ReplyService) loadReply(ctx context.Context, id uint) (models.Reply, error) {
	reply, err := s.store.GetReply(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Reply{}, notFoundError("reply not found")
	}
	if err != nil {
		return models.Reply{}, errors.Wrap(err, "services: GetReply")
	}
	return reply, nil
}

func (s *ReplyService) visibleReply(ctx context.Context, id uint, includeDeleted bool) (models.Reply, error) {
	reply, err := s.loadReply(ctx, id)
	if err != nil {
		return models.Reply{}, err
	}
	if reply.IsDeleted && !includeDeleted {
		return models.Reply{}, notFoundError("reply not found")
	}
	return reply, nil
}
