package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/carecircle/models"
)

// memStore is a stateful in-memory Store. fail makes the named method return the given error;
// calls records counter methods in invocation order.
type memStore struct {
	mu sync.Mutex

	forums     map[uint]models.Forum
	categories map[uint]models.Category
	members    map[[2]uint]bool
	users      map[uint]bool
	posts      map[uint]models.Post
	replies    map[uint]models.Reply
	votes      map[voteKey]models.Vote
	documents  map[uint]models.Document
	memberPost map[[2]uint]int64
	memberRepl map[[2]uint]int64

	nextID uint
	fail   map[string]error
	calls  []string
}

type voteKey struct {
	user   uint
	target models.Target
}

func newMemStore() *memStore {
	return &memStore{
		forums:     map[uint]models.Forum{},
		categories: map[uint]models.Category{},
		members:    map[[2]uint]bool{},
		users:      map[uint]bool{},
		posts:      map[uint]models.Post{},
		replies:    map[uint]models.Reply{},
		votes:      map[voteKey]models.Vote{},
		documents:  map[uint]models.Document{},
		memberPost: map[[2]uint]int64{},
		memberRepl: map[[2]uint]int64{},
		fail:       map[string]error{},
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) failure(name string) error {
	return m.fail[name]
}

func (m *memStore) record(name string) error {
	m.calls = append(m.calls, name)
	return m.failure(name)
}

// seeding helpers

func (m *memStore) addForum(f models.Forum) models.Forum {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == 0 {
		f.ID = m.id()
	}
	m.forums[f.ID] = f
	return f
}

func (m *memStore) addCategory(c models.Category) models.Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.categories[c.ID] = c
	return c
}

func (m *memStore) addMember(forumID, userID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = true
	m.members[[2]uint{forumID, userID}] = true
}

func (m *memStore) addUser(userID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = true
}

func (m *memStore) addDocument(d models.Document) models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.id()
	}
	m.documents[d.ID] = d
	return d
}

func (m *memStore) post(id uint) models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[id]
}

func (m *memStore) reply(id uint) models.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replies[id]
}

func (m *memStore) resetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// PostStore

func (m *memStore) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("CreatePost"); err != nil {
		return err
	}
	for _, p := range m.posts {
		if p.ForumID == post.ForumID && p.Slug == post.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	post.ID = m.id()
	m.posts[post.ID] = *post
	return nil
}

func (m *memStore) GetPost(_ context.Context, id uint) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return models.Post{}, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (m *memStore) GetPostBySlug(_ context.Context, forumSlug, postSlug string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if f, ok := m.forums[p.ForumID]; ok && f.Slug == forumSlug && p.Slug == postSlug {
			return p, nil
		}
	}
	return models.Post{}, gorm.ErrRecordNotFound
}

func (m *memStore) PostSlugExists(_ context.Context, forumID uint, slug string, excludeID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ForumID == forumID && p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListPosts(_ context.Context, f models.PostFilter, q models.PostQuery) ([]models.Post, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Post
	for _, p := range m.posts {
		if !matchPost(p, f) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		var c int64
		switch q.SortBy {
		case models.PostSortScore:
			c = a.Score - b.Score
		case models.PostSortViewCount:
			c = a.ViewCount - b.ViewCount
		case models.PostSortReplyCount:
			c = a.ReplyCount - b.ReplyCount
		default:
			c = int64(a.CreatedAt.Compare(b.CreatedAt))
		}
		return ordered(c, a.ID, b.ID, q.SortOrder)
	})
	total := int64(len(out))
	return pageOf(out, q.Offset(), q.Limit), total, nil
}

func matchPost(p models.Post, f models.PostFilter) bool {
	switch {
	case f.ForumID != 0 && p.ForumID != f.ForumID:
		return false
	case f.CategoryID != 0 && (p.CategoryID == nil || *p.CategoryID != f.CategoryID):
		return false
	case f.AuthorID != 0 && p.AuthorID != f.AuthorID:
		return false
	case f.Type != "" && p.Type != f.Type:
		return false
	case f.IsPinned != nil && p.IsPinned != *f.IsPinned:
		return false
	case f.IsLocked != nil && p.IsLocked != *f.IsLocked:
		return false
	case f.IsDeleted != nil && p.IsDeleted != *f.IsDeleted:
		return false
	}
	if len(f.Tags) > 0 {
		hit := false
		for _, want := range f.Tags {
			for _, t := range p.Tags {
				hit = hit || t == want
			}
		}
		if !hit {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) && !strings.Contains(strings.ToLower(p.Content), needle) {
			return false
		}
	}
	return true
}

// ordered applies the direction to a comparison result and breaks ties by ascending id.
func ordered(c int64, aID, bID uint, order models.SortOrder) bool {
	if c == 0 {
		return aID < bID
	}
	if order == models.SortDesc {
		return c > 0
	}
	return c < 0
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (m *memStore) UpdatePostContent(_ context.Context, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.posts[post.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cur.Title, cur.Slug, cur.Content, cur.Type = post.Title, post.Slug, post.Content, post.Type
	cur.CategoryID, cur.Tags, cur.Attachments, cur.Metadata = post.CategoryID, post.Tags, post.Attachments, post.Metadata
	cur.IsPinned, cur.IsLocked = post.IsPinned, post.IsLocked
	cur.UpdatedAt, cur.EditedAt = post.UpdatedAt, post.EditedAt
	m.posts[post.ID] = cur
	return nil
}

func (m *memStore) IncrementPostViews(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("IncrementPostViews"); err != nil {
		return err
	}
	p := m.posts[id]
	p.ViewCount++
	m.posts[id] = p
	return nil
}

func (m *memStore) SoftDeletePost(_ context.Context, id, deletedBy uint, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.posts[id]
	p.IsDeleted, p.DeletedAt, p.DeletedBy, p.DeleteReason = true, &at, &deletedBy, reason
	m.posts[id] = p
	return nil
}

// ReplyStore

func (m *memStore) CreateReply(_ context.Context, reply *models.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply.ID = m.id()
	m.replies[reply.ID] = *reply
	return nil
}

func (m *memStore) GetReply(_ context.Context, id uint) (models.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replies[id]
	if !ok {
		return models.Reply{}, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (m *memStore) ListReplies(_ context.Context, f models.ReplyFilter, q models.ReplyQuery) ([]models.Reply, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reply
	for _, r := range m.replies {
		switch {
		case f.PostID != 0 && r.PostID != f.PostID:
			continue
		case f.AuthorID != 0 && r.AuthorID != f.AuthorID:
			continue
		case f.ParentID != nil && (r.ParentID == nil || *r.ParentID != *f.ParentID):
			continue
		case f.TopLevelOnly && r.ParentID != nil:
			continue
		case f.IsDeleted != nil && r.IsDeleted != *f.IsDeleted:
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.Threaded && a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		var c int64
		switch q.SortBy {
		case models.ReplySortScore:
			c = a.Score - b.Score
		case models.ReplySortDepth:
			c = int64(a.Depth - b.Depth)
		default:
			c = int64(a.CreatedAt.Compare(b.CreatedAt))
		}
		return ordered(c, a.ID, b.ID, q.SortOrder)
	})
	total := int64(len(out))
	return pageOf(out, q.Offset(), q.Limit), total, nil
}

func sortReplies(out []models.Reply, byDepth bool) {
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if byDepth && a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
}

func (m *memStore) ListChildren(_ context.Context, parentIDs []uint) ([]models.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[uint]bool{}
	for _, id := range parentIDs {
		want[id] = true
	}
	var out []models.Reply
	for _, r := range m.replies {
		if r.ParentID != nil && want[*r.ParentID] {
			out = append(out, r)
		}
	}
	sortReplies(out, false)
	return out, nil
}

func (m *memStore) ListPostReplies(_ context.Context, postID uint, includeDeleted bool, limit int) ([]models.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reply
	for _, r := range m.replies {
		if r.PostID == postID && (includeDeleted || !r.IsDeleted) {
			out = append(out, r)
		}
	}
	sortReplies(out, true)
	return pageOf(out, 0, limit), nil
}

func (m *memStore) CountChildren(_ context.Context, replyID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.replies {
		if r.ParentID != nil && *r.ParentID == replyID && !r.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateReplyContent(_ context.Context, reply models.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.replies[reply.ID]
	cur.Content, cur.Attachments, cur.Metadata = reply.Content, reply.Attachments, reply.Metadata
	cur.UpdatedAt, cur.EditedAt = reply.UpdatedAt, reply.EditedAt
	m.replies[reply.ID] = cur
	return nil
}

func (m *memStore) SoftDeleteReply(_ context.Context, id, deletedBy uint, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.replies[id]
	r.IsDeleted, r.DeletedAt, r.DeletedBy, r.DeleteReason = true, &at, &deletedBy, reason
	m.replies[id] = r
	return nil
}

// VoteStore

func (m *memStore) GetVote(_ context.Context, userID uint, target models.Target) (*models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteKey{userID, target}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *memStore) ApplyVote(_ context.Context, c models.VoteChange) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ApplyVote"); err != nil {
		return 0, err
	}
	key := voteKey{c.UserID, c.Target}
	cur, exists := m.votes[key]
	switch c.Action {
	case models.VoteActionCreate:
		if exists {
			return 0, gorm.ErrDuplicatedKey
		}
		v := models.Vote{ID: m.id(), UserID: c.UserID, VoteType: c.To}
		m.votes[key] = v
	case models.VoteActionUpdate:
		if !exists || cur.VoteType != c.From {
			return 0, gorm.ErrRecordNotFound
		}
		cur.VoteType = c.To
		m.votes[key] = cur
	case models.VoteActionDelete:
		if !exists || cur.VoteType != c.From {
			return 0, gorm.ErrRecordNotFound
		}
		delete(m.votes, key)
	}
	if c.Target.IsPost() {
		p := m.posts[c.Target.PostID]
		p.UpvoteCount += c.UpvoteDelta
		p.DownvoteCount += c.DownvoteDelta
		p.Score += c.ScoreDelta
		m.posts[p.ID] = p
		return p.Score, nil
	}
	r := m.replies[c.Target.ReplyID]
	r.UpvoteCount += c.UpvoteDelta
	r.DownvoteCount += c.DownvoteDelta
	r.Score += c.ScoreDelta
	m.replies[r.ID] = r
	return r.Score, nil
}

func (m *memStore) voteStates(userID uint, ids []uint, target func(uint) models.Target) map[uint]models.VoteType {
	out := map[uint]models.VoteType{}
	for _, id := range ids {
		if v, ok := m.votes[voteKey{userID, target(id)}]; ok {
			out[id] = v.VoteType
		}
	}
	return out
}

func (m *memStore) PostVoteStates(_ context.Context, userID uint, postIDs []uint) (map[uint]models.VoteType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voteStates(userID, postIDs, models.PostTarget), nil
}

func (m *memStore) ReplyVoteStates(_ context.Context, userID uint, replyIDs []uint) (map[uint]models.VoteType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voteStates(userID, replyIDs, models.ReplyTarget), nil
}

// CounterStore

func (m *memStore) RecountForumPosts(_ context.Context, forumID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RecountForumPosts"); err != nil {
		return err
	}
	f := m.forums[forumID]
	f.PostCount = 0
	for _, p := range m.posts {
		if p.ForumID == forumID && !p.IsDeleted {
			f.PostCount++
		}
	}
	m.forums[forumID] = f
	return nil
}

func (m *memStore) RecountCategoryPosts(_ context.Context, categoryID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RecountCategoryPosts"); err != nil {
		return err
	}
	c := m.categories[categoryID]
	c.PostCount = 0
	for _, p := range m.posts {
		if p.CategoryID != nil && *p.CategoryID == categoryID && !p.IsDeleted {
			c.PostCount++
		}
	}
	m.categories[categoryID] = c
	return nil
}

func (m *memStore) RecountMemberPosts(_ context.Context, forumID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RecountMemberPosts"); err != nil {
		return err
	}
	var n int64
	for _, p := range m.posts {
		if p.ForumID == forumID && p.AuthorID == userID && !p.IsDeleted {
			n++
		}
	}
	m.memberPost[[2]uint{forumID, userID}] = n
	return nil
}

func (m *memStore) RecountMemberReplies(_ context.Context, forumID, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RecountMemberReplies"); err != nil {
		return err
	}
	var n int64
	for _, r := range m.replies {
		if p, ok := m.posts[r.PostID]; ok && p.ForumID == forumID && r.AuthorID == userID && !r.IsDeleted {
			n++
		}
	}
	m.memberRepl[[2]uint{forumID, userID}] = n
	return nil
}

func (m *memStore) RecountPostReplies(_ context.Context, postID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("RecountPostReplies"); err != nil {
		return err
	}
	p := m.posts[postID]
	p.ReplyCount = 0
	for _, r := range m.replies {
		if r.PostID == postID && !r.IsDeleted {
			p.ReplyCount++
		}
	}
	m.posts[postID] = p
	return nil
}

func (m *memStore) TouchForumActivity(_ context.Context, forumID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("TouchForumActivity"); err != nil {
		return err
	}
	f := m.forums[forumID]
	f.LastActivityAt = &at
	m.forums[forumID] = f
	return nil
}

func (m *memStore) TouchPostLastReply(_ context.Context, postID, userID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("TouchPostLastReply"); err != nil {
		return err
	}
	p := m.posts[postID]
	p.LastReplyAt, p.LastReplyBy = &at, &userID
	m.posts[postID] = p
	return nil
}

// Directory

func (m *memStore) GetForum(_ context.Context, id uint) (models.Forum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forums[id]
	if !ok {
		return models.Forum{}, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (m *memStore) GetCategory(_ context.Context, id uint) (models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return models.Category{}, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (m *memStore) IsForumMember(_ context.Context, forumID, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[[2]uint{forumID, userID}], nil
}

func (m *memStore) UserExists(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

// DocumentStore

func (m *memStore) AttachDocuments(_ context.Context, owner models.Target, ids []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		d, ok := m.documents[id]
		if !ok {
			continue
		}
		if owner.IsPost() {
			pid := owner.PostID
			d.PostID = &pid
		} else {
			rid := owner.ReplyID
			d.ReplyID = &rid
		}
		m.documents[id] = d
	}
	return nil
}

func (m *memStore) ListDocuments(_ context.Context, owner models.Target) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.documents {
		if (owner.IsPost() && d.PostID != nil && *d.PostID == owner.PostID) ||
			(!owner.IsPost() && d.ReplyID != nil && *d.ReplyID == owner.ReplyID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*memStore)(nil)
