package services

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/carecircle/models"
)

const (
	testAuthor   uint = 1001
	testOther    uint = 1002
	testOutsider uint = 1003
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memStore
	posts    *PostService
	replies  *ReplyService
	counters *CounterPropagator
	forum    models.Forum
	category models.Category
}

func newFixture(t *testing.T, log *zap.Logger) *fixture {
	t.Helper()
	store := newMemStore()
	forum := store.addForum(models.Forum{Slug: "caregivers", Name: "Caregivers", IsActive: true})
	category := store.addCategory(models.Category{ForumID: forum.ID, Name: "Support", Slug: "support", IsActive: true})
	store.addMember(forum.ID, testAuthor)
	store.addMember(forum.ID, testOther)
	store.addUser(testOutsider)

	ledger := NewVoteLedger(store)
	counters := NewCounterPropagator(store, log)
	counters.now = func() time.Time { return testNow }
	posts := NewPostService(store, ledger, counters, log)
	posts.now = func() time.Time { return testNow }
	replies := NewReplyService(store, ledger, counters, log)
	replies.now = func() time.Time { return testNow }
	return &fixture{store: store, posts: posts, replies: replies, counters: counters, forum: forum, category: category}
}

func (f *fixture) createPost(t *testing.T, title string) models.Post {
	t.Helper()
	post, err := f.posts.CreatePost(ctx(), CreatePostInput{
		Title:    title,
		Content:  "Some content about " + title,
		ForumID:  f.forum.ID,
		AuthorID: testAuthor,
	})
	if err != nil {
		t.Fatalf("CreatePost(%q): %v", title, err)
	}
	return post
}

func (f *fixture) createReply(t *testing.T, postID uint, parentID *uint) models.Reply {
	t.Helper()
	reply, err := f.replies.CreateReply(ctx(), CreateReplyInput{
		Content:  "a reply",
		PostID:   postID,
		AuthorID: testOther,
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("CreateReply(parent=%v): %v", parentID, err)
	}
	return reply
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %q (%v)", kind, got, err)
	}
}

func ptr[T any](v T) *T { return &v }
