package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/cppla/carecircle/config"
	"github.com/cppla/carecircle/middleware"
	"github.com/cppla/carecircle/models"
	"github.com/cppla/carecircle/services"
	"github.com/cppla/carecircle/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testConfig = config.AppConfig{
	ModeratorRoles:  []string{"moderator"},
	CacheTTLSeconds: 60,
}

// fakePosts answers with the func fields; unset ones panic so unexpected calls surface.
type fakePosts struct {
	create  func(services.CreatePostInput) (models.Post, error)
	get     func(uint, services.GetPostOptions) (*services.PostDetail, error)
	bySlug  func(string, string, services.GetPostOptions) (*services.PostDetail, error)
	list    func(models.PostFilter, services.ListPostsOptions) (*services.PostPage, error)
	update  func(uint, services.Actor, services.UpdatePostInput) (models.Post, error)
	delete  func(uint, services.Actor, string) (models.Post, error)
	vote    func(uint, uint, models.VoteType) (services.VoteResult, error)
	stats   func(uint) (services.PostStatistics, error)
	listHit int
}

func (f *fakePosts) CreatePost(_ context.Context, in services.CreatePostInput) (models.Post, error) {
	return f.create(in)
}

func (f *fakePosts) GetPostByID(_ context.Context, id uint, opts services.GetPostOptions) (*services.PostDetail, error) {
	return f.get(id, opts)
}

func (f *fakePosts) GetPostBySlug(_ context.Context, forumSlug, postSlug string, opts services.GetPostOptions) (*services.PostDetail, error) {
	return f.bySlug(forumSlug, postSlug, opts)
}

func (f *fakePosts) ListPosts(_ context.Context, filter models.PostFilter, opts services.ListPostsOptions) (*services.PostPage, error) {
	f.listHit++
	return f.list(filter, opts)
}

func (f *fakePosts) UpdatePost(_ context.Context, id uint, actor services.Actor, in services.UpdatePostInput) (models.Post, error) {
	return f.update(id, actor, in)
}

func (f *fakePosts) DeletePost(_ context.Context, id uint, actor services.Actor, reason string) (models.Post, error) {
	return f.delete(id, actor, reason)
}

func (f *fakePosts) VoteOnPost(_ context.Context, postID, userID uint, voteType models.VoteType) (services.VoteResult, error) {
	return f.vote(postID, userID, voteType)
}

func (f *fakePosts) GetPostStatistics(_ context.Context, id uint) (services.PostStatistics, error) {
	return f.stats(id)
}

type fakeReplies struct {
	create  func(services.CreateReplyInput) (models.Reply, error)
	get     func(uint, services.GetReplyOptions) (*services.ReplyDetail, error)
	list    func(models.ReplyFilter, services.ListRepliesOptions) (*services.ReplyPage, error)
	tree    func(uint, uint) ([]*services.ReplyNode, error)
	update  func(uint, services.Actor, services.UpdateReplyInput) (models.Reply, error)
	delete  func(uint, services.Actor, string) (models.Reply, error)
	vote    func(uint, uint, models.VoteType) (services.VoteResult, error)
	stats   func(uint) (services.ReplyStatistics, error)
	treeHit int
}

func (f *fakeReplies) CreateReply(_ context.Context, in services.CreateReplyInput) (models.Reply, error) {
	return f.create(in)
}

func (f *fakeReplies) GetReplyByID(_ context.Context, id uint, opts services.GetReplyOptions) (*services.ReplyDetail, error) {
	return f.get(id, opts)
}

func (f *fakeReplies) GetReplies(_ context.Context, filter models.ReplyFilter, opts services.ListRepliesOptions) (*services.ReplyPage, error) {
	return f.list(filter, opts)
}

func (f *fakeReplies) GetReplyTree(_ context.Context, postID, userID uint) ([]*services.ReplyNode, error) {
	f.treeHit++
	return f.tree(postID, userID)
}

func (f *fakeReplies) UpdateReply(_ context.Context, id uint, actor services.Actor, in services.UpdateReplyInput) (models.Reply, error) {
	return f.update(id, actor, in)
}

func (f *fakeReplies) DeleteReply(_ context.Context, id uint, actor services.Actor, reason string) (models.Reply, error) {
	return f.delete(id, actor, reason)
}

func (f *fakeReplies) VoteOnReply(_ context.Context, replyID, userID uint, voteType models.VoteType) (services.VoteResult, error) {
	return f.vote(replyID, userID, voteType)
}

func (f *fakeReplies) GetReplyStatistics(_ context.Context, id uint) (services.ReplyStatistics, error) {
	return f.stats(id)
}

// as authenticates every request as userID with role; userID 0 stays anonymous.
func as(userID uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != 0 {
			c.Set(middleware.ContextUserIDKey, userID)
			c.Set(middleware.ContextRoleKey, role)
		}
		c.Next()
	}
}

func newEngine(posts PostManager, replies ReplyManager, auth gin.HandlerFunc) *gin.Engine {
	pc := NewPostController(posts, testConfig, nil)
	rc := NewReplyController(replies, testConfig, nil)
	r := gin.New()
	r.Use(auth)
	r.POST("/posts", pc.CreatePost)
	r.GET("/posts", pc.ListPosts)
	r.GET("/posts/:id", pc.GetPost)
	r.PATCH("/posts/:id", pc.UpdatePost)
	r.DELETE("/posts/:id", pc.DeletePost)
	r.POST("/posts/:id/vote", pc.VotePost)
	r.GET("/posts/:id/stats", pc.PostStats)
	r.GET("/forums/:forumSlug/posts/:postSlug", pc.GetPostBySlug)
	r.POST("/posts/:id/replies", rc.CreateReply)
	r.GET("/posts/:id/replies", rc.ListReplies)
	r.GET("/posts/:id/replies/tree", rc.ReplyTree)
	r.GET("/replies/:id", rc.GetReply)
	r.PATCH("/replies/:id", rc.UpdateReply)
	r.DELETE("/replies/:id", rc.DeleteReply)
	r.POST("/replies/:id/vote", rc.VoteReply)
	r.GET("/replies/:id/stats", rc.ReplyStats)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, utils.JSONResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env utils.JSONResponse
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, target, err, w.Body.String())
	}
	return w, env
}

func withRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	utils.SetRedis(client)
	t.Cleanup(func() {
		utils.SetRedis(nil)
		_ = client.Close()
	})
	return mr
}

func svcErr(kind services.Kind, msg string) error {
	return &services.Error{Kind: kind, Message: msg}
}
