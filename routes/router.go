package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/carecircle/config"
	"github.com/cppla/carecircle/controllers"
	"github.com/cppla/carecircle/middleware"
	"github.com/cppla/carecircle/utils"
)

// Deps are the collaborators the router hands to controllers.
type Deps struct {
	Posts     controllers.PostManager
	Replies   controllers.ReplyManager
	AccessLog *zap.Logger
	Log       *zap.Logger
	// Health reports whether the backing stores answer; nil means always healthy.
	Health func() error
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	accessLog := deps.AccessLog
	if accessLog == nil {
		accessLog = zap.NewNop()
	}
	r := gin.New()
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// Credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				utils.Error(ctx, http.StatusServiceUnavailable, 50300, "unhealthy")
				return
			}
		}
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	postController := controllers.NewPostController(deps.Posts, cfg, deps.Log)
	replyController := controllers.NewReplyController(deps.Replies, cfg, deps.Log)

	api := r.Group("/api/v1")

	public := api.Group("")
	public.Use(middleware.OptionalAuth(cfg.JWTSecret))
	public.GET("/posts", postController.ListPosts)
	public.GET("/posts/:id", postController.GetPost)
	public.GET("/posts/:id/stats", postController.PostStats)
	public.GET("/posts/:id/replies", replyController.ListReplies)
	public.GET("/posts/:id/replies/tree", replyController.ReplyTree)
	public.GET("/forums/:forumSlug/posts/:postSlug", postController.GetPostBySlug)
	public.GET("/replies/:id", replyController.GetReply)
	public.GET("/replies/:id/stats", replyController.ReplyStats)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	protected.POST("/posts", postController.CreatePost)
	protected.PATCH("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/vote", postController.VotePost)
	protected.POST("/posts/:id/replies", replyController.CreateReply)
	protected.PATCH("/replies/:id", replyController.UpdateReply)
	protected.DELETE("/replies/:id", replyController.DeleteReply)
	protected.POST("/replies/:id/vote", replyController.VoteReply)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "not found")
	})

	return r
}
