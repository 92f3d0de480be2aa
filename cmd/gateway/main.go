package main

import (
	"log"

	"panda-blog/authentication"
	"panda-blog/config"
	"panda-blog/controllers"
	"panda-blog/environment"
	"panda-blog/logger"
	"panda-blog/metrics"
	"panda-blog/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func handleRequests(env *environment.Environment) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(env.Log))
	router.Use(middleware.CORSMiddleware(env.Config.CORSOrigin))
	router.Use(middleware.RequestLogger(env.Log, false))
	// identity headers are only ever set by TokenAuthMiddleware below
	router.Use(authentication.StripIdentityHeaders())
	router.Use(env.RateLimiter.Handler())

	router.GET("/health", controllers.HealthCheck(env.Config.Service))
	router.GET("/metrics", metrics.Handler())

	auth := env.Auth.TokenAuthMiddleware()
	users := env.Forwarders[config.UserService].Forward()
	posts := env.Forwarders[config.PostService].Forward()
	comments := env.Forwarders[config.CommentService].Forward()

	// user-service
	router.POST("/api/v1/users/register", users)
	router.POST("/api/v1/users/login", users)
	router.GET("/api/v1/users/profile/:id", users)
	router.PUT("/api/v1/users/profile/:id", auth, users)
	router.POST("/api/v1/users/tokens/add", auth, users)
	router.POST("/api/v1/users/premium/upgrade", auth, users)
	router.GET("/api/v1/users/leaderboard", users)

	// post-service
	router.GET("/api/v1/posts", posts)
	router.GET("/api/v1/posts/top", posts)
	router.GET("/api/v1/posts/:id", posts)
	router.POST("/api/v1/posts", auth, posts)
	router.PUT("/api/v1/posts/:id", auth, posts)
	router.DELETE("/api/v1/posts/:id", auth, posts)
	router.POST("/api/v1/posts/:id/like", auth, posts)
	router.POST("/api/v1/posts/:id/share", auth, posts)

	// comment-service
	router.GET("/api/v1/comments/:postId", comments)
	router.POST("/api/v1/comments/:postId", auth, comments)
	router.PUT("/api/v1/comments/:id", auth, comments)
	router.DELETE("/api/v1/comments/:id", auth, comments)

	return router
}

func main() {
	cfg, err := config.Load(config.Gateway)
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	zlog = logger.Service(zlog, cfg.Service)
	defer zlog.Sync()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	env, err := environment.Gateway(cfg, zlog)
	if err != nil {
		zlog.Fatal("gateway setup failed", zap.Error(err))
	}

	zlog.Info("routing",
		zap.String("users", cfg.UserServiceURL),
		zap.String("posts", cfg.PostServiceURL),
		zap.String("comments", cfg.CommentServiceURL))

	if err = env.Serve(handleRequests(env)); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}
}
