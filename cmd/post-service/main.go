package main

import (
	"log"

	"panda-blog/config"
	"panda-blog/controllers"
	"panda-blog/database"
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
	router.Use(middleware.RequestLogger(env.Log, true))

	router.GET("/health", controllers.HealthCheck(env.Config.Service))
	router.GET("/metrics", metrics.Handler())

	auth := env.Auth.RequireIdentity(env.Config.TrustIdentityHeaders)
	posts := env.Posts

	router.GET("/api/v1/posts", posts.ListPosts)
	router.GET("/api/v1/posts/top", posts.TopPosts)
	router.GET("/api/v1/posts/:id", posts.GetPost)
	router.POST("/api/v1/posts", auth, posts.CreatePost)
	router.PUT("/api/v1/posts/:id", auth, posts.UpdatePost)
	router.DELETE("/api/v1/posts/:id", auth, posts.DeletePost)
	router.POST("/api/v1/posts/:id/like", auth, posts.LikePost)
	router.POST("/api/v1/posts/:id/share", auth, posts.SharePost)

	return router
}

func main() {
	cfg, err := config.Load(config.PostService)
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

	// Connect to main database here (mongoDB)
	client, err := database.OpenConnection(cfg.MongoURI)
	if err != nil {
		zlog.Fatal("mongodb unreachable", zap.Error(err))
	}
	defer database.CloseConnection(client)

	db := client.Database(cfg.DBName)
	if err = database.EnsureIndexes(db, database.PostsCollection); err != nil {
		zlog.Fatal("could not create indexes", zap.Error(err))
	}

	env := environment.PostService(cfg, zlog, db)
	if err = env.Serve(handleRequests(env)); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}
}
