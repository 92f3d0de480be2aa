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
	users := env.Users

	router.POST("/api/v1/users/register", users.Register)
	router.POST("/api/v1/users/login", users.Login)
	router.GET("/api/v1/users/profile/:id", users.GetProfile)
	router.PUT("/api/v1/users/profile/:id", auth, users.UpdateProfile)
	router.POST("/api/v1/users/tokens/add", auth, users.AddTokens)
	router.POST("/api/v1/users/premium/upgrade", auth, users.UpgradePremium)
	router.GET("/api/v1/users/leaderboard", users.GetLeaderboard)

	// called by the post service for rewards, not routed by the gateway
	router.POST("/internal/v1/users/:id/tokens", users.CreditTokens)

	return router
}

func main() {
	cfg, err := config.Load(config.UserService)
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
	if err = database.EnsureIndexes(db, database.UsersCollection); err != nil {
		zlog.Fatal("could not create indexes", zap.Error(err))
	}

	env := environment.UserService(cfg, zlog, db)
	if err = env.Serve(handleRequests(env)); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}
}
