package environment

import (
	"errors"
	"time"

	"panda-blog/analytics"
	"panda-blog/authentication"
	"panda-blog/client"
	"panda-blog/config"
	"panda-blog/controllers"
	"panda-blog/database"
	"panda-blog/helpers"
	"panda-blog/leaderboard"
	"panda-blog/middleware"
	"panda-blog/models"
	"panda-blog/proxy"
	"panda-blog/rewards"
	"panda-blog/workers"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Environment is used for dependency-injection (package de-coupling). Each binary fills in the
// parts it serves, the rest stays nil.
type Environment struct {
	Config *config.Config
	Log    *zap.Logger
	Auth   *authentication.Authenticator

	// gateway
	Forwarders  map[string]*proxy.Forwarder
	RateLimiter *middleware.RateLimiter

	// internal services
	Users    *controllers.UserController
	Posts    *controllers.PostController
	Comments *controllers.CommentController
	Tracker  *analytics.Tracker

	pool    *workers.Pool
	closers []func() error
}

// newEnv operates as the constructor of the parts shared by all binaries (private)
func newEnv(cfg *config.Config, log *zap.Logger) *Environment {
	cookie := helpers.NewSessionCookie(cfg.CookieName, cfg.CookieHashKey, cfg.Production())

	return &Environment{
		Config: cfg,
		Log:    log,
		Auth:   authentication.New(cfg.JWTSecret, cookie),
	}
}

func (e *Environment) onShutdown(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Gateway prepares the forwarders and the optional rate limiter of the edge
func Gateway(cfg *config.Config, log *zap.Logger) (*Environment, error) {
	env := newEnv(cfg, log)

	env.Forwarders = map[string]*proxy.Forwarder{}
	for service, url := range map[string]string{
		config.UserService:    cfg.UserServiceURL,
		config.PostService:    cfg.PostServiceURL,
		config.CommentService: cfg.CommentServiceURL,
	} {
		fwd := proxy.NewForwarder(service, url, cfg.UpstreamTimeout, log)
		env.Forwarders[service] = fwd
		env.onShutdown(fwd.Close)
	}

	// rate limiting is optional: without redis every request passes
	if cfg.RedisAddr != "" {
		rdb, err := database.OpenRedisConnection(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			return nil, helpers.WrapError(err, helpers.FuncName())
		}
		env.onShutdown(rdb.Close)
		env.RateLimiter = middleware.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateWindow, log)
	} else {
		log.Info("rate limiter disabled (no REDIS_ADDR)")
	}

	return env, nil
}

// UserService wires the user model and the leaderboard aggregator
func UserService(cfg *config.Config, log *zap.Logger, db *mongo.Database) *Environment {
	env := newEnv(cfg, log)

	userModel := models.UserModel{
		Collection: db.Collection(database.UsersCollection),
		Log:        log,
	}

	postClient := client.NewPostClient(cfg.PostServiceURL, cfg.UpstreamTimeout)
	commentClient := client.NewCommentClient(cfg.CommentServiceURL, cfg.UpstreamTimeout)
	env.onShutdown(postClient.Close)
	env.onShutdown(commentClient.Close)

	env.Users = &controllers.UserController{
		Users:  userModel,
		Tokens: env.Auth,
		Leaderboard: &leaderboard.Aggregator{
			Users:       userModel,
			Posts:       postClient,
			Comments:    commentClient,
			Concurrency: cfg.LeaderboardConcurrency,
			Timeout:     cfg.UpstreamTimeout,
			Log:         log,
		},
		InternalKey: cfg.InternalAPIKey,
		Log:         log,
	}

	return env
}

// PostService wires the post model with its collaborators: author names and rewards from the
// user service, comment counts from the comment service, visits to the analytics store
func PostService(cfg *config.Config, log *zap.Logger, db *mongo.Database) *Environment {
	env := newEnv(cfg, log)

	userClient := client.NewUserClient(cfg.UserServiceURL, cfg.InternalAPIKey, cfg.UpstreamTimeout)
	commentClient := client.NewCommentClient(cfg.CommentServiceURL, cfg.UpstreamTimeout)
	env.onShutdown(userClient.Close)
	env.onShutdown(commentClient.Close)

	env.pool = workers.NewPool(cfg.RewardWorkers, cfg.RewardQueue, cfg.UpstreamTimeout, log)
	env.pool.Start()
	rewarder := rewards.New(env.pool, userClient, log)

	// always create the tracker so no further checking is needed in the models
	env.Tracker = analytics.NewTracker(openAnalytics(cfg, log, env), cfg.AnalyticsOrg, cfg.AnalyticsBucket, log)

	postModel := models.PostModel{
		Collection:    db.Collection(database.PostsCollection),
		GetUserName:   userClient.GetUsername,
		CountComments: commentClient.CountComments,
		Reward:        rewarder.Credit,
		TrackVisit:    env.Tracker.SaveVisit,
		Concurrency:   cfg.LeaderboardConcurrency,
		Log:           log,
	}

	env.Posts = &controllers.PostController{Posts: postModel, Log: log}

	return env
}

// openAnalytics returns nil (tracking disabled) when analytics is off or unreachable
func openAnalytics(cfg *config.Config, log *zap.Logger, env *Environment) influxdb2.Client {
	if !cfg.Analytics() {
		return nil
	}

	influx, err := database.OpenInfluxConnection(cfg.AnalyticsURL, cfg.AnalyticsToken)
	if err != nil {
		log.Warn("analytics disabled", zap.String("url", cfg.AnalyticsURL), zap.Error(err))
		return nil
	}
	env.onShutdown(func() error {
		influx.Close()
		return nil
	})
	return influx
}

// CommentService wires the comment model, commenter names come from the user service
func CommentService(cfg *config.Config, log *zap.Logger, db *mongo.Database) *Environment {
	env := newEnv(cfg, log)

	userClient := client.NewUserClient(cfg.UserServiceURL, cfg.InternalAPIKey, cfg.UpstreamTimeout)
	env.onShutdown(userClient.Close)

	env.Comments = &controllers.CommentController{
		Comments: models.CommentModel{
			Collection:  db.Collection(database.CommentsCollection),
			GetUserName: userClient.GetUsername,
			Log:         log,
		},
		Log: log,
	}

	return env
}

// Shutdown drains queued rewards, flushes buffered visits and releases the connections
func (e *Environment) Shutdown(timeout time.Duration) error {
	var errs []error

	if e.pool != nil {
		if err := e.pool.Shutdown(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if e.Tracker != nil {
		e.Tracker.Flush()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
