package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// service names, also used as metric/log labels
const (
	Gateway        = "api-gateway"
	UserService    = "user-service"
	PostService    = "post-service"
	CommentService = "comment-service"
)

var defaultPorts = map[string]int{
	Gateway:        5000,
	UserService:    5001,
	PostService:    5002,
	CommentService: 5003,
}

// Config holds the settings of all binaries, each one reads what it needs
type Config struct {
	Service  string `ignored:"true"`
	AppEnv   string `envconfig:"APP_ENV" default:"DEV"`
	Port     int    `envconfig:"PORT"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	CertFile string `envconfig:"APP_CERTFILE"`
	KeyFile  string `envconfig:"APP_KEYFILE"`

	MongoURI string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	DBName   string `envconfig:"DB_NAME" default:"panda-blog"`

	JWTSecret     string `envconfig:"JWT_SECRET" default:"secret"`
	CookieName    string `envconfig:"JWTCK_NAME"`
	CookieHashKey string `envconfig:"JWTCK_HASHKEY"`
	// internal services trust x-user-id set by the gateway (network isolation assumed)
	TrustIdentityHeaders bool   `envconfig:"TRUST_IDENTITY_HEADERS" default:"true"`
	InternalAPIKey       string `envconfig:"INTERNAL_API_KEY"`

	UserServiceURL    string `envconfig:"USER_SERVICE_URL" default:"http://localhost:5001"`
	PostServiceURL    string `envconfig:"POST_SERVICE_URL" default:"http://localhost:5002"`
	CommentServiceURL string `envconfig:"COMMENT_SERVICE_URL" default:"http://localhost:5003"`
	CORSOrigin        string `envconfig:"CORS_ORIGIN" default:"http://localhost:3000"`

	UpstreamTimeout        time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	LeaderboardConcurrency int           `envconfig:"LEADERBOARD_CONCURRENCY" default:"8"`
	RewardWorkers          int           `envconfig:"REWARD_WORKERS" default:"4"`
	RewardQueue            int           `envconfig:"REWARD_QUEUE" default:"256"`

	RedisAddr  string        `envconfig:"REDIS_ADDR"`
	RedisPass  string        `envconfig:"REDIS_PASS"`
	RedisDB    int           `envconfig:"REDIS_DB" default:"0"`
	RateLimit  int           `envconfig:"RATE_LIMIT" default:"100"`
	RateWindow time.Duration `envconfig:"RATE_WINDOW" default:"15m"`

	UseAnalytics    string `envconfig:"USE_ANALYTICS" default:"NO"`
	AnalyticsURL    string `envconfig:"ANALYTICS_URL" default:"http://localhost:8086"`
	AnalyticsToken  string `envconfig:"ANALYTICS_TOKEN"`
	AnalyticsOrg    string `envconfig:"ANALYTICS_ORG" default:"panda"`
	AnalyticsBucket string `envconfig:"ANALYTICS_BUCKET" default:"visits"`
}

// Load reads an optional .env file and the process environment
func Load(service string) (*Config, error) {
	// a missing .env is fine (containers), a broken one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{Service: service}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPorts[service]
	}

	switch cfg.AppEnv {
	case "DEV", "PRD":
	default:
		return nil, fmt.Errorf("APP_ENV must be DEV or PRD, got %q", cfg.AppEnv)
	}

	if cfg.LeaderboardConcurrency < 1 {
		cfg.LeaderboardConcurrency = 1
	}

	return cfg, nil
}

// Addr is the listen address of the binary
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Production reports whether TLS and the production logger should be used
func (c *Config) Production() bool {
	return c.AppEnv == "PRD"
}

// Analytics reports whether post visits are written to the analytics store
func (c *Config) Analytics() bool {
	switch strings.ToUpper(c.UseAnalytics) {
	case "YES", "TRUE", "1":
		return true
	}
	return false
}
