package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"panda-blog/apperror"
	"panda-blog/metrics"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimiter counts requests per client IP in fixed windows kept in redis
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewRateLimiter returns nil when no redis client is given, Handler then lets everything pass
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RateLimiter {
	if client == nil || limit <= 0 || window <= 0 {
		return nil
	}
	return &RateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		log:    log,
		now:    time.Now,
	}
}

// Allow increments the counter of the current window and reports whether the request may pass
func (rl *RateLimiter) Allow(ctx context.Context, clientIP string) (bool, error) {
	slot := rl.now().UnixNano() / int64(rl.window)
	key := fmt.Sprintf("ratelimit:%s:%d", clientIP, slot)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}

	return incr.Val() <= rl.limit, nil
}

// Handler rejects clients over the limit with 429; redis failures fail open
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		ok, err := rl.Allow(ctx, c.ClientIP())
		if err != nil {
			rl.log.Warn("rate limiter unavailable", zap.Error(err))
		}
		if !ok {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": apperror.ErrRateLimited.Error(),
			})
			return
		}

		c.Next()
	}
}
