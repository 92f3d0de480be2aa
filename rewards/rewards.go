package rewards

import (
	"context"
	"errors"

	"panda-blog/metrics"
	"panda-blog/workers"

	"go.uber.org/zap"
)

// Crediter performs the actual credit, usually the user service client
type Crediter interface {
	CreditTokens(ctx context.Context, userID string, amount int64, reason string) error
}

// Rewarder hands out token rewards in the background. Rewards are advisory: a failed or dropped
// credit is logged and counted, the operation that earned it is never affected.
type Rewarder struct {
	pool     *workers.Pool
	crediter Crediter
	log      *zap.Logger
}

// New returns a Rewarder feeding the given (started) pool
func New(pool *workers.Pool, crediter Crediter, log *zap.Logger) *Rewarder {
	return &Rewarder{pool: pool, crediter: crediter, log: log}
}

// Credit queues amount tokens for userID and returns immediately
func (r *Rewarder) Credit(userID string, amount int64, reason string) {
	fields := []zap.Field{
		zap.String("userId", userID),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
	}

	err := r.pool.Submit(workers.Task{
		Name: reason,
		Run: func(ctx context.Context) error {
			return r.crediter.CreditTokens(ctx, userID, amount, reason)
		},
		OnDone: func(err error) {
			if err != nil {
				metrics.TokenRewards.WithLabelValues(reason, "failed").Inc()
				r.log.Warn("token reward failed", append(fields, zap.Error(err))...)
				return
			}
			metrics.TokenRewards.WithLabelValues(reason, "credited").Inc()
			r.log.Debug("token reward credited", fields...)
		},
	})
	if err != nil {
		result := "dropped"
		if errors.Is(err, workers.ErrPoolClosed) {
			result = "closed"
		}
		metrics.TokenRewards.WithLabelValues(reason, result).Inc()
		r.log.Warn("token reward not queued", append(fields, zap.Error(err))...)
	}
}
