package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProxiedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_gateway_proxied_requests_total",
		Help: "Requests forwarded by the gateway, by target service and mirrored status code",
	}, []string{"service", "code"})

	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_gateway_upstream_failures_total",
		Help: "Forwarded requests that got no response from the target service",
	}, []string{"service"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_gateway_rate_limited_total",
		Help: "Requests rejected by the gateway rate limiter",
	})

	LeaderboardBuild = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "blog_leaderboard_build_seconds",
		Help:    "Time spent assembling the leaderboard",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	LeaderboardDegradedUsers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blog_leaderboard_degraded_users_total",
		Help: "Users whose posts could not be fetched while building the leaderboard",
	})

	TokenRewards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blog_token_rewards_total",
		Help: "Token reward credits, by reason and result",
	}, []string{"reason", "result"})

	ServiceRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blog_service_client_latency",
		Help:    "Latency of calls to sibling services in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method", "status_code"})
)

// Handler exposes the default registry on a gin route
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
