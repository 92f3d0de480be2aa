package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "DEV")

	cfg, err := Load(PostService)
	require.NoError(t, err)

	require.Equal(t, PostService, cfg.Service)
	require.Equal(t, 5002, cfg.Port)
	require.Equal(t, ":5002", cfg.Addr())
	require.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, 8, cfg.LeaderboardConcurrency)
	require.True(t, cfg.TrustIdentityHeaders)
	require.False(t, cfg.Production())
	require.False(t, cfg.Analytics())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "PRD")
	t.Setenv("PORT", "7000")
	t.Setenv("UPSTREAM_TIMEOUT", "2s")
	t.Setenv("LEADERBOARD_CONCURRENCY", "0")
	t.Setenv("USE_ANALYTICS", "YES")

	cfg, err := Load(Gateway)
	require.NoError(t, err)

	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, 2*time.Second, cfg.UpstreamTimeout)
	require.Equal(t, 1, cfg.LeaderboardConcurrency)
	require.True(t, cfg.Production())
	require.True(t, cfg.Analytics())
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("APP_ENV", "staging")

	_, err := Load(UserService)
	require.Error(t, err)
}
