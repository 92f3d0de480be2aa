package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"panda-blog/authentication"
	"panda-blog/config"
	"panda-blog/environment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type seen struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (s *seen) last() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func upstream(t *testing.T, status int) (*httptest.Server, *seen) {
	t.Helper()

	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(r.Context()))
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, err := w.Write([]byte(`{"success":true}`))
		assert.NoError(t, err)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func gateway(t *testing.T, users, posts, comments string) (*gin.Engine, *environment.Environment) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Service:           config.Gateway,
		AppEnv:            "DEV",
		JWTSecret:         "test-secret",
		UserServiceURL:    users,
		PostServiceURL:    posts,
		CommentServiceURL: comments,
		CORSOrigin:        "http://localhost:3000",
		UpstreamTimeout:   2 * time.Second,
	}

	env, err := environment.Gateway(cfg, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, env.RateLimiter)
	t.Cleanup(func() { _ = env.Shutdown(time.Second) })

	return handleRequests(env), env
}

func TestGateway_PublicRouteStripsIdentity(t *testing.T) {
	postSrv, postSeen := upstream(t, http.StatusOK)
	router, _ := gateway(t, "http://127.0.0.1:1", postSrv.URL, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts?page=2&tag=go", nil)
	req.Header.Set(authentication.HeaderUserID, "spoofed")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	got := postSeen.last()
	require.NotNil(t, got)
	require.Equal(t, "/api/v1/posts", got.URL.Path)
	require.Equal(t, "page=2&tag=go", got.URL.RawQuery)
	require.Empty(t, got.Header.Get(authentication.HeaderUserID))
	require.NotEmpty(t, got.Header.Get(authentication.HeaderCorrelationID))
}

func TestGateway_BearerRouteWithoutToken(t *testing.T) {
	commentSrv, commentSeen := upstream(t, http.StatusCreated)
	router, _ := gateway(t, "http://127.0.0.1:1", "http://127.0.0.1:1", commentSrv.URL)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/comments/p1", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set(authentication.HeaderUserID, "spoofed")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"No token provided"}`, rec.Body.String())
	require.Nil(t, commentSeen.last())
}

func TestGateway_BearerRoutePropagatesIdentity(t *testing.T) {
	postSrv, postSeen := upstream(t, http.StatusCreated)
	router, env := gateway(t, "http://127.0.0.1:1", postSrv.URL, "http://127.0.0.1:1")

	token, err := env.Auth.CreateToken("u1", "u1@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/p1/like", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(authentication.HeaderUserID, "spoofed")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	got := postSeen.last()
	require.NotNil(t, got)
	require.Equal(t, "/api/v1/posts/p1/like", got.URL.Path)
	require.Equal(t, "u1", got.Header.Get(authentication.HeaderUserID))
	require.Equal(t, "u1@example.com", got.Header.Get(authentication.HeaderUserEmail))
	require.Equal(t, "Bearer "+token, got.Header.Get("Authorization"))
}

func TestGateway_InvalidToken(t *testing.T) {
	userSrv, userSeen := upstream(t, http.StatusOK)
	router, _ := gateway(t, userSrv.URL, "http://127.0.0.1:1", "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/premium/upgrade", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"Invalid or expired token"}`, rec.Body.String())
	require.Nil(t, userSeen.last())
}

func TestGateway_UnreachableService(t *testing.T) {
	router, _ := gateway(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "http://127.0.0.1:1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/leaderboard", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"Service unavailable"}`, rec.Body.String())
}

func TestGateway_Health(t *testing.T) {
	router, _ := gateway(t, "http://127.0.0.1:1", "http://127.0.0.1:1", "http://127.0.0.1:1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","service":"api-gateway"}`, rec.Body.String())
}
