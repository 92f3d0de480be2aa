package leaderboard

import (
	"context"
	"math"
	"sort"
	"time"

	"panda-blog/client"
	"panda-blog/helpers"
	"panda-blog/metrics"
	"panda-blog/models"
	"panda-blog/workers"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultLimit = 50
	// posts fetched per user
	postsPerUser       = 1000
	defaultConcurrency = 8
)

// UserLister enumerates all users
type UserLister interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// PostLister returns the posts of one author
type PostLister interface {
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]client.PostSummary, error)
}

// CommentCounter returns the number of comments of one post
type CommentCounter interface {
	CountComments(ctx context.Context, postID string) (int64, error)
}

// Entry is one computed leaderboard row, never persisted
type Entry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Tokens    int64  `json:"tokens"`
	Posts     int64  `json:"posts"`
	Likes     int64  `json:"likes"`
	Comments  int64  `json:"comments"`
	Views     int64  `json:"views"`
	Score     int64  `json:"score"`
	IsPremium bool   `json:"isPremium"`
	Rank      int    `json:"rank"`
}

// Score is the composite leaderboard score
func Score(posts int64, likes int64, views int64, tokens int64) int64 {
	return int64(math.Floor(float64(posts)*10 + float64(likes)*3 + float64(views)*0.1 + float64(tokens)/10))
}

// Aggregator assembles the leaderboard from the user store and the post and comment services
type Aggregator struct {
	Users    UserLister
	Posts    PostLister
	Comments CommentCounter
	// maximum of concurrent calls per fan-out level
	Concurrency int
	// per outbound call, 0 = no extra timeout
	Timeout time.Duration
	Log     *zap.Logger
}

// Build recomputes the leaderboard and returns the best limit entries. Only a failing user
// enumeration fails the build; unreachable collaborators degrade the affected numbers to 0.
func (a *Aggregator) Build(ctx context.Context, limit int) ([]Entry, error) {
	start := time.Now()
	defer func() { metrics.LeaderboardBuild.Observe(time.Since(start).Seconds()) }()

	if limit <= 0 {
		limit = DefaultLimit
	}

	users, err := a.Users.ListUsers(ctx)
	if err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}

	entries := make([]Entry, len(users))
	workers.ForEach(ctx, a.concurrency(), users, func(ctx context.Context, i int, user models.User) {
		entries[i] = a.entry(ctx, user)
	})

	// stable: equal scores keep the enumeration order
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries, nil
}

func (a *Aggregator) concurrency() int {
	if a.Concurrency < 1 {
		return defaultConcurrency
	}
	return a.Concurrency
}

func (a *Aggregator) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Timeout > 0 {
		return context.WithTimeout(ctx, a.Timeout)
	}
	return context.WithCancel(ctx)
}

// entry computes the row of one user
func (a *Aggregator) entry(ctx context.Context, user models.User) Entry {
	e := Entry{
		ID:        user.ID.Hex(),
		Username:  user.Username,
		Avatar:    user.Avatar,
		Tokens:    user.Tokens,
		IsPremium: user.IsPremium,
	}

	callCtx, cancel := a.call(ctx)
	posts, err := a.Posts.ListByAuthor(callCtx, e.ID, postsPerUser)
	cancel()
	if err != nil {
		metrics.LeaderboardDegradedUsers.Inc()
		a.Log.Warn("posts unavailable for leaderboard", zap.String("userId", e.ID), zap.Error(err))
		e.Score = Score(0, 0, 0, e.Tokens)
		return e
	}

	e.Posts = int64(len(posts))
	e.Likes = lo.SumBy(posts, func(p client.PostSummary) int64 { return p.Likes })
	e.Views = lo.SumBy(posts, func(p client.PostSummary) int64 { return p.Views })
	e.Comments = a.countComments(ctx, posts)
	e.Score = Score(e.Posts, e.Likes, e.Views, e.Tokens)

	return e
}

// countComments sums the comment counts of the posts; a failed count adds 0
func (a *Aggregator) countComments(ctx context.Context, posts []client.PostSummary) int64 {
	if len(posts) == 0 {
		return 0
	}

	counts := make([]int64, len(posts))
	workers.ForEach(ctx, a.concurrency(), posts, func(ctx context.Context, i int, p client.PostSummary) {
		callCtx, cancel := a.call(ctx)
		defer cancel()

		n, err := a.Comments.CountComments(callCtx, p.ID)
		if err != nil {
			a.Log.Debug("comment count unavailable", zap.String("postId", p.ID), zap.Error(err))
			return
		}
		counts[i] = n
	})

	return lo.Sum(counts)
}
