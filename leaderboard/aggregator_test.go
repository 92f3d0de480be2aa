package leaderboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"panda-blog/client"
	"panda-blog/models"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeUsers struct {
	users []models.User
	err   error
}

func (f fakeUsers) ListUsers(context.Context) ([]models.User, error) { return f.users, f.err }

type fakePosts struct {
	byAuthor map[string][]client.PostSummary
	down     map[string]bool
	inFlight atomic.Int64
	peak     atomic.Int64
	delay    time.Duration
}

func (f *fakePosts) ListByAuthor(ctx context.Context, authorID string, limit int) ([]client.PostSummary, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if n <= old || f.peak.CompareAndSwap(old, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.down[authorID] {
		return nil, errors.New("connection refused")
	}
	return f.byAuthor[authorID], nil
}

type fakeComments struct {
	counts map[string]int64
	down   map[string]bool
}

func (f fakeComments) CountComments(_ context.Context, postID string) (int64, error) {
	if f.down[postID] {
		return 0, errors.New("timeout")
	}
	return f.counts[postID], nil
}

func user(name string, tokens int64) models.User {
	return models.User{ID: primitive.NewObjectID(), Username: name, Tokens: tokens}
}

func TestScore(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 0, Score(0, 0, 0, 0))
	require.EqualValues(t, 4, Score(0, 0, 0, 49))
	require.EqualValues(t, 10+6+1+1, Score(1, 2, 15, 10))
}

func TestBuild_OrderingAndRanks(t *testing.T) {
	t.Parallel()

	alice, bob, carol := user("alice", 10), user("bob", 0), user("carol", 200)
	posts := &fakePosts{byAuthor: map[string][]client.PostSummary{
		alice.ID.Hex(): {{ID: "a1", Likes: 2, Views: 15}},
		bob.ID.Hex():   {{ID: "b1", Likes: 10, Views: 100}, {ID: "b2", Likes: 0, Views: 0}},
	}}
	comments := fakeComments{counts: map[string]int64{"a1": 3, "b1": 4, "b2": 1}}

	agg := &Aggregator{
		Users:       fakeUsers{users: []models.User{alice, bob, carol}},
		Posts:       posts,
		Comments:    comments,
		Concurrency: 2,
		Log:         zap.NewNop(),
	}

	entries, err := agg.Build(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// bob: 2*10 + 10*3 + 100*0.1 + 0 = 60, carol: 20, alice: 18
	require.Equal(t, []string{"bob", "carol", "alice"}, []string{entries[0].Username, entries[1].Username, entries[2].Username})
	for i, e := range entries {
		require.Equal(t, i+1, e.Rank)
		if i > 0 {
			require.GreaterOrEqual(t, entries[i-1].Score, e.Score)
		}
	}

	require.Equal(t, Entry{
		ID: bob.ID.Hex(), Username: "bob", Posts: 2, Likes: 10, Views: 100, Comments: 5, Score: 60, Rank: 1,
	}, entries[0])
	require.EqualValues(t, 3, entries[2].Comments)
}

func TestBuild_PostServiceDownKeepsUser(t *testing.T) {
	t.Parallel()

	u := user("offline", 95)
	agg := &Aggregator{
		Users:    fakeUsers{users: []models.User{u}},
		Posts:    &fakePosts{down: map[string]bool{u.ID.Hex(): true}},
		Comments: fakeComments{},
		Log:      zap.NewNop(),
	}

	entries, err := agg.Build(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	require.EqualValues(t, 9, e.Score)
	require.Zero(t, e.Posts)
	require.Zero(t, e.Likes)
	require.Zero(t, e.Views)
	require.Zero(t, e.Comments)
	require.Equal(t, 1, e.Rank)
}

func TestBuild_SingleCommentFailure(t *testing.T) {
	t.Parallel()

	u := user("writer", 0)
	agg := &Aggregator{
		Users: fakeUsers{users: []models.User{u}},
		Posts: &fakePosts{byAuthor: map[string][]client.PostSummary{
			u.ID.Hex(): {{ID: "p1"}, {ID: "p2"}, {ID: "p3"}},
		}},
		Comments: fakeComments{
			counts: map[string]int64{"p1": 2, "p2": 50, "p3": 7},
			down:   map[string]bool{"p2": true},
		},
		Log: zap.NewNop(),
	}

	entries, err := agg.Build(context.Background(), 10)
	require.NoError(t, err)
	require.EqualValues(t, 9, entries[0].Comments)
	require.EqualValues(t, 3, entries[0].Posts)
}

func TestBuild_StableTiesAndTruncation(t *testing.T) {
	t.Parallel()

	var users []models.User
	for _, name := range []string{"u1", "u2", "u3", "u4", "u5"} {
		users = append(users, user(name, 10))
	}

	agg := &Aggregator{
		Users:    fakeUsers{users: users},
		Posts:    &fakePosts{},
		Comments: fakeComments{},
		Log:      zap.NewNop(),
	}

	entries, err := agg.Build(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "u1", entries[0].Username)
	require.Equal(t, "u2", entries[1].Username)
	require.Equal(t, "u3", entries[2].Username)
}

func TestBuild_UserEnumerationFails(t *testing.T) {
	t.Parallel()

	agg := &Aggregator{
		Users: fakeUsers{err: errors.New("mongo down")},
		Log:   zap.NewNop(),
	}

	_, err := agg.Build(context.Background(), 10)
	require.Error(t, err)
}

func TestBuild_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	var users []models.User
	for i := 0; i < 30; i++ {
		users = append(users, user("u", int64(i)))
	}
	posts := &fakePosts{delay: 5 * time.Millisecond}

	agg := &Aggregator{
		Users:       fakeUsers{users: users},
		Posts:       posts,
		Comments:    fakeComments{},
		Concurrency: 3,
		Log:         zap.NewNop(),
	}

	entries, err := agg.Build(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, entries, 30)
	require.LessOrEqual(t, posts.peak.Load(), int64(3))
}

func TestBuild_TimeoutDegrades(t *testing.T) {
	t.Parallel()

	u := user("slow", 30)
	agg := &Aggregator{
		Users:    fakeUsers{users: []models.User{u}},
		Posts:    &fakePosts{delay: time.Second},
		Comments: fakeComments{},
		Timeout:  20 * time.Millisecond,
		Log:      zap.NewNop(),
	}

	start := time.Now()
	entries, err := agg.Build(context.Background(), 10)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.EqualValues(t, 3, entries[0].Score)
}
