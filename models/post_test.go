package models

import (
	"context"
	"sync"
	"testing"

	"panda-blog/apperror"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryPosts keeps posts in memory and honours the record version like the collection filter
type memoryPosts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]Post
	// conflicts makes the next n replaces lose against a concurrent writer
	conflicts int
}

func newMemoryPosts(p Post) *memoryPosts {
	return &memoryPosts{posts: map[primitive.ObjectID]Post{p.ID: p}}
}

func (s *memoryPosts) load(_ context.Context, id primitive.ObjectID) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, apperror.NotFound("Post")
	}
	p.LikedBy = append([]string{}, p.LikedBy...)
	p.SharedBy = append([]string{}, p.SharedBy...)
	return &p, nil
}

func (s *memoryPosts) replace(_ context.Context, post *Post, recVer int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflicts > 0 {
		s.conflicts--
		cur := s.posts[post.ID]
		cur.RecVer++
		s.posts[post.ID] = cur
		return false, nil
	}
	if s.posts[post.ID].RecVer != recVer {
		return false, nil
	}
	s.posts[post.ID] = *post
	return true, nil
}

func (s *memoryPosts) insert(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts[post.ID] = *post
	return nil
}

type grant struct {
	userID string
	amount int64
	reason string
}

// rewards records the credits instead of calling the user service
type rewards struct {
	mu      sync.Mutex
	granted []grant
}

func (r *rewards) credit(userID string, amount int64, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted = append(r.granted, grant{userID, amount, reason})
}

func TestPostScenario(t *testing.T) {
	t.Parallel()

	p := &Post{}
	p.Rescore()
	require.Equal(t, 0.0, p.RankingScore)

	require.True(t, p.ToggleLike("u1"))
	require.EqualValues(t, 1, p.Likes)
	require.Equal(t, 2.0, p.RankingScore)

	require.False(t, p.ToggleLike("u1"))
	require.EqualValues(t, 0, p.Likes)
	require.Empty(t, p.LikedBy)
	require.Equal(t, 0.0, p.RankingScore)

	for i := 0; i < 10; i++ {
		p.AddView()
	}
	require.InDelta(t, 3.0, p.RankingScore, 1e-9)
}

func TestToggle_SetSemantics(t *testing.T) {
	t.Parallel()

	p := &Post{}
	require.True(t, p.ToggleShare("a"))
	require.True(t, p.ToggleShare("b"))
	require.False(t, p.ToggleShare("a"))
	require.Equal(t, []string{"b"}, p.SharedBy)
	require.EqualValues(t, 1, p.Shares)
	require.Equal(t, 1.5, p.RankingScore)

	// counters never go negative, even when out of sync with the set
	p = &Post{LikedBy: []string{"x"}, Likes: 0}
	require.False(t, p.ToggleLike("x"))
	require.EqualValues(t, 0, p.Likes)
}

func TestMutatePost_RetriesOnConflict(t *testing.T) {
	t.Parallel()

	id := primitive.NewObjectID()
	store := newMemoryPosts(Post{ID: id})
	store.conflicts = 2

	calls := 0
	post, err := mutatePost(context.Background(), store, id, func(p *Post) error {
		calls++
		p.ToggleLike("u1")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.EqualValues(t, 1, post.Likes)
	require.Equal(t, 2.0, post.RankingScore)
	require.EqualValues(t, 3, post.RecVer)

	stored, _ := store.load(context.Background(), id)
	require.Equal(t, []string{"u1"}, stored.LikedBy)
}

func TestMutatePost_GivesUp(t *testing.T) {
	t.Parallel()

	id := primitive.NewObjectID()
	store := newMemoryPosts(Post{ID: id})
	store.conflicts = maxWriteAttempts

	_, err := mutatePost(context.Background(), store, id, func(p *Post) error { return nil })
	require.ErrorIs(t, err, apperror.ErrRecordChanged)
}

func TestMutatePost_ConcurrentTogglesSerialize(t *testing.T) {
	t.Parallel()

	id := primitive.NewObjectID()
	store := newMemoryPosts(Post{ID: id})

	var wg sync.WaitGroup
	users := []string{"a", "b", "c", "d"}
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			for {
				_, err := mutatePost(context.Background(), store, id, func(p *Post) error {
					p.ToggleLike(u)
					return nil
				})
				if err == nil {
					return
				}
			}
		}(u)
	}
	wg.Wait()

	stored, _ := store.load(context.Background(), id)
	require.EqualValues(t, len(users), stored.Likes)
	require.ElementsMatch(t, users, stored.LikedBy)
	require.Equal(t, RankingScore(0, int64(len(users)), 0), stored.RankingScore)
}

func TestMutatePost_OwnerCheckStopsWrite(t *testing.T) {
	t.Parallel()

	id := primitive.NewObjectID()
	store := newMemoryPosts(Post{ID: id, AuthorID: "owner", Title: "old"})

	_, err := mutatePost(context.Background(), store, id, func(p *Post) error {
		return apperror.Forbidden("You can only update your own posts")
	})
	require.ErrorIs(t, err, apperror.ErrDenied)

	stored, _ := store.load(context.Background(), id)
	require.Equal(t, "old", stored.Title)
	require.EqualValues(t, 0, stored.RecVer)
}

func TestPostChanges_Apply(t *testing.T) {
	t.Parallel()

	title := "new"
	tags := []string{"go"}
	p := &Post{Title: "old", Content: "body"}
	PostChanges{Title: &title, Tags: &tags}.Apply(p)

	require.Equal(t, "new", p.Title)
	require.Equal(t, "body", p.Content)
	require.Equal(t, []string{"go"}, p.Tags)
}

func TestPostSearch(t *testing.T) {
	t.Parallel()

	s := PostSearch{Limit: 5000, Sort: "$where"}.Normalize()
	require.EqualValues(t, 1, s.Page)
	require.EqualValues(t, MaxPageSize, s.Limit)
	require.Equal(t, "rankingScore", s.Sort)

	require.Equal(t, bson.D{}, PostSearch{}.Filter())

	f := PostSearch{Search: "a.b", Tag: "go", AuthorID: "u1"}.Filter()
	require.Len(t, f, 3)
	require.Equal(t, "$or", f[0].Key)
	or := f[0].Value.(bson.A)
	require.Equal(t, primitive.Regex{Pattern: `a\.b`, Options: "i"}, or[0].(bson.D)[0].Value)
	require.Equal(t, bson.E{Key: "authorId", Value: "u1"}, f[2])

	require.EqualValues(t, 3, Pages(21, 10))
	require.EqualValues(t, 0, Pages(0, 10))
}

func TestCreatePost_RewardsAuthor(t *testing.T) {
	t.Parallel()

	store := &memoryPosts{posts: map[primitive.ObjectID]Post{}}
	credits := &rewards{}

	in := &Post{Title: "t", Content: "c", Views: 9, Likes: 3, LikedBy: []string{"x"}}
	post, err := createPost(context.Background(), store, credits.credit, in, "author", "alice")
	require.NoError(t, err)
	require.Equal(t, "author", post.AuthorID)
	require.Equal(t, "alice", post.AuthorName)
	require.Equal(t, DefaultFeaturedImage, post.FeaturedImage)
	require.Zero(t, post.Views)
	require.Zero(t, post.Likes)
	require.Empty(t, post.LikedBy)
	require.Equal(t, 0.0, post.RankingScore)

	stored, err := store.load(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, "t", stored.Title)

	require.Equal(t, []grant{{"author", 5, RewardPostCreated}}, credits.granted)
}

func TestToggleLike_Rewards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	id := primitive.NewObjectID()

	t.Run("self like", func(t *testing.T) {
		store := newMemoryPosts(Post{ID: id, AuthorID: "author"})
		credits := &rewards{}

		post, liked, err := toggleLike(ctx, store, credits.credit, id, "author")
		require.NoError(t, err)
		require.True(t, liked)
		require.EqualValues(t, 1, post.Likes)
		require.Empty(t, credits.granted)
	})

	t.Run("like by another user", func(t *testing.T) {
		store := newMemoryPosts(Post{ID: id, AuthorID: "author"})
		credits := &rewards{}

		_, liked, err := toggleLike(ctx, store, credits.credit, id, "reader")
		require.NoError(t, err)
		require.True(t, liked)
		require.Equal(t, []grant{{"author", 1, RewardPostLiked}}, credits.granted)
	})

	t.Run("like unlike like", func(t *testing.T) {
		store := newMemoryPosts(Post{ID: id, AuthorID: "author"})
		credits := &rewards{}

		_, liked, err := toggleLike(ctx, store, credits.credit, id, "reader")
		require.NoError(t, err)
		require.True(t, liked)
		require.Len(t, credits.granted, 1)

		post, liked, err := toggleLike(ctx, store, credits.credit, id, "reader")
		require.NoError(t, err)
		require.False(t, liked)
		require.Zero(t, post.Likes)
		require.Len(t, credits.granted, 1)

		_, liked, err = toggleLike(ctx, store, credits.credit, id, "reader")
		require.NoError(t, err)
		require.True(t, liked)
		require.Len(t, credits.granted, 2)
	})

	t.Run("missing post", func(t *testing.T) {
		store := newMemoryPosts(Post{ID: id, AuthorID: "author"})
		credits := &rewards{}

		_, _, err := toggleLike(ctx, store, credits.credit, primitive.NewObjectID(), "reader")
		require.ErrorIs(t, err, apperror.ErrNoData)
		require.Empty(t, credits.granted)
	})
}
