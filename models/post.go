package models

import (
	"context"
	"errors"
	"math"
	"regexp"
	"time"

	"panda-blog/apperror"
	"panda-blog/helpers"
	"panda-blog/workers"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	DefaultFeaturedImage = "https://images.unsplash.com/photo-1488998427799-e3362cec87c3?w=800&h=400&fit=crop"
	UnknownAuthor        = "Unknown"

	// reward reasons and amounts
	RewardPostCreated = "post_created"
	RewardPostLiked   = "post_liked"
	postCreatedTokens = 5
	postLikedTokens   = 1

	// attempts of a read-modify-write before giving up with ErrRecordChanged
	maxWriteAttempts = 5
	MaxPageSize      = 1000
)

// list orders, all descending
var postSortFields = map[string]bool{
	"rankingScore": true,
	"createdAt":    true,
	"views":        true,
	"likes":        true,
	"shares":       true,
}

// Post is a blog entry; likedBy/sharedBy hold user ids (set semantics)
type Post struct {
	ID            primitive.ObjectID `json:"id" bson:"_id"`
	Title         string             `json:"title" bson:"title"`
	Content       string             `json:"content" bson:"content"`
	AuthorID      string             `json:"authorId" bson:"authorId"`
	AuthorName    string             `json:"authorName" bson:"authorName"`
	Tags          []string           `json:"tags" bson:"tags"`
	FeaturedImage string             `json:"featuredImage" bson:"featuredImage"`
	IsPremium     bool               `json:"isPremium" bson:"isPremium"`
	Views         int64              `json:"views" bson:"views"`
	Likes         int64              `json:"likes" bson:"likes"`
	LikedBy       []string           `json:"likedBy" bson:"likedBy"`
	Shares        int64              `json:"shares" bson:"shares"`
	SharedBy      []string           `json:"sharedBy" bson:"sharedBy"`
	RankingScore  float64            `json:"rankingScore" bson:"rankingScore"`
	CommentsCount *int64             `json:"commentsCount,omitempty" bson:"-"` // filled by list enrichment
	Header        `bson:",inline"`
}

// PostChanges is a partial update, nil fields stay untouched
type PostChanges struct {
	Title         *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Content       *string   `json:"content" binding:"omitempty,min=1"`
	Tags          *[]string `json:"tags"`
	FeaturedImage *string   `json:"featuredImage" binding:"omitempty,url"`
	IsPremium     *bool     `json:"isPremium"`
}

// PostSearch are the list parameters
type PostSearch struct {
	Page     int64
	Limit    int64
	Sort     string
	Search   string
	Tag      string
	AuthorID string
}

// Rescore recomputes the ranking score from the counters
func (p *Post) Rescore() {
	p.RankingScore = RankingScore(p.Views, p.Likes, p.Shares)
}

// AddView counts one visit
func (p *Post) AddView() {
	p.Views++
	p.Rescore()
}

// ToggleLike likes or unlikes the post for userID and reports whether it is liked afterwards
func (p *Post) ToggleLike(userID string) bool {
	var liked bool
	p.LikedBy, p.Likes, liked = toggle(p.LikedBy, p.Likes, userID)
	p.Rescore()
	return liked
}

// ToggleShare works like ToggleLike for shares
func (p *Post) ToggleShare(userID string) bool {
	var shared bool
	p.SharedBy, p.Shares, shared = toggle(p.SharedBy, p.Shares, userID)
	p.Rescore()
	return shared
}

// toggle flips the membership of id in set; the counter never drops below 0
func toggle(set []string, counter int64, id string) ([]string, int64, bool) {
	for i, v := range set {
		if v == id {
			out := append(append([]string{}, set[:i]...), set[i+1:]...)
			if counter > 0 {
				counter--
			}
			return out, counter, false
		}
	}
	return append(set, id), counter + 1, true
}

// Apply copies the given changes
func (c PostChanges) Apply(p *Post) {
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Content != nil {
		p.Content = *c.Content
	}
	if c.Tags != nil {
		p.Tags = *c.Tags
	}
	if c.FeaturedImage != nil {
		p.FeaturedImage = *c.FeaturedImage
	}
	if c.IsPremium != nil {
		p.IsPremium = *c.IsPremium
	}
}

// postStore is the persistence the post rules are built on
type postStore interface {
	load(ctx context.Context, id primitive.ObjectID) (*Post, error)
	replace(ctx context.Context, post *Post, recVer int64) (bool, error)
	insert(ctx context.Context, post *Post) error
}

// rewardFunc credits amount tokens to userID, fire-and-forget
type rewardFunc func(userID string, amount int64, reason string)

// mutatePost loads the post, applies fn and writes it back if the record version did not move.
// A concurrent write makes it start over with a fresh copy.
func mutatePost(ctx context.Context, store postStore, id primitive.ObjectID, fn func(*Post) error) (*Post, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		post, err := store.load(ctx, id)
		if err != nil {
			return nil, err
		}

		recVer := post.RecVer
		if err := fn(post); err != nil {
			return nil, err
		}
		post.Rescore()
		post.touch(time.Now())
		post.RecVer = recVer + 1

		ok, err := store.replace(ctx, post, recVer)
		if err != nil {
			return nil, err
		}
		if ok {
			return post, nil
		}
	}
	return nil, apperror.ErrRecordChanged
}

// PostModel provides the logic to the interface and access to the database
type PostModel struct {
	Collection *mongo.Collection
	// injected by the environment
	GetUserName   func(ctx context.Context, userID string) (string, error)
	CountComments func(ctx context.Context, postID string) (int64, error)
	Reward        func(userID string, amount int64, reason string)
	TrackVisit    func(postID string, userID string, client string)
	Concurrency   int
	Log           *zap.Logger
}

func (m PostModel) load(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var post Post
	err := m.Collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("Post")
		}
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	return &post, nil
}

func (m PostModel) replace(ctx context.Context, post *Post, recVer int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.D{
		{Key: "_id", Value: post.ID},
		{Key: "recVer", Value: recVer},
	}
	res, err := m.Collection.ReplaceOne(ctx, filter, post)
	if err != nil {
		return false, helpers.WrapError(err, helpers.FuncName())
	}
	return res.MatchedCount == 1, nil
}

func (m PostModel) insert(ctx context.Context, post *Post) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := m.Collection.InsertOne(ctx, post); err != nil {
		return helpers.WrapError(err, helpers.FuncName())
	}
	return nil
}

func postID(id string) (primitive.ObjectID, error) {
	oid := helpers.ObjectID(id)
	if oid.IsZero() {
		return oid, apperror.NotFound("Post")
	}
	return oid, nil
}

// CreatePost stores a new post of authorID and credits the creation reward
func (m PostModel) CreatePost(ctx context.Context, post *Post, authorID string) (*Post, error) {
	authorName := UnknownAuthor
	if m.GetUserName != nil {
		if name, err := m.GetUserName(ctx, authorID); err == nil && name != "" {
			authorName = name
		} else if err != nil {
			m.Log.Warn("could not fetch author name", zap.String("userId", authorID), zap.Error(err))
		}
	}

	post, err := createPost(ctx, m, m.reward, post, authorID, authorName)
	if err != nil {
		return nil, err
	}

	m.Log.Info("post created", zap.String("postId", post.ID.Hex()), zap.String("userId", authorID))
	return post, nil
}

// createPost resets the server-owned fields, stores the post and rewards its author
func createPost(ctx context.Context, store postStore, reward rewardFunc, post *Post, authorID string, authorName string) (*Post, error) {
	post.ID = primitive.NewObjectID()
	post.AuthorID = authorID
	post.AuthorName = authorName
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.FeaturedImage == "" {
		post.FeaturedImage = DefaultFeaturedImage
	}
	post.Views, post.Likes, post.Shares = 0, 0, 0
	post.LikedBy, post.SharedBy = []string{}, []string{}
	post.CommentsCount = nil
	post.RecVer = 0
	post.touch(time.Now())
	post.Rescore()

	if err := store.insert(ctx, post); err != nil {
		return nil, err
	}

	reward(authorID, postCreatedTokens, RewardPostCreated)
	return post, nil
}

func (m PostModel) reward(userID string, amount int64, reason string) {
	if m.Reward != nil {
		m.Reward(userID, amount, reason)
	}
}

// GetPost reads a post without side effects
func (m PostModel) GetPost(ctx context.Context, id string) (*Post, error) {
	oid, err := postID(id)
	if err != nil {
		return nil, err
	}
	return m.load(ctx, oid)
}

// ViewPost returns the post and counts the visit. A failing view increment is logged and the
// unchanged post returned.
func (m PostModel) ViewPost(ctx context.Context, id string, viewerID string, client string) (*Post, error) {
	oid, err := postID(id)
	if err != nil {
		return nil, err
	}

	post, err := mutatePost(ctx, m, oid, func(p *Post) error {
		p.AddView()
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNoData) {
			return nil, err
		}
		m.Log.Warn("view increment failed", zap.String("postId", id), zap.Error(err))
		return m.load(ctx, oid)
	}

	if m.TrackVisit != nil {
		m.TrackVisit(id, viewerID, client)
	}

	return post, nil
}

// UpdatePost applies a partial update of the owner
func (m PostModel) UpdatePost(ctx context.Context, id string, userID string, changes PostChanges) (*Post, error) {
	oid, err := postID(id)
	if err != nil {
		return nil, err
	}

	return mutatePost(ctx, m, oid, func(p *Post) error {
		if p.AuthorID != userID {
			return apperror.Forbidden("You can only update your own posts")
		}
		changes.Apply(p)
		return nil
	})
}

// DeletePost removes a post of the owner
func (m PostModel) DeletePost(ctx context.Context, id string, userID string) error {
	oid, err := postID(id)
	if err != nil {
		return err
	}

	post, err := m.load(ctx, oid)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return apperror.Forbidden("You can only delete your own posts")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := m.Collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "recVer", Value: post.RecVer}})
	if err != nil {
		return helpers.WrapError(err, helpers.FuncName())
	}
	if res.DeletedCount == 0 {
		return apperror.ErrRecordChanged
	}
	return nil
}

// ToggleLike likes or unlikes the post; a like by someone else than the author earns the
// author a token
func (m PostModel) ToggleLike(ctx context.Context, id string, userID string) (*Post, bool, error) {
	oid, err := postID(id)
	if err != nil {
		return nil, false, err
	}
	return toggleLike(ctx, m, m.reward, oid, userID)
}

func toggleLike(ctx context.Context, store postStore, reward rewardFunc, id primitive.ObjectID, userID string) (*Post, bool, error) {
	var liked bool
	post, err := mutatePost(ctx, store, id, func(p *Post) error {
		liked = p.ToggleLike(userID)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	// unlikes and self-likes earn nothing
	if liked && post.AuthorID != userID {
		reward(post.AuthorID, postLikedTokens, RewardPostLiked)
	}

	return post, liked, nil
}

// ToggleShare shares or unshares the post
func (m PostModel) ToggleShare(ctx context.Context, id string, userID string) (*Post, bool, error) {
	oid, err := postID(id)
	if err != nil {
		return nil, false, err
	}

	var shared bool
	post, err := mutatePost(ctx, m, oid, func(p *Post) error {
		shared = p.ToggleShare(userID)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return post, shared, nil
}

// Normalize applies the list defaults and bounds
func (s PostSearch) Normalize() PostSearch {
	if s.Page < 1 {
		s.Page = 1
	}
	if s.Limit < 1 {
		s.Limit = 10
	}
	if s.Limit > MaxPageSize {
		s.Limit = MaxPageSize
	}
	if !postSortFields[s.Sort] {
		s.Sort = "rankingScore"
	}
	return s
}

// Filter builds the mongo query of the search
func (s PostSearch) Filter() bson.D {
	filter := bson.D{}
	if s.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s.Search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: pattern}},
			bson.D{{Key: "content", Value: pattern}},
		}})
	}
	if s.Tag != "" {
		filter = append(filter, bson.E{Key: "tags", Value: bson.D{{Key: "$in", Value: bson.A{s.Tag}}}})
	}
	if s.AuthorID != "" {
		filter = append(filter, bson.E{Key: "authorId", Value: s.AuthorID})
	}
	return filter
}

// Pages is the page count for total matches
func Pages(total int64, limit int64) int64 {
	if limit < 1 {
		return 0
	}
	return int64(math.Ceil(float64(total) / float64(limit)))
}

// ListPosts returns one page of posts and the total count of matches
func (m PostModel) ListPosts(ctx context.Context, search PostSearch) ([]Post, int64, error) {
	search = search.Normalize()
	filter := search.Filter()

	opts := options.Find().
		SetSort(bson.D{{Key: search.Sort, Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((search.Page - 1) * search.Limit).
		SetLimit(search.Limit)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := m.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, helpers.WrapError(err, helpers.FuncName())
	}
	defer cursor.Close(ctx)

	posts := []Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, 0, helpers.WrapError(err, helpers.FuncName())
	}

	total, err := m.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, helpers.WrapError(err, helpers.FuncName())
	}

	return posts, total, nil
}

// TopPosts returns the best ranked posts
func (m PostModel) TopPosts(ctx context.Context, limit int64) ([]Post, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	opts := options.Find().SetSort(bson.D{{Key: "rankingScore", Value: -1}}).SetLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := m.Collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	defer cursor.Close(ctx)

	posts := []Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	return posts, nil
}

// AttachCommentCounts asks the comment service for every post's count with bounded
// concurrency; a failed lookup counts 0
func (m PostModel) AttachCommentCounts(ctx context.Context, posts []Post) {
	if m.CountComments == nil {
		return
	}

	workers.ForEach(ctx, m.Concurrency, posts, func(ctx context.Context, i int, p Post) {
		n, err := m.CountComments(ctx, p.ID.Hex())
		if err != nil {
			m.Log.Debug("comment count unavailable", zap.String("postId", p.ID.Hex()), zap.Error(err))
			n = 0
		}
		posts[i].CommentsCount = &n
	})
}
