package client

import (
	"context"
	"strconv"
	"time"
)

// header guarding the internal routes of the user service
const HeaderInternalKey = "x-internal-key"

// UserInfo is the public part of a user as served by the user service
type UserInfo struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Tokens    int64  `json:"tokens"`
	IsPremium bool   `json:"isPremium"`
}

// PostSummary carries the counters the leaderboard needs
type PostSummary struct {
	ID     string `json:"id"`
	Views  int64  `json:"views"`
	Likes  int64  `json:"likes"`
	Shares int64  `json:"shares"`
}

// UserClient talks to the user service
type UserClient struct {
	base
	internalKey string
}

// NewUserClient returns a client for the user service at baseURL
func NewUserClient(baseURL string, internalKey string, timeout time.Duration) *UserClient {
	return &UserClient{base: newBase("user-service", baseURL, timeout), internalKey: internalKey}
}

// GetUser fetches a public profile
func (c *UserClient) GetUser(ctx context.Context, userID string) (*UserInfo, error) {
	res, err := c.r(ctx).
		SetPathParam("id", userID).
		SetResult(&envelope[UserInfo]{}).
		Get("/api/v1/users/profile/{id}")
	if err != nil {
		return nil, err
	}
	if err := check(res); err != nil {
		return nil, err
	}

	user := res.Result().(*envelope[UserInfo]).Data
	return &user, nil
}

// GetUsername resolves the display name for posts and comments
func (c *UserClient) GetUsername(ctx context.Context, userID string) (string, error) {
	user, err := c.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// CreditTokens adds amount tokens to the user through the internal endpoint
func (c *UserClient) CreditTokens(ctx context.Context, userID string, amount int64, reason string) error {
	req := c.r(ctx).
		SetPathParam("id", userID).
		SetBody(map[string]interface{}{"amount": amount, "reason": reason})
	if c.internalKey != "" {
		req.SetHeader(HeaderInternalKey, c.internalKey)
	}

	res, err := req.Post("/internal/v1/users/{id}/tokens")
	if err != nil {
		return err
	}
	return check(res)
}

// PostClient talks to the post service
type PostClient struct {
	base
}

// NewPostClient returns a client for the post service at baseURL
func NewPostClient(baseURL string, timeout time.Duration) *PostClient {
	return &PostClient{base: newBase("post-service", baseURL, timeout)}
}

// ListByAuthor returns up to limit posts of a user, without comment enrichment
func (c *PostClient) ListByAuthor(ctx context.Context, authorID string, limit int) ([]PostSummary, error) {
	type page struct {
		Posts      []PostSummary `json:"posts"`
		Pagination Pagination    `json:"pagination"`
	}

	res, err := c.r(ctx).
		SetQueryParams(map[string]string{
			"authorId": authorID,
			"limit":    strconv.Itoa(limit),
			"comments": "false",
		}).
		SetResult(&envelope[page]{}).
		Get("/api/v1/posts")
	if err != nil {
		return nil, err
	}
	if err := check(res); err != nil {
		return nil, err
	}

	return res.Result().(*envelope[page]).Data.Posts, nil
}

// CommentClient talks to the comment service
type CommentClient struct {
	base
}

// NewCommentClient returns a client for the comment service at baseURL
func NewCommentClient(baseURL string, timeout time.Duration) *CommentClient {
	return &CommentClient{base: newBase("comment-service", baseURL, timeout)}
}

// CountComments reads the total of a post's comments from the list pagination
func (c *CommentClient) CountComments(ctx context.Context, postID string) (int64, error) {
	type page struct {
		Pagination Pagination `json:"pagination"`
	}

	res, err := c.r(ctx).
		SetPathParam("postId", postID).
		SetQueryParam("limit", "1").
		SetResult(&envelope[page]{}).
		Get("/api/v1/comments/{postId}")
	if err != nil {
		return 0, err
	}
	if err := check(res); err != nil {
		return 0, err
	}

	return res.Result().(*envelope[page]).Data.Pagination.Total, nil
}
