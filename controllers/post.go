package controllers

import (
	"context"
	"net/http"

	"panda-blog/client"
	"panda-blog/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PostStore is the part of the post model the handlers use
type PostStore interface {
	CreatePost(ctx context.Context, post *models.Post, authorID string) (*models.Post, error)
	ViewPost(ctx context.Context, id string, viewerID string, client string) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, userID string, changes models.PostChanges) (*models.Post, error)
	DeletePost(ctx context.Context, id string, userID string) error
	ToggleLike(ctx context.Context, id string, userID string) (*models.Post, bool, error)
	ToggleShare(ctx context.Context, id string, userID string) (*models.Post, bool, error)
	ListPosts(ctx context.Context, search models.PostSearch) ([]models.Post, int64, error)
	TopPosts(ctx context.Context, limit int64) ([]models.Post, error)
	AttachCommentCounts(ctx context.Context, posts []models.Post)
}

// PostController serves the post service routes
type PostController struct {
	Posts PostStore
	Log   *zap.Logger
}

type postRequest struct {
	Title         string   `json:"title" binding:"required,min=1,max=200"`
	Content       string   `json:"content" binding:"required"`
	Tags          []string `json:"tags"`
	FeaturedImage string   `json:"featuredImage" binding:"omitempty,url"`
	IsPremium     bool     `json:"isPremium"`
}

// PostPage is one page of the post list
type PostPage struct {
	Posts      []models.Post     `json:"posts"`
	Pagination client.Pagination `json:"pagination"`
}

// ListPosts returns a filtered page, each post with its comment count unless comments=false
func (ctl *PostController) ListPosts(c *gin.Context) {
	search := models.PostSearch{
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 10),
		Sort:     c.Query("sort"),
		Search:   c.Query("search"),
		Tag:      c.Query("tag"),
		AuthorID: c.Query("authorId"),
	}.Normalize()

	posts, total, err := ctl.Posts.ListPosts(c.Request.Context(), search)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	if c.Query("comments") != "false" {
		ctl.Posts.AttachCommentCounts(c.Request.Context(), posts)
	}

	ok(c, http.StatusOK, "", PostPage{
		Posts: posts,
		Pagination: client.Pagination{
			Page:  search.Page,
			Limit: search.Limit,
			Total: total,
			Pages: models.Pages(total, search.Limit),
		},
	})
}

// TopPosts returns the best ranked posts
func (ctl *PostController) TopPosts(c *gin.Context) {
	posts, err := ctl.Posts.TopPosts(c.Request.Context(), queryInt(c, "limit", 10))
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "", posts)
}

// GetPost returns a post and counts the view
func (ctl *PostController) GetPost(c *gin.Context) {
	// anonymous readers are fine
	viewer, _ := caller(c)

	post, err := ctl.Posts.ViewPost(c.Request.Context(), c.Param("id"), viewer.UserID, c.ClientIP())
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "", post)
}

// CreatePost stores a post of the caller
func (ctl *PostController) CreatePost(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	var data postRequest
	if err = bindJSON(c, &data); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	post, err := ctl.Posts.CreatePost(c.Request.Context(), &models.Post{
		Title:         data.Title,
		Content:       data.Content,
		Tags:          data.Tags,
		FeaturedImage: data.FeaturedImage,
		IsPremium:     data.IsPremium,
	}, id.UserID)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusCreated, "Post created successfully", post)
}

// UpdatePost applies a partial update of the owner
func (ctl *PostController) UpdatePost(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	var changes models.PostChanges
	if err = bindJSON(c, &changes); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	post, err := ctl.Posts.UpdatePost(c.Request.Context(), c.Param("id"), id.UserID, changes)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "Post updated successfully", post)
}

// DeletePost removes a post of the owner
func (ctl *PostController) DeletePost(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	if err = ctl.Posts.DeletePost(c.Request.Context(), c.Param("id"), id.UserID); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "Post deleted successfully", nil)
}

// LikePost toggles the caller's like
func (ctl *PostController) LikePost(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	post, liked, err := ctl.Posts.ToggleLike(c.Request.Context(), c.Param("id"), id.UserID)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	msg := "Post unliked"
	if liked {
		msg = "Post liked"
	}
	ok(c, http.StatusOK, msg, post)
}

// SharePost toggles the caller's share
func (ctl *PostController) SharePost(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	post, shared, err := ctl.Posts.ToggleShare(c.Request.Context(), c.Param("id"), id.UserID)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	msg := "Post unshared"
	if shared {
		msg = "Post shared"
	}
	ok(c, http.StatusOK, msg, post)
}
