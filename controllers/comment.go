package controllers

import (
	"context"
	"net/http"

	"panda-blog/client"
	"panda-blog/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CommentStore is the part of the comment model the handlers use
type CommentStore interface {
	ListComments(ctx context.Context, postID string, page int64, limit int64) ([]models.Comment, int64, error)
	CreateComment(ctx context.Context, postID string, userID string, content string) (*models.Comment, error)
	UpdateComment(ctx context.Context, id string, userID string, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string, userID string) error
}

// CommentController serves the comment service routes
type CommentController struct {
	Comments CommentStore
	Log      *zap.Logger
}

type commentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
}

// CommentPage is one page of a post's comments
type CommentPage struct {
	Comments   []models.Comment  `json:"comments"`
	Pagination client.Pagination `json:"pagination"`
}

// ListComments returns the comments of a post, newest first
func (ctl *CommentController) ListComments(c *gin.Context) {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(c, "limit", 50)
	if limit < 1 {
		limit = 50
	}
	if limit > models.MaxPageSize {
		limit = models.MaxPageSize
	}

	comments, total, err := ctl.Comments.ListComments(c.Request.Context(), c.Param("postId"), page, limit)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "", CommentPage{
		Comments: comments,
		Pagination: client.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: models.Pages(total, limit),
		},
	})
}

// CreateComment adds a comment of the caller to a post
func (ctl *CommentController) CreateComment(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	var data commentRequest
	if err = bindJSON(c, &data); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	comment, err := ctl.Comments.CreateComment(c.Request.Context(), c.Param("postId"), id.UserID, data.Content)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusCreated, "Comment created successfully", comment)
}

// UpdateComment changes the text of the caller's own comment
func (ctl *CommentController) UpdateComment(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	var data commentRequest
	if err = bindJSON(c, &data); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	comment, err := ctl.Comments.UpdateComment(c.Request.Context(), c.Param("id"), id.UserID, data.Content)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "Comment updated successfully", comment)
}

// DeleteComment removes the caller's own comment
func (ctl *CommentController) DeleteComment(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		fail(c, ctl.Log, err)
		return
	}

	if err = ctl.Comments.DeleteComment(c.Request.Context(), c.Param("id"), id.UserID); err != nil {
		fail(c, ctl.Log, err)
		return
	}

	ok(c, http.StatusOK, "Comment deleted successfully", nil)
}
