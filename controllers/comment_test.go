package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"panda-blog/apperror"
	"panda-blog/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeComments struct {
	comments    map[string]*models.Comment
	page, limit int64
}

func (f *fakeComments) ListComments(_ context.Context, postID string, page int64, limit int64) ([]models.Comment, int64, error) {
	f.page, f.limit = page, limit
	out := []models.Comment{}
	for _, cm := range f.comments {
		if cm.PostID == postID {
			out = append(out, *cm)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeComments) CreateComment(_ context.Context, postID string, userID string, content string) (*models.Comment, error) {
	cm := &models.Comment{ID: primitive.NewObjectID(), PostID: postID, CommenterID: userID, CommenterName: "alice", Content: content}
	f.comments[cm.ID.Hex()] = cm
	return cm, nil
}

func (f *fakeComments) owned(id string, userID string, denied string) (*models.Comment, error) {
	cm, found := f.comments[id]
	if !found {
		return nil, apperror.NotFound("Comment")
	}
	if cm.CommenterID != userID {
		return nil, apperror.Forbidden(denied)
	}
	return cm, nil
}

func (f *fakeComments) UpdateComment(_ context.Context, id string, userID string, content string) (*models.Comment, error) {
	cm, err := f.owned(id, userID, "You can only update your own comments")
	if err != nil {
		return nil, err
	}
	cm.Content = content
	return cm, nil
}

func (f *fakeComments) DeleteComment(_ context.Context, id string, userID string) error {
	if _, err := f.owned(id, userID, "You can only delete your own comments"); err != nil {
		return err
	}
	delete(f.comments, id)
	return nil
}

func commentRouter(comments *fakeComments, userID string) *gin.Engine {
	ctl := &CommentController{Comments: comments, Log: zap.NewNop()}

	router := gin.New()
	router.Use(as(userID))
	router.GET("/api/v1/comments/:postId", ctl.ListComments)
	router.POST("/api/v1/comments/:postId", ctl.CreateComment)
	router.PUT("/api/v1/comments/:id", ctl.UpdateComment)
	router.DELETE("/api/v1/comments/:id", ctl.DeleteComment)
	return router
}

func TestCommentLifecycle(t *testing.T) {
	comments := &fakeComments{comments: map[string]*models.Comment{}}
	router := commentRouter(comments, "alice-id")

	status, res := do(t, router, http.MethodPost, "/api/v1/comments/post-1", `{"content":"nice"}`)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "Comment created successfully", res.Message)

	var created models.Comment
	require.NoError(t, json.Unmarshal(res.Data, &created))
	require.Equal(t, "alice-id", created.CommenterID)

	status, res = do(t, router, http.MethodGet, "/api/v1/comments/post-1", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(1), comments.page)
	require.Equal(t, int64(50), comments.limit)

	var page CommentPage
	require.NoError(t, json.Unmarshal(res.Data, &page))
	require.Len(t, page.Comments, 1)
	require.Equal(t, int64(1), page.Pagination.Total)
	require.Equal(t, int64(1), page.Pagination.Pages)

	url := "/api/v1/comments/" + created.ID.Hex()

	status, res = do(t, commentRouter(comments, "bob-id"), http.MethodPut, url, `{"content":"mine now"}`)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "You can only update your own comments", res.Message)

	status, res = do(t, router, http.MethodPut, url, `{"content":"nicer"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Comment updated successfully", res.Message)

	status, res = do(t, router, http.MethodDelete, url, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Comment deleted successfully", res.Message)

	status, res = do(t, router, http.MethodDelete, url, "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Comment not found", res.Message)
}

func TestCreateComment_Validation(t *testing.T) {
	comments := &fakeComments{comments: map[string]*models.Comment{}}

	status, _ := do(t, commentRouter(comments, ""), http.MethodPost, "/api/v1/comments/post-1", `{"content":"x"}`)
	require.Equal(t, http.StatusUnauthorized, status)

	router := commentRouter(comments, "alice-id")

	status, res := do(t, router, http.MethodPost, "/api/v1/comments/post-1", `{"content":""}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, `"content" is required`, res.Message)

	status, res = do(t, router, http.MethodPost, "/api/v1/comments/post-1", `{"content":"`+strings.Repeat("x", 1001)+`"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, `"content" length must be less than or equal to 1000 characters long`, res.Message)
	require.Empty(t, comments.comments)
}

func TestListComments_Bounds(t *testing.T) {
	comments := &fakeComments{comments: map[string]*models.Comment{}}
	router := commentRouter(comments, "")

	status, _ := do(t, router, http.MethodGet, "/api/v1/comments/post-1?page=0&limit=5000", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, int64(1), comments.page)
	require.Equal(t, int64(models.MaxPageSize), comments.limit)
}
