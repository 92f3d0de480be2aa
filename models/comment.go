package models

import (
	"context"
	"errors"
	"time"

	"panda-blog/apperror"
	"panda-blog/helpers"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Comment on a post, postId/commenterId reference documents of other services
type Comment struct {
	ID            primitive.ObjectID `json:"id" bson:"_id"`
	PostID        string             `json:"postId" bson:"postId"`
	CommenterID   string             `json:"commenterId" bson:"commenterId"`
	CommenterName string             `json:"commenterName" bson:"commenterName"`
	Content       string             `json:"content" bson:"content"`
	Header        `bson:",inline"`
}

// CommentModel provides the logic to the interface and access to the database
type CommentModel struct {
	Collection  *mongo.Collection
	GetUserName func(ctx context.Context, userID string) (string, error)
	Log         *zap.Logger
}

func (m CommentModel) load(ctx context.Context, id string) (*Comment, error) {
	oid := helpers.ObjectID(id)
	if oid.IsZero() {
		return nil, apperror.NotFound("Comment")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var comment Comment
	err := m.Collection.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&comment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("Comment")
		}
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	return &comment, nil
}

// owned loads a comment and checks the caller wrote it
func (m CommentModel) owned(ctx context.Context, id string, userID string, denied string) (*Comment, error) {
	comment, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.CommenterID != userID {
		return nil, apperror.Forbidden(denied)
	}
	return comment, nil
}

// ListComments returns one page of a post's comments, newest first, and the total count
func (m CommentModel) ListComments(ctx context.Context, postID string, page int64, limit int64) ([]Comment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filter := bson.D{{Key: "postId", Value: postID}}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := m.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, helpers.WrapError(err, helpers.FuncName())
	}
	defer cursor.Close(ctx)

	comments := []Comment{}
	if err = cursor.All(ctx, &comments); err != nil {
		return nil, 0, helpers.WrapError(err, helpers.FuncName())
	}

	total, err := m.Collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, helpers.WrapError(err, helpers.FuncName())
	}

	return comments, total, nil
}

// CreateComment adds a comment of userID to a post
func (m CommentModel) CreateComment(ctx context.Context, postID string, userID string, content string) (*Comment, error) {
	comment := &Comment{
		ID:            primitive.NewObjectID(),
		PostID:        postID,
		CommenterID:   userID,
		CommenterName: UnknownAuthor,
		Content:       content,
	}
	if m.GetUserName != nil {
		name, err := m.GetUserName(ctx, userID)
		if err != nil {
			m.Log.Warn("could not fetch user info", zap.String("userId", userID), zap.Error(err))
		} else if name != "" {
			comment.CommenterName = name
		}
	}
	comment.touch(time.Now())

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := m.Collection.InsertOne(ctx, comment); err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}

	m.Log.Info("comment created", zap.String("commentId", comment.ID.Hex()), zap.String("userId", userID))
	return comment, nil
}

// UpdateComment replaces the text of the caller's own comment
func (m CommentModel) UpdateComment(ctx context.Context, id string, userID string, content string) (*Comment, error) {
	comment, err := m.owned(ctx, id, userID, "You can only update your own comments")
	if err != nil {
		return nil, err
	}

	recVer := comment.RecVer
	comment.Content = content
	comment.RecVer++
	comment.touch(time.Now())

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.D{{Key: "_id", Value: comment.ID}, {Key: "recVer", Value: recVer}}
	fields := bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: comment.Content},
		{Key: "updatedAt", Value: comment.UpdatedAt},
		{Key: "recVer", Value: comment.RecVer},
	}}}

	result, err := m.Collection.UpdateOne(ctx, filter, fields)
	if err != nil {
		return nil, helpers.WrapError(err, helpers.FuncName())
	}
	if result.MatchedCount == 0 {
		return nil, apperror.ErrRecordChanged
	}
	return comment, nil
}

// DeleteComment removes the caller's own comment
func (m CommentModel) DeleteComment(ctx context.Context, id string, userID string) error {
	comment, err := m.owned(ctx, id, userID, "You can only delete your own comments")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err = m.Collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: comment.ID}}); err != nil {
		return helpers.WrapError(err, helpers.FuncName())
	}
	return nil
}
