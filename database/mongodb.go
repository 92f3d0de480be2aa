package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// collection names
const (
	UsersCollection    = "users"
	PostsCollection    = "posts"
	CommentsCollection = "comments"
)

// OpenConnection to the database, the caller owns the client
func OpenConnection(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// make sure a connection has actually been made
	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// CloseConnection closes the connection to the DB (when the service is shut-down)
func CloseConnection(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes a service relies on; creating an existing index is a no-op
func EnsureIndexes(db *mongo.Database, collection string) error {
	var models []mongo.IndexModel

	switch collection {
	case UsersCollection:
		models = []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		}
	case PostsCollection:
		models = []mongo.IndexModel{
			{Keys: bson.D{{Key: "authorId", Value: 1}}},
			{Keys: bson.D{{Key: "rankingScore", Value: -1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
		}
	case CommentsCollection:
		models = []mongo.IndexModel{
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}}},
		}
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	return err
}
