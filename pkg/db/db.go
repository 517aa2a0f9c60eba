package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var Database *mongo.Database

var (
	Config      *mongo.Collection
	Users       *mongo.Collection
	AccSessions *mongo.Collection
	Posts       *mongo.Collection
	PostLikes   *mongo.Collection
)

func Init(ctx context.Context, uri string, db string) error {
	var err error

	// Connect to MongoDB
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	Client, err = mongo.Connect(ctx, opts)
	if err != nil {
		return err
	}

	// Ping MongoDB
	var result bson.M
	if err := Client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Decode(&result); err != nil {
		return err
	}

	// Set database and collections
	Database = Client.Database(db)
	Config = Database.Collection("config")
	Users = Database.Collection("users")
	AccSessions = Database.Collection("acc_sessions")
	Posts = Database.Collection("posts")
	PostLikes = Database.Collection("post_likes")

	return nil
}

func Close(ctx context.Context) error {
	if Client == nil {
		return nil
	}
	return Client.Disconnect(ctx)
}
