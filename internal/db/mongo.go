package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// MongoClient wraps mongo.Client and exposes the activity-feed collections.
type MongoClient struct {
	client *mongo.Client

	// db is the "hubfreelance" database; collections are created lazily on
	// first write
	db *mongo.Database
}

// NewMongo connects to MongoDB and returns a MongoClient.
func NewMongo(ctx context.Context, mongoURI string) (*MongoClient, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoClient{
		client: client,
		db:     client.Database("hubfreelance"),
	}, nil
}

// ActivitiesCollection returns the activities collection.
func (c *MongoClient) ActivitiesCollection() *mongo.Collection {
	return c.db.Collection("activities")
}

// CountersCollection returns the collection holding id sequences.
func (c *MongoClient) CountersCollection() *mongo.Collection {
	return c.db.Collection("counters")
}

// Close disconnects from MongoDB.
func (c *MongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the activity feed queries rely on.
func (c *MongoClient) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// feed order: newest first, id as tie-break
			Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "activity_id", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "activity_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	if _, err := c.ActivitiesCollection().Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create activity indexes: %w", err)
	}
	return nil
}
