package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoActivityStore keeps the activity feed in a MongoDB collection. The
// metadata is stored as an embedded document so it stays queryable.
type MongoActivityStore struct {
	// coll holds the activity documents, counters the id sequence
	coll     *mongo.Collection
	counters *mongo.Collection
}

// NewMongoActivityStore returns a MongoActivityStore using the given
// collections.
func NewMongoActivityStore(coll, counters *mongo.Collection) *MongoActivityStore {
	return &MongoActivityStore{coll: coll, counters: counters}
}

type activityDoc struct {
	ObjectID  bson.ObjectID  `bson:"_id,omitempty"`
	ID        int64          `bson:"activity_id"`
	Type      string         `bson:"type"`
	ActorID   int64          `bson:"actor_id"`
	Metadata  map[string]any `bson:"metadata"`
	CreatedAt time.Time      `bson:"created_at"`
}

// nextID increments and returns the activity sequence.
func (s *MongoActivityStore) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "activities"},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next activity id: %w", err)
	}
	return counter.Seq, nil
}

// Record inserts a, assigning its id from the counters collection.
func (s *MongoActivityStore) Record(ctx context.Context, a *Activity) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	meta := map[string]any{}
	if len(a.Metadata) > 0 {
		if err := json.Unmarshal(a.Metadata, &meta); err != nil {
			return fmt.Errorf("decode activity metadata: %w", err)
		}
	}
	doc := activityDoc{
		ID:        id,
		Type:      string(a.Type),
		ActorID:   a.ActorID,
		Metadata:  meta,
		CreatedAt: a.CreatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	a.ID = id
	return nil
}

// Recent returns the newest activities first.
func (s *MongoActivityStore) Recent(ctx context.Context, limit int) ([]Activity, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "activity_id", Value: -1}}).
		SetLimit(int64(clampLimit(limit, 50, 200)))

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []activityDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Activity, 0, len(docs))
	for _, d := range docs {
		raw, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode activity metadata: %w", err)
		}
		out = append(out, Activity{
			ID:        d.ID,
			Type:      ActivityType(d.Type),
			ActorID:   d.ActorID,
			Metadata:  raw,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}
