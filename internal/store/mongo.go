package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/speechcare/analysis-service/internal/task"
)

// MongoStore keeps task records in a MongoDB collection, one document per
// task keyed by task_id. A unique index on task_id plus $setOnInsert upserts
// give the atomic create-if-absent semantics concurrent admissions rely on.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB and prepares the tasks collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", task.ErrStoreUnavailable, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", task.ErrStoreUnavailable, err)
	}

	coll := client.Database(database).Collection(collection)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "task_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(connectCtx, indexModel); err != nil {
		return nil, fmt.Errorf("%w: ensure index: %v", task.ErrStoreUnavailable, err)
	}

	return &MongoStore{client: client, collection: coll}, nil
}

func (s *MongoStore) UpsertCreate(ctx context.Context, taskID string) error {
	now := time.Now().UTC()
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"task_id": taskID},
		bson.M{"$setOnInsert": bson.M{
			"status":     task.StatusProcessing,
			"created_at": now,
			"updated_at": now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// A duplicate-key error means a concurrent admission won the upsert
		// race; the record exists, which is all this operation guarantees.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("%w: upsert create: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Complete(ctx context.Context, taskID string, results map[string]interface{}) error {
	return s.terminal(ctx, taskID, bson.M{
		"status":  task.StatusCompleted,
		"results": results,
	})
}

func (s *MongoStore) Fail(ctx context.Context, taskID, message string) error {
	return s.terminal(ctx, taskID, bson.M{
		"status": task.StatusFailed,
		"error":  message,
	})
}

// terminal merges fields into the record only while it is still processing,
// so a terminal status is never overwritten.
func (s *MongoStore) terminal(ctx context.Context, taskID string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"task_id": taskID, "status": task.StatusProcessing},
		bson.M{"$set": fields},
	)
	if err != nil {
		return fmt.Errorf("%w: terminal update: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) SetOwner(ctx context.Context, taskID, ownerRef string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"task_id": taskID},
		bson.M{"$set": bson.M{
			"owner_ref":  ownerRef,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("%w: set owner: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, taskID string) (*task.Task, error) {
	var t task.Task
	err := s.collection.FindOne(ctx, bson.M{"task_id": taskID}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get: %v", task.ErrStoreUnavailable, err)
	}
	return &t, nil
}

func (s *MongoStore) List(ctx context.Context, f Filter) ([]task.Projection, error) {
	filter := bson.M{}
	if f.OwnerRef != "" {
		filter["owner_ref"] = f.OwnerRef
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"_id": 0, "task_id": 1, "status": 1, "owner_ref": 1, "created_at": 1})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", task.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	tasks := []task.Projection{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("%w: decode list: %v", task.ErrStoreUnavailable, err)
	}
	return tasks, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", task.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
