// Package mongo stores key/value documents in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/storage"
)

type document struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store implements storage.Store on one collection
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Open satisfies storage.Factory
func Open(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	return NewStore(ctx, cfg.Mongo)
}

// NewStore connects to MongoDB and selects the configured collection
func NewStore(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "kv"
	}

	return &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(collection),
	}, nil
}

func (s *Store) Name() string { return "mongo" }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	update := bson.M{"$set": bson.M{"value": value, "updatedAt": time.Now().UTC()}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys with the given prefix
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode keys: %w", err)
	}

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Key)
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
