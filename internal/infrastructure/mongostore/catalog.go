// Package mongostore persists catalog snapshots in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/domain/catalog"
	"github.com/medisync/go-pharma/pkg/workerpool"
)

const documentType = "medicine_list"

// Config holds MongoDB connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		URI:        "mongodb://localhost:27017",
		Database:   "pharma",
		Collection: "medicine_lists",
	}
}

type snapshotDocument struct {
	ID        string         `bson:"_id"`
	Type      string         `bson:"type"`
	Medicines map[string]int `bson:"medicines"`
	CreatedAt time.Time      `bson:"created_at"`
}

// Store keeps catalog snapshots as whole documents. Reads always resolve the
// newest document, so a refresh that inserts before deleting never exposes a
// partially written catalog.
type Store struct {
	collection *mongo.Collection
	deletePool *workerpool.Pool
	logger     *zap.Logger
}

// New connects to MongoDB and returns a snapshot store.
func New(ctx context.Context, client *mongo.Client, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)

	store := &Store{
		collection: collection,
		logger:     logger,
	}

	pool, err := workerpool.New(workerpool.DefaultConfig(), store.deleteSnapshot, logger)
	if err != nil {
		return nil, fmt.Errorf("create delete pool: %w", err)
	}
	store.deletePool = pool

	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "type", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("create snapshot index: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot, or catalog.ErrNoSnapshot when the
// collection holds none.
func (s *Store) Latest(ctx context.Context) (*catalog.Snapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc snapshotDocument
	err := s.collection.FindOne(ctx, bson.M{"type": documentType}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalog.ErrNoSnapshot
		}
		return nil, fmt.Errorf("find latest snapshot: %w", err)
	}

	return &catalog.Snapshot{
		ID:        doc.ID,
		Medicines: doc.Medicines,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// Replace inserts the new snapshot first, then removes the superseded ones.
// Old-snapshot deletions run concurrently and may partially fail; the report
// carries the aggregate outcome and a failed deletion never fails the replace.
func (s *Store) Replace(ctx context.Context, snap *catalog.Snapshot) (*catalog.ReplaceReport, error) {
	doc := snapshotDocument{
		ID:        snap.ID,
		Type:      documentType,
		Medicines: snap.Medicines,
		CreatedAt: snap.CreatedAt,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	superseded, err := s.supersededIDs(ctx, snap.ID)
	if err != nil {
		// The new snapshot is live; old documents linger until the next
		// refresh cleans them up.
		s.logger.Warn("listing superseded snapshots failed", zap.Error(err))
		return &catalog.ReplaceReport{}, nil
	}

	report := &catalog.ReplaceReport{}
	if len(superseded) == 0 {
		return report, nil
	}

	tasks := make([]*workerpool.Task, len(superseded))
	for i, id := range superseded {
		tasks[i] = &workerpool.Task{ID: id}
	}

	for _, result := range s.deletePool.Run(ctx, tasks) {
		if result.Success {
			report.Deleted++
		} else {
			report.DeleteFailures++
		}
	}

	s.logger.Info("snapshot replaced",
		zap.String("snapshot_id", snap.ID),
		zap.Int("deleted", report.Deleted),
		zap.Int("delete_failures", report.DeleteFailures))
	return report, nil
}

// supersededIDs lists snapshot documents other than the one just installed.
func (s *Store) supersededIDs(ctx context.Context, keepID string) ([]string, error) {
	filter := bson.M{
		"type": documentType,
		"_id":  bson.M{"$ne": keepID},
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find superseded snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode snapshot id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate superseded snapshots: %w", err)
	}
	return ids, nil
}

// deleteSnapshot is the worker function for old-snapshot cleanup.
func (s *Store) deleteSnapshot(ctx context.Context, task *workerpool.Task) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": task.ID})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", task.ID, err)
	}
	return nil
}

// Connect dials MongoDB and verifies connectivity.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
