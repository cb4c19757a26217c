package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"videogen/internal/domain"
)

// Mongo stores one document per job in a collection keyed by _id.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects and pings the server.
func OpenMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("jobstore: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("jobstore: ping mongo: %w", err)
	}
	return &Mongo{client: client, coll: client.Database(database).Collection(collection)}, nil
}

func (m *Mongo) Upsert(ctx context.Context, jobID string, status domain.JobStatus, metadata map[string]any) error {
	update := bson.M{"$set": bson.M(mergeFields(status, metadata))}
	_, err := m.coll.UpdateOne(ctx, bson.M{"_id": jobID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("jobstore: upsert %s: %w", jobID, err)
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	var doc bson.M
	err := m.coll.FindOne(ctx, bson.M{"_id": jobID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: find %s: %w", jobID, err)
	}
	return jobFromFields(jobID, doc), nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

var _ Store = (*Mongo)(nil)
