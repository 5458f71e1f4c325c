package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-digest/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Archive keeps fetched transcripts in MongoDB keyed by video id, so a
// second analysis of the same video skips the caption endpoints.
type Archive struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

// NewArchive creates an archive client. Connection errors surface from Connect.
func NewArchive(connectionString, databaseName, collectionName string) *Archive {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		return &Archive{}
	}

	return &Archive{
		mongoClient: mongoClient,
		collection:  mongoClient.Database(databaseName).Collection(collectionName),
	}
}

// Connect verifies the archive is reachable.
func (a *Archive) Connect(ctx context.Context) error {
	if a.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return a.mongoClient.Ping(ctx, nil)
}

func (a *Archive) Close(ctx context.Context) error {
	if a.mongoClient == nil {
		return nil
	}
	return a.mongoClient.Disconnect(ctx)
}

// SaveTranscript upserts the transcript for its video id.
func (a *Archive) SaveTranscript(ctx context.Context, t *domain.TranscriptArchive) error {
	if a.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	if t.FetchedAt.IsZero() {
		t.FetchedAt = time.Now().UTC()
	}

	filter := bson.M{"video_id": t.VideoID}
	update := bson.M{"$set": t}
	_, err := a.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// GetTranscript returns nil, nil when nothing is archived for videoID.
func (a *Archive) GetTranscript(ctx context.Context, videoID string) (*domain.TranscriptArchive, error) {
	if a.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	var t domain.TranscriptArchive
	err := a.collection.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transcript %s: %w", videoID, err)
	}
	return &t, nil
}

// GetAllVideoIDs returns the set of archived video ids.
func (a *Archive) GetAllVideoIDs(ctx context.Context) (map[string]bool, error) {
	if a.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	cursor, err := a.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"video_id": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to query video ids: %w", err)
	}
	defer cursor.Close(ctx)

	ids := make(map[string]bool)
	for cursor.Next(ctx) {
		var result struct {
			VideoID string `bson:"video_id"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		if result.VideoID != "" {
			ids[result.VideoID] = true
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}
