package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"preference_server/core/domain"
	"preference_server/core/port/out"
)

// =============================================================================
// MongoDB Processing Status Adapter
// =============================================================================

// The ingestion service writes raw batches to this collection with
// processedStatus "pending"; this adapter moves them to their final state.
const collectionUserData = "userData"

// StatusAdapter implements out.ProcessingStatusRepository.
type StatusAdapter struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ out.ProcessingStatusRepository = (*StatusAdapter)(nil)

// NewStatusAdapter creates a new status adapter.
func NewStatusAdapter(db *mongo.Database) *StatusAdapter {
	return &StatusAdapter{
		collection: db.Collection(collectionUserData),
		now:        time.Now,
	}
}

// EnsureIndexes creates the lookup index for pending batches.
func (a *StatusAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "processedStatus", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "processedStatus", Value: 1}}},
	})
	return err
}

// MarkStatus moves the user's pending batches to status. Batches are matched
// by email when one is known, otherwise by user id.
func (a *StatusAdapter) MarkStatus(ctx context.Context, userID, email string, status domain.ProcessingStatus, reason string) error {
	update := bson.M{
		"processedStatus": string(status),
		"processedAt":     a.now().UTC(),
	}
	if reason != "" {
		update["failureReason"] = reason
	}

	_, err := a.collection.UpdateMany(ctx, statusFilter(userID, email), bson.M{"$set": update}, options.Update())
	if err != nil {
		return fmt.Errorf("failed to mark processing %s: %w", status, err)
	}
	return nil
}

func statusFilter(userID, email string) bson.M {
	filter := bson.M{"processedStatus": string(domain.StatusPending)}
	if email != "" {
		filter["email"] = email
	} else {
		filter["user_id"] = userID
	}
	return filter
}
