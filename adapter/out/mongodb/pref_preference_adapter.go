package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"preference_server/core/domain"
	"preference_server/core/port/out"
	"preference_server/pkg/apperr"
)

// =============================================================================
// MongoDB Preference Adapter
// =============================================================================

const collectionPreferences = "user_preferences"

// PreferenceAdapter implements out.PreferenceRepository using MongoDB.
// One document per user holds the flattened preference records.
type PreferenceAdapter struct {
	collection *mongo.Collection
	nameOf     func(domain.CategoryID) string
	now        func() time.Time
}

var _ out.PreferenceRepository = (*PreferenceAdapter)(nil)

// NewPreferenceAdapter creates a new adapter. nameOf labels stored records
// with category names and may be nil.
func NewPreferenceAdapter(db *mongo.Database, nameOf func(domain.CategoryID) string) *PreferenceAdapter {
	return &PreferenceAdapter{
		collection: db.Collection(collectionPreferences),
		nameOf:     nameOf,
		now:        time.Now,
	}
}

// EnsureIndexes creates the indexes the adapter relies on.
func (a *PreferenceAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type preferenceDocument struct {
	UserID      string                      `bson:"user_id"`
	Preferences []domain.CategoryPreference `bson:"preferences"`
	UpdatedAt   time.Time                   `bson:"updated_at"`
}

// Load returns the stored state or an empty state.
func (a *PreferenceAdapter) Load(ctx context.Context, userID string) (domain.PreferenceState, error) {
	doc, err := a.find(ctx, userID)
	if err != nil {
		return domain.PreferenceState{}, err
	}
	if doc == nil {
		return domain.NewPreferenceState(), nil
	}
	return domain.StateFromRecords(doc.Preferences), nil
}

// Save replaces the user's document.
func (a *PreferenceAdapter) Save(ctx context.Context, userID string, state domain.PreferenceState) error {
	doc := preferenceDocument{
		UserID:      userID,
		Preferences: state.ToRecords(a.nameOf),
		UpdatedAt:   a.now().UTC(),
	}

	_, err := a.collection.ReplaceOne(ctx, bson.M{"user_id": userID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// Get returns the persisted record.
func (a *PreferenceAdapter) Get(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	doc, err := a.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.NotFound("preferences")
	}
	prefs := doc.Preferences
	if prefs == nil {
		prefs = []domain.CategoryPreference{}
	}
	return &domain.UserPreferences{
		UserID:      doc.UserID,
		Preferences: prefs,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func (a *PreferenceAdapter) find(ctx context.Context, userID string) (*preferenceDocument, error) {
	var doc preferenceDocument
	err := a.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return &doc, nil
}
