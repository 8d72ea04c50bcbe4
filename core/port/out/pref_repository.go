package out

import (
	"context"

	"preference_server/core/domain"
)

// PreferenceRepository loads and saves per-user preference state.
type PreferenceRepository interface {
	// Load returns the stored state, or an empty state when none exists.
	Load(ctx context.Context, userID string) (domain.PreferenceState, error)
	Save(ctx context.Context, userID string, state domain.PreferenceState) error
	// Get returns the persisted record or an apperr not-found error.
	Get(ctx context.Context, userID string) (*domain.UserPreferences, error)
}

// ProcessingStatusRepository records the outcome of processing attempts.
type ProcessingStatusRepository interface {
	MarkStatus(ctx context.Context, userID, email string, status domain.ProcessingStatus, reason string) error
}

// SnapshotRepository stores historical preference snapshots.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.PreferenceSnapshot) error
	ListSnapshots(ctx context.Context, userID string, limit int) ([]*domain.PreferenceSnapshot, error)
}

// InterestGraph projects category interests into a graph store.
type InterestGraph interface {
	UpsertInterests(ctx context.Context, userID string, interests []domain.CategoryPreference) error
}
