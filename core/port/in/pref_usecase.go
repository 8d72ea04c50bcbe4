package in

import (
	"context"

	"preference_server/core/domain"
)

// PreferenceUseCase is the inbound port of the preference engine.
type PreferenceUseCase interface {
	// ProcessEntries merges one batch into a prior state and returns the new state.
	ProcessEntries(ctx context.Context, dataType domain.DataType, entries []domain.RawEntry, prior domain.PreferenceState) (domain.PreferenceState, error)

	// ProcessUserData runs the full load, process, save cycle for a user.
	ProcessUserData(ctx context.Context, data *domain.UserDataEntry) (*domain.ProcessingResult, error)

	GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]*domain.PreferenceSnapshot, error)
}

// TaxonomyUseCase exposes the taxonomy and classifier to the outer layers.
type TaxonomyUseCase interface {
	Categories() []domain.Category
	Schemas() map[string]domain.AttributeSchema
	KeywordMappings() map[string]string
	Search(ctx context.Context, query string) (*QueryAnalysis, error)
}

// QueryAnalysis is the result of query-level category analysis.
type QueryAnalysis struct {
	Query      string             `json:"query"`
	Categories map[string]float64 `json:"categories"`
	BestMatch  string             `json:"best_match,omitempty"`
	BestName   string             `json:"best_name,omitempty"`
	Source     string             `json:"source"`
}
