package domain

import (
	"sort"
	"time"
)

// PreferenceState is the per-user preference model.
// Every score and every attribute weight lies in [0, 1].
type PreferenceState struct {
	CategoryScores         map[CategoryID]float64
	AttributeDistributions map[CategoryID]AttributeDistribution
}

// NewPreferenceState returns an empty state.
func NewPreferenceState() PreferenceState {
	return PreferenceState{
		CategoryScores:         make(map[CategoryID]float64),
		AttributeDistributions: make(map[CategoryID]AttributeDistribution),
	}
}

// IsEmpty reports whether the state carries no preferences.
func (s PreferenceState) IsEmpty() bool {
	return len(s.CategoryScores) == 0 && len(s.AttributeDistributions) == 0
}

// Clone returns a deep copy.
func (s PreferenceState) Clone() PreferenceState {
	out := NewPreferenceState()
	for id, score := range s.CategoryScores {
		out.CategoryScores[id] = score
	}
	for id, dist := range s.AttributeDistributions {
		out.AttributeDistributions[id] = dist.Clone()
	}
	return out
}

// TopCategories returns up to n category ids ordered by score descending,
// ties broken by ascending id.
func (s PreferenceState) TopCategories(n int) []CategoryID {
	ids := make([]CategoryID, 0, len(s.CategoryScores))
	for id := range s.CategoryScores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := s.CategoryScores[ids[i]], s.CategoryScores[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	if n > 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// =============================================================================
// Persisted shape
// =============================================================================

// CategoryPreference is one persisted {category, score, attributes} record.
type CategoryPreference struct {
	Category   string                        `json:"category" bson:"category"`
	Name       string                        `json:"name,omitempty" bson:"name,omitempty"`
	Score      float64                       `json:"score" bson:"score"`
	Attributes map[string]map[string]float64 `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// UserPreferences is the record stored per user.
type UserPreferences struct {
	UserID      string               `json:"user_id"`
	Preferences []CategoryPreference `json:"preferences"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ToRecords flattens the state into the persisted list, ordered by score.
// Categories that only carry attributes are emitted with a zero score.
func (s PreferenceState) ToRecords(nameOf func(CategoryID) string) []CategoryPreference {
	seen := make(map[CategoryID]bool, len(s.CategoryScores))
	ids := s.TopCategories(0)
	for _, id := range ids {
		seen[id] = true
	}
	var extra []CategoryID
	for id := range s.AttributeDistributions {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	ids = append(ids, extra...)

	records := make([]CategoryPreference, 0, len(ids))
	for _, id := range ids {
		rec := CategoryPreference{
			Category: id.String(),
			Score:    s.CategoryScores[id],
		}
		if nameOf != nil {
			rec.Name = nameOf(id)
		}
		if dist, ok := s.AttributeDistributions[id]; ok && len(dist) > 0 {
			rec.Attributes = dist.Clone()
		}
		records = append(records, rec)
	}
	return records
}

// StateFromRecords rebuilds a state from persisted records. Records whose
// category cannot be parsed are ignored.
func StateFromRecords(records []CategoryPreference) PreferenceState {
	state := NewPreferenceState()
	for _, rec := range records {
		id, err := ParseCategoryID(rec.Category)
		if err != nil {
			continue
		}
		if rec.Score != 0 {
			state.CategoryScores[id] = rec.Score
		}
		if len(rec.Attributes) > 0 {
			state.AttributeDistributions[id] = AttributeDistribution(rec.Attributes).Clone()
		}
	}
	return state
}

// =============================================================================
// Processing
// =============================================================================

// UserDataEntry is one processing request for a user.
type UserDataEntry struct {
	UserID   string
	Email    string
	DataType DataType
	Entries  []RawEntry
}

// ProcessingStatus tracks the last processing attempt for a user.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusFailed    ProcessingStatus = "failed"
)

// ProcessingResult summarizes one ProcessUserData call.
type ProcessingResult struct {
	UserID           string    `json:"user_id"`
	DataType         DataType  `json:"data_type"`
	EntriesProcessed int       `json:"entries_processed"`
	PreferencesCount int       `json:"preferences_count"`
	TopCategories    []string  `json:"top_categories,omitempty"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// PreferenceSnapshot is a historical record of a user's state.
type PreferenceSnapshot struct {
	ID            string               `json:"id" db:"id"`
	UserID        string               `json:"user_id" db:"user_id"`
	DataType      DataType             `json:"data_type" db:"data_type"`
	EntryCount    int                  `json:"entry_count" db:"entry_count"`
	TopCategories []string             `json:"top_categories" db:"-"`
	Preferences   []CategoryPreference `json:"preferences" db:"-"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
}
