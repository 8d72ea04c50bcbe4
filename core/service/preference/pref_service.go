package preference

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"preference_server/core/domain"
	"preference_server/core/port/in"
	"preference_server/core/port/out"
	"preference_server/core/service/extraction"
	"preference_server/core/service/taxonomy"
	"preference_server/pkg/apperr"
	"preference_server/pkg/logger"
	"preference_server/pkg/metrics"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// ServiceConfig controls the side effects of a processing cycle.
type ServiceConfig struct {
	SnapshotTopN int
	GraphTopN    int
}

// DefaultServiceConfig returns the standard side-effect sizes.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{SnapshotTopN: 5, GraphTopN: 10}
}

// ServiceDeps holds dependencies for creating a Service. Only Preferences is
// required; the other collaborators are skipped when nil.
type ServiceDeps struct {
	Directory  *taxonomy.Directory
	Extractor  *extraction.Extractor
	Aggregator *Aggregator

	Preferences out.PreferenceRepository
	Status      out.ProcessingStatusRepository
	Snapshots   out.SnapshotRepository
	Graph       out.InterestGraph
	Cache       out.PreferenceCache
}

// Service implements in.PreferenceUseCase.
type Service struct {
	dir        *taxonomy.Directory
	extractor  *extraction.Extractor
	aggregator *Aggregator

	prefRepo     out.PreferenceRepository
	statusRepo   out.ProcessingStatusRepository
	snapshotRepo out.SnapshotRepository
	graph        out.InterestGraph
	cache        out.PreferenceCache

	config ServiceConfig
	log    zerolog.Logger
	now    func() time.Time
}

var _ in.PreferenceUseCase = (*Service)(nil)

// NewService creates a new preference service.
func NewService(deps ServiceDeps, config ServiceConfig) *Service {
	return &Service{
		dir:          deps.Directory,
		extractor:    deps.Extractor,
		aggregator:   deps.Aggregator,
		prefRepo:     deps.Preferences,
		statusRepo:   deps.Status,
		snapshotRepo: deps.Snapshots,
		graph:        deps.Graph,
		cache:        deps.Cache,
		config:       config,
		log:          logger.Component("preference_service"),
		now:          time.Now,
	}
}

// =============================================================================
// Core
// =============================================================================

// ProcessEntries extracts evidence from the entries and merges it into prior.
// An unknown data type returns the prior unchanged. The only error is an
// aggregator invariant violation.
func (s *Service) ProcessEntries(ctx context.Context, dataType domain.DataType, entries []domain.RawEntry, prior domain.PreferenceState) (domain.PreferenceState, error) {
	if !dataType.IsKnown() {
		s.log.Debug().Str("data_type", string(dataType)).Msg("unknown data type, state unchanged")
		return prior.Clone(), nil
	}

	bundle, stats := s.extractor.Extract(ctx, dataType, entries)
	for reason, n := range stats.Skipped {
		metrics.RecordSkipped(string(dataType), reason, n)
	}

	state, err := s.aggregator.Merge(prior, bundle)
	if err != nil {
		if apperr.IsInvariant(err) {
			metrics.InvariantViolations.Inc()
			s.log.Error().Err(err).Str("data_type", string(dataType)).Msg("aggregation invariant violated")
		}
		return domain.PreferenceState{}, err
	}
	return state, nil
}

// =============================================================================
// Processing cycle
// =============================================================================

// ProcessUserData loads the user's state, processes the entries and saves
// the result. Status, cache, snapshot and graph updates after the save are
// best-effort.
func (s *Service) ProcessUserData(ctx context.Context, data *domain.UserDataEntry) (result *domain.ProcessingResult, err error) {
	if data == nil || data.UserID == "" {
		return nil, apperr.BadRequest("user_id is required")
	}
	if !data.DataType.IsKnown() {
		return nil, apperr.New(apperr.CodeUnknownDataType, fmt.Sprintf("unknown data type %q", data.DataType), http.StatusBadRequest)
	}

	start := s.now()
	log := s.log.With().Str("user_id", data.UserID).Str("data_type", string(data.DataType)).Logger()
	defer func() {
		metrics.RecordProcessing(string(data.DataType), time.Since(start), err)
		if err != nil {
			s.markStatus(ctx, data, domain.StatusFailed, err.Error())
		}
	}()

	prior, err := s.prefRepo.Load(ctx, data.UserID)
	if err != nil {
		return nil, apperr.DatabaseError("load preferences", err)
	}

	state, err := s.ProcessEntries(ctx, data.DataType, data.Entries, prior)
	if err != nil {
		return nil, err
	}

	if err := s.prefRepo.Save(ctx, data.UserID, state); err != nil {
		return nil, apperr.DatabaseError("save preferences", err)
	}

	s.markStatus(ctx, data, domain.StatusProcessed, "")
	s.invalidate(ctx, data.UserID)

	records := state.ToRecords(s.dir.Name)
	s.recordSnapshot(ctx, data, records)
	s.projectInterests(ctx, data.UserID, records)

	result = &domain.ProcessingResult{
		UserID:           data.UserID,
		DataType:         data.DataType,
		EntriesProcessed: len(data.Entries),
		PreferencesCount: len(records),
		TopCategories:    topNames(records, s.config.SnapshotTopN),
		ProcessedAt:      s.now(),
	}
	log.Info().Int("entries", len(data.Entries)).Int("preferences", len(records)).Msg("preferences updated")
	return result, nil
}

func (s *Service) markStatus(ctx context.Context, data *domain.UserDataEntry, status domain.ProcessingStatus, reason string) {
	if s.statusRepo == nil {
		return
	}
	if err := s.statusRepo.MarkStatus(ctx, data.UserID, data.Email, status, reason); err != nil {
		s.log.Warn().Err(err).Str("user_id", data.UserID).Str("status", string(status)).Msg("failed to mark processing status")
	}
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, out.CacheKeyPreferences+userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to invalidate preference cache")
	}
}

func (s *Service) recordSnapshot(ctx context.Context, data *domain.UserDataEntry, records []domain.CategoryPreference) {
	if s.snapshotRepo == nil {
		return
	}
	snapshot := &domain.PreferenceSnapshot{
		ID:            uuid.NewString(),
		UserID:        data.UserID,
		DataType:      data.DataType,
		EntryCount:    len(data.Entries),
		TopCategories: topIDs(records, s.config.SnapshotTopN),
		Preferences:   records,
		CreatedAt:     s.now(),
	}
	if err := s.snapshotRepo.SaveSnapshot(ctx, snapshot); err != nil {
		s.log.Warn().Err(err).Str("user_id", data.UserID).Msg("failed to record preference snapshot")
	}
}

func (s *Service) projectInterests(ctx context.Context, userID string, records []domain.CategoryPreference) {
	if s.graph == nil {
		return
	}
	top := records
	if n := s.config.GraphTopN; n > 0 && len(top) > n {
		top = top[:n]
	}
	if err := s.graph.UpsertInterests(ctx, userID, top); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("failed to project interests")
	}
}

// =============================================================================
// Queries
// =============================================================================

// GetPreferences returns the stored preferences, served from cache when
// possible.
func (s *Service) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	if userID == "" {
		return nil, apperr.BadRequest("user_id is required")
	}

	key := out.CacheKeyPreferences + userID
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var prefs domain.UserPreferences
			if err := json.Unmarshal([]byte(raw), &prefs); err == nil {
				return &prefs, nil
			}
		}
	}

	prefs, err := s.prefRepo.Get(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, apperr.DatabaseError("get preferences", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(prefs); err == nil {
			if err := s.cache.Set(ctx, key, string(data), out.CacheTTLShort); err != nil {
				s.log.Debug().Err(err).Str("user_id", userID).Msg("failed to cache preferences")
			}
		}
	}
	return prefs, nil
}

// GetHistory lists recent snapshots, newest first.
func (s *Service) GetHistory(ctx context.Context, userID string, limit int) ([]*domain.PreferenceSnapshot, error) {
	if userID == "" {
		return nil, apperr.BadRequest("user_id is required")
	}
	if s.snapshotRepo == nil {
		return []*domain.PreferenceSnapshot{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	snapshots, err := s.snapshotRepo.ListSnapshots(ctx, userID, limit)
	if err != nil {
		return nil, apperr.DatabaseError("list snapshots", err)
	}
	return snapshots, nil
}

func topIDs(records []domain.CategoryPreference, n int) []string {
	var ids []string
	for _, r := range records {
		if n > 0 && len(ids) == n {
			break
		}
		if r.Score > 0 {
			ids = append(ids, r.Category)
		}
	}
	return ids
}

func topNames(records []domain.CategoryPreference, n int) []string {
	var names []string
	for _, r := range records {
		if n > 0 && len(names) == n {
			break
		}
		if r.Score > 0 {
			names = append(names, r.Name)
		}
	}
	return names
}
