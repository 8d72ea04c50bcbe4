package preference

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"preference_server/core/domain"
	"preference_server/core/port/in"
	"preference_server/core/port/out"
	"preference_server/core/service/classification"
	"preference_server/core/service/taxonomy"
	"preference_server/pkg/apperr"
	"preference_server/pkg/logger"
)

// TaxonomyService implements in.TaxonomyUseCase.
type TaxonomyService struct {
	dir      *taxonomy.Directory
	resolver *classification.HybridResolver
	cache    out.PreferenceCache
	group    singleflight.Group
	log      zerolog.Logger
}

var _ in.TaxonomyUseCase = (*TaxonomyService)(nil)

// NewTaxonomyService creates a taxonomy service. cache may be nil.
func NewTaxonomyService(dir *taxonomy.Directory, resolver *classification.HybridResolver, cache out.PreferenceCache) *TaxonomyService {
	return &TaxonomyService{
		dir:      dir,
		resolver: resolver,
		cache:    cache,
		log:      logger.Component("taxonomy_service"),
	}
}

func (s *TaxonomyService) Categories() []domain.Category {
	return s.dir.Categories()
}

func (s *TaxonomyService) Schemas() map[string]domain.AttributeSchema {
	return s.dir.Schemas()
}

func (s *TaxonomyService) KeywordMappings() map[string]string {
	return s.resolver.Keywords().Table().Mappings()
}

// Search runs query analysis. Results are cached per normalized query and
// concurrent identical searches share one analysis.
func (s *TaxonomyService) Search(ctx context.Context, query string) (*in.QueryAnalysis, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if normalized == "" {
		return nil, apperr.BadRequest("query is required")
	}
	key := out.CacheKeyTaxonomySearch + normalized

	if cached, ok := s.cached(ctx, key); ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		analysis := s.analyze(ctx, normalized)
		s.store(ctx, key, analysis)
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*in.QueryAnalysis), nil
}

func (s *TaxonomyService) analyze(ctx context.Context, query string) *in.QueryAnalysis {
	result := s.resolver.AnalyzeQuery(ctx, query)

	analysis := &in.QueryAnalysis{
		Query:      query,
		Categories: make(map[string]float64, len(result.Scores)),
		Source:     string(result.Source),
	}
	for id, score := range result.Scores {
		analysis.Categories[id.String()] = score
	}
	if best, _, ok := result.Best(); ok {
		analysis.BestMatch = best.String()
		analysis.BestName = s.dir.Name(best)
	}
	return analysis
}

func (s *TaxonomyService) cached(ctx context.Context, key string) (*in.QueryAnalysis, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil, false
	}
	var analysis in.QueryAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, false
	}
	return &analysis, true
}

func (s *TaxonomyService) store(ctx context.Context, key string, analysis *in.QueryAnalysis) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), out.CacheTTLShort); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("failed to cache search analysis")
	}
}
