// Package classification maps free text to taxonomy categories with keyword
// rules first and embedding similarity as fallback.
package classification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"preference_server/core/domain"
	"preference_server/pkg/logger"
	"preference_server/pkg/metrics"
)

// Source names which stage produced a classification.
type Source string

const (
	SourceNone      Source = "none"
	SourceRule      Source = "rule"
	SourceEmbedding Source = "embedding"
	SourceHybrid    Source = "hybrid"
)

const (
	modeItem  = "item"
	modeQuery = "query"
)

// =============================================================================
// Config
// =============================================================================

// HybridConfig configures query blending.
type HybridConfig struct {
	// RuleConfidence is the max rule score at which rule results are used alone.
	RuleConfidence  float64
	RuleWeight      float64
	EmbeddingWeight float64
	// EmbeddingTimeout bounds each embedding-backed step. Zero disables it.
	EmbeddingTimeout time.Duration
}

// DefaultHybridConfig returns the standard blend.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		RuleConfidence:   0.5,
		RuleWeight:       0.3,
		EmbeddingWeight:  0.7,
		EmbeddingTimeout: 3 * time.Second,
	}
}

// =============================================================================
// Resolver
// =============================================================================

// QueryResult is the outcome of query analysis.
type QueryResult struct {
	Scores map[domain.CategoryID]float64
	Source Source
}

// Best returns the highest scoring category, lowest id on ties.
func (r QueryResult) Best() (domain.CategoryID, float64, bool) {
	var (
		best  domain.CategoryID
		score float64
		found bool
	)
	for id, s := range r.Scores {
		if !found || s > score || (s == score && id < best) {
			best, score, found = id, s, true
		}
	}
	return best, score, found
}

// HybridResolver orchestrates the keyword and embedding classifiers.
//
// Single-item resolution:
//
//	Stage 1: Keyword   → first keyword found as a substring
//	Stage 2: Embedding → best candidate above threshold
//
// Query analysis blends both when rule confidence is low.
type HybridResolver struct {
	keywords  *KeywordClassifier
	embedding *EmbeddingClassifier
	config    HybridConfig
	log       zerolog.Logger
}

// NewHybridResolver creates a resolver. embedding may be nil.
func NewHybridResolver(keywords *KeywordClassifier, embedding *EmbeddingClassifier, config HybridConfig) *HybridResolver {
	return &HybridResolver{
		keywords:  keywords,
		embedding: embedding,
		config:    config,
		log:       logger.Component("hybrid_resolver"),
	}
}

// Keywords returns the keyword classifier.
func (r *HybridResolver) Keywords() *KeywordClassifier {
	return r.keywords
}

// ResolveItem classifies a single item name. A keyword match always wins;
// the embedding classifier is consulted only when no keyword matches.
func (r *HybridResolver) ResolveItem(ctx context.Context, text string) (domain.CategoryID, Source, bool) {
	if id, _, ok := r.keywords.Classify(text); ok {
		metrics.RecordClassification(modeItem, string(SourceRule))
		return id, SourceRule, true
	}

	if r.embedding.Enabled() {
		ectx, cancel := r.embeddingContext(ctx)
		id, sim, ok := r.embedding.FindBestMatch(ectx, text)
		cancel()
		if ok {
			r.log.Debug().Str("text", text).Int("category", int(id)).Float64("similarity", sim).Msg("embedding match")
			metrics.RecordClassification(modeItem, string(SourceEmbedding))
			return id, SourceEmbedding, true
		}
	}

	metrics.RecordClassification(modeItem, string(SourceNone))
	return 0, SourceNone, false
}

// AnalyzeQuery returns per-category scores for a full search query.
// Confident rule results are returned as-is. Otherwise rule and embedding
// scores are combined over the union of their categories, a missing side
// counting as 0. Without embeddings the rule result is returned.
func (r *HybridResolver) AnalyzeQuery(ctx context.Context, query string) QueryResult {
	rule := r.keywords.ClassifyMulti(Tokenize(query))

	result := r.analyze(ctx, query, rule)
	metrics.RecordClassification(modeQuery, string(result.Source))
	return result
}

func (r *HybridResolver) analyze(ctx context.Context, query string, rule map[domain.CategoryID]float64) QueryResult {
	ruleSource := SourceRule
	if len(rule) == 0 {
		ruleSource = SourceNone
	}
	if maxScore(rule) >= r.config.RuleConfidence {
		return QueryResult{Scores: rule, Source: ruleSource}
	}
	if !r.embedding.Enabled() {
		return QueryResult{Scores: rule, Source: ruleSource}
	}

	ectx, cancel := r.embeddingContext(ctx)
	emb, ok := r.embedding.Scores(ectx, query)
	cancel()
	if !ok {
		r.log.Debug().Str("query", query).Msg("embedding scores unavailable, using rules only")
		return QueryResult{Scores: rule, Source: ruleSource}
	}

	combined := make(map[domain.CategoryID]float64, len(rule)+len(emb))
	for id, s := range rule {
		combined[id] += r.config.RuleWeight * s
	}
	for id, s := range emb {
		combined[id] += r.config.EmbeddingWeight * s
	}
	if len(combined) == 0 {
		return QueryResult{Scores: combined, Source: SourceNone}
	}
	return QueryResult{Scores: combined, Source: SourceHybrid}
}

func (r *HybridResolver) embeddingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.EmbeddingTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.config.EmbeddingTimeout)
}

func maxScore(scores map[domain.CategoryID]float64) float64 {
	m := 0.0
	for _, s := range scores {
		if s > m {
			m = s
		}
	}
	return m
}
