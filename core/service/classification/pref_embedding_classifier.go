package classification

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"preference_server/core/domain"
	"preference_server/core/port/out"
	"preference_server/core/service/taxonomy"
	"preference_server/pkg/logger"
)

// =============================================================================
// Candidates
// =============================================================================

// Candidate is a representative text for a category.
type Candidate struct {
	Text     string
	Category domain.CategoryID
}

// BuildCandidates lists candidate texts in a fixed order: main categories by
// id, then subcategories by id, each followed by its synonym phrases.
// The generic fallback category is never a candidate.
func BuildCandidates(dir *taxonomy.Directory) []Candidate {
	synonyms := make(map[domain.CategoryID][]string)
	for _, g := range dir.Catalog().Synonyms {
		synonyms[g.Category] = append(synonyms[g.Category], g.Keywords...)
	}

	var mains, subs []domain.Category
	for _, c := range dir.Categories() {
		switch {
		case c.ID == domain.CategoryOther:
		case c.IsMain():
			mains = append(mains, c)
		default:
			subs = append(subs, c)
		}
	}

	var out []Candidate
	for _, c := range append(mains, subs...) {
		out = append(out, Candidate{Text: displayName(c.Name), Category: c.ID})
		for _, s := range synonyms[c.ID] {
			out = append(out, Candidate{Text: s, Category: c.ID})
		}
	}
	return out
}

// =============================================================================
// Embedding Classifier
// =============================================================================

// EmbeddingConfig configures an EmbeddingClassifier.
type EmbeddingConfig struct {
	Threshold float64
	BatchSize int
}

// DefaultEmbeddingConfig returns the standard threshold and batch size.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{Threshold: 0.4, BatchSize: 32}
}

// EmbeddingClassifier matches text to categories by cosine similarity
// against embedded candidate texts.
//
// Candidate vectors are computed on first use and reused for the lifetime of
// the classifier. A failed build is retried on the next call; once built the
// vectors are never modified.
type EmbeddingClassifier struct {
	provider   out.EmbeddingProvider
	candidates []Candidate
	config     EmbeddingConfig
	log        zerolog.Logger

	mu      sync.Mutex
	ready   atomic.Bool
	vectors [][]float32
}

// NewEmbeddingClassifier creates a classifier. A nil provider disables it.
func NewEmbeddingClassifier(provider out.EmbeddingProvider, candidates []Candidate, config EmbeddingConfig) *EmbeddingClassifier {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultEmbeddingConfig().BatchSize
	}
	return &EmbeddingClassifier{
		provider:   provider,
		candidates: candidates,
		config:     config,
		log:        logger.Component("embedding_classifier"),
	}
}

// Enabled reports whether a provider is configured.
func (c *EmbeddingClassifier) Enabled() bool {
	return c != nil && c.provider != nil
}

// Threshold returns the minimum similarity, exclusive.
func (c *EmbeddingClassifier) Threshold() float64 {
	return c.config.Threshold
}

// FindBestMatch returns the candidate category with the highest similarity
// strictly above the threshold. Ties keep the first candidate. Returns false
// when the provider is unavailable or nothing clears the threshold.
func (c *EmbeddingClassifier) FindBestMatch(ctx context.Context, text string) (domain.CategoryID, float64, bool) {
	query, vectors, ok := c.embedAll(ctx, text)
	if !ok {
		return 0, 0, false
	}

	best := c.config.Threshold
	var (
		bestID domain.CategoryID
		found  bool
	)
	for i, v := range vectors {
		sim := CosineSimilarity(query, v)
		if sim > best {
			best = sim
			bestID = c.candidates[i].Category
			found = true
		}
	}
	if !found {
		return 0, 0, false
	}
	return bestID, best, true
}

// Scores returns per-category scores for query analysis. Each category keeps
// its maximum candidate similarity above the threshold and the result is
// normalized to sum to 1. The boolean is false when the provider is
// unavailable, which callers must distinguish from an empty result.
func (c *EmbeddingClassifier) Scores(ctx context.Context, text string) (map[domain.CategoryID]float64, bool) {
	query, vectors, ok := c.embedAll(ctx, text)
	if !ok {
		return nil, false
	}

	scores := make(map[domain.CategoryID]float64)
	for i, v := range vectors {
		sim := CosineSimilarity(query, v)
		if sim <= c.config.Threshold {
			continue
		}
		id := c.candidates[i].Category
		if sim > scores[id] {
			scores[id] = sim
		}
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	if total > 0 {
		for id, s := range scores {
			scores[id] = s / total
		}
	}
	return scores, true
}

func (c *EmbeddingClassifier) embedAll(ctx context.Context, text string) ([]float32, [][]float32, bool) {
	if !c.Enabled() || strings.TrimSpace(text) == "" {
		return nil, nil, false
	}
	query, err := c.provider.Embed(ctx, text)
	if err != nil || query == nil {
		if err != nil {
			c.log.Debug().Err(err).Msg("query embedding unavailable")
		}
		return nil, nil, false
	}
	vectors, err := c.candidateVectors(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("candidate embeddings unavailable")
		return nil, nil, false
	}
	return query, vectors, true
}

// candidateVectors builds the candidate vectors once. Concurrent callers
// block on the first build; a failed build leaves the cache empty.
func (c *EmbeddingClassifier) candidateVectors(ctx context.Context) ([][]float32, error) {
	if c.ready.Load() {
		return c.vectors, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready.Load() {
		return c.vectors, nil
	}

	vectors := make([][]float32, 0, len(c.candidates))
	for start := 0; start < len(c.candidates); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(c.candidates) {
			end = len(c.candidates)
		}
		texts := make([]string, 0, end-start)
		for _, cand := range c.candidates[start:end] {
			texts = append(texts, cand.Text)
		}

		batch, err := c.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed candidates %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed candidates %d-%d: got %d vectors", start, end, len(batch))
		}
		for i, v := range batch {
			if v == nil {
				return nil, fmt.Errorf("embed candidate %q: unavailable", texts[i])
			}
		}
		vectors = append(vectors, batch...)
	}

	c.vectors = vectors
	c.ready.Store(true)
	c.log.Info().Int("candidates", len(vectors)).Msg("candidate embeddings ready")
	return vectors, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
