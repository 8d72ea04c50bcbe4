// Package preference merges extracted evidence into per-user preference
// state and runs the processing cycle around it.
package preference

import (
	"math"
	"sort"

	"preference_server/core/domain"
	"preference_server/pkg/apperr"
)

// AggregatorConfig holds the blending constants.
type AggregatorConfig struct {
	// DecayFactor multiplies every prior weight before new evidence is added.
	DecayFactor float64
	// MaxShare caps one category's normalized share of a batch.
	MaxShare float64
}

// DefaultAggregatorConfig returns the standard constants.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{DecayFactor: 0.8, MaxShare: 0.5}
}

// Aggregator is a pure function of its inputs. It never mutates the prior
// it is given and is safe for concurrent use.
type Aggregator struct {
	config AggregatorConfig
}

// NewAggregator creates an aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	return &Aggregator{config: config}
}

// Merge applies a bundle to a prior state.
func (a *Aggregator) Merge(prior domain.PreferenceState, bundle *domain.EvidenceBundle) (domain.PreferenceState, error) {
	if bundle == nil {
		bundle = domain.NewEvidenceBundle()
	}
	scores, err := a.UpdateScores(bundle.CategoryCounts, prior.CategoryScores)
	if err != nil {
		return domain.PreferenceState{}, err
	}
	dists, err := a.UpdateAttributeDistributions(bundle.AttributeDistributions, prior.AttributeDistributions)
	if err != nil {
		return domain.PreferenceState{}, err
	}
	return domain.PreferenceState{CategoryScores: scores, AttributeDistributions: dists}, nil
}

// UpdateScores decays every prior score, adds each category's share of the
// new counts capped at MaxShare, and clamps the result to [0, 1].
func (a *Aggregator) UpdateScores(counts, prior map[domain.CategoryID]float64) (map[domain.CategoryID]float64, error) {
	d := a.config.DecayFactor
	if err := checkUnit("decay factor", d); err != nil {
		return nil, err
	}
	if err := checkUnit("max share", a.config.MaxShare); err != nil {
		return nil, err
	}

	result := make(map[domain.CategoryID]float64, len(prior)+len(counts))
	for id, score := range prior {
		if err := checkUnit("prior score", score); err != nil {
			return nil, err.WithDetail("category", id.String())
		}
		result[id] = score * d
	}

	ids := sortedIDs(counts)
	total := 0.0
	for _, id := range ids {
		c := counts[id]
		if err := checkCount(c); err != nil {
			return nil, err.WithDetail("category", id.String())
		}
		total += c
	}
	if math.IsInf(total, 0) {
		return nil, apperr.Invariant("category counts overflow")
	}
	if total == 0 {
		total = 1
	}

	for _, id := range ids {
		c := counts[id]
		if c == 0 {
			continue
		}
		share := math.Min(c/total, a.config.MaxShare)
		result[id] = clamp(result[id] + share)
	}
	return result, nil
}

// UpdateAttributeDistributions decays every prior weight, adds each new
// value's share of its (category, attribute) total scaled by 1-DecayFactor,
// and clamps the result to [0, 1].
func (a *Aggregator) UpdateAttributeDistributions(next, prior map[domain.CategoryID]domain.AttributeDistribution) (map[domain.CategoryID]domain.AttributeDistribution, error) {
	d := a.config.DecayFactor
	if err := checkUnit("decay factor", d); err != nil {
		return nil, err
	}

	result := make(map[domain.CategoryID]domain.AttributeDistribution, len(prior)+len(next))
	for id, dist := range prior {
		decayed := make(domain.AttributeDistribution, len(dist))
		for attr, values := range dist {
			out := make(map[string]float64, len(values))
			for v, w := range values {
				if err := checkUnit("prior attribute weight", w); err != nil {
					return nil, err.WithDetail("category", id.String()).WithDetail("attribute", attr)
				}
				out[v] = w * d
			}
			decayed[attr] = out
		}
		result[id] = decayed
	}

	for id, dist := range next {
		for attr, values := range dist {
			keys := sortedKeys(values)
			total := 0.0
			for _, v := range keys {
				if err := checkCount(values[v]); err != nil {
					return nil, err.WithDetail("category", id.String()).WithDetail("attribute", attr)
				}
				total += values[v]
			}
			if math.IsInf(total, 0) {
				return nil, apperr.Invariant("attribute weights overflow").WithDetail("attribute", attr)
			}
			if total == 0 {
				total = 1
			}

			for _, v := range keys {
				w := values[v]
				if w == 0 {
					continue
				}
				target := result[id]
				if target == nil {
					target = make(domain.AttributeDistribution)
					result[id] = target
				}
				if target[attr] == nil {
					target[attr] = make(map[string]float64)
				}
				target[attr][v] = clamp(target[attr][v] + (w/total)*(1-d))
			}
		}
	}
	return result, nil
}

// =============================================================================
// Numeric contract
// =============================================================================

func checkUnit(name string, v float64) *apperr.AppError {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
		return apperr.Invariant("%s %v outside [0, 1]", name, v)
	}
	return nil
}

func checkCount(v float64) *apperr.AppError {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return apperr.Invariant("evidence weight %v is not a finite non-negative number", v)
	}
	return nil
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Sums run in key order so results are bit-reproducible.
func sortedIDs(m map[domain.CategoryID]float64) []domain.CategoryID {
	ids := make([]domain.CategoryID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
