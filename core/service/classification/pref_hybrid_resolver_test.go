package classification

import (
	"context"
	"testing"
	"time"

	"preference_server/core/domain"
	"preference_server/core/service/taxonomy"
)

func newTestResolver(p *fakeProvider, cfg HybridConfig) *HybridResolver {
	var emb *EmbeddingClassifier
	if p != nil {
		emb = NewEmbeddingClassifier(p, testCandidates(), DefaultEmbeddingConfig())
	}
	return NewHybridResolver(NewKeywordClassifier(taxonomy.Default()), emb, cfg)
}

func TestHybridResolverResolveItem(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		vector     []float32
		noProvider bool
		want       domain.CategoryID
		wantSource Source
		wantOK     bool
	}{
		{
			name:       "keyword wins over embedding",
			text:       "iphone case",
			vector:     []float32{0, 0, 1},
			want:       taxonomy.Smartphones,
			wantSource: SourceRule,
			wantOK:     true,
		},
		{
			name:       "embedding fallback",
			text:       "comfy seating",
			vector:     []float32{0, 0, 1},
			want:       301,
			wantSource: SourceEmbedding,
			wantOK:     true,
		},
		{
			name:       "no match anywhere",
			text:       "zzz qqq",
			vector:     []float32{0, 0, 0},
			wantSource: SourceNone,
		},
		{
			name:       "embeddings disabled",
			text:       "comfy seating",
			noProvider: true,
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p *fakeProvider
			if !tt.noProvider {
				p = newTestProvider()
				p.vectors[tt.text] = tt.vector
			}
			r := newTestResolver(p, DefaultHybridConfig())

			got, source, ok := r.ResolveItem(context.Background(), tt.text)
			if ok != tt.wantOK || got != tt.want || source != tt.wantSource {
				t.Errorf("ResolveItem(%q) = %d, %s, %v, want %d, %s, %v",
					tt.text, got, source, ok, tt.want, tt.wantSource, tt.wantOK)
			}
			if tt.wantSource == SourceRule && p.embedCalls.Load() != 0 {
				t.Error("embedding provider called although a keyword matched")
			}
		})
	}
}

func TestHybridResolverAnalyzeQuery(t *testing.T) {
	third := 1.0 / 3

	tests := []struct {
		name       string
		query      string
		provider   func() *fakeProvider
		cfg        HybridConfig
		want       map[domain.CategoryID]float64
		wantSource Source
	}{
		{
			name:  "confident rules used as is",
			query: "cheap black laptop",
			provider: func() *fakeProvider {
				p := newTestProvider()
				p.vectors["cheap black laptop"] = []float32{0, 0, 1}
				return p
			},
			cfg:        DefaultHybridConfig(),
			want:       map[domain.CategoryID]float64{102: 1},
			wantSource: SourceRule,
		},
		{
			name:  "low rule confidence blends union",
			query: "apple laptop phone tablet",
			provider: func() *fakeProvider {
				p := newTestProvider()
				p.vectors["apple laptop phone tablet"] = []float32{1, 0, 0}
				return p
			},
			cfg: DefaultHybridConfig(),
			want: map[domain.CategoryID]float64{
				101: 0.3*third + 0.7,
				102: 0.3 * third,
				109: 0.3 * third,
			},
			wantSource: SourceHybrid,
		},
		{
			name:  "embedding only categories",
			query: "comfy seating",
			provider: func() *fakeProvider {
				p := newTestProvider()
				p.vectors["comfy seating"] = []float32{0, 0, 1}
				return p
			},
			cfg:        DefaultHybridConfig(),
			want:       map[domain.CategoryID]float64{301: 0.7},
			wantSource: SourceHybrid,
		},
		{
			name:  "provider failure degrades to rules",
			query: "apple laptop phone tablet",
			provider: func() *fakeProvider {
				p := newTestProvider()
				p.embedErr = errProviderDown
				return p
			},
			cfg:        DefaultHybridConfig(),
			want:       map[domain.CategoryID]float64{101: third, 102: third, 109: third},
			wantSource: SourceRule,
		},
		{
			name:  "timeout degrades to rules",
			query: "apple laptop phone tablet",
			provider: func() *fakeProvider {
				p := newTestProvider()
				p.block = true
				return p
			},
			cfg: HybridConfig{
				RuleConfidence:   0.5,
				RuleWeight:       0.3,
				EmbeddingWeight:  0.7,
				EmbeddingTimeout: 10 * time.Millisecond,
			},
			want:       map[domain.CategoryID]float64{101: third, 102: third, 109: third},
			wantSource: SourceRule,
		},
		{
			name:       "no provider and no rules",
			query:      "zzz qqq",
			provider:   func() *fakeProvider { return nil },
			cfg:        DefaultHybridConfig(),
			want:       map[domain.CategoryID]float64{},
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.provider()
			r := newTestResolver(p, tt.cfg)

			got := r.AnalyzeQuery(context.Background(), tt.query)
			if got.Source != tt.wantSource {
				t.Errorf("Source = %s, want %s", got.Source, tt.wantSource)
			}
			if !scoresEqual(got.Scores, tt.want) {
				t.Errorf("Scores = %v, want %v", got.Scores, tt.want)
			}
			if tt.wantSource == SourceRule && tt.name == "confident rules used as is" && p.embedCalls.Load() != 0 {
				t.Error("embedding provider called for a confident rule result")
			}
		})
	}
}

func TestQueryResultBest(t *testing.T) {
	r := QueryResult{Scores: map[domain.CategoryID]float64{102: 0.4, 101: 0.4, 300: 0.2}}
	id, score, ok := r.Best()
	if !ok || id != 101 || score != 0.4 {
		t.Errorf("Best() = %d, %v, %v, want 101, 0.4, true", id, score, ok)
	}

	if _, _, ok := (QueryResult{}).Best(); ok {
		t.Error("Best() on empty result reported a match")
	}
}
