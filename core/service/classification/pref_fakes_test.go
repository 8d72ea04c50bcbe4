package classification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"preference_server/core/domain"
)

var errProviderDown = errors.New("provider down")

// fakeProvider returns fixed vectors per text. Unknown texts get fallback.
type fakeProvider struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32

	embedErr    error
	failBatches int32
	block       bool

	embedCalls atomic.Int32
	batchCalls atomic.Int32
	batchSizes []int
}

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.embedCalls.Add(1)
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	return p.lookup(text), nil
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := p.batchCalls.Add(1)
	if n <= p.failBatches {
		return nil, errProviderDown
	}
	p.mu.Lock()
	p.batchSizes = append(p.batchSizes, len(texts))
	p.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.lookup(t)
	}
	return out, nil
}

func (p *fakeProvider) lookup(text string) []float32 {
	if v, ok := p.vectors[text]; ok {
		return v
	}
	return p.fallback
}

func testCandidates() []Candidate {
	return []Candidate{
		{Text: "phone", Category: 101},
		{Text: "laptop", Category: 102},
		{Text: "sofa", Category: 301},
		{Text: "couch", Category: 301},
	}
}

func testVectors() map[string][]float32 {
	return map[string][]float32{
		"phone":  {1, 0, 0},
		"laptop": {0, 1, 0},
		"sofa":   {0, 0, 1},
		"couch":  {0, 0.2, 1},
	}
}

func newTestProvider() *fakeProvider {
	return &fakeProvider{vectors: testVectors(), fallback: []float32{0, 0, 0}}
}

func approxEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func scoresEqual(got, want map[domain.CategoryID]float64) bool {
	if len(got) != len(want) {
		return false
	}
	for id, w := range want {
		g, ok := got[id]
		if !ok || !approxEqual(g, w) {
			return false
		}
	}
	return true
}
