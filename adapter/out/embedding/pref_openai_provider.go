// Package embedding implements out.EmbeddingProvider on the OpenAI API with
// a circuit breaker and a two-tier vector cache.
package embedding

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"preference_server/core/port/out"
	"preference_server/pkg/logger"
	"preference_server/pkg/metrics"
	"preference_server/pkg/resilience"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint.
	BaseURL string
	Breaker resilience.BreakerConfig
}

// OpenAIProvider calls the embeddings endpoint. While its breaker is open it
// reports the provider as unavailable with nil vectors and a nil error.
type OpenAIProvider struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	breaker *resilience.Breaker
	log     zerolog.Logger
}

var _ out.EmbeddingProvider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = resilience.DefaultBreakerConfig("openai-embeddings")
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   openai.EmbeddingModel(model),
		breaker: resilience.NewBreaker(cfg.Breaker),
		log:     logger.Component("openai_embeddings"),
	}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil || vectors == nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := resilience.Execute(p.breaker, func() ([][]float32, error) {
		return p.create(ctx, texts)
	})
	if err != nil {
		if resilience.IsRejected(err) {
			p.log.Debug().Str("breaker", p.breaker.State()).Msg("embedding provider unavailable")
			return nil, nil
		}
		return nil, err
	}
	return vectors, nil
}

func (p *OpenAIProvider) create(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: p.model,
	})
	metrics.RecordEmbedding(err)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	result := make([][]float32, len(data))
	for i, d := range data {
		result[i] = d.Embedding
	}
	return result, nil
}
