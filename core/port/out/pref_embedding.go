package out

import "context"

// EmbeddingProvider turns text into vectors.
// A nil vector with a nil error means the provider is unavailable.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
