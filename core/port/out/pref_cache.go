package out

import (
	"context"
	"time"
)

// PreferenceCache is the cache shared with the serving layer.
type PreferenceCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Cache key prefixes shared with other services.
const (
	CacheKeyPreferences        = "preferences:"
	CacheKeyTaxonomySearch     = "taxonomy:search:"
	CacheKeyTaxonomyEmbeddings = "taxonomy:embeddings:"
)

// Cache durations.
const (
	CacheTTLShort = 5 * time.Minute
	CacheTTLLong  = 24 * time.Hour
)
