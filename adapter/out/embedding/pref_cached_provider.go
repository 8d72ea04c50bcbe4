package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"preference_server/core/port/out"
	"preference_server/pkg/logger"
	"preference_server/pkg/metrics"
)

// =============================================================================
// Memory tier
// =============================================================================

// MemoryCache is a bounded LRU of vectors with a per-entry TTL.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	items   map[string]*list.Element
	now     func() time.Time
}

type memoryEntry struct {
	key       string
	vector    []float32
	expiresAt time.Time
}

func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &MemoryCache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[string]*list.Element, maxSize),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.vector, true
}

func (c *MemoryCache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.vector = vector
		entry.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*memoryEntry).key)
	}
	c.items[key] = c.order.PushFront(&memoryEntry{key: key, vector: vector, expiresAt: expires})
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// =============================================================================
// Cached provider
// =============================================================================

// CachedProvider fronts a provider with the memory tier and an optional
// shared cache tier. Concurrent lookups of the same text share one call.
// Unavailable results are never cached.
type CachedProvider struct {
	next   out.EmbeddingProvider
	memory *MemoryCache
	shared out.PreferenceCache
	ttl    time.Duration
	group  singleflight.Group
	log    zerolog.Logger
}

var _ out.EmbeddingProvider = (*CachedProvider)(nil)

// NewCachedProvider wraps next. shared may be nil.
func NewCachedProvider(next out.EmbeddingProvider, memory *MemoryCache, shared out.PreferenceCache) *CachedProvider {
	if memory == nil {
		memory = NewMemoryCache(1024, time.Hour)
	}
	return &CachedProvider{
		next:   next,
		memory: memory,
		shared: shared,
		ttl:    out.CacheTTLLong,
		log:    logger.Component("embedding_cache"),
	}
}

// Key hashes text into the cache key suffix.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)
	if v, ok := p.lookup(ctx, key); ok {
		return v, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		if v, ok := p.lookup(ctx, key); ok {
			return v, nil
		}
		metrics.EmbeddingCacheMisses.Inc()
		vec, err := p.next.Embed(ctx, text)
		if err != nil || vec == nil {
			return vec, err
		}
		p.store(ctx, key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	vec, _ := v.([]float32)
	return vec, nil
}

// EmbedBatch serves cached texts and embeds the rest in one call.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, text := range texts {
		keys[i] = Key(text)
		if v, ok := p.lookup(ctx, keys[i]); ok {
			results[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	metrics.EmbeddingCacheMisses.Add(float64(len(missTexts)))
	vectors, err := p.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if vectors == nil {
		return nil, nil
	}
	for j, vec := range vectors {
		if j >= len(missIdx) {
			break
		}
		i := missIdx[j]
		results[i] = vec
		if vec != nil {
			p.store(ctx, keys[i], vec)
		}
	}
	return results, nil
}

func (p *CachedProvider) lookup(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := p.memory.Get(key); ok {
		metrics.EmbeddingCacheHits.WithLabelValues("memory").Inc()
		return v, true
	}
	if p.shared == nil {
		return nil, false
	}
	raw, err := p.shared.Get(ctx, out.CacheKeyTaxonomyEmbeddings+key)
	if err != nil || raw == "" {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) == 0 {
		return nil, false
	}
	p.memory.Set(key, vec)
	metrics.EmbeddingCacheHits.WithLabelValues("redis").Inc()
	return vec, true
}

func (p *CachedProvider) store(ctx context.Context, key string, vec []float32) {
	p.memory.Set(key, vec)
	if p.shared == nil {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := p.shared.Set(ctx, out.CacheKeyTaxonomyEmbeddings+key, string(data), p.ttl); err != nil {
		p.log.Debug().Err(err).Msg("failed to store embedding in shared cache")
	}
}
