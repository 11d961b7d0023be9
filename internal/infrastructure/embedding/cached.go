// Package embedding provides provider-agnostic decorators around the
// Embedder port: response caching and request throttling.
package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/athreya-m/trialmatch/internal/core/ports"
)

const defaultCacheSize = 4096

const (
	roleSegment = "seg"
	roleQuery   = "query"
)

// CachedEmbedder serves repeated texts from an in-process LRU cache and
// forwards only misses to the wrapped embedder. Keys are salted with the
// model name so switching providers never reuses stale vectors.
type CachedEmbedder struct {
	inner  ports.Embedder
	cache  *lruCache
	model  string
	hits   prometheus.Counter
	misses prometheus.Counter
}

func NewCachedEmbedder(inner ports.Embedder, model string, size int, counter *prometheus.CounterVec) *CachedEmbedder {
	if size <= 0 {
		size = defaultCacheSize
	}
	if counter == nil {
		counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "embedding_cache_requests_total"}, []string{"result"})
	}
	return &CachedEmbedder{
		inner:  inner,
		cache:  newLRUCache(size),
		model:  model,
		hits:   counter.WithLabelValues("hit"),
		misses: counter.WithLabelValues("miss"),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	missTexts := make([]string, 0, len(texts))
	pending := make(map[string][]int, len(texts))

	for i, text := range texts {
		key := c.key(roleSegment, text)
		if vector, ok := c.cache.get(key); ok {
			out[i] = vector
			c.hits.Inc()
			continue
		}
		c.misses.Inc()
		if positions, dup := pending[key]; dup {
			pending[key] = append(positions, i)
			continue
		}
		pending[key] = []int{i}
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: expected %d vectors, got %d", len(missTexts), len(vectors))
	}

	for j, vector := range vectors {
		key := c.key(roleSegment, missTexts[j])
		c.cache.set(key, vector)
		for _, pos := range pending[key] {
			out[pos] = vector
		}
	}
	return out, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	// Segment and query encodings live under separate keys; some models
	// encode the two asymmetrically.
	key := c.key(roleQuery, text)
	if vector, ok := c.cache.get(key); ok {
		c.hits.Inc()
		return vector, nil
	}
	c.misses.Inc()

	vector, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.set(key, vector)
	return vector, nil
}

func (c *CachedEmbedder) key(role, text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.model + ":" + role + ":" + hex.EncodeToString(sum[:])
}

type lruCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	key    string
	vector []float32
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (c *lruCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(element)
	return element.Value.(*lruEntry).vector, true
}

func (c *lruCache) set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		element.Value.(*lruEntry).vector = vector
		c.order.MoveToFront(element)
		return
	}

	c.items[key] = c.order.PushFront(&lruEntry{key: key, vector: vector})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
