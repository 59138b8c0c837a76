package embedding

import (
	"container/list"
	"context"
	"sync"
)

// Cache is a fixed-capacity LRU of vectors keyed by text.
type Cache struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewCache returns a cache holding up to capacity vectors. A non-positive capacity
// disables caching.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns a copy of the vector cached for key.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return cloneVector(elem.Value.(*cacheEntry).value), true
}

// Set stores a copy of value under key, evicting the least recently used entry when full.
func (c *Cache) Set(key string, value []float32) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = cloneVector(value)
		return
	}
	c.items[key] = c.lru.PushFront(&cacheEntry{key: key, value: cloneVector(value)})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// cachedEncoder serves repeated texts from a Cache.
type cachedEncoder struct {
	Encoder
	cache *Cache
}

// WithCache wraps enc so repeated texts skip inference. A non-positive size returns enc.
func WithCache(enc Encoder, size int) Encoder {
	if size <= 0 {
		return enc
	}
	return &cachedEncoder{Encoder: enc, cache: NewCache(size)}
}

func (e *cachedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v, nil
	}
	v, err := e.Encoder.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, v)
	return v, nil
}
