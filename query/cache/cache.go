// Package cache keeps compiled statements so that repeated query
// configurations skip the compile pass.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache stores compiled values by key.
type Cache interface {
	// Get retrieves a value from the cache
	Get(key string) (any, bool)
	// Set stores a value, a zero ttl uses the cache default
	Set(key string, value any, ttl time.Duration)
	// Invalidate removes a specific key
	Invalidate(key string)
	// InvalidateTable removes every entry compiled for table
	InvalidateTable(table string)
	// Clear removes all entries
	Clear()
	// Stats returns cache statistics
	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// LRUCache is a size-bounded cache with optional expiry.
type LRUCache struct {
	mu         sync.Mutex
	data       map[string]*list.Element
	order      *list.List
	maxSize    int
	defaultTTL time.Duration
	stats      Stats
	now        func() time.Time
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most maxSize entries. A zero
// defaultTTL keeps entries until they are evicted.
func NewLRUCache(maxSize int, defaultTTL time.Duration) *LRUCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &LRUCache{
		data:       make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		stats:      Stats{MaxSize: maxSize},
		now:        time.Now,
	}
}

// Get retrieves a value and marks it as recently used.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.data[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	e := el.Value.(*entry)
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.remove(el)
		c.stats.Misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if el, ok := c.data[key]; ok {
		e := el.Value.(*entry)
		e.value, e.expiresAt = value, expiresAt
		c.order.MoveToFront(el)
		return
	}

	if len(c.data) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
			c.stats.Evictions++
		}
	}
	c.data[key] = c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
}

// Invalidate removes a specific key.
func (c *LRUCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.data[key]; ok {
		c.remove(el)
	}
}

// InvalidateTable removes every key built by Key for table.
func (c *LRUCache) InvalidateTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.data {
		if keyTable(key) == table {
			c.remove(el)
		}
	}
}

// Clear removes all entries and resets the statistics.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*list.Element)
	c.order.Init()
	c.stats = Stats{MaxSize: c.maxSize}
}

// Stats returns cache statistics.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.data)
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

func (c *LRUCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.data, el.Value.(*entry).key)
}

// Key builds "op:table:hash" from the JSON encoding of input. It fails when
// input cannot be encoded; such inputs are simply not cached.
func Key(op, table string, input any) (string, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%s", op, table, hex.EncodeToString(sum[:16])), nil
}

func keyTable(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}
