package tzlookup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/observability"
)

// coordKey rounds to about 11 m, far below any zone boundary precision.
func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// CachedLocator wraps a TimeZoneLocator with an in-memory LRU cache.
type CachedLocator struct {
	inner   domain.TimeZoneLocator
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator. metrics may be
// nil.
func NewCachedLocator(inner domain.TimeZoneLocator, maxEntries int, metrics *observability.Metrics) *CachedLocator {
	return &CachedLocator{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLocator) StandardOffset(ctx context.Context, lat, lon float64) (time.Duration, error) {
	key := coordKey(lat, lon)
	if offset, ok := c.cache.get(key); ok {
		observeCache(c.metrics, "memory", "hit")
		return offset, nil
	}
	observeCache(c.metrics, "memory", "miss")
	offset, err := c.inner.StandardOffset(ctx, lat, lon)
	if err != nil {
		// Failures are not cached so transient errors can be retried.
		return offset, err
	}
	c.cache.put(key, offset)
	return offset, nil
}

func observeCache(m *observability.Metrics, layer, result string) {
	if m != nil {
		m.TZLookupCache.WithLabelValues(layer, result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache of offsets.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value time.Duration
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
