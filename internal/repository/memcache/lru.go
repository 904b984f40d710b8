// Package memcache is the in-process L1 tier: a bounded LRU with per-entry TTL.
package memcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

type item struct {
	entry     domain.CacheEntry
	expiresAt time.Time
}

// LRU is a size-bounded least-recently-used cache. Safe for concurrent use.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

// Option configures an LRU.
type Option func(*LRU)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(c *LRU) { c.now = now }
}

// New creates an LRU holding at most capacity entries for ttl each.
func New(capacity int, ttl time.Duration, opts ...Option) *LRU {
	if capacity < 1 {
		capacity = 1
	}
	c := &LRU{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the entry for key and marks it most recently used.
// Expired entries are evicted and reported as a miss.
func (c *LRU) Get(key string) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return domain.CacheEntry{}, false
	}
	it := el.Value.(*item) //nolint:forcetypeassert // list only holds *item
	if !c.now().Before(it.expiresAt) {
		c.removeElement(el)
		return domain.CacheEntry{}, false
	}
	c.order.MoveToFront(el)
	return it.entry, true
}

// Set inserts or replaces the entry and evicts least recently used entries over capacity.
func (c *LRU) Set(entry domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if el, ok := c.items[entry.Key]; ok {
		it := el.Value.(*item) //nolint:forcetypeassert // list only holds *item
		it.entry = entry
		it.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.items[entry.Key] = c.order.PushFront(&item{entry: entry, expiresAt: expiresAt})
	for c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}
}

// size returns the number of entries, including expired ones not yet evicted.
func (c *LRU) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU) removeElement(el *list.Element) {
	it := c.order.Remove(el).(*item) //nolint:forcetypeassert // list only holds *item
	delete(c.items, it.entry.Key)
}
