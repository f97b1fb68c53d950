package csse

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// Source is the read side of the feed: availability probe plus download.
type Source interface {
	Exists(ctx context.Context, date time.Time) (bool, error)
	Fetch(ctx context.Context, date time.Time) ([]byte, error)
}

// DefaultCacheSize holds every daily report the feed published
// (2020-01-22 through 2023-03-10, 1,143 files) with headroom. A refresh scans
// the whole range once per universe, and an LRU smaller than one scan evicts
// each entry just before it is read again.
const DefaultCacheSize = 2048

// CacheObserver receives hit/miss notifications, kind is "probe" or "fetch".
type CacheObserver func(kind string, hit bool)

// CachedSource wraps a Source with an in-memory LRU of report bodies and
// positive probe answers. Published reports never change, so neither entry
// kind expires.
type CachedSource struct {
	inner    Source
	bodies   *lruCache[[]byte]
	probes   *lruCache[bool]
	observer CacheObserver
}

// NewCachedSource creates a cache decorator around a source. observer may be nil.
func NewCachedSource(inner Source, maxEntries int, observer CacheObserver) *CachedSource {
	if observer == nil {
		observer = func(string, bool) {}
	}
	return &CachedSource{
		inner:    inner,
		bodies:   newLRUCache[[]byte](maxEntries),
		probes:   newLRUCache[bool](maxEntries),
		observer: observer,
	}
}

func (c *CachedSource) Exists(ctx context.Context, date time.Time) (bool, error) {
	key := domain.ReportName(date)
	if _, ok := c.probes.get(key); ok {
		c.observer("probe", true)
		return true, nil
	}
	if _, ok := c.bodies.get(key); ok {
		c.observer("probe", true)
		return true, nil
	}
	c.observer("probe", false)

	ok, err := c.inner.Exists(ctx, date)
	if err != nil {
		return false, err
	}
	// Only positive answers are cached so today's report is picked up once published.
	if ok {
		c.probes.put(key, true)
	}
	return ok, nil
}

func (c *CachedSource) Fetch(ctx context.Context, date time.Time) ([]byte, error) {
	key := domain.ReportName(date)
	if body, ok := c.bodies.get(key); ok {
		c.observer("fetch", true)
		return body, nil
	}
	c.observer("fetch", false)

	body, err := c.inner.Fetch(ctx, date)
	if err != nil {
		return nil, err
	}
	c.bodies.put(key, body)
	c.probes.put(key, true)
	return body, nil
}

// Purge drops every cached entry.
func (c *CachedSource) Purge() {
	c.bodies.purge()
	c.probes.purge()
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.head, c.tail = nil, nil
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
