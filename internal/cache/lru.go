// Package cache provides caching implementations for Railwatch.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
)

// ErrNamespaceRequired is returned when a key is used without a namespace.
var ErrNamespaceRequired = errors.New("cache namespace is required")

const reportPrefix = "report:"

// LRUCache is a thread-safe LRU cache with TTL support.
// Used as the Community tier cache and as L1 in two-phase caching.
// Reports are kept decoded so a hit costs no unmarshalling.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List

	hits   int64
	misses int64
}

type cacheEntry struct {
	key       string
	value     []byte
	report    *domain.Report
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with the specified max size.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LRUCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a value from cache.
func (c *LRUCache) Get(ctx context.Context, namespace string, key string) ([]byte, error) {
	entry, err := c.lookup(namespace, key)
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.value == nil && entry.report != nil {
		return json.Marshal(entry.report)
	}
	return entry.value, nil
}

// Set stores a value in cache with TTL.
func (c *LRUCache) Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error {
	return c.store(namespace, key, &cacheEntry{value: value}, ttl)
}

// Delete removes a value from cache.
func (c *LRUCache) Delete(ctx context.Context, namespace string, key string) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[makeKey(namespace, key)]; ok {
		c.removeElement(elem)
	}
	return nil
}

// GetReport retrieves a memoized report. Returns nil, nil on a miss.
// The report is shared with other callers and must not be modified.
func (c *LRUCache) GetReport(ctx context.Context, namespace string, selectionKey string) (*domain.Report, error) {
	entry, err := c.lookup(namespace, reportPrefix+selectionKey)
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.report != nil {
		return entry.report, nil
	}
	return decodeReport(entry.value)
}

// SetReport memoizes a report for a selection.
func (c *LRUCache) SetReport(ctx context.Context, namespace string, selectionKey string, report *domain.Report, ttl time.Duration) error {
	return c.store(namespace, reportPrefix+selectionKey, &cacheEntry{report: report}, ttl)
}

func (c *LRUCache) lookup(namespace, key string) (*cacheEntry, error) {
	if namespace == "" {
		return nil, ErrNamespaceRequired
	}

	fullKey := makeKey(namespace, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fullKey]
	if !ok {
		c.misses++
		return nil, nil
	}

	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		c.misses++
		return nil, nil
	}

	// Move to front (most recently used)
	c.order.MoveToFront(elem)
	c.hits++
	return entry, nil
}

func (c *LRUCache) store(namespace, key string, entry *cacheEntry, ttl time.Duration) error {
	if namespace == "" {
		return ErrNamespaceRequired
	}

	entry.key = makeKey(namespace, key)
	entry.expiresAt = time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[entry.key]; ok {
		elem.Value = entry
		c.order.MoveToFront(elem)
		return nil
	}

	c.items[entry.key] = c.order.PushFront(entry)

	// Evict if over capacity
	for c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}

	return nil
}

// Ping checks cache health.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close cleans up the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	return nil
}

// Stats reports the current size, capacity and hit/miss counts.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:     c.order.Len(),
		Capacity: c.maxSize,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
}

func makeKey(namespace, key string) string {
	return namespace + ":" + key
}

func decodeReport(data []byte) (*domain.Report, error) {
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
