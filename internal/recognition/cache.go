package recognition

import (
	"container/list"
	"context"
	"log"
	"sync"
)

// Cache memoizes matcher results per face-crop fingerprint so that
// visually-identical crops never hit the external model twice.
//
// Eviction is strictly insertion-order FIFO: when inserting a distinct key
// past capacity, the oldest-inserted key is removed. This is deliberately
// not an LRU — a hit does not refresh a key's position.
type Cache struct {
	mu       sync.Mutex
	matcher  Matcher
	capacity int
	entries  map[string]Result
	order    *list.List // fingerprint strings, oldest at front
}

// NewCache creates a result cache over the given matcher. Capacity must be
// positive.
func NewCache(matcher Matcher, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		matcher:  matcher,
		capacity: capacity,
		entries:  make(map[string]Result, capacity),
		order:    list.New(),
	}
}

// LookupOrCompute returns the cached result for the fingerprint, or invokes
// the matcher on a miss and stores its result. A matcher failure degrades to
// (Unknown, 0) and is not stored, so the crop stays eligible for
// recomputation on a future call with the same fingerprint.
func (c *Cache) LookupOrCompute(ctx context.Context, fp string, crop []byte) Result {
	c.mu.Lock()
	if res, ok := c.entries[fp]; ok {
		c.mu.Unlock()
		return res
	}
	c.mu.Unlock()

	res, err := c.matcher.Match(ctx, crop)
	if err != nil {
		log.Printf("matcher error for crop %s: %v", fp, err)
		return Result{Name: Unknown, Confidence: 0}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have filled the entry while the matcher ran.
	if existing, ok := c.entries[fp]; ok {
		return existing
	}

	c.entries[fp] = res
	c.order.PushBack(fp)
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}

	return res
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all cached results, forcing fresh matcher calls. Called after
// training changes the reference embeddings.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Result, c.capacity)
	c.order.Init()
}
