// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scorecache memoizes judge verdicts keyed by deterministic
// fingerprints of (trace, action, candidate). Guarantees at-most-one
// in-flight computation per key under concurrent access so a costly,
// rate-limited judge oracle is never called twice for the same input.
// Implements: prd004-score-cache (R1-R4);
//
//	docs/ARCHITECTURE § Score Cache.
package scorecache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/guardrag/pkg/types"
)

// ComputeFunc produces the verdict for a key on a cache miss.
type ComputeFunc func(ctx context.Context) (types.JudgeScore, error)

// Cache is a concurrency-safe memoization layer over the judge oracle.
//
// Entries are immutable once written. Failures are never cached: the
// entry stays absent and a later call retries. When a capacity is
// configured the least recently used entry is evicted; eviction never
// touches keys currently being computed because in-flight keys live in
// the singleflight group, not the entry map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lru     *list.List
	// keyVersion holds bumped versions for keys reported inconsistent;
	// absent means version 0.
	keyVersion map[string]int

	flight     singleflight.Group
	maxEntries int

	hits      int64
	misses    int64
	evictions int64
	computes  int64
	failures  int64
}

type entry struct {
	key        string
	score      types.JudgeScore
	storedAt   time.Time
	lruElement *list.Element
}

// New creates a cache. maxEntries <= 0 means unbounded (pure memoization).
func New(cfg types.CacheConfig) *Cache {
	return &Cache{
		entries:    make(map[string]*entry),
		lru:        list.New(),
		keyVersion: make(map[string]int),
		maxEntries: cfg.MaxEntries,
	}
}

// Get returns the cached verdict for key, if present.
func (c *Cache) Get(key string) (types.JudgeScore, bool) {
	vkey := c.versionedKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[vkey]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return types.JudgeScore{}, false
	}
	c.lru.MoveToFront(e.lruElement)
	atomic.AddInt64(&c.hits, 1)
	return e.score, true
}

// GetOrCompute returns the cached verdict for key or computes it.
// Concurrent callers for the same key share one in-flight computation;
// compute runs at most once per key absent failures (R1.2). A compute
// error is returned to every waiter and nothing is cached.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (types.JudgeScore, error) {
	if score, ok := c.Get(key); ok {
		return score, nil
	}

	vkey := c.versionedKey(key)
	v, err, _ := c.flight.Do(vkey, func() (any, error) {
		// Another waiter may have populated the entry while this call
		// was queued behind a completed flight.
		if score, ok := c.Get(key); ok {
			return score, nil
		}

		score, err := compute(ctx)
		if err != nil {
			atomic.AddInt64(&c.failures, 1)
			return types.JudgeScore{}, err
		}

		c.put(vkey, score)
		atomic.AddInt64(&c.computes, 1)
		return score, nil
	})
	if err != nil {
		return types.JudgeScore{}, fmt.Errorf("computing score for key %.12s…: %w", key, err)
	}
	return v.(types.JudgeScore), nil
}

// ReportMismatch handles a detected key collision: the stored entry is
// dropped and the key is versioned so future computations land in a
// fresh entry rather than overwriting the old one (R4, CacheInconsistency
// policy: prefer the fresh value, never serve the stale one again).
func (c *Cache) ReportMismatch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	vkey := fmt.Sprintf("v%d:%s", c.keyVersion[key], key)
	if e, ok := c.entries[vkey]; ok {
		c.lru.Remove(e.lruElement)
		delete(c.entries, vkey)
	}
	c.keyVersion[key]++
}

func (c *Cache) versionedKey(key string) string {
	c.mu.RLock()
	v := c.keyVersion[key]
	c.mu.RUnlock()
	return fmt.Sprintf("v%d:%s", v, key)
}

func (c *Cache) put(vkey string, score types.JudgeScore) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[vkey]; exists {
		// Entries are immutable once written.
		return
	}

	if c.maxEntries > 0 {
		for len(c.entries) >= c.maxEntries {
			back := c.lru.Back()
			if back == nil {
				break
			}
			old := back.Value.(string)
			c.lru.Remove(back)
			delete(c.entries, old)
			atomic.AddInt64(&c.evictions, 1)
		}
	}

	e := &entry{key: vkey, score: score, storedAt: time.Now()}
	e.lruElement = c.lru.PushFront(vkey)
	c.entries[vkey] = e
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats reports cache counters.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
	Computes  int64
	Failures  int64
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:   len(c.entries),
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
		Computes:  atomic.LoadInt64(&c.computes),
		Failures:  atomic.LoadInt64(&c.failures),
	}
}
