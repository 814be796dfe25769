// Copyright 2025-2026 Matrix BibleBot Contributors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package cache provides a bounded, time-expiring passage cache keyed by
// (reference, translation). Lookups are case-insensitive and hits promote
// the entry to most-recently-used; entries past their TTL are treated as
// absent and evicted lazily on access.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries bounds the cache when no capacity is configured.
	DefaultMaxEntries = 128
	// DefaultTTL is how long an entry stays valid after insertion.
	DefaultTTL = 12 * time.Hour
)

// Passage is the cached payload: the resolved text plus the canonical
// reference label reported by the provider.
type Passage struct {
	Text      string
	Reference string
}

type entry struct {
	key        string
	value      Passage
	insertedAt time.Time
}

// PassageCache is an LRU cache with per-entry TTL. Handlers run on separate
// goroutines, so access is guarded internally; callers never need their own
// synchronization.
type PassageCache struct {
	mu         sync.Mutex
	enabled    bool
	maxEntries int
	ttl        time.Duration
	order      *list.List // front = most recently used
	entries    map[string]*list.Element

	now func() time.Time
}

// New creates a cache with the given capacity and TTL. Non-positive values
// fall back to the package defaults. A disabled cache misses on every Get
// and ignores Put.
func New(maxEntries int, ttl time.Duration, enabled bool) *PassageCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PassageCache{
		enabled:    enabled,
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		now:        time.Now,
	}
}

func cacheKey(reference, translation string) string {
	return strings.ToLower(reference) + "\x00" + strings.ToLower(translation)
}

// Get returns the cached passage for the reference/translation pair. A hit
// older than the TTL is removed and reported as a miss. Hits are promoted to
// most-recently-used; the insertion timestamp is left untouched, so the TTL
// always measures age since insertion.
func (c *PassageCache) Get(reference, translation string) (Passage, bool) {
	if !c.enabled {
		return Passage{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[cacheKey(reference, translation)]
	if !ok {
		return Passage{}, false
	}
	ent := elem.Value.(*entry)
	if c.now().Sub(ent.insertedAt) > c.ttl {
		c.removeElement(elem)
		return Passage{}, false
	}
	c.order.MoveToFront(elem)
	return ent.value, true
}

// Put inserts or replaces the passage for the reference/translation pair and
// evicts least-recently-used entries while the cache is over capacity.
func (c *PassageCache) Put(reference, translation string, value Passage) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(reference, translation)
	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.insertedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}
	elem := c.order.PushFront(&entry{key: key, value: value, insertedAt: c.now()})
	c.entries[key] = elem
	for c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Back())
	}
}

// Len reports the number of entries currently held, including any that have
// expired but not yet been evicted.
func (c *PassageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *PassageCache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*entry).key)
}
