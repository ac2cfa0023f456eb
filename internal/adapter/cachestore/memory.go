// Package cachestore provides domain.CacheStore backends: an in-process LRU,
// Valkey/Redis, and PostgreSQL.
package cachestore

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-enrichment-service/internal/domain"
)

// Memory is a thread-safe, size-bounded LRU store. Expired entries are
// dropped when read.
type Memory struct {
	maxEntries int
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	value domain.CacheEntry
	prev  *entry
	next  *entry
}

// NewMemory creates an LRU store holding at most maxEntries entries.
func NewMemory(maxEntries int, clock clockwork.Clock) *Memory {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

// Get returns the entry for key. Expired entries are dropped and reported as
// a miss.
func (c *Memory) Get(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.CacheEntry{}, false, nil
	}
	if e.value.Expired(c.clock.Now()) {
		delete(c.entries, key)
		c.remove(e)
		return domain.CacheEntry{}, false, nil
	}
	c.moveToFront(e)
	return e.value, true, nil
}

// Put stores the entry as most recently used, evicting the least recently
// used entry when full.
func (c *Memory) Put(_ context.Context, value domain.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[value.Key]; ok {
		e.value = value
		c.moveToFront(e)
		return nil
	}

	e := &entry{value: value}
	c.entries[value.Key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return nil
}

// Len returns the number of entries held, expired or not.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close is a no-op.
func (c *Memory) Close() error { return nil }

func (c *Memory) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Memory) addToFront(e *entry) {
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

func (c *Memory) remove(e *entry) {
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

func (c *Memory) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.value.Key)
	c.remove(c.tail)
}
