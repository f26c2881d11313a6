package session

import (
	"sync"
	"time"
)

// Entry maps a short-lived session identifier to the external credential it
// was exchanged for. Purely a cache, never a system of record: losing an
// entry forces a store read, nothing more.
type Entry struct {
	AccessToken    string
	ItemID         string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Cache is the interface handlers depend on. Injected, never a package-level
// singleton, so tests can swap it out.
type Cache interface {
	Put(sessionID string, entry Entry)
	Get(sessionID string) (Entry, bool)
	EvictExpired() int
}

// TTLCache is an in-process session cache with time-based eviction. Entries
// expire a fixed TTL after last access; an eviction sweep runs periodically
// via the scheduler.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLCache creates a session cache with the given entry lifetime.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

var _ Cache = (*TTLCache)(nil)

// Put stores an entry under the session id, stamping creation and access
// times.
func (c *TTLCache) Put(sessionID string, entry Entry) {
	now := c.now()
	entry.CreatedAt = now
	entry.LastAccessedAt = now

	c.mu.Lock()
	c.entries[sessionID] = entry
	c.mu.Unlock()
}

// Get returns the entry for the session id if present and not expired.
// A hit refreshes the last-access time.
func (c *TTLCache) Get(sessionID string) (Entry, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sessionID]
	if !ok {
		return Entry{}, false
	}
	if now.Sub(entry.LastAccessedAt) > c.ttl {
		delete(c.entries, sessionID)
		return Entry{}, false
	}

	entry.LastAccessedAt = now
	c.entries[sessionID] = entry
	return entry, true
}

// EvictExpired removes all entries past their TTL and returns how many were
// dropped.
func (c *TTLCache) EvictExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, entry := range c.entries {
		if now.Sub(entry.LastAccessedAt) > c.ttl {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the current number of cached sessions.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
