package session

import (
	"testing"
	"time"
)

func TestTTLCache(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	newCache := func(ttl time.Duration) *TTLCache {
		c := NewTTLCache(ttl)
		c.now = clock
		return c
	}

	t.Run("Put and Get", func(t *testing.T) {
		c := newCache(30 * time.Minute)
		c.Put("sess-1", Entry{AccessToken: "tok-1", ItemID: "item-1"})

		entry, ok := c.Get("sess-1")
		if !ok {
			t.Fatal("Get() expected hit, got miss")
		}
		if entry.AccessToken != "tok-1" || entry.ItemID != "item-1" {
			t.Errorf("Get() = %+v, want tok-1/item-1", entry)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		c := newCache(30 * time.Minute)
		if _, ok := c.Get("sess-unknown"); ok {
			t.Error("Get() expected miss for unknown session")
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		c := newCache(30 * time.Minute)
		c.Put("sess-1", Entry{AccessToken: "tok-1"})

		now = now.Add(31 * time.Minute)
		if _, ok := c.Get("sess-1"); ok {
			t.Error("Get() expected expired entry to miss")
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d after expired Get, want 0", c.Len())
		}
	})

	t.Run("Access Refreshes TTL", func(t *testing.T) {
		c := newCache(30 * time.Minute)
		c.Put("sess-1", Entry{AccessToken: "tok-1"})

		now = now.Add(20 * time.Minute)
		if _, ok := c.Get("sess-1"); !ok {
			t.Fatal("Get() expected hit before expiry")
		}

		now = now.Add(20 * time.Minute)
		if _, ok := c.Get("sess-1"); !ok {
			t.Error("Get() expected hit, last access should have refreshed TTL")
		}
	})

	t.Run("EvictExpired", func(t *testing.T) {
		c := newCache(30 * time.Minute)
		c.Put("sess-old", Entry{AccessToken: "tok-old"})

		now = now.Add(31 * time.Minute)
		c.Put("sess-new", Entry{AccessToken: "tok-new"})

		evicted := c.EvictExpired()
		if evicted != 1 {
			t.Errorf("EvictExpired() = %d, want 1", evicted)
		}
		if _, ok := c.Get("sess-new"); !ok {
			t.Error("EvictExpired() must not drop live entries")
		}
	})
}
