// Package cache is a fixed-capacity LRU of fetch results with HTTP
// freshness. Stale entries are not removed on lookup; they stay in place
// until the next insert for the same key overwrites them or they are evicted.
package cache

import (
	"time"

	"github.com/always-cache/webfetch/pkg/message"
	"github.com/always-cache/webfetch/rfc9111"
	"github.com/always-cache/webfetch/rfc9211"

	"github.com/rs/zerolog"
)

const DefaultCapacity = 10

// Cache is not safe for concurrent use.
type Cache struct {
	capacity int
	items    *lruList
	accesses int
	hits     int
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Cache)

// WithClock sets the clock used for expiry calculations.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.log = logger
	}
}

// New returns an empty cache holding at most capacity entries.
// A capacity below one selects DefaultCapacity.
func New(capacity int, opts ...Option) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		capacity: capacity,
		items:    newLRUList(capacity),
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the stored result for key if it is fresh.
func (c *Cache) Lookup(key string) (message.Result, bool) {
	result, status := c.LookupStatus(key)
	return result, status.Status == rfc9211.StatusHit
}

// LookupStatus is Lookup that also reports why a lookup missed.
// A fresh hit becomes the most recently used entry. The returned result is
// a copy, so changing it does not change the cache.
func (c *Cache) LookupStatus(key string) (message.Result, rfc9211.CacheStatus) {
	var status rfc9211.CacheStatus
	c.accesses++

	h, ok := c.items.get(key)
	if !ok {
		c.log.Trace().Str("key", key).Msg("Cache miss")
		status.Forward(rfc9211.FwdReasonUriMiss)
		return message.Result{}, status
	}
	e := c.items.at(h)
	now := c.now()
	if !rfc9111.IsFresh(e.expiresAt, now) {
		c.log.Trace().Str("key", key).Time("expired", e.expiresAt).Msg("Cached entry is stale")
		status.Forward(rfc9211.FwdReasonStale)
		return message.Result{}, status
	}

	c.items.moveToFront(h)
	c.hits++
	status.Hit()
	status.TimeToLive = int(rfc9111.TimeToLive(e.expiresAt, now).Seconds())
	c.log.Trace().Str("key", key).Int("ttl", status.TimeToLive).Msg("Cache hit")
	return e.result.Clone(), status
}

// Insert stores result under key if it is cacheable and returns the
// instant it expires. Results that may not be cached are ignored and ok is
// false. Inserting a new key into a full cache evicts the least recently
// used entry. The cache keeps its own copy of result.
func (c *Cache) Insert(key string, result message.Result) (expiresAt time.Time, ok bool) {
	expiresAt, ok = rfc9111.Expiration(result, c.now())
	if !ok {
		c.log.Trace().Str("key", key).Msg("Response not cacheable")
		return time.Time{}, false
	}

	result = result.Clone()
	if h, exists := c.items.get(key); exists {
		e := c.items.at(h)
		e.result = result
		e.expiresAt = expiresAt
		c.items.moveToFront(h)
		c.log.Trace().Str("key", key).Time("expires", expiresAt).Msg("Replaced cache entry")
		return expiresAt, true
	}

	if c.items.len() >= c.capacity {
		oldest := c.items.back()
		c.log.Trace().Str("key", c.items.at(oldest).key).Msg("Evicting least recently used entry")
		c.items.remove(oldest)
	}
	c.items.add(entry{key: key, result: result, expiresAt: expiresAt})
	c.log.Trace().Str("key", key).Time("expires", expiresAt).Msg("Stored cache entry")
	return expiresAt, true
}

// TimeToLive returns how long an entry expiring at expiresAt stays fresh.
func (c *Cache) TimeToLive(expiresAt time.Time) time.Duration {
	return rfc9111.TimeToLive(expiresAt, c.now())
}

type Stats struct {
	Accesses int `json:"accesses"`
	Hits     int `json:"hits"`
	Len      int `json:"len"`
	Capacity int `json:"capacity"`
}

func (c *Cache) Stats() Stats {
	return Stats{
		Accesses: c.accesses,
		Hits:     c.hits,
		Len:      c.items.len(),
		Capacity: c.capacity,
	}
}

func (c *Cache) Len() int {
	return c.items.len()
}

// Keys returns the cached keys from most to least recently used.
func (c *Cache) Keys() []string {
	return c.items.keys()
}

// EntryInfo describes a cached entry for introspection.
type EntryInfo struct {
	Key        string    `json:"key"`
	StatusCode int       `json:"status"`
	Size       int       `json:"size"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Fresh      bool      `json:"fresh"`
}

// Entries returns a snapshot of the cache, most recently used first.
// It does not change recency order or counters.
func (c *Cache) Entries() []EntryInfo {
	now := c.now()
	info := make([]EntryInfo, 0, c.items.len())
	for _, key := range c.items.keys() {
		h, _ := c.items.get(key)
		e := c.items.at(h)
		info = append(info, EntryInfo{
			Key:        e.key,
			StatusCode: e.result.Response.StatusCode,
			Size:       len(e.result.Response.Body),
			ExpiresAt:  e.expiresAt,
			Fresh:      rfc9111.IsFresh(e.expiresAt, now),
		})
	}
	return info
}
