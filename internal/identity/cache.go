package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// CacheKey hashes authentication credentials into a stable cache key, so raw
// credentials never sit in the cache itself.
func CacheKey(credentials string) string {
	sum := sha256.Sum256([]byte(credentials))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	principal Principal
	expiresAt time.Time
}

// PrincipalCache is a short-TTL in-process cache of constructed Principals,
// keyed by a hash of the authenticating credentials (spec §4.1: "≈10s for
// basic/gitlab, ≈3600s for session tokens"). Entries are invalidated by user
// id on any role/claim mutation.
type PrincipalCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	byUser  map[string]map[string]struct{} // userID -> set of cache keys to invalidate
	now     func() time.Time
}

// NewPrincipalCache constructs an empty cache.
func NewPrincipalCache() *PrincipalCache {
	return &PrincipalCache{
		entries: map[string]cacheEntry{},
		byUser:  map[string]map[string]struct{}{},
		now:     time.Now,
	}
}

// Get returns the cached principal for key, or false if absent or expired.
func (c *PrincipalCache) Get(key string) (Principal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Principal{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return Principal{}, false
	}
	return entry.principal, true
}

// Put stores p under key with the given TTL, indexed by p.UserID for later
// invalidation.
func (c *PrincipalCache) Put(key string, p Principal, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{principal: p, expiresAt: c.now().Add(ttl)}
	if p.UserID == "" {
		return
	}
	if c.byUser[p.UserID] == nil {
		c.byUser[p.UserID] = map[string]struct{}{}
	}
	c.byUser[p.UserID][key] = struct{}{}
}

// InvalidateUser removes every cache entry for userID. Callers invoke this on
// any role/claim mutation touching that user.
func (c *PrincipalCache) InvalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.byUser[userID] {
		delete(c.entries, key)
	}
	delete(c.byUser, userID)
}
