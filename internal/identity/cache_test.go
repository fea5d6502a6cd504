package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalCache_PutGet(t *testing.T) {
	c := NewPrincipalCache()
	key := CacheKey("basic:alice:secret")
	p := NewPrincipal("alice", []string{"_owner"}, NewClaims())

	c.Put(key, p, time.Minute)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "alice", got.UserID)
}

func TestPrincipalCache_Expiry(t *testing.T) {
	c := NewPrincipalCache()
	fakeNow := time.Now()
	c.now = func() time.Time { return fakeNow }

	key := CacheKey("session:token")
	c.Put(key, NewPrincipal("bob", nil, NewClaims()), time.Second)

	fakeNow = fakeNow.Add(2 * time.Second)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestPrincipalCache_InvalidateUser(t *testing.T) {
	c := NewPrincipalCache()
	key1 := CacheKey("basic:carol:pw1")
	key2 := CacheKey("gitlab:carol:token2")
	c.Put(key1, NewPrincipal("carol", nil, NewClaims()), time.Hour)
	c.Put(key2, NewPrincipal("carol", nil, NewClaims()), time.Hour)

	c.InvalidateUser("carol")

	_, ok1 := c.Get(key1)
	_, ok2 := c.Get(key2)
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestCacheKey_Stable(t *testing.T) {
	assert.Equal(t, CacheKey("same"), CacheKey("same"))
	assert.NotEqual(t, CacheKey("a"), CacheKey("b"))
}
