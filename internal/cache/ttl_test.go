package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCacheWithClock[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheSetIfAbsent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCacheWithClock[string, string](func() time.Time { return now })

	assert.True(t, c.SetIfAbsent("k", "first", time.Second))
	assert.False(t, c.SetIfAbsent("k", "second", time.Second))

	now = now.Add(2 * time.Second)
	assert.True(t, c.SetIfAbsent("k", "third", time.Second))
	v, _ := c.Get("k")
	assert.Equal(t, "third", v)

	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}
