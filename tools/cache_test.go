package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheNormalizedKeys(t *testing.T) {
	c := NewCache(8, time.Minute, nil)

	c.Set("  Weather In   Berlin ", "sunny")
	got, ok := c.Get("weather in berlin")
	assert.True(t, ok)
	assert.Equal(t, "sunny", got)

	_, ok = c.Get("weather in munich")
	assert.False(t, ok)
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2, time.Minute, nil)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(8, 30*time.Millisecond, nil)

	c.Set("a", "1")
	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheCustomNormalize(t *testing.T) {
	c := NewCache(8, time.Minute, func(s string) string { return s })

	c.Set("Key", "v")
	_, ok := c.Get("key")
	assert.False(t, ok)

	got, ok := c.Get("Key")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}
