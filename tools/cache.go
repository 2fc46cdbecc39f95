package tools

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a bounded TTL cache for tool results keyed by normalized
// input. Each tool that wants caching owns its own Cache instance;
// nothing is shared at package level.
type Cache struct {
	lru       *expirable.LRU[string, string]
	normalize func(string) string
}

// NewCache creates a cache holding up to size entries, each expiring
// after ttl. A nil normalize uses the default key normalization
// (lowercase, trimmed, whitespace collapsed).
func NewCache(size int, ttl time.Duration, normalize func(string) string) *Cache {
	if normalize == nil {
		normalize = normalizeKey
	}
	return &Cache{
		lru:       expirable.NewLRU[string, string](size, nil, ttl),
		normalize: normalize,
	}
}

// Get looks up a cached payload for the given input.
func (c *Cache) Get(input string) (string, bool) {
	return c.lru.Get(c.normalize(input))
}

// Set stores a payload under the given input.
func (c *Cache) Set(input, payload string) {
	c.lru.Add(c.normalize(input), payload)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
