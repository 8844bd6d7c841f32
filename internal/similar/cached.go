package similar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"vibechain/internal/core"
	"vibechain/pkg/fuzzy"
)

// Cached remembers successful answers per seed and limit for a while. Errors are never cached.
type Cached struct {
	next       core.SimilarityService
	cache      *cache.Cache
	normalizer *fuzzy.Normalizer
}

func NewCached(next core.SimilarityService, ttl time.Duration) *Cached {
	return &Cached{
		next:       next,
		cache:      cache.New(ttl, 2*ttl),
		normalizer: fuzzy.NewNormalizer(),
	}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Similar(ctx context.Context, seed core.Seed, limit int) ([]core.Suggestion, error) {
	key := c.key(seed, limit)
	if cached, found := c.cache.Get(key); found {
		if suggestions, ok := cached.([]core.Suggestion); ok {
			return suggestions, nil
		}
	}

	suggestions, err := c.next.Similar(ctx, seed, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, suggestions, cache.DefaultExpiration)
	return suggestions, nil
}

// key prefers the normalized track key so spelling variants share an entry. Seeds whose key
// normalizes away (artist "Live", title "Edit") fall back to the trimmed, lower-cased text.
func (c *Cached) key(seed core.Seed, limit int) string {
	if trackKey := c.normalizer.TrackKey(seed.Artist, seed.Title); trackKey != "" {
		return fmt.Sprintf("%s|%s|%d", c.next.Name(), trackKey, limit)
	}
	return fmt.Sprintf("%s|raw:%q|%q|%d", c.next.Name(),
		strings.ToLower(strings.TrimSpace(seed.Artist)), strings.ToLower(strings.TrimSpace(seed.Title)), limit)
}

// Flush drops every cached answer.
func (c *Cached) Flush() {
	c.cache.Flush()
}
