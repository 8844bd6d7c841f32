package tags

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"vibechain/internal/core"
)

// CachingReader remembers the tags of recently read files. Empty results are cached too.
type CachingReader struct {
	next  core.TagReader
	cache *lru.Cache[string, core.Tags]
}

func NewCachingReader(next core.TagReader, size int) *CachingReader {
	if size <= 0 {
		size = core.DefaultTagCacheSize
	}
	cache, _ := lru.New[string, core.Tags](size)
	return &CachingReader{next: next, cache: cache}
}

func (c *CachingReader) ReadTags(uri string) core.Tags {
	if tags, ok := c.cache.Get(uri); ok {
		return tags
	}
	tags := c.next.ReadTags(uri)
	c.cache.Add(uri, tags)
	return tags
}

func (c *CachingReader) Len() int {
	return c.cache.Len()
}
