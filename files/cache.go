package files

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// ReadOnlyCache holds content fetched from remote locations. It keeps at most
// maxEntries files, evicting the least recently used, and forgets entries
// older than ttl. Content may be stale for up to ttl.
type ReadOnlyCache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	ttl   time.Duration
	clock func() time.Time
}

type cacheEntry struct {
	content string
	added   time.Time
}

// NewReadOnlyCache creates a cache. maxEntries of zero means no bound and a
// ttl of zero means entries never expire.
func NewReadOnlyCache(maxEntries int, ttl time.Duration) *ReadOnlyCache {
	return &ReadOnlyCache{
		lru:   lru.New(maxEntries),
		ttl:   ttl,
		clock: time.Now,
	}
}

func (c *ReadOnlyCache) Add(path, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(path, cacheEntry{content: content, added: c.clock()})
}

func (c *ReadOnlyCache) Get(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(path)
	if !ok {
		return "", false
	}
	e := v.(cacheEntry)
	if c.ttl > 0 && c.clock().Sub(e.added) > c.ttl {
		c.lru.Remove(path)
		return "", false
	}
	return e.content, true
}

func (c *ReadOnlyCache) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

func (c *ReadOnlyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
