package pipeline

import "github.com/caseforms/formfill-cli/pkg/answerer"

// ChunkCache keeps the retrieved chunks of each page. Entries are written
// once, on the first question of a page that comes back with sources, and
// read by every later question on the same page. Under the sequential loop
// there is a single reader/writer, so no locking is needed.
type ChunkCache struct {
	pages  map[int][]answerer.Source
	hits   int
	misses int
}

// NewChunkCache returns an empty cache.
func NewChunkCache() *ChunkCache {
	return &ChunkCache{pages: make(map[int][]answerer.Source)}
}

// Get returns the cached chunks for a page, recording a hit or miss.
func (c *ChunkCache) Get(page int) ([]answerer.Source, bool) {
	sources, ok := c.pages[page]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return sources, ok
}

// Put stores the chunks for a page. The first write wins; later writes for
// the same page are ignored.
func (c *ChunkCache) Put(page int, sources []answerer.Source) {
	if len(sources) == 0 {
		return
	}
	if _, exists := c.pages[page]; exists {
		return
	}
	c.pages[page] = sources
}

// Stats returns the hit and miss counts.
func (c *ChunkCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}

// Pages returns the number of pages with cached chunks.
func (c *ChunkCache) Pages() int {
	return len(c.pages)
}

// Clear drops all cached chunks and resets the counters.
func (c *ChunkCache) Clear() {
	c.pages = make(map[int][]answerer.Source)
	c.hits = 0
	c.misses = 0
}
