package posts

import (
	"sort"
	"sync"

	"github.com/keyxmakerx/scribe/internal/client/platform"
)

// Cache holds the displayed post list keyed by id, kept newest first. The
// dashboard updates it after each mutation instead of re-querying.
type Cache struct {
	mu    sync.RWMutex
	byID  map[int64]platform.Post
	order []int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{byID: make(map[int64]platform.Post)}
}

// Replace swaps in a freshly loaded list.
func (c *Cache) Replace(posts []platform.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[int64]platform.Post, len(posts))
	for _, p := range posts {
		c.byID[p.ID] = p
	}
	c.reorder()
}

// Put inserts or replaces one post.
func (c *Cache) Put(p platform.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[p.ID] = p
	c.reorder()
}

// Remove drops a post by id.
func (c *Cache) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; !ok {
		return
	}
	delete(c.byID, id)
	c.reorder()
}

// Get returns one cached post.
func (c *Cache) Get(id int64) (platform.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// List returns the posts newest first.
func (c *Cache) List() []platform.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]platform.Post, len(c.order))
	for i, id := range c.order {
		out[i] = c.byID[id]
	}
	return out
}

// reorder rebuilds order: created_at descending, then id descending.
// Callers hold mu.
func (c *Cache) reorder() {
	c.order = c.order[:0]
	for id := range c.byID {
		c.order = append(c.order, id)
	}
	sort.Slice(c.order, func(i, j int) bool {
		a, b := c.byID[c.order[i]], c.byID[c.order[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
