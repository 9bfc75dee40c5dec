package storage

import "sync"

// Cache holds retrieved payloads for the life of the process. Entries are
// never evicted or invalidated: content under an id does not change.
type Cache struct {
	mu    sync.RWMutex
	items map[ContentID][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[ContentID][]byte)}
}

// Get returns a copy of the cached bytes for id.
func (c *Cache) Get(id ContentID) ([]byte, bool) {
	c.mu.RLock()
	b, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// Put records data under id. The slice is copied.
func (c *Cache) Put(id ContentID, data []byte) {
	cp := append([]byte(nil), data...)
	c.mu.Lock()
	c.items[id] = cp
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
