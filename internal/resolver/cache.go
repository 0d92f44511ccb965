// internal/resolver/cache.go
package resolver

type cacheKey struct {
	page string
	name string
}

// Cache remembers resolved selectors for the lifetime of one Resolver. It is
// not safe for concurrent use.
type Cache struct {
	entries map[cacheKey]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]string)}
}

func (c *Cache) Get(page, name string) (string, bool) {
	sel, ok := c.entries[cacheKey{page, name}]
	return sel, ok
}

func (c *Cache) Put(page, name, selector string) {
	c.entries[cacheKey{page, name}] = selector
}

// Forget removes one key and reports whether it was present.
func (c *Cache) Forget(page, name string) bool {
	k := cacheKey{page, name}
	if _, ok := c.entries[k]; !ok {
		return false
	}
	delete(c.entries, k)
	return true
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries = make(map[cacheKey]string)
}

func (c *Cache) Len() int { return len(c.entries) }
