package cache

import (
	"container/list"
	"sync"
)

// MemoryCache memoizes byte values in process, evicting the least recently
// used ones once their combined length would exceed the budget. Long-lived
// callers use it for data derived from a cached payload, such as rendered
// text.
type MemoryCache struct {
	mu sync.Mutex

	budget int64
	used   int64

	index map[string]*list.Element
	order *list.List // front is most recently used

	hits, lookups int64
}

type memo struct {
	key  string
	data []byte
}

// NewMemoryCache returns an empty cache holding at most budget bytes.
func NewMemoryCache(budget int64) *MemoryCache {
	return &MemoryCache{
		budget: budget,
		index:  map[string]*list.Element{},
		order:  list.New(),
	}
}

// Get returns the value memoized under key and marks it as recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups++
	e, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(e)
	return e.Value.(*memo).data, true
}

// Put memoizes data under key, replacing any previous value. Values larger
// than the whole budget are refused with ErrItemTooLarge.
func (c *MemoryCache) Put(key string, data []byte) error {
	n := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if n > c.budget {
		return ErrItemTooLarge
	}
	if e, ok := c.index[key]; ok {
		c.drop(e)
	}
	for c.used+n > c.budget {
		c.drop(c.order.Back())
	}
	c.index[key] = c.order.PushFront(&memo{key: key, data: data})
	c.used += n
	return nil
}

// Len is the number of memoized values.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Size is the combined length of the memoized values.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// HitRate is the share of lookups answered from memory.
func (c *MemoryCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookups == 0 {
		return 0
	}
	return float64(c.hits) / float64(c.lookups)
}

// c.mu must be held.
func (c *MemoryCache) drop(e *list.Element) {
	m := c.order.Remove(e).(*memo)
	delete(c.index, m.key)
	c.used -= int64(len(m.data))
}
