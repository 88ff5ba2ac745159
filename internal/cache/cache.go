package cache

import (
	"container/list"
	"sync"

	"github.com/san-kum/upperatm/internal/kernel"
)

// DefaultCapacity matches the size of a typical altitude-by-grid sweep.
const DefaultCapacity = 10000

type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	Capacity  int
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key    Key
	result kernel.Result
}

// Cache is a thread-safe least-recently-used map of point results.
type Cache struct {
	mu       sync.Mutex
	capacity int
	enabled  bool
	order    *list.List
	items    map[Key]*list.Element
	stats    Stats
}

// New returns a cache holding at most capacity results. Capacity zero
// stores nothing.
func New(capacity int) *Cache {
	if capacity < 0 {
		capacity = 0
	}
	return &Cache{
		capacity: capacity,
		enabled:  true,
		order:    list.New(),
		items:    make(map[Key]*list.Element),
	}
}

// Get returns a copy of the stored result and marks it most recently used.
func (c *Cache) Get(k Key) (kernel.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		c.stats.Misses++
		return kernel.Result{}, false
	}
	el, ok := c.items[k]
	if !ok {
		c.stats.Misses++
		return kernel.Result{}, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*entry).result.Clone(), true
}

// Put stores a copy of r, evicting the least recently used entry when full.
func (c *Cache) Put(k Key, r kernel.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || c.capacity == 0 {
		return
	}
	if el, ok := c.items[k]; ok {
		el.Value.(*entry).result = r.Clone()
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	c.items[k] = c.order.PushFront(&entry{key: k, result: r.Clone()})
}

func (c *Cache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
	c.stats.Evictions++
}

// Contains reports presence without touching recency or stats.
func (c *Cache) Contains(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[k]
	return ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[Key]*list.Element)
	c.stats = Stats{}
}

// SetEnabled turns lookups and stores on or off. Disabling clears the cache.
func (c *Cache) SetEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = on
	if !on {
		c.order.Init()
		c.items = make(map[Key]*list.Element)
	}
}

func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	s.Capacity = c.capacity
	return s
}
