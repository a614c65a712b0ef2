package usecase

import (
	"container/list"
	"sync"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// DefaultCacheCapacity bounds each message cache
const DefaultCacheCapacity = 1000

// MessageCache keeps the most recently inserted messages by id.
// Once full, the oldest inserted entry is evicted. Overwriting an id
// replaces its record but keeps its original insertion slot.
type MessageCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is oldest
	entries  map[string]*list.Element
}

// NewMessageCache creates a cache holding at most capacity records
func NewMessageCache(capacity int) *MessageCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &MessageCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Put inserts or overwrites a record. It reports whether an older entry was evicted.
func (c *MessageCache) Put(rec domain.MessageRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[rec.ID]; ok {
		el.Value = rec
		return false
	}

	c.entries[rec.ID] = c.order.PushBack(rec)
	if c.order.Len() <= c.capacity {
		return false
	}

	oldest := c.order.Front()
	c.order.Remove(oldest)
	delete(c.entries, oldest.Value.(domain.MessageRecord).ID)
	return true
}

// Get returns the record stored under id
func (c *MessageCache) Get(id string) (domain.MessageRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return domain.MessageRecord{}, false
	}
	return el.Value.(domain.MessageRecord), true
}

// Len returns the number of cached records
func (c *MessageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the configured bound
func (c *MessageCache) Capacity() int {
	return c.capacity
}
