package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is an in-process, size-bounded, TTL-aware Cache. It exists so the
// core's cache-through code paths (orchestrator's manifest/installations
// reads) are exercised by tests without a network dependency — a
// Redis-backed implementation is an external collaborator, wired in by a
// deployment that needs one, not by this package.
type LRU struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewLRU creates an LRU with the given maximum entry count. capacity <= 0
// means unbounded (entries only ever evicted by TTL).
func NewLRU(capacity int) *LRU {
	return &LRU{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

func (c *LRU) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).value = value
		el.Value.(*entry).expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, value: value, expiresAt: time.Now().Add(ttl)})
	c.items[key] = el

	if c.capacity > 0 {
		for c.order.Len() > c.capacity {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}

func (c *LRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

func (c *LRU) InvalidateUserInstallations(userID string) {
	c.Delete(InstallationsKey(userID))
}

func (c *LRU) InvalidateManifest(agentID, version string) {
	c.Delete(ManifestKey(agentID, version))
}

func (c *LRU) InvalidateSharedContext(userID string) {
	c.Delete(SharedContextKey(userID))
}

var _ Cache = (*LRU)(nil)
