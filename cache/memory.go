// Package cache keeps registry responses in memory and on disk so repeated
// resolutions avoid network round trips.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is an LRU cache with per-entry expiry, bounded by entry count
// and total bytes.
type MemoryCache struct {
	maxEntries int
	maxBytes   int64

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is most recently used
	bytes int64
}

type memoryItem struct {
	key     string
	value   []byte
	expires time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries values and
// maxBytes bytes.
func NewMemoryCache(maxEntries int, maxBytes int64) *MemoryCache {
	return &MemoryCache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns a copy of the value for key if present and unexpired.
func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	elem, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*memoryItem)
	if time.Now().After(item.expires) {
		mc.remove(elem)
		return nil, false
	}

	mc.order.MoveToFront(elem)
	return append([]byte(nil), item.value...), true
}

// Set stores value under key for ttl, evicting least recently used entries
// to stay within bounds.
func (mc *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if elem, ok := mc.items[key]; ok {
		mc.remove(elem)
	}

	item := &memoryItem{key: key, value: value, expires: time.Now().Add(ttl)}
	mc.items[key] = mc.order.PushFront(item)
	mc.bytes += int64(len(value))

	for mc.order.Len() > 0 && (mc.order.Len() > mc.maxEntries || mc.bytes > mc.maxBytes) {
		mc.remove(mc.order.Back())
	}
}

// Delete removes key.
func (mc *MemoryCache) Delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if elem, ok := mc.items[key]; ok {
		mc.remove(elem)
	}
}

// Clear removes every entry.
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items = make(map[string]*list.Element)
	mc.order.Init()
	mc.bytes = 0
}

// Stats returns cache statistics.
func (mc *MemoryCache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return Stats{Entries: len(mc.items), SizeBytes: mc.bytes}
}

// remove must be called with mu held.
func (mc *MemoryCache) remove(elem *list.Element) {
	item := mc.order.Remove(elem).(*memoryItem)
	delete(mc.items, item.key)
	mc.bytes -= int64(len(item.value))
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int
	SizeBytes int64
}
