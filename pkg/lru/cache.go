/*
Copyright 2026 The Crate Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package lru implements an LRU cache.
package lru // import "crate.dev/pkg/lru"

import (
	"container/list"
	"sync"
)

// Cache is an LRU cache of V values keyed by strings, safe for
// concurrent access.
type Cache[V any] struct {
	maxEntries int

	lk    sync.Mutex
	ll    *list.List
	cache map[string]*list.Element
}

type entry[V any] struct {
	key   string
	value V
}

// New returns a new cache with the provided maximum items.
// A maxEntries of zero or less means no limit.
func New[V any](maxEntries int) *Cache[V] {
	return &Cache[V]{
		maxEntries: maxEntries,
		ll:         list.New(),
		cache:      make(map[string]*list.Element),
	}
}

// Add adds the provided key and value to the cache, evicting
// an old item if necessary.
func (c *Cache[V]) Add(key string, value V) {
	c.lk.Lock()
	defer c.lk.Unlock()

	// Already in cache?
	if ee, ok := c.cache[key]; ok {
		c.ll.MoveToFront(ee)
		ee.Value.(*entry[V]).value = value
		return
	}

	// Add to cache if not present
	ele := c.ll.PushFront(&entry[V]{key, value})
	c.cache[key] = ele

	if c.maxEntries > 0 && c.ll.Len() > c.maxEntries {
		c.removeOldest()
	}
}

// Get fetches the key's value from the cache.
// The ok result will be true if the item was found.
func (c *Cache[V]) Get(key string) (value V, ok bool) {
	c.lk.Lock()
	defer c.lk.Unlock()
	if ele, hit := c.cache[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(*entry[V]).value, true
	}
	return
}

// Remove removes key from the cache, reporting whether it was present.
func (c *Cache[V]) Remove(key string) bool {
	c.lk.Lock()
	defer c.lk.Unlock()
	ele, hit := c.cache[key]
	if !hit {
		return false
	}
	c.ll.Remove(ele)
	delete(c.cache, key)
	return true
}

// RemoveOldest removes the oldest item in the cache and returns its key and value.
// If the cache is empty, the empty string and the zero V are returned.
func (c *Cache[V]) RemoveOldest() (key string, value V) {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.removeOldest()
}

// note: must hold c.lk
func (c *Cache[V]) removeOldest() (key string, value V) {
	ele := c.ll.Back()
	if ele == nil {
		return
	}
	c.ll.Remove(ele)
	ent := ele.Value.(*entry[V])
	delete(c.cache, ent.key)
	return ent.key, ent.value
}

// Clear drops every item.
func (c *Cache[V]) Clear() {
	c.lk.Lock()
	defer c.lk.Unlock()
	c.ll.Init()
	clear(c.cache)
}

// Len returns the number of items in the cache.
func (c *Cache[V]) Len() int {
	c.lk.Lock()
	defer c.lk.Unlock()
	return c.ll.Len()
}
