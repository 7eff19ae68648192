// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

// This file provides the stub method ID cache, a simple LRU.  A stub
// only learns a method's ID by asking the server with _lookupMethod,
// which is a full round trip, so the answers are kept here keyed by
// the stub and the method signature.  Keying on the stub rather than
// on an object ID means a reused object ID can never be confused with
// the object that previously held it.

import (
	"container/list"
	"sync"
)

type methodKey struct {
	stub   *Stub
	method string
}

type methodEntry struct {
	key methodKey
	id  int32
}

// methodCache is a least-recently-used cache with a fixed capacity.
// The cache can be safely accessed from multiple goroutines.
type methodCache struct {
	size      int
	lock      sync.Mutex
	evictList *list.List
	index     map[methodKey]*list.Element
}

func newMethodCache(size int) *methodCache {
	return &methodCache{
		size:      size,
		evictList: list.New(),
		index:     make(map[methodKey]*list.Element),
	}
}

// Get retrieves a method ID from the cache.  If it is not present,
// calls the fetch function, and if that succeeds, saves the ID and
// returns it.  This should return an error only if the ID is not
// present and the fetch function returns an error.  The lock is not
// held while fetching, since fetching is a remote call that runs the
// event loop.
func (c *methodCache) Get(key methodKey, fetch func() (int32, error)) (int32, error) {
	if id, ok := c.Peek(key); ok {
		c.lock.Lock()
		if element, present := c.index[key]; present {
			c.evictList.MoveToBack(element)
		}
		c.lock.Unlock()
		return id, nil
	}
	id, err := fetch()
	if err != nil {
		return id, err
	}
	c.Put(key, id)
	return id, nil
}

// Peek looks for a method ID in the cache without affecting its
// recency.
func (c *methodCache) Peek(key methodKey) (int32, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if element, present := c.index[key]; present {
		return element.Value.(*methodEntry).id, true
	}
	return 0, false
}

// Put adds a method ID to the cache, possibly evicting something.
func (c *methodCache) Put(key methodKey, id int32) {
	c.lock.Lock()
	defer c.lock.Unlock()

	// Are we just updating an existing item?
	if element, present := c.index[key]; present {
		element.Value.(*methodEntry).id = id
		c.evictList.MoveToBack(element)
		return
	}

	element := c.evictList.PushBack(&methodEntry{key: key, id: id})
	c.index[key] = element

	// If this caused the cache to go over size, start evicting items
	for len(c.index) > c.size {
		head := c.evictList.Front()
		delete(c.index, head.Value.(*methodEntry).key)
		c.evictList.Remove(head)
	}
}

// Remove takes a method ID out of the cache.  It does nothing if the
// key does not exist.
func (c *methodCache) Remove(key methodKey) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if element, present := c.index[key]; present {
		delete(c.index, key)
		c.evictList.Remove(element)
	}
}

// Len returns the number of cached IDs.
func (c *methodCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.index)
}
