// Package state holds the reactive, process-local view of engine records
// that UI adapters render from.
package state

import (
	"sort"
	"sync"
)

// Well-known keys maintained by Mirror.
const (
	KeyAllocations = "allocations"
	KeyProjects    = "projects"
	KeyTalents     = "talents"
	KeyAreas       = "areas"
)

// Listener is invoked with the new value after a Set on its key.
type Listener func(key string, value any)

type subscription struct {
	id int
	fn Listener
}

// Container is a goroutine-safe key/value cell store with per-key
// subscriptions. Containers are created explicitly and passed to their
// consumers; there is no package-level instance.
type Container struct {
	mu     sync.RWMutex
	values map[string]any
	subs   map[string][]subscription
	nextID int
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		values: make(map[string]any),
		subs:   make(map[string][]subscription),
	}
}

// Get returns the current value of key.
func (c *Container) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the keys holding a value, sorted.
func (c *Container) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Set stores value under key and notifies the key's listeners. Listeners run
// on the caller's goroutine after the lock is released, so they may call back
// into the container.
func (c *Container) Set(key string, value any) {
	c.mu.Lock()
	c.values[key] = value
	listeners := make([]Listener, 0, len(c.subs[key]))
	for _, s := range c.subs[key] {
		listeners = append(listeners, s.fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(key, value)
	}
}

// Subscribe registers fn for changes to key and returns a function that
// removes the subscription. Calling the returned function more than once is
// harmless.
func (c *Container) Subscribe(key string, fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[key] = append(c.subs[key], subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := c.subs[key]
			for i, s := range subs {
				if s.id == id {
					c.subs[key] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(c.subs[key]) == 0 {
				delete(c.subs, key)
			}
		})
	}
}

// Watch subscribes fn to every key in keys and returns one function that
// removes all of those subscriptions.
func (c *Container) Watch(keys []string, fn Listener) (unsubscribe func()) {
	cancels := make([]func(), 0, len(keys))
	for _, k := range keys {
		cancels = append(cancels, c.Subscribe(k, fn))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
