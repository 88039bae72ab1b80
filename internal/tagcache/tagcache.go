// Package tagcache holds the in-memory mapping from tag path to latest
// value, and the write path sink nodes use: an RWMutex-guarded map with
// snapshot reads, tag values carrying a timestamp and quality code.
package tagcache

import (
	"context"
	"sync"
	"time"

	"github.com/flowrt/flowrt/internal/node"
)

// Cache is a concurrent-read, exclusive-write map from tag path to its
// latest value; one lock guards the whole map. A write always fully
// overwrites; there is no partial update.
type Cache struct {
	mu   sync.RWMutex
	data map[string]node.TagValue

	disableWrites bool
	disableMu     sync.RWMutex
}

// New creates an empty tag cache.
func New() *Cache {
	return &Cache{data: make(map[string]node.TagValue)}
}

// Get returns a snapshot copy of the tag's current value.
func (c *Cache) Get(ctx context.Context, path string) (node.TagValue, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.data[path]
	return v, ok, nil
}

// Put overwrites the tag's value. A zero timestamp is replaced with now; a
// zero quality is good (0), which is indistinguishable from an explicit
// good — callers that need to express "no quality given" should pass
// node.QualityGood explicitly.
func (c *Cache) Put(ctx context.Context, path string, value interface{}, quality node.TagQuality, timestamp time.Time) error {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[path] = node.TagValue{
		Path:      path,
		Value:     value,
		Timestamp: timestamp,
		Quality:   quality,
	}
	return nil
}

// SetWritesDisabled toggles the process-wide "disable writes" guard used
// for test runs; sink nodes consult the execution context's DisableWrites
// field rather than this cache directly, but the flag lives here so a
// single embedder-owned cache instance is the source of truth.
func (c *Cache) SetWritesDisabled(disabled bool) {
	c.disableMu.Lock()
	defer c.disableMu.Unlock()
	c.disableWrites = disabled
}

// WritesDisabled reports the current state of the guard.
func (c *Cache) WritesDisabled() bool {
	c.disableMu.RLock()
	defer c.disableMu.RUnlock()
	return c.disableWrites
}

// Snapshot returns a copy of every tag currently cached, for diagnostics.
func (c *Cache) Snapshot() map[string]node.TagValue {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]node.TagValue, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}
