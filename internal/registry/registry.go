// Package registry maps node type keys to descriptors and runtime
// factories. It is read-heavy after boot; registration is only expected at
// startup, with types registered once and looked up on every compile.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
)

// Factory constructs a fresh runtime instance for one compiled node. A new
// instance is created per compilation so node-local state is never shared
// across recompilations or flow runs.
type Factory func() node.Runtime

type entry struct {
	descriptor flow.Descriptor
	factory    Factory
}

// Registry is the process-wide catalogue of node types.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  node.Logger
}

// New creates an empty registry. logger may be nil.
func New(logger node.Logger) *Registry {
	return &Registry{
		entries: make(map[string]entry),
		logger:  logger,
	}
}

// Register adds (or replaces) the descriptor and factory for a type key.
// Registration is idempotent by type key: a later call for the same key
// replaces the earlier one and is logged, never an error.
func (r *Registry) Register(descriptor flow.Descriptor, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[descriptor.Type]; exists && r.logger != nil {
		r.logger.Warn("node type re-registered, replacing previous descriptor", "type", descriptor.Type)
	}

	r.entries[descriptor.Type] = entry{descriptor: descriptor, factory: factory}
}

// ErrUnknownType is returned (wrapped) when a flow references a node type
// key that was never registered.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown node type: %s", e.Type)
}

// Descriptor looks up the descriptor for a type key.
func (r *Registry) Descriptor(typeKey string) (flow.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[typeKey]
	if !ok {
		return flow.Descriptor{}, &ErrUnknownType{Type: typeKey}
	}
	return e.descriptor, nil
}

// All returns every registered descriptor.
func (r *Registry) All() []flow.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]flow.Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// ByCategory returns every registered descriptor in the given category.
func (r *Registry) ByCategory(category string) []flow.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []flow.Descriptor
	for _, e := range r.entries {
		if e.descriptor.Category == category {
			out = append(out, e.descriptor)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// CreateRuntime constructs a fresh runtime instance for typeKey.
func (r *Registry) CreateRuntime(typeKey string) (node.Runtime, error) {
	r.mu.RLock()
	e, ok := r.entries[typeKey]
	r.mu.RUnlock()

	if !ok {
		return nil, &ErrUnknownType{Type: typeKey}
	}
	return e.factory(), nil
}
