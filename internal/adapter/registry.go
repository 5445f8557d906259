package adapter

import (
	"fmt"
	"sync"
)

// Registry is the name → adapter directory.
//
// Registries are constructed objects with explicit ownership, not ambient
// singletons; each orchestrator instance owns exactly one. The core does
// not support unregistration or hot-swap.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string // Registration order, for stable enumeration.
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register validates and inserts an adapter under its own name.
//
// Validation happens at this plugin boundary only; once registered, the
// adapter is trusted to honour the Adapter contract.
//
// Returns:
//   - error: ErrInvalidAdapter for a nil adapter or empty name,
//     ErrAdapterExists when the name is already taken (the existing
//     entry is left untouched), nil on success
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("%w: adapter is nil", ErrInvalidAdapter)
	}

	name := a.Name()
	if name == "" {
		return fmt.Errorf("%w: adapter name is empty", ErrInvalidAdapter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("%w: %q", ErrAdapterExists, name)
	}

	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// Get resolves an adapter by name.
//
// Absence is a routine, recoverable condition for callers, so an unknown
// name reports found=false rather than an error.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	return a, ok
}

// Names returns all registered adapter names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
