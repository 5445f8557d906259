package state

import (
	"sort"
	"strings"
	"sync"
)

// Store is the key/value contract shared by the in-memory and file-backed
// implementations. Keys are device identifiers; values are state documents.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the state stored under key.
	//
	// Returns:
	//   - State: Stored state (independent deep copy; callers may modify
	//     it, nested values included, without reaching stored state)
	//   - bool: false when the key has never been written
	//   - error: Backend failure (always nil for MemoryStore)
	Get(key string) (State, bool, error)

	// Set replaces the state stored under key.
	Set(key string, value State) error

	// Patch shallow-merges patch into the state stored under key and
	// returns the merged result. A missing key is treated as an empty
	// prior state; first write creates.
	Patch(key string, patch State) (State, error)

	// Keys returns all stored keys with the given prefix, sorted.
	// An empty prefix returns every key.
	Keys(prefix string) ([]string, error)
}

// MemoryStore is the in-memory Store implementation. Nothing is persisted;
// contents are lost when the process exits.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]State)}
}

// Get returns the state stored under key.
func (s *MemoryStore) Get(key string) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return DeepCopy(value), true, nil
}

// Set replaces the state stored under key.
func (s *MemoryStore) Set(key string, value State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = DeepCopy(value)
	return nil
}

// Patch shallow-merges patch into the state stored under key.
func (s *MemoryStore) Patch(key string, patch State) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The stored document gets its own deep copy; the returned merge
	// result may still share nested values with the caller's patch,
	// which is the caller's own data.
	merged := Merge(s.data[key], patch)
	s.data[key] = DeepCopy(merged)
	return merged, nil
}

// Keys returns all stored keys with the given prefix, sorted.
func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
