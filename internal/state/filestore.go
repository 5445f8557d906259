package state

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// File permission constants.
const (
	// filePermissions restricts the backing document to the owning user.
	filePermissions = 0600

	// dirPermissions is the mode for the backing file's directory.
	dirPermissions = 0750

	// tempSuffixBytes is the length of the random temp-file suffix.
	// Cryptographically random so concurrent writers never collide on the
	// same temp path.
	tempSuffixBytes = 8
)

// FileStore is the file-backed Store implementation.
//
// The entire namespace is serialized to a single JSON document whose root
// object maps keys to state values. The backing file is loaded lazily on
// the first operation; thereafter reads are served from an in-memory mirror
// and every mutation persists synchronously. There is no write buffering:
// every successful Set/Patch call is durable.
//
// Writes go to a temp file first and are atomically renamed over the
// target, so the document is never observed partially written. The store
// performs no cross-process locking; concurrent processes writing the same
// file race with last-writer-wins on disk.
//
// Thread Safety:
//   - All methods are safe for concurrent use within one process.
type FileStore struct {
	path string

	mu     sync.Mutex
	data   map[string]State
	loaded bool
}

// NewFileStore creates a file-backed store persisting to path.
// The backing file is not touched until the first operation.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// load reads the backing document into the in-memory mirror.
// A missing file is a valid empty store. Callers must hold s.mu.
func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = make(map[string]State)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("%w: reading %s: %w", ErrLoadFailed, s.path, err)
	}

	data := make(map[string]State)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("%w: decoding %s: %w", ErrLoadFailed, s.path, err)
		}
	}

	s.data = data
	s.loaded = true
	return nil
}

// persist writes the full namespace to disk atomically.
// Callers must hold s.mu.
func (s *FileStore) persist() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrPersistFailed, s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("%w: creating directory for %s: %w", ErrPersistFailed, s.path, err)
		}
	}

	tempPath := s.path + "." + randomSuffix() + ".tmp"
	if err := os.WriteFile(tempPath, raw, filePermissions); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrPersistFailed, tempPath, err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath) // Best effort; the temp file is garbage now.
		return fmt.Errorf("%w: renaming %s to %s: %w", ErrPersistFailed, tempPath, s.path, err)
	}

	return nil
}

// randomSuffix returns a hex-encoded cryptographically random suffix.
func randomSuffix() string {
	buf := make([]byte, tempSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the platform RNG is broken; there is
		// no meaningful recovery for temp-file naming.
		panic(fmt.Sprintf("state: reading random suffix: %v", err))
	}
	return hex.EncodeToString(buf)
}

// Get returns the state stored under key.
func (s *FileStore) Get(key string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, false, err
	}

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return DeepCopy(value), true, nil
}

// Set replaces the state stored under key and persists synchronously.
func (s *FileStore) Set(key string, value State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}

	previous, hadPrevious := s.data[key]
	s.data[key] = DeepCopy(value)

	if err := s.persist(); err != nil {
		// Roll back the mirror so memory and disk stay consistent.
		if hadPrevious {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Patch shallow-merges patch into the state stored under key and persists
// synchronously. A missing key starts from an empty state.
func (s *FileStore) Patch(key string, patch State) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}

	previous, hadPrevious := s.data[key]
	merged := Merge(previous, patch)
	s.data[key] = DeepCopy(merged)

	if err := s.persist(); err != nil {
		if hadPrevious {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		return nil, err
	}
	return merged, nil
}

// Keys returns all stored keys with the given prefix, sorted.
func (s *FileStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
