// Package state provides the device state store and its patch-merge
// semantics.
//
// Device state is an open-ended map of JSON-compatible values keyed by
// device identifier. State is mutated exclusively through patches: a patch
// replaces named top-level keys and leaves everything else untouched. The
// merge is shallow as a first-class contract: nested objects are replaced
// whole, never deep-merged. The merge is also pure; the previous state
// value is never mutated.
//
// Two Store implementations share the contract:
//   - MemoryStore: in-memory map, no persistence.
//   - FileStore: in-memory mirror persisted to a single JSON document after
//     every mutation, using write-temp-then-atomic-rename so the backing
//     file is never partially written.
package state
