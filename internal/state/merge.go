package state

// State is an open-ended device state document. Values are JSON-compatible
// scalars, arrays, or nested objects (map[string]any).
type State map[string]any

// absent is the unexported type behind the Absent sentinel.
type absent struct{}

// Absent marks a patch key as "not provided". Keys carrying Absent are
// dropped during a merge, never written. This distinguishes "leave this key
// at its previous value / do not create it" from an explicit null, which is
// a legitimate stored value.
var Absent any = absent{}

// Merge applies patch to prev and returns the merged state.
//
// The merge is shallow: each top-level key present in the patch fully
// replaces the corresponding key in prev. Nested objects are not recursed
// into; callers needing nested-field updates must pre-compute the full
// nested value. Keys whose patch value is Absent are skipped.
//
// Merge is pure: prev is never mutated, and a nil prev is treated as an
// empty state.
//
// Parameters:
//   - prev: Prior state (may be nil)
//   - patch: Partial state to apply (may be nil, yielding a copy of prev)
//
// Returns:
//   - State: Newly allocated merged state
func Merge(prev State, patch State) State {
	merged := make(State, len(prev)+len(patch))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range patch {
		if _, skip := v.(absent); skip {
			continue
		}
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of s. A nil state clones to an empty state.
func Clone(s State) State {
	cloned := make(State, len(s))
	for k, v := range s {
		cloned[k] = v
	}
	return cloned
}

// DeepCopy creates a complete independent copy of s. Nested maps and
// slices are recursively cloned so modifications to the copy do not
// affect the original. A nil state copies to an empty state.
func DeepCopy(s State) State {
	copied := make(State, len(s))
	for k, v := range s {
		copied[k] = deepCopyValue(v)
	}
	return copied
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		copied := make(map[string]any, len(val))
		for k, elem := range val {
			copied[k] = deepCopyValue(elem)
		}
		return copied
	case State:
		return DeepCopy(val)
	case []any:
		copied := make([]any, len(val))
		for i, elem := range val {
			copied[i] = deepCopyValue(elem)
		}
		return copied
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value.
		return v
	}
}
