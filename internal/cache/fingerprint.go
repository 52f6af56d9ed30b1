package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint deterministically identifies a cacheable read: SHA-256 over a
// canonical JSON encoding of (alias, collection, operation, normalized
// args), truncated to 16 bytes and hex-encoded. Determinism across process
// runs matters because L2 persists fingerprints to disk.
func Fingerprint(alias, collection, operation string, args map[string]any) string {
	canon := canonicalize(map[string]any{
		"alias":      alias,
		"collection": collection,
		"operation":  operation,
		"args":       args,
	})
	// canonicalize already guarantees deterministic key order, so
	// encoding/json's own (alphabetical, for maps) ordering is redundant
	// but harmless belt-and-suspenders.
	encoded, err := json.Marshal(canon)
	if err != nil {
		// canonicalize only ever produces JSON-safe primitives, maps and
		// slices, so Marshal cannot fail here.
		panic("cache: failed to marshal canonicalized fingerprint input: " + err.Error())
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:16])
}

// canonicalize recursively rewrites map[string]any into a key-sorted
// []keyValue slice so that JSON encoding visits keys in sorted order, making
// the fingerprint stable across Go's randomized map iteration.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]keyValue, len(keys))
		for i, k := range keys {
			pairs[i] = keyValue{Key: k, Value: canonicalize(t[k])}
		}
		return pairs
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return t
	}
}

type keyValue struct {
	Key   string
	Value any
}

// MarshalJSON renders a keyValue as a two-element JSON array, avoiding
// object-key-ordering ambiguity entirely (Go's encoding/json always
// re-sorts map[string]any keys before this point, but a two-element array
// sidesteps relying on that behavior never changing).
func (kv keyValue) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{kv.Key, kv.Value})
}
