package memo

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Key builds a deterministic cache key from a producer identity and its
// argument tuple. The arguments are canonicalized to JSON (encoding/json
// emits map keys in sorted order) and hashed, so the same logical
// arguments always produce the same key regardless of map iteration
// order.
//
// Format: <producer>:<16 hex chars of xxhash64>
func Key(producer string, args any) (string, error) {
	canonical, err := canonicalize(args)
	if err != nil {
		return "", fmt.Errorf("memo: canonicalize args for %q: %w", producer, err)
	}
	return fmt.Sprintf("%s:%016x", producer, xxhash.Sum64(canonical)), nil
}

func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}
