package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer derives deterministic cache keys from an operation and its arguments.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(opID string, args any) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic cache key.
// Format: cache:<opID>:<hash>
// where hash is the first 16 hex characters of SHA-256(JSON(args)).
// encoding/json writes map keys in sorted order, so maps with equal
// contents hash equally; slice order is significant.
func (k *DefaultKeyer) Key(opID string, args any) (string, error) {
	if opID == "" {
		return "", ErrInvalidKey
	}

	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache: failed to encode arguments of %s: %w", opID, err)
	}

	sum := sha256.Sum256(encoded)
	return "cache:" + opID + ":" + hex.EncodeToString(sum[:8]), nil
}

var _ Keyer = (*DefaultKeyer)(nil)
