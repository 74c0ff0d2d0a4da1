// Package cache stores model responses so that re-analysing the same text
// does not pay for the same completion twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for response caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "clarifai:v1:"

// Key derives a cache key from its parts. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") never collide.
func Key(parts ...string) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Nop is a cache that never stores anything. Used when caching is disabled.
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)                { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
