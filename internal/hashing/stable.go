package hashing

import "github.com/cespare/xxhash/v2"

// StableHash64 returns a deterministic 64-bit hash of s.
//
// Routing table IDs are derived from this value, and crash recovery relies on
// a restarted process recomputing the same IDs a crashed one assigned, so the
// algorithm is pinned to xxhash64 (seedless). Do not swap this for a
// randomized hash such as Go's map hash.
func StableHash64(s string) uint64 {
	return xxhash.Sum64String(s)
}
