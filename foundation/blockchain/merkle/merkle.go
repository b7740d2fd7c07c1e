// Package merkle provides the fanout merkle root calculation used to commit
// to the set of accounts modified in a slot.
package merkle

import (
	"crypto/sha256"
	"hash"
)

// DefaultFanout is the number of children hashed together at each level.
const DefaultFanout = 16

// Hashable represents the behavior concrete leaf values must exhibit to be
// used in the tree. Any 32 byte array type qualifies.
type Hashable interface {
	~[32]byte
}

// Option changes how a root is calculated.
type Option func(cfg *config)

type config struct {
	fanout       int
	hashStrategy func() hash.Hash
}

// WithFanout changes the default number of children per node.
func WithFanout(fanout int) Option {
	return func(cfg *config) {
		if fanout >= 2 {
			cfg.fanout = fanout
		}
	}
}

// WithHashStrategy is used to change the default hash strategy of using
// sha256 when calculating a root.
func WithHashStrategy(hashStrategy func() hash.Hash) Option {
	return func(cfg *config) {
		cfg.hashStrategy = hashStrategy
	}
}

// Root calculates the merkle root over the ordered leaves. Each level hashes
// consecutive groups of fanout nodes into one parent until a single node
// remains. An empty set of leaves produces the hash of no data, and a
// single leaf is still hashed once so the root never equals a leaf.
func Root[T Hashable](leaves []T, options ...Option) T {
	cfg := config{
		fanout:       DefaultFanout,
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&cfg)
	}

	if len(leaves) == 0 {
		return sum[T](cfg.hashStrategy())
	}

	level := make([]T, len(leaves))
	copy(level, leaves)

	for {
		var next []T
		for i := 0; i < len(level); i += cfg.fanout {
			end := min(i+cfg.fanout, len(level))

			h := cfg.hashStrategy()
			for _, node := range level[i:end] {
				b := [32]byte(node)
				h.Write(b[:])
			}
			next = append(next, sum[T](h))
		}

		if len(next) == 1 {
			return next[0]
		}
		level = next
	}
}

// sum finalizes the hash into a 32 byte value.
func sum[T Hashable](h hash.Hash) T {
	var b [32]byte
	copy(b[:], h.Sum(nil))

	return T(b)
}
