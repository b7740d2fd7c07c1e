// Package blockhash maintains the queue of recent blockhashes a transaction
// may reference, together with the signature price of each blockhash.
package blockhash

import (
	"maps"
	"slices"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Queue limits.
const (
	MaxRecentBlockhashes = 300
	MaxProcessingAge     = 150
)

// Age is what the queue knows about a blockhash.
type Age struct {
	LamportsPerSignature uint64 `json:"lamports_per_signature"`
	HashIndex            uint64 `json:"hash_index"`
	Timestamp            int64  `json:"timestamp"`
}

// Entry pairs a blockhash with its signature price.
type Entry struct {
	Hash                 database.Hash `json:"hash"`
	LamportsPerSignature uint64        `json:"lamports_per_signature"`
}

// Snapshot is the serializable content of the queue.
type Snapshot struct {
	LastHashIndex uint64                `json:"last_hash_index"`
	LastHash      database.Hash         `json:"last_hash"`
	Ages          map[database.Hash]Age `json:"ages"`
	MaxAge        uint64                `json:"max_age"`
}

// Queue is the bounded history of recent blockhashes.
type Queue struct {
	mu            sync.RWMutex
	lastHashIndex uint64
	lastHash      database.Hash
	ages          map[database.Hash]Age
	maxAge        uint64
}

// New constructs a queue that keeps blockhashes up to the max age.
func New(maxAge uint64) *Queue {
	return &Queue{
		ages:   make(map[database.Hash]Age),
		maxAge: maxAge,
	}
}

// FromSnapshot reconstructs a queue.
func FromSnapshot(s Snapshot) *Queue {
	return &Queue{
		lastHashIndex: s.LastHashIndex,
		lastHash:      s.LastHash,
		ages:          maps.Clone(s.Ages),
		maxAge:        s.MaxAge,
	}
}

// Clone returns an independent copy of the queue.
func (q *Queue) Clone() *Queue {
	return FromSnapshot(q.Snapshot())
}

// Snapshot returns the serializable content of the queue.
func (q *Queue) Snapshot() Snapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return Snapshot{
		LastHashIndex: q.lastHashIndex,
		LastHash:      q.lastHash,
		Ages:          maps.Clone(q.ages),
		MaxAge:        q.maxAge,
	}
}

// GenesisHash registers the blockhash of the genesis configuration.
func (q *Queue) GenesisHash(hash database.Hash, lamportsPerSignature uint64, timestamp int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ages[hash] = Age{
		LamportsPerSignature: lamportsPerSignature,
		HashIndex:            0,
		Timestamp:            timestamp,
	}
	q.lastHash = hash
}

// Register records a new blockhash. Blockhashes older than the max age are
// evicted once the queue is full.
func (q *Queue) Register(hash database.Hash, lamportsPerSignature uint64, timestamp int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.lastHashIndex++

	if uint64(len(q.ages)) >= q.maxAge {
		maps.DeleteFunc(q.ages, func(_ database.Hash, age Age) bool {
			return !isHashIndexValid(q.lastHashIndex, q.maxAge, age.HashIndex)
		})
	}

	q.ages[hash] = Age{
		LamportsPerSignature: lamportsPerSignature,
		HashIndex:            q.lastHashIndex,
		Timestamp:            timestamp,
	}
	q.lastHash = hash
}

// LastHash returns the most recently registered blockhash.
func (q *Queue) LastHash() database.Hash {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.lastHash
}

// LastHashIndex returns the number of blockhashes registered after genesis.
func (q *Queue) LastHashIndex() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.lastHashIndex
}

// LamportsPerSignature returns the signature price recorded for the
// blockhash.
func (q *Queue) LamportsPerSignature(hash database.Hash) (uint64, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	age, exists := q.ages[hash]
	return age.LamportsPerSignature, exists
}

// IsHashValidForAge reports whether the blockhash is at most maxAge
// registrations old.
func (q *Queue) IsHashValidForAge(hash database.Hash, maxAge uint64) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	age, exists := q.ages[hash]
	if !exists {
		return false
	}

	return isHashIndexValid(q.lastHashIndex, maxAge, age.HashIndex)
}

// HashAge returns how many blockhashes were registered after this one.
func (q *Queue) HashAge(hash database.Hash) (uint64, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	age, exists := q.ages[hash]
	if !exists {
		return 0, false
	}

	return q.lastHashIndex - age.HashIndex, true
}

// Recent returns up to max blockhashes, newest first.
func (q *Queue) Recent(max int) []Entry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	hashes := slices.Collect(maps.Keys(q.ages))
	slices.SortFunc(hashes, func(a, b database.Hash) int {
		ia, ib := q.ages[a].HashIndex, q.ages[b].HashIndex
		switch {
		case ia > ib:
			return -1
		case ia < ib:
			return 1
		}
		return 0
	})

	if len(hashes) > max {
		hashes = hashes[:max]
	}

	entries := make([]Entry, len(hashes))
	for i, h := range hashes {
		entries[i] = Entry{Hash: h, LamportsPerSignature: q.ages[h].LamportsPerSignature}
	}

	return entries
}

func isHashIndexValid(lastHashIndex uint64, maxAge uint64, hashIndex uint64) bool {
	return lastHashIndex-hashIndex <= maxAge
}
