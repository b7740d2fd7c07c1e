// Package statuscache remembers the outcome of processed transactions so a
// transaction can't be processed twice on the same fork.
package statuscache

import (
	"slices"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// MaxCacheEntries is the number of rooted slots the cache remembers.
const MaxCacheEntries = 300

// Status is the recorded outcome of a transaction in a slot.
type Status struct {
	Slot uint64
	Err  error
}

type blockhashEntry struct {
	maxSlot uint64
	keys    map[database.Hash][]Status
}

// Cache maps (blockhash, key) pairs to the slots they were processed in.
// Keys are the message hash and the hash of the signature of a transaction.
type Cache struct {
	mu    sync.RWMutex
	cache map[database.Hash]*blockhashEntry
	roots map[uint64]struct{}
	slots map[uint64]map[database.Hash][]database.Hash
}

// New constructs an empty status cache.
func New() *Cache {
	return &Cache{
		cache: make(map[database.Hash]*blockhashEntry),
		roots: make(map[uint64]struct{}),
		slots: make(map[uint64]map[database.Hash][]database.Hash),
	}
}

// SignatureKey returns the cache key of a transaction signature.
func SignatureKey(sig database.Signature) database.Hash {
	return database.HashOf(sig[:])
}

// Insert records the outcome of a transaction processed in the slot.
func (c *Cache) Insert(blockhash database.Hash, key database.Hash, slot uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[blockhash]
	if !exists {
		entry = &blockhashEntry{keys: make(map[database.Hash][]Status)}
		c.cache[blockhash] = entry
	}
	entry.maxSlot = max(entry.maxSlot, slot)
	entry.keys[key] = append(entry.keys[key], Status{Slot: slot, Err: err})

	deltas, exists := c.slots[slot]
	if !exists {
		deltas = make(map[database.Hash][]database.Hash)
		c.slots[slot] = deltas
	}
	deltas[blockhash] = append(deltas[blockhash], key)
}

// GetStatus returns the outcome of the key for the blockhash if it was
// processed in an ancestor or a rooted slot.
func (c *Cache) GetStatus(key database.Hash, blockhash database.Hash, ancestors database.Ancestors) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.cache[blockhash]
	if !exists {
		return Status{}, false
	}

	for _, status := range entry.keys[key] {
		if ancestors.Contains(status.Slot) {
			return status, true
		}
		if _, rooted := c.roots[status.Slot]; rooted {
			return status, true
		}
	}

	return Status{}, false
}

// AddRoot marks the slot as rooted. Once more than MaxCacheEntries slots
// are rooted the oldest root and everything recorded up to it is dropped.
func (c *Cache) AddRoot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roots[slot] = struct{}{}

	if len(c.roots) <= MaxCacheEntries {
		return
	}

	oldest := slices.Min(rootSlots(c.roots))
	delete(c.roots, oldest)

	for hash, entry := range c.cache {
		if entry.maxSlot <= oldest {
			delete(c.cache, hash)
		}
	}
	for s := range c.slots {
		if s <= oldest {
			delete(c.slots, s)
		}
	}
}

// Roots returns the rooted slots in ascending order.
func (c *Cache) Roots() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	roots := rootSlots(c.roots)
	slices.Sort(roots)
	return roots
}

// PurgeSlot drops every outcome recorded in a slot that was abandoned.
func (c *Cache) PurgeSlot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for blockhash, keys := range c.slots[slot] {
		entry, exists := c.cache[blockhash]
		if !exists {
			continue
		}

		for _, key := range keys {
			entry.keys[key] = slices.DeleteFunc(entry.keys[key], func(s Status) bool {
				return s.Slot == slot
			})
			if len(entry.keys[key]) == 0 {
				delete(entry.keys, key)
			}
		}

		if len(entry.keys) == 0 {
			delete(c.cache, blockhash)
		}
	}

	delete(c.slots, slot)
}

func rootSlots(roots map[uint64]struct{}) []uint64 {
	out := make([]uint64, 0, len(roots))
	for s := range roots {
		out = append(out, s)
	}
	return out
}
