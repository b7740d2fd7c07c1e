package program

import (
	"sync/atomic"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxCachedExecutors is the number of executors a bank keeps.
const MaxCachedExecutors = 256

// Executors is the bounded cache of resolved program executors owned by a
// bank. A child bank starts from a copy of its parent's cache.
type Executors struct {
	cache  *lru.Cache[database.Pubkey, Builtin]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewExecutors constructs an empty cache of the specified size.
func NewExecutors(size int) *Executors {
	cache, err := lru.New[database.Pubkey, Builtin](max(size, 1))
	if err != nil {
		panic(err)
	}

	return &Executors{cache: cache}
}

// Get returns the cached executor of the program.
func (e *Executors) Get(programID database.Pubkey) (Builtin, bool) {
	b, exists := e.cache.Get(programID)
	if !exists {
		e.misses.Add(1)
		return Builtin{}, false
	}

	e.hits.Add(1)
	return b, true
}

// Put caches the executor of the program.
func (e *Executors) Put(programID database.Pubkey, b Builtin) {
	e.cache.Add(programID, b)
}

// Remove drops the executor of the program.
func (e *Executors) Remove(programID database.Pubkey) {
	e.cache.Remove(programID)
}

// Len returns the number of cached executors.
func (e *Executors) Len() int {
	return e.cache.Len()
}

// Stats returns the number of cache hits and misses.
func (e *Executors) Stats() (hits uint64, misses uint64) {
	return e.hits.Load(), e.misses.Load()
}

// Clone returns a copy of the cache that keeps the recency order.
func (e *Executors) Clone() *Executors {
	ne := NewExecutors(MaxCachedExecutors)
	for _, key := range e.cache.Keys() {
		if b, exists := e.cache.Peek(key); exists {
			ne.cache.Add(key, b)
		}
	}

	return ne
}
