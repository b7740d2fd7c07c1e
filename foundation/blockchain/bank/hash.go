package bank

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// HardFork is a slot the cluster agreed to restart from, with the number
// of times it did.
type HardFork struct {
	Slot  uint64 `json:"slot"`
	Count uint64 `json:"count"`
}

// HardForks holds the hard forks of the cluster ordered by slot. Every bank
// of a node shares the same value.
type HardForks struct {
	mu    sync.RWMutex
	forks []HardFork
}

// NewHardForks constructs an empty set of hard forks.
func NewHardForks() *HardForks {
	return &HardForks{}
}

// Register records a hard fork at the slot.
func (hf *HardForks) Register(slot uint64) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	i, found := slices.BinarySearchFunc(hf.forks, slot, func(f HardFork, target uint64) int {
		switch {
		case f.Slot < target:
			return -1
		case f.Slot > target:
			return 1
		}
		return 0
	})

	if found {
		hf.forks[i].Count++
		return
	}

	hf.forks = slices.Insert(hf.forks, i, HardFork{Slot: slot, Count: 1})
}

// Iter returns the hard forks ordered by slot.
func (hf *HardForks) Iter() []HardFork {
	hf.mu.RLock()
	defer hf.mu.RUnlock()

	return slices.Clone(hf.forks)
}

// HashData returns the data mixed into the hash of the bank at the slot
// when hard forks happened after the parent slot, up to and including the
// slot. It is nil when no hard fork applies.
func (hf *HardForks) HashData(slot uint64, parentSlot uint64) []byte {
	hf.mu.RLock()
	defer hf.mu.RUnlock()

	var count uint64
	for _, f := range hf.forks {
		if f.Slot > parentSlot && f.Slot <= slot {
			count += f.Count
		}
	}

	if count == 0 {
		return nil
	}

	return binary.LittleEndian.AppendUint64(nil, count)
}

// =============================================================================

// HashInternalState calculates the bank hash from the parent hash, the
// delta hash of the accounts written in the slot, the signature count and
// the newest blockhash.
func (b *Bank) HashInternalState() database.Hash {
	b.mu.RLock()
	skipped := b.skippedRewrites
	b.mu.RUnlock()

	deltaHash := b.db.DeltaHash(b.slot, skipped)
	lastBlockhash := b.LastBlockhash()

	sigCount := binary.LittleEndian.AppendUint64(nil, b.signatureCount.Load())

	hash := database.HashOf(b.parentHash[:], deltaHash[:], sigCount, lastBlockhash[:])

	if data := b.hardForks.HashData(b.slot, b.parentSlot); data != nil {
		hash = database.HashOf(hash[:], data)
	}

	return hash
}

// VerifyHash recalculates the hash of a frozen bank and panics when it does
// not match the recorded value.
func (b *Bank) VerifyHash() {
	if !b.IsFrozen() {
		panic(fmt.Sprintf("bank: verify hash: slot %d is not frozen", b.slot))
	}

	if got, exp := b.HashInternalState(), b.Hash(); got != exp {
		panic(fmt.Sprintf("bank: verify hash: slot %d: got %s, exp %s", b.slot, got, exp))
	}
}

// CalculateCapitalization sums the lamports of every account visible from
// the bank.
func (b *Bank) CalculateCapitalization() uint64 {
	return b.db.Capitalization(b.Ancestors())
}

// VerifyCapitalization reports whether the tracked capitalization matches
// the sum of the accounts.
func (b *Bank) VerifyCapitalization() bool {
	return b.CalculateCapitalization() == b.capitalization.Load()
}

// MustVerifyCapitalization panics when the tracked capitalization does not
// match the sum of the accounts. A ledger in that state can't be trusted to
// produce or root another slot.
func (b *Bank) MustVerifyCapitalization() {
	if got, exp := b.CalculateCapitalization(), b.capitalization.Load(); got != exp {
		panic(fmt.Sprintf("bank: verify capitalization: slot %d: calculated %d, tracked %d", b.slot, got, exp))
	}
}
