package sysvar

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// MaxSlotHashes is the number of entries in the slot hashes sysvar.
const MaxSlotHashes = 512

// SlotHash pairs a slot with its bank hash.
type SlotHash struct {
	Slot uint64        `json:"slot"`
	Hash database.Hash `json:"hash"`
}

// SlotHashes holds the hashes of recent slots, newest first.
type SlotHashes []SlotHash

// Add returns the slot hashes with the entry added.
func (sh SlotHashes) Add(slot uint64, hash database.Hash) SlotHashes {
	out := make(SlotHashes, 0, min(len(sh)+1, MaxSlotHashes))
	out = append(out, SlotHash{Slot: slot, Hash: hash})

	for _, e := range sh {
		if len(out) == MaxSlotHashes {
			break
		}
		if e.Slot == slot {
			continue
		}
		out = append(out, e)
	}

	return out
}

// Get returns the hash recorded for the slot.
func (sh SlotHashes) Get(slot uint64) (database.Hash, bool) {
	for _, e := range sh {
		if e.Slot == slot {
			return e.Hash, true
		}
	}

	return database.Hash{}, false
}

// =============================================================================

// MaxSlotHistoryEntries is the number of slots tracked by the slot history.
const MaxSlotHistoryEntries = 1024 * 1024

// Status of a slot in the slot history.
const (
	SlotFound = iota
	SlotNotFound
	SlotTooOld
	SlotFuture
)

// SlotHistory is a bit vector of the slots that produced a bank on this
// fork.
type SlotHistory struct {
	Bits     []uint64 `json:"bits"`
	NextSlot uint64   `json:"next_slot"`
}

// NewSlotHistory constructs a history where only the genesis slot is set.
func NewSlotHistory() SlotHistory {
	sh := SlotHistory{
		Bits:     make([]uint64, MaxSlotHistoryEntries/64),
		NextSlot: 1,
	}
	sh.Bits[0] = 1

	return sh
}

// Add records the slot. Slots skipped since the last recorded slot are
// cleared.
func (sh *SlotHistory) Add(slot uint64) {
	if len(sh.Bits) == 0 {
		sh.Bits = make([]uint64, MaxSlotHistoryEntries/64)
	}

	if slot > sh.NextSlot && slot-sh.NextSlot >= MaxSlotHistoryEntries {
		clear(sh.Bits)
	} else {
		for skipped := sh.NextSlot; skipped < slot; skipped++ {
			sh.set(skipped, false)
		}
	}

	sh.set(slot, true)
	sh.NextSlot = slot + 1
}

// Check returns the status of the slot.
func (sh SlotHistory) Check(slot uint64) int {
	switch {
	case slot > sh.Newest():
		return SlotFuture
	case slot < sh.Oldest():
		return SlotTooOld
	case sh.get(slot):
		return SlotFound
	}

	return SlotNotFound
}

// Newest returns the newest slot recorded.
func (sh SlotHistory) Newest() uint64 {
	return sh.NextSlot - 1
}

// Oldest returns the oldest slot the history still knows about.
func (sh SlotHistory) Oldest() uint64 {
	if sh.NextSlot < MaxSlotHistoryEntries {
		return 0
	}

	return sh.NextSlot - MaxSlotHistoryEntries
}

func (sh *SlotHistory) set(slot uint64, on bool) {
	bit := slot % MaxSlotHistoryEntries
	if on {
		sh.Bits[bit/64] |= 1 << (bit % 64)
		return
	}
	sh.Bits[bit/64] &^= 1 << (bit % 64)
}

func (sh SlotHistory) get(slot uint64) bool {
	bit := slot % MaxSlotHistoryEntries
	if len(sh.Bits) == 0 {
		return false
	}

	return sh.Bits[bit/64]&(1<<(bit%64)) != 0
}
