package bank

import (
	"fmt"
	"slices"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Parent returns the parent bank or nil once the bank was squashed.
func (b *Bank) Parent() *Bank {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.parent
}

// Parents returns the chain of unsquashed parents, nearest first.
func (b *Bank) Parents() []*Bank {
	var parents []*Bank
	for p := b.Parent(); p != nil; p = p.Parent() {
		parents = append(parents, p)
	}

	return parents
}

// Ancestors returns the slots whose writes are visible from the bank,
// including its own slot.
func (b *Bank) Ancestors() database.Ancestors {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.ancestors
}

// IsFrozen reports whether the bank was frozen.
func (b *Bank) IsFrozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.frozen
}

// Hash returns the bank hash. It is the zero value until the bank is
// frozen.
func (b *Bank) Hash() database.Hash {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.hash
}

// IsComplete reports whether every tick of the slot was registered.
func (b *Bank) IsComplete() bool {
	return b.tickHeight.Load() >= b.maxTickHeight
}

// =============================================================================

// Freeze finishes the slot. Rent is collected from the partitions of the
// slot, the fees and rent are distributed, the slot is recorded in the slot
// history, the incinerator is emptied and the bank hash is calculated. No
// account of the slot can change afterwards. Calling Freeze more than once
// has no effect.
func (b *Bank) Freeze() {
	b.freezeMu.Lock()
	defer b.freezeMu.Unlock()

	if b.IsFrozen() {
		return
	}

	b.CollectRentEagerly()
	b.distributeTransactionFees()
	b.distributeRent()
	b.updateSlotHistory()
	b.runIncinerator()

	hash := b.HashInternalState()

	b.mu.Lock()
	{
		b.hash = hash
		b.frozen = true
	}
	b.mu.Unlock()

	b.evHandler("bank: freeze: slot[%d]: hash[%s]: capitalization[%d]: txs[%d]", b.slot, hash, b.capitalization.Load(), b.transactionCount.Load())
}

// runIncinerator burns whatever was sent to the incinerator in the slot.
func (b *Bank) runIncinerator() {
	account, exists := b.GetAccount(database.IncineratorID)
	if !exists {
		return
	}

	b.adjustCapitalization(account.Lamports, 0)
	b.burn(account.Lamports)
	b.storeAccounts([]database.KeyedAccount{{Key: database.IncineratorID, Account: database.Account{}}})
}

// Squash freezes the bank and makes it and every ancestor a root. The
// parent link is dropped so older banks can be released, and the ancestor
// set shrinks to the bank's own slot since rooted writes are visible to
// every bank. Squashing a bank a second time has no effect.
func (b *Bank) Squash() error {
	b.Freeze()

	var chain []*Bank
	for p := b; p != nil; p = p.Parent() {
		chain = append(chain, p)
	}
	slices.Reverse(chain)

	for _, p := range chain {
		p.Freeze()

		if err := b.db.AddRoot(p.slot); err != nil {
			return fmt.Errorf("add root %d: %w", p.slot, err)
		}
		b.statusCache.AddRoot(p.slot)
	}

	b.mu.Lock()
	{
		b.parent = nil
		b.ancestors = database.NewAncestors(b.slot)
	}
	b.mu.Unlock()

	b.evHandler("bank: squash: slot[%d]: roots[%d]", b.slot, len(chain))

	return nil
}

// Destroy notifies the owner that the bank was abandoned. The owner is
// only notified once.
func (b *Bank) Destroy() {
	if !b.destroyed.CompareAndSwap(false, true) {
		return
	}

	if b.onDestroy != nil {
		b.onDestroy.OnDestroy(b)
	}
}

// =============================================================================

// RegisterTick records a tick of the slot. The last tick of the slot
// registers its hash as the newest blockhash.
func (b *Bank) RegisterTick(hash database.Hash) {
	b.mustNotBeFrozen("register tick")

	height := b.tickHeight.Add(1)
	if height != b.maxTickHeight {
		return
	}

	timestamp := int64(b.unixTimestamp(b.slot))
	b.blockhashQueue.Register(hash, b.feeRateGovernor.LamportsPerSignature, timestamp)
	b.updateRecentBlockhashes()
}

// FillWithTicks registers the ticks left in the slot. Each tick hashes the
// previous one, starting from the last blockhash.
func (b *Bank) FillWithTicks() {
	hash := b.LastBlockhash()

	for !b.IsComplete() {
		hash = database.HashOf(hash[:])
		b.RegisterTick(hash)
	}
}
