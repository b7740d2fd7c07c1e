package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
)

// batchSize is the number of mempool transactions executed together.
const batchSize = 64

// NewSlot creates the bank for the slot on top of the bank of the parent
// slot. The parent is frozen and the new bank becomes the working bank.
func (s *State) NewSlot(parentSlot uint64, slot uint64) (*bank.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, exists := s.banks[parentSlot]
	if !exists {
		return nil, fmt.Errorf("parent slot %d: %w", parentSlot, ErrNotFound)
	}

	if slot <= parentSlot {
		return nil, fmt.Errorf("slot %d after parent %d: %w", slot, parentSlot, ErrInvalidSlot)
	}

	if _, exists := s.banks[slot]; exists {
		return nil, fmt.Errorf("slot %d exists: %w", slot, ErrInvalidSlot)
	}

	b := bank.NewFromParent(parent, s.identityID, slot)

	s.banks[slot] = b
	s.working = b

	s.evHandler("state: new slot: slot[%d]: parent[%d]: epoch[%d]", slot, parentSlot, b.Epoch())

	return b, nil
}

// ProcessMempool executes the best transactions of the mempool against the
// working bank until the mempool is drained, no transaction can make
// progress or the context is done. Transactions that were committed or can
// never succeed are removed from the mempool. It returns the number of
// committed transactions.
func (s *State) ProcessMempool(ctx context.Context) (int, error) {
	b := s.WorkingBank()
	if b.IsFrozen() {
		return 0, ErrBankFrozen
	}

	var committed int
	for ctx.Err() == nil {
		txs := s.mempool.PickBest(batchSize)
		if len(txs) == 0 {
			break
		}

		results := b.ProcessTransactions(txs)

		var done []database.Signature
		for _, r := range results {
			switch {
			case r.Committed:
				committed++
				done = append(done, r.Signature)

			case !database.IsRetryable(r.Err):
				s.evHandler("state: process mempool: slot[%d]: tx[%s]: dropped: %s", b.Slot(), r.Signature, r.Err)
				done = append(done, r.Signature)
			}
		}

		if len(done) == 0 {
			break
		}
		s.mempool.Delete(done...)
	}

	if committed > 0 {
		s.evHandler("viewer: process mempool: slot[%d]: committed[%d]: pending[%d]", b.Slot(), committed, s.mempool.Count())
	}

	return committed, nil
}

// FreezeWorkingBank fills the remaining ticks of the working bank and
// freezes it. A validator node votes for the frozen slot.
func (s *State) FreezeWorkingBank() (*bank.Bank, error) {
	b := s.WorkingBank()
	if b.IsFrozen() {
		return b, nil
	}

	b.FillWithTicks()
	b.Freeze()

	s.evHandler("viewer: freeze: slot[%d]: hash[%s]: txs[%d]: capitalization[%d]", b.Slot(), b.Hash(), b.TransactionCount(), b.Capitalization())

	if s.isValidator {
		if err := s.Vote(b); err != nil {
			s.evHandler("state: freeze: slot[%d]: vote: ERROR: %s", b.Slot(), err)
		}
	}

	return b, nil
}

// Vote submits a vote of the node identity for the frozen bank. The vote
// is executed as part of a later slot.
func (s *State) Vote(b *bank.Bank) error {
	if !s.isValidator {
		return ErrNotValidator
	}

	msg := database.NewMessage(s.identityID, b.LastBlockhash(), program.Vote(s.voteAccount, s.identityID, b.Slot()))

	tx, err := database.NewTransaction(msg, s.identity)
	if err != nil {
		return fmt.Errorf("sign vote: %w", err)
	}

	if _, err := s.mempool.Upsert(tx); err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}

	return nil
}

// SetRoot squashes the bank of the slot into the new root. Every bank that
// does not descend from the root is removed from the fork set and the banks
// of abandoned forks are destroyed. The fields of the root are written to
// the snapshot.
func (s *State) SetRoot(slot uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, exists := s.banks[slot]
	if !exists {
		return fmt.Errorf("root slot %d: %w", slot, ErrNotFound)
	}

	if slot < s.root.Slot() {
		return fmt.Errorf("root slot %d before root %d: %w", slot, s.root.Slot(), ErrInvalidSlot)
	}

	// The ancestor set collapses on squash.
	rooted := root.Ancestors()

	if err := root.Squash(); err != nil {
		return fmt.Errorf("squash %d: %w", slot, err)
	}
	root.MustVerifyCapitalization()

	var pruned int
	for bslot, b := range s.banks {
		switch {
		case bslot == slot:
			continue

		case bslot < slot:
			delete(s.banks, bslot)
			if !rooted.Contains(bslot) {
				b.Destroy()
				pruned++
			}

		case !b.Ancestors().Contains(slot):
			delete(s.banks, bslot)
			b.Destroy()
			pruned++
		}
	}

	s.root = root
	if current, exists := s.banks[s.working.Slot()]; !exists || current != s.working {
		s.working = root
	}

	s.evHandler("state: set root: slot[%d]: pruned[%d]: banks[%d]", slot, pruned, len(s.banks))

	return s.writeSnapshot(root)
}
