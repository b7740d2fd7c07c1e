// Package cost tracks the execution cost of the transactions packed into a
// block so a leader never produces a block that is too expensive to
// replay.
package cost

import (
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
)

// Cost limits of a block.
const (
	MaxBlockUnits           = 48_000_000
	MaxWritableAccountUnits = 12_000_000
)

// Unit costs of the parts of a transaction.
const (
	SignatureCost            = 720
	WriteLockCost            = 300
	InstructionDataBytesCost = 4
)

// Transaction is the cost of one transaction.
type Transaction struct {
	SignatureCost    uint64
	WriteLockCost    uint64
	DataBytesCost    uint64
	ExecutionCost    uint64
	WritableAccounts []database.Pubkey
}

// Sum returns the total cost.
func (tc Transaction) Sum() uint64 {
	return tc.SignatureCost + tc.WriteLockCost + tc.DataBytesCost + tc.ExecutionCost
}

// Calculate returns the cost of the message executed with the budget.
func Calculate(msg database.Message, budget fee.ComputeBudget) Transaction {
	tc := Transaction{
		SignatureCost: fee.SignatureCount(msg) * SignatureCost,
		ExecutionCost: budget.UnitLimit,
	}

	for i, key := range msg.AccountKeys {
		if msg.IsWritable(i) {
			tc.WritableAccounts = append(tc.WritableAccounts, key)
			tc.WriteLockCost += WriteLockCost
		}
	}

	var dataLen uint64
	for _, ix := range msg.Instructions {
		dataLen += uint64(len(ix.Data))
	}
	tc.DataBytesCost = dataLen / InstructionDataBytesCost

	return tc
}

// =============================================================================

// Tracker accumulates the cost of a block.
type Tracker struct {
	mu            sync.Mutex
	accountLimit  uint64
	blockLimit    uint64
	blockCost     uint64
	txCount       uint64
	costByAccount map[database.Pubkey]uint64
}

// NewTracker constructs a tracker with the specified limits.
func NewTracker(accountLimit uint64, blockLimit uint64) *Tracker {
	return &Tracker{
		accountLimit:  accountLimit,
		blockLimit:    blockLimit,
		costByAccount: make(map[database.Pubkey]uint64),
	}
}

// NewDefaultTracker constructs a tracker with the default limits.
func NewDefaultTracker() *Tracker {
	return NewTracker(MaxWritableAccountUnits, MaxBlockUnits)
}

// TryAdd adds the cost of the transaction to the block when it fits within
// the limits.
func (t *Tracker) TryAdd(tc Transaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cost := tc.Sum()

	if t.blockCost+cost > t.blockLimit {
		return database.ErrWouldExceedBlockMaxLimit
	}

	for _, key := range tc.WritableAccounts {
		if t.costByAccount[key]+cost > t.accountLimit {
			return database.ErrWouldExceedAccountMaxLimit
		}
	}

	for _, key := range tc.WritableAccounts {
		t.costByAccount[key] += cost
	}
	t.blockCost += cost
	t.txCount++

	return nil
}

// Remove takes back the cost of a transaction that was added but not
// committed.
func (t *Tracker) Remove(tc Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cost := tc.Sum()

	for _, key := range tc.WritableAccounts {
		t.costByAccount[key] -= min(cost, t.costByAccount[key])
		if t.costByAccount[key] == 0 {
			delete(t.costByAccount, key)
		}
	}
	t.blockCost -= min(cost, t.blockCost)
	t.txCount--
}

// BlockCost returns the cost accumulated by the block.
func (t *Tracker) BlockCost() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.blockCost
}

// TransactionCount returns the number of transactions added.
func (t *Tracker) TransactionCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.txCount
}
