// Package mempool maintains the pending transactions for the node.
package mempool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool/selector"
)

// ErrDuplicate is returned when a transaction with the same signature is
// already pending.
var ErrDuplicate = errors.New("transaction already pending")

// Mempool represents a cache of transactions keyed by their signature.
type Mempool struct {
	pool     map[database.Signature]selector.Tx
	arrival  uint64
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default sort strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyPrice)
}

// NewWithStrategy constructs a new mempool with specified sort strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[database.Signature]selector.Tx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a transaction to the mempool. The compute unit price is read
// from the compute budget instructions of the message.
func (mp *Mempool) Upsert(tx database.Transaction) (int, error) {
	budget, err := fee.ProcessComputeBudget(tx.Message)
	if err != nil {
		return 0, fmt.Errorf("compute budget: %w", err)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	sig := tx.Signature()
	if _, exists := mp.pool[sig]; exists {
		return len(mp.pool), ErrDuplicate
	}

	mp.arrival++
	mp.pool[sig] = selector.Tx{
		Transaction: tx,
		UnitPrice:   budget.UnitPrice,
		Arrival:     mp.arrival,
		Received:    time.Now(),
	}

	return len(mp.pool), nil
}

// Delete removes the transactions with the specified signatures.
func (mp *Mempool) Delete(sigs ...database.Signature) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, sig := range sigs {
		delete(mp.pool, sig)
	}
}

// Contains reports whether a transaction with the signature is pending.
func (mp *Mempool) Contains(sig database.Signature) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[sig]
	return exists
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[database.Signature]selector.Tx)
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the slot. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.Transaction {

	// Group the transactions by fee payer.
	m := make(map[database.Pubkey][]selector.Tx)
	mp.mu.RLock()
	{
		for _, tx := range mp.pool {
			payer := tx.Transaction.Message.FeePayer()
			m[payer] = append(m[payer], tx)
		}
	}
	mp.mu.RUnlock()

	selected := mp.selectFn(m, howMany)

	txs := make([]database.Transaction, len(selected))
	for i, tx := range selected {
		txs[i] = tx.Transaction
	}

	return txs
}
