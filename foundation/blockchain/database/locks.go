package database

import (
	"fmt"
	"sync"
)

// accountLocks tracks the accounts held by in-flight transactions.
type accountLocks struct {
	mu       sync.Mutex
	writable map[Pubkey]struct{}
	readonly map[Pubkey]int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{
		writable: make(map[Pubkey]struct{}),
		readonly: make(map[Pubkey]int),
	}
}

// LockAccounts acquires the account locks for each transaction in order.
// A transaction whose accounts conflict with a lock already held, including
// one taken by an earlier transaction of the same batch, gets ErrAccountInUse.
// Transactions with duplicate or too many accounts are rejected before any
// lock is taken.
func (db *Database) LockAccounts(txs []Transaction) []error {
	results := make([]error, len(txs))

	db.locks.mu.Lock()
	defer db.locks.mu.Unlock()

	for i, tx := range txs {
		if err := validateAccountLocks(tx.Message); err != nil {
			results[i] = err
			continue
		}
		results[i] = db.locks.lock(tx.Message)
	}

	return results
}

// UnlockAccounts releases the locks of the transactions whose lock result
// is nil.
func (db *Database) UnlockAccounts(txs []Transaction, lockResults []error) {
	db.locks.mu.Lock()
	defer db.locks.mu.Unlock()

	for i, tx := range txs {
		if lockResults[i] != nil {
			continue
		}
		db.locks.unlock(tx.Message)
	}
}

// =============================================================================

func validateAccountLocks(msg Message) error {
	if err := msg.Sanitize(); err != nil {
		return fmt.Errorf("%w: %s", ErrSanitizeFailure, err)
	}

	if len(msg.AccountKeys) > MaxTxAccountLocks {
		return ErrTooManyAccountLocks
	}

	seen := make(map[Pubkey]struct{}, len(msg.AccountKeys))
	for _, key := range msg.AccountKeys {
		if _, exists := seen[key]; exists {
			return ErrAccountLoadedTwice
		}
		seen[key] = struct{}{}
	}

	return nil
}

// lock acquires the locks of one message. The caller must hold the mutex.
func (al *accountLocks) lock(msg Message) error {
	for i, key := range msg.AccountKeys {
		if _, held := al.writable[key]; held {
			return ErrAccountInUse
		}

		if msg.IsWritable(i) && al.readonly[key] > 0 {
			return ErrAccountInUse
		}
	}

	for i, key := range msg.AccountKeys {
		if msg.IsWritable(i) {
			al.writable[key] = struct{}{}
			continue
		}
		al.readonly[key]++
	}

	return nil
}

// unlock releases the locks of one message. The caller must hold the mutex.
func (al *accountLocks) unlock(msg Message) {
	for i, key := range msg.AccountKeys {
		if msg.IsWritable(i) {
			delete(al.writable, key)
			continue
		}

		al.readonly[key]--
		if al.readonly[key] <= 0 {
			delete(al.readonly, key)
		}
	}
}
