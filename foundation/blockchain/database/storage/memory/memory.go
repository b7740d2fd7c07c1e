// Package memory implements the ability to persist rooted accounts in
// memory using a map.
package memory

import (
	"errors"
	"slices"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Memory represents the serialization implementation for storing rooted
// accounts in memory. This implements the database.Serializer interface.
type Memory struct {
	mu       sync.RWMutex
	accounts map[database.Pubkey]database.Account
	root     uint64
	writes   int
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		accounts: make(map[database.Pubkey]database.Account),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write takes the accounts of a rooted slot and stores them in memory.
func (m *Memory) Write(slot uint64, accounts []database.KeyedAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writes > 0 && slot <= m.root {
		return errors.New("root is out of order")
	}

	for _, ka := range accounts {
		if ka.Account.Lamports == 0 {
			delete(m.accounts, ka.Key)
			continue
		}
		m.accounts[ka.Key] = ka.Account.Clone()
	}

	m.root = slot
	m.writes++

	return nil
}

// Root returns the last slot written to memory.
func (m *Memory) Root() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.root, m.writes > 0
}

// ForEach returns an iterator to walk through a copy of the accounts in
// key order.
func (m *Memory) ForEach() database.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]database.KeyedAccount, 0, len(m.accounts))
	for key, account := range m.accounts {
		accounts = append(accounts, database.KeyedAccount{Key: key, Account: account.Clone()})
	}
	slices.SortFunc(accounts, func(a, b database.KeyedAccount) int {
		return a.Key.Compare(b.Key)
	})

	return &Iterator{accounts: accounts}
}

// Reset will clear out the accounts in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts = make(map[database.Pubkey]database.Account)
	m.root = 0
	m.writes = 0

	return nil
}

// =============================================================================

// Iterator represents the iteration implementation for walking through
// the accounts in memory. This implements the database.Iterator interface.
type Iterator struct {
	accounts []database.KeyedAccount
	current  int
	done     bool
}

// Next retrieves the next account from memory.
func (it *Iterator) Next() (database.KeyedAccount, error) {
	if it.done {
		return database.KeyedAccount{}, errors.New("end of accounts")
	}

	if it.current >= len(it.accounts) {
		it.done = true
		return database.KeyedAccount{}, nil
	}

	ka := it.accounts[it.current]
	it.current++

	return ka, nil
}

// Done returns true when every account has been read.
func (it *Iterator) Done() bool {
	return it.done
}
