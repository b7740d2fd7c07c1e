package state

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// QueryAccount returns the account as seen by the working bank.
func (s *State) QueryAccount(key database.Pubkey) (database.Account, error) {
	account, exists := s.WorkingBank().GetAccount(key)
	if !exists {
		return database.Account{}, fmt.Errorf("account %s: %w", key, ErrNotFound)
	}

	return account, nil
}

// QueryRootAccount returns the account as seen by the rooted bank.
func (s *State) QueryRootAccount(key database.Pubkey) (database.Account, error) {
	account, exists := s.Root().GetAccount(key)
	if !exists {
		return database.Account{}, fmt.Errorf("account %s: %w", key, ErrNotFound)
	}

	return account, nil
}

// QueryBank returns the bank of the slot from the fork set.
func (s *State) QueryBank(slot uint64) (*bank.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.banks[slot]
	if !exists {
		return nil, fmt.Errorf("bank %d: %w", slot, ErrNotFound)
	}

	return b, nil
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}
