package state

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
)

// SubmitTransaction accepts a signed transaction from a wallet for
// inclusion in a later slot.
func (s *State) SubmitTransaction(tx database.Transaction) error {
	if err := s.validateTransaction(tx); err != nil {
		return err
	}

	if _, err := s.mempool.Upsert(tx); err != nil {
		return err
	}

	s.evHandler("state: submit: tx[%s]: pending[%d]", tx, s.mempool.Count())

	if s.Worker != nil {
		s.Worker.SignalProcessMempool()
	}

	return nil
}

// =============================================================================

// validateTransaction takes the signed transaction and validates it has
// proper signatures and references a blockhash the working bank knows.
func (s *State) validateTransaction(tx database.Transaction) error {
	if err := tx.Sanitize(); err != nil {
		return err
	}

	if err := tx.Verify(); err != nil {
		return err
	}

	// Durable nonce transactions are checked when they execute.
	if _, ok := program.NonceAccountIndex(tx.Message); ok {
		return nil
	}

	if !s.WorkingBank().IsBlockhashValid(tx.Message.RecentBlockhash) {
		return database.ErrBlockhashNotFound
	}

	return nil
}
