package program

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/rlp"
)

// NonceState is the data stored in a durable nonce account.
type NonceState struct {
	Initialized          bool            `json:"initialized"`
	Authority            database.Pubkey `json:"authority"`
	DurableNonce         database.Hash   `json:"durable_nonce"`
	LamportsPerSignature uint64          `json:"lamports_per_signature"`
}

// Encode returns the account data for the nonce state.
func (ns NonceState) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(ns)
}

// DecodeNonce reads the state of an initialized nonce account.
func DecodeNonce(account database.Account) (NonceState, error) {
	if account.Owner != database.SystemProgramID {
		return NonceState{}, database.ErrInvalidAccountOwner
	}

	var ns NonceState
	if err := rlp.DecodeBytes(account.Data, &ns); err != nil {
		return NonceState{}, fmt.Errorf("%w: %s", database.ErrInvalidAccountData, err)
	}

	if !ns.Initialized {
		return NonceState{}, database.ErrNonceNotInitialized
	}

	return ns, nil
}

// DurableNonceFromBlockhash derives the durable nonce value stored when a
// nonce account is advanced while the blockhash is the newest.
func DurableNonceFromBlockhash(blockhash database.Hash) database.Hash {
	return database.HashOf([]byte("DURABLE_NONCE"), blockhash[:])
}

// NonceAccountIndex returns the message index of the nonce account when
// the first instruction of the message advances a nonce.
func NonceAccountIndex(msg database.Message) (int, bool) {
	if len(msg.Instructions) == 0 {
		return 0, false
	}

	ix := msg.Instructions[0]
	if int(ix.ProgramIDIndex) >= len(msg.AccountKeys) || msg.ProgramID(0) != database.SystemProgramID {
		return 0, false
	}

	si, err := DecodeSystemInstruction(ix.Data)
	if err != nil || si.Kind != SystemAdvanceNonce {
		return 0, false
	}

	if len(ix.Accounts) == 0 || int(ix.Accounts[0]) >= len(msg.AccountKeys) {
		return 0, false
	}

	idx := int(ix.Accounts[0])
	if !msg.IsWritable(idx) {
		return 0, false
	}

	return idx, true
}
