package database

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/rlp"
)

// MaxTxAccountLocks is the maximum number of accounts a transaction may lock.
const MaxTxAccountLocks = 64

// =============================================================================

// MessageHeader describes how the account keys of a message are split
// between signers and read-only accounts. Keys are ordered as writable
// signers, read-only signers, writable non-signers, read-only non-signers.
type MessageHeader struct {
	NumRequiredSignatures       uint8 `json:"num_required_signatures"`
	NumReadonlySignedAccounts   uint8 `json:"num_readonly_signed_accounts"`
	NumReadonlyUnsignedAccounts uint8 `json:"num_readonly_unsigned_accounts"`
}

// CompiledInstruction references the program and accounts of an
// instruction by index into the message account keys.
type CompiledInstruction struct {
	ProgramIDIndex uint8   `json:"program_id_index"`
	Accounts       []uint8 `json:"accounts"`
	Data           []byte  `json:"data"`
}

// Message is the signed content of a transaction.
type Message struct {
	Header          MessageHeader         `json:"header"`
	AccountKeys     []Pubkey              `json:"account_keys"`
	RecentBlockhash Hash                  `json:"recent_blockhash"`
	Instructions    []CompiledInstruction `json:"instructions"`
}

// Instruction describes a program invocation by account key. It is compiled
// into a message with NewMessage.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// NewMessage compiles the instructions into a message paid for by the
// specified fee payer.
func NewMessage(feePayer Pubkey, recentBlockhash Hash, instructions ...Instruction) Message {
	type meta struct {
		signer   bool
		writable bool
	}

	order := []Pubkey{feePayer}
	metas := map[Pubkey]*meta{feePayer: {signer: true, writable: true}}

	add := func(key Pubkey, signer bool, writable bool) {
		m, exists := metas[key]
		if !exists {
			m = &meta{}
			metas[key] = m
			order = append(order, key)
		}
		m.signer = m.signer || signer
		m.writable = m.writable || writable
	}

	for _, ix := range instructions {
		for _, am := range ix.Accounts {
			add(am.Pubkey, am.IsSigner, am.IsWritable)
		}
	}
	for _, ix := range instructions {
		add(ix.ProgramID, false, false)
	}

	var groups [4][]Pubkey
	for _, key := range order {
		m := metas[key]
		switch {
		case m.signer && m.writable:
			groups[0] = append(groups[0], key)
		case m.signer:
			groups[1] = append(groups[1], key)
		case m.writable:
			groups[2] = append(groups[2], key)
		default:
			groups[3] = append(groups[3], key)
		}
	}

	var keys []Pubkey
	for _, g := range groups {
		keys = append(keys, g...)
	}

	index := make(map[Pubkey]uint8, len(keys))
	for i, key := range keys {
		index[key] = uint8(i)
	}

	compiled := make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		accounts := make([]uint8, len(ix.Accounts))
		for j, am := range ix.Accounts {
			accounts[j] = index[am.Pubkey]
		}
		compiled[i] = CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Accounts:       accounts,
			Data:           ix.Data,
		}
	}

	return Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(len(groups[0]) + len(groups[1])),
			NumReadonlySignedAccounts:   uint8(len(groups[1])),
			NumReadonlyUnsignedAccounts: uint8(len(groups[3])),
		},
		AccountKeys:     keys,
		RecentBlockhash: recentBlockhash,
		Instructions:    compiled,
	}
}

// Sanitize validates the structure of the message.
func (m Message) Sanitize() error {
	numKeys := len(m.AccountKeys)
	h := m.Header

	if h.NumRequiredSignatures == 0 {
		return errors.New("message requires at least one signature")
	}

	if int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) > numKeys {
		return errors.New("message header exceeds the number of account keys")
	}

	if h.NumReadonlySignedAccounts >= h.NumRequiredSignatures {
		return errors.New("fee payer must be writable")
	}

	for i, ix := range m.Instructions {
		if ix.ProgramIDIndex == 0 || int(ix.ProgramIDIndex) >= numKeys {
			return fmt.Errorf("instruction %d: invalid program id index %d", i, ix.ProgramIDIndex)
		}

		for _, ai := range ix.Accounts {
			if int(ai) >= numKeys {
				return fmt.Errorf("instruction %d: invalid account index %d", i, ai)
			}
		}
	}

	return nil
}

// FeePayer returns the account that pays the fee for the message.
func (m Message) FeePayer() Pubkey {
	if len(m.AccountKeys) == 0 {
		return Pubkey{}
	}

	return m.AccountKeys[0]
}

// IsSigner reports whether the account at the index must sign the message.
func (m Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

// IsProgramID reports whether the account at the index is invoked as a
// program by any instruction.
func (m Message) IsProgramID(i int) bool {
	for _, ix := range m.Instructions {
		if int(ix.ProgramIDIndex) == i {
			return true
		}
	}

	return false
}

// IsWritable reports whether the account at the index is write locked by
// the message. Invoked programs and reserved accounts are demoted to
// read-only regardless of their position.
func (m Message) IsWritable(i int) bool {
	if !m.isWritableIndex(i) {
		return false
	}

	if IsReserved(m.AccountKeys[i]) {
		return false
	}

	return !m.IsProgramID(i)
}

// NumWriteLocks returns the number of accounts write locked by the message.
func (m Message) NumWriteLocks() uint64 {
	var n uint64
	for i := range m.AccountKeys {
		if m.IsWritable(i) {
			n++
		}
	}

	return n
}

// ProgramID returns the program invoked by the instruction at the index.
func (m Message) ProgramID(instruction int) Pubkey {
	return m.AccountKeys[m.Instructions[instruction].ProgramIDIndex]
}

// Hash returns the unique hash of the message content.
func (m Message) Hash() Hash {
	data, err := rlp.EncodeToBytes(m)
	if err != nil {
		return Hash{}
	}

	return Hash(sha256.Sum256(data))
}

func (m Message) isWritableIndex(i int) bool {
	h := m.Header
	numSigned := int(h.NumRequiredSignatures)

	if i < numSigned {
		return i < numSigned-int(h.NumReadonlySignedAccounts)
	}

	return i < len(m.AccountKeys)-int(h.NumReadonlyUnsignedAccounts)
}

// =============================================================================

// Transaction is a message with the signatures of every required signer.
// This is how clients like a wallet provide transactions for processing.
type Transaction struct {
	Signatures []Signature `json:"signatures"`
	Message    Message     `json:"message"`
}

// NewTransaction signs the message with the specified keys. The keys must
// be provided in the order of the signers in the message.
func NewTransaction(msg Message, keys ...*ecdsa.PrivateKey) (Transaction, error) {
	if len(keys) != int(msg.Header.NumRequiredSignatures) {
		return Transaction{}, fmt.Errorf("message requires %d signatures, got %d keys", msg.Header.NumRequiredSignatures, len(keys))
	}

	sigs := make([]Signature, len(keys))
	for i, key := range keys {
		if PublicKeyToPubkey(key.PublicKey) != msg.AccountKeys[i] {
			return Transaction{}, fmt.Errorf("key %d does not match signer %s", i, msg.AccountKeys[i])
		}

		sig, err := signature.Sign(msg, key)
		if err != nil {
			return Transaction{}, fmt.Errorf("sign: %w", err)
		}
		copy(sigs[i][:], sig)
	}

	tx := Transaction{
		Signatures: sigs,
		Message:    msg,
	}

	return tx, nil
}

// Sanitize validates the structure of the transaction.
func (tx Transaction) Sanitize() error {
	if len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		return fmt.Errorf("%w: signature count mismatch", ErrSanitizeFailure)
	}

	if err := tx.Message.Sanitize(); err != nil {
		return fmt.Errorf("%w: %s", ErrSanitizeFailure, err)
	}

	return nil
}

// Verify checks each signature was produced by the account it signs for.
func (tx Transaction) Verify() error {
	for i, sig := range tx.Signatures {
		if err := signature.VerifySignature(sig[:]); err != nil {
			return fmt.Errorf("%w: %s", ErrSignatureFailure, err)
		}

		pk, err := signature.FromPublicKey(tx.Message, sig[:])
		if err != nil {
			return fmt.Errorf("%w: %s", ErrSignatureFailure, err)
		}

		if PublicKeyToPubkey(pk) != tx.Message.AccountKeys[i] {
			return fmt.Errorf("%w: signer %d mismatch", ErrSignatureFailure, i)
		}
	}

	return nil
}

// Signature returns the first signature which identifies the transaction.
func (tx Transaction) Signature() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}

	return tx.Signatures[0]
}

// String implements the fmt.Stringer interface for logging.
func (tx Transaction) String() string {
	return fmt.Sprintf("%s:%s", tx.Message.FeePayer(), tx.Signature())
}
