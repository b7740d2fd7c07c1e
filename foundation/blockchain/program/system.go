package program

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/rlp"
)

// MaxPermittedDataLength is the largest account the system program
// allocates.
const MaxPermittedDataLength = 10 * 1024 * 1024

// Set of system program instructions.
const (
	SystemCreateAccount uint8 = iota
	SystemAssign
	SystemTransfer
	SystemAllocate
	SystemInitializeNonce
	SystemAdvanceNonce
)

// SystemInstruction is the instruction data of the system program.
type SystemInstruction struct {
	Kind      uint8
	Lamports  uint64
	Space     uint64
	Owner     database.Pubkey
	Authority database.Pubkey
}

// DecodeSystemInstruction reads system program instruction data.
func DecodeSystemInstruction(data []byte) (SystemInstruction, error) {
	var si SystemInstruction
	if err := rlp.DecodeBytes(data, &si); err != nil {
		return SystemInstruction{}, fmt.Errorf("%w: %s", database.ErrInvalidInstructionData, err)
	}

	return si, nil
}

func systemInstruction(si SystemInstruction, accounts ...database.AccountMeta) database.Instruction {
	data, err := rlp.EncodeToBytes(si)
	if err != nil {
		panic(err)
	}

	return database.Instruction{
		ProgramID: database.SystemProgramID,
		Accounts:  accounts,
		Data:      data,
	}
}

// Transfer moves lamports between two system accounts.
func Transfer(from database.Pubkey, to database.Pubkey, lamports uint64) database.Instruction {
	return systemInstruction(
		SystemInstruction{Kind: SystemTransfer, Lamports: lamports},
		database.AccountMeta{Pubkey: from, IsSigner: true, IsWritable: true},
		database.AccountMeta{Pubkey: to, IsWritable: true},
	)
}

// CreateAccount funds a new account, allocates its data and assigns it to
// the owner.
func CreateAccount(from database.Pubkey, to database.Pubkey, lamports uint64, space uint64, owner database.Pubkey) database.Instruction {
	return systemInstruction(
		SystemInstruction{Kind: SystemCreateAccount, Lamports: lamports, Space: space, Owner: owner},
		database.AccountMeta{Pubkey: from, IsSigner: true, IsWritable: true},
		database.AccountMeta{Pubkey: to, IsSigner: true, IsWritable: true},
	)
}

// Assign changes the owner of a system account.
func Assign(key database.Pubkey, owner database.Pubkey) database.Instruction {
	return systemInstruction(
		SystemInstruction{Kind: SystemAssign, Owner: owner},
		database.AccountMeta{Pubkey: key, IsSigner: true, IsWritable: true},
	)
}

// Allocate sets the data size of a system account.
func Allocate(key database.Pubkey, space uint64) database.Instruction {
	return systemInstruction(
		SystemInstruction{Kind: SystemAllocate, Space: space},
		database.AccountMeta{Pubkey: key, IsSigner: true, IsWritable: true},
	)
}

// InitializeNonce turns a system account into a durable nonce account.
func InitializeNonce(nonce database.Pubkey, authority database.Pubkey) database.Instruction {
	return systemInstruction(
		SystemInstruction{Kind: SystemInitializeNonce, Authority: authority},
		database.AccountMeta{Pubkey: nonce, IsWritable: true},
	)
}

// AdvanceNonce replaces the durable nonce stored in a nonce account. It
// must be the first instruction of a transaction that uses the nonce in
// place of a recent blockhash.
func AdvanceNonce(nonce database.Pubkey, authority database.Pubkey) database.Instruction {
	return systemInstruction(
		SystemInstruction{Kind: SystemAdvanceNonce},
		database.AccountMeta{Pubkey: nonce, IsWritable: true},
		database.AccountMeta{Pubkey: authority, IsSigner: true},
	)
}

// =============================================================================

func processSystemInstruction(ic *InstructionContext) error {
	si, err := DecodeSystemInstruction(ic.Data)
	if err != nil {
		return err
	}

	switch si.Kind {
	case SystemCreateAccount:
		return createAccount(ic, si)
	case SystemAssign:
		return assign(ic, 0, si.Owner)
	case SystemTransfer:
		return transfer(ic, si.Lamports)
	case SystemAllocate:
		return allocate(ic, 0, si.Space)
	case SystemInitializeNonce:
		return initializeNonce(ic, si.Authority)
	case SystemAdvanceNonce:
		return advanceNonce(ic)
	}

	return database.ErrInvalidInstructionData
}

func createAccount(ic *InstructionContext, si SystemInstruction) error {
	_, to, err := ic.Account(1)
	if err != nil {
		return err
	}

	if to.Lamports != 0 || len(to.Data) != 0 || to.Owner != database.SystemProgramID {
		return database.ErrAccountAlreadyInUse
	}

	if err := allocate(ic, 1, si.Space); err != nil {
		return err
	}

	if err := assign(ic, 1, si.Owner); err != nil {
		return err
	}

	return move(ic, 0, 1, si.Lamports)
}

func assign(ic *InstructionContext, i int, owner database.Pubkey) error {
	_, account, err := ic.Account(i)
	if err != nil {
		return err
	}

	if account.Owner == owner {
		return nil
	}

	if !ic.IsSigner(i) {
		return database.ErrMissingRequiredSignature
	}

	account.Owner = owner

	return nil
}

func allocate(ic *InstructionContext, i int, space uint64) error {
	_, account, err := ic.Account(i)
	if err != nil {
		return err
	}

	if !ic.IsSigner(i) {
		return database.ErrMissingRequiredSignature
	}

	if len(account.Data) != 0 || account.Owner != database.SystemProgramID {
		return database.ErrAccountAlreadyInUse
	}

	if space > MaxPermittedDataLength {
		return database.ErrInvalidArgument
	}

	account.Data = make([]byte, space)

	return nil
}

func transfer(ic *InstructionContext, lamports uint64) error {
	if !ic.IsSigner(0) {
		return database.ErrMissingRequiredSignature
	}

	return move(ic, 0, 1, lamports)
}

func move(ic *InstructionContext, fromIdx int, toIdx int, lamports uint64) error {
	_, from, err := ic.Account(fromIdx)
	if err != nil {
		return err
	}

	_, to, err := ic.Account(toIdx)
	if err != nil {
		return err
	}

	if len(from.Data) != 0 {
		return database.ErrInvalidArgument
	}

	if from.Lamports < lamports {
		return database.ErrInsufficientFunds
	}

	from.Lamports -= lamports
	to.Lamports += lamports

	return nil
}

func initializeNonce(ic *InstructionContext, authority database.Pubkey) error {
	_, account, err := ic.Account(0)
	if err != nil {
		return err
	}

	if account.Owner != database.SystemProgramID {
		return database.ErrInvalidAccountOwner
	}

	if len(account.Data) != 0 {
		if ns, err := DecodeNonce(*account); err == nil && ns.Initialized {
			return database.ErrInvalidAccountData
		}
	}

	ns := NonceState{
		Initialized:          true,
		Authority:            authority,
		DurableNonce:         ic.Env.DurableNonce,
		LamportsPerSignature: ic.Env.LamportsPerSignature,
	}

	data, err := ns.Encode()
	if err != nil {
		return err
	}

	if account.Lamports < ic.Env.Rent.MinimumBalance(len(data)) {
		return database.ErrInsufficientFunds
	}

	account.Data = data

	return nil
}

func advanceNonce(ic *InstructionContext) error {
	_, account, err := ic.Account(0)
	if err != nil {
		return err
	}

	if !ic.IsWritable(0) {
		return database.ErrInvalidArgument
	}

	ns, err := DecodeNonce(*account)
	if err != nil {
		return err
	}

	if !ic.Signed(ns.Authority) {
		return database.ErrMissingRequiredSignature
	}

	if ns.DurableNonce == ic.Env.DurableNonce {
		return database.ErrNonceBlockhashNotExpired
	}

	ns.DurableNonce = ic.Env.DurableNonce
	ns.LamportsPerSignature = ic.Env.LamportsPerSignature

	data, err := ns.Encode()
	if err != nil {
		return err
	}
	account.Data = data

	return nil
}
