// Package program executes the instructions of a message against the
// accounts loaded for a transaction. Only builtin programs are supported.
package program

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/feature"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/sysvar"
)

//go:generate mockgen -typed -package=program -destination=./mocks.go -source=./program.go

// Env is the view of the bank available to programs while a message is
// executed.
type Env struct {
	Clock                sysvar.Clock
	Rent                 rent.Rent
	DurableNonce         database.Hash
	LamportsPerSignature uint64
	Features             *feature.Set
	Executors            *Executors
}

// ExecutionInfo is what a successfully processed message consumed.
type ExecutionInfo struct {
	UnitsConsumed     uint64
	AccountsDataDelta int64
}

// Processor executes every instruction of a message. The program indices
// hold, per instruction, the transaction context index of the program
// account followed by the indices of its loaders.
type Processor interface {
	ProcessMessage(msg database.Message, programIndices [][]int, txCtx *TransactionContext, env Env) (ExecutionInfo, error)
}

// Entrypoint executes one instruction.
type Entrypoint func(ic *InstructionContext) error

// Builtin is a program compiled into the node.
type Builtin struct {
	Name        string
	ProgramID   database.Pubkey
	ComputeCost uint64
	Entrypoint  Entrypoint
}

// Builtins returns the programs every bank loads.
func Builtins() []Builtin {
	return []Builtin{
		{
			Name:        "system_program",
			ProgramID:   database.SystemProgramID,
			ComputeCost: 150,
			Entrypoint:  processSystemInstruction,
		},
		{
			Name:        "vote_program",
			ProgramID:   database.VoteProgramID,
			ComputeCost: 2_100,
			Entrypoint:  processVoteInstruction,
		},
		{
			Name:        "compute_budget_program",
			ProgramID:   database.ComputeBudgetProgramID,
			ComputeCost: 150,
			Entrypoint:  func(*InstructionContext) error { return nil },
		},
		{
			Name:        "secp256k1_program",
			ProgramID:   database.Secp256k1ProgramID,
			ComputeCost: 0,
			Entrypoint:  func(*InstructionContext) error { return nil },
		},
	}
}

// BuiltinAccount returns the account a builtin program is stored in.
func BuiltinAccount(name string) database.Account {
	return database.Account{
		Lamports:   1,
		Data:       []byte(name),
		Owner:      database.NativeLoaderID,
		Executable: true,
	}
}
