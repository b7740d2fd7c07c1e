package program

import (
	"bytes"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// MessageProcessor dispatches the instructions of a message to builtin
// programs and verifies what each instruction did to its accounts.
type MessageProcessor struct {
	builtins map[database.Pubkey]Builtin
}

// NewMessageProcessor constructs a processor for the builtins.
func NewMessageProcessor(builtins ...Builtin) *MessageProcessor {
	mp := MessageProcessor{
		builtins: make(map[database.Pubkey]Builtin, len(builtins)),
	}
	for _, b := range builtins {
		mp.builtins[b.ProgramID] = b
	}

	return &mp
}

// ProcessMessage implements the Processor interface. Execution stops at the
// first instruction that fails and the error identifies that instruction.
func (mp *MessageProcessor) ProcessMessage(msg database.Message, programIndices [][]int, txCtx *TransactionContext, env Env) (ExecutionInfo, error) {
	for i, cix := range msg.Instructions {
		ixErr := func(err error) error {
			return &database.InstructionError{Index: uint8(i), Err: err}
		}

		if i >= len(programIndices) || len(programIndices[i]) == 0 {
			return ExecutionInfo{}, ixErr(database.ErrUnsupportedProgramID)
		}
		programID := txCtx.Key(programIndices[i][0])

		builtin, err := mp.resolve(programID, env.Executors)
		if err != nil {
			return ExecutionInfo{}, ixErr(err)
		}

		ic := InstructionContext{
			Tx:        txCtx,
			ProgramID: programID,
			Data:      cix.Data,
			Env:       env,
			indices:   make([]int, len(cix.Accounts)),
			signer:    make([]bool, len(cix.Accounts)),
			writable:  make([]bool, len(cix.Accounts)),
		}
		for j, ai := range cix.Accounts {
			ic.indices[j] = int(ai)
			ic.signer[j] = msg.IsSigner(int(ai))
			ic.writable[j] = msg.IsWritable(int(ai))
		}

		pre := snapshot(txCtx, ic.indices)

		txCtx.trace = append(txCtx.trace, InstructionTrace{Index: i, ProgramID: programID, StackHeight: 1})
		txCtx.Log("Program %s invoke [1]", programID)

		if err := txCtx.ConsumeUnits(builtin.ComputeCost); err != nil {
			txCtx.Log("Program %s failed: %s", programID, err)
			return ExecutionInfo{}, ixErr(err)
		}

		if err := builtin.Entrypoint(&ic); err != nil {
			txCtx.Log("Program %s failed: %s", programID, err)
			return ExecutionInfo{}, ixErr(err)
		}

		delta, err := verify(pre, &ic)
		if err != nil {
			txCtx.Log("Program %s failed: %s", programID, err)
			return ExecutionInfo{}, ixErr(err)
		}
		txCtx.accountsDataDelta += delta

		txCtx.Log("Program %s success", programID)
	}

	info := ExecutionInfo{
		UnitsConsumed:     txCtx.UnitsConsumed(),
		AccountsDataDelta: txCtx.AccountsDataDelta(),
	}

	return info, nil
}

// resolve finds the builtin for the program, going through the executor
// cache when one is provided.
func (mp *MessageProcessor) resolve(programID database.Pubkey, executors *Executors) (Builtin, error) {
	if executors != nil {
		if b, exists := executors.Get(programID); exists {
			return b, nil
		}
	}

	b, exists := mp.builtins[programID]
	if !exists {
		return Builtin{}, database.ErrUnsupportedProgramID
	}

	if executors != nil {
		executors.Put(programID, b)
	}

	return b, nil
}

// =============================================================================

type preAccount struct {
	index   int
	account database.Account
}

func snapshot(txCtx *TransactionContext, indices []int) []preAccount {
	seen := make(map[int]struct{}, len(indices))
	pre := make([]preAccount, 0, len(indices))

	for _, idx := range indices {
		if _, exists := seen[idx]; exists {
			continue
		}
		seen[idx] = struct{}{}
		pre = append(pre, preAccount{index: idx, account: txCtx.Account(idx).Clone()})
	}

	return pre
}

// verify checks the changes the program made to the instruction accounts
// and returns the change in account data size. Only the owner of an
// account may debit it or change its data, read-only accounts can't change
// at all and the instruction can't create or destroy lamports.
func verify(pre []preAccount, ic *InstructionContext) (int64, error) {
	var preTotal, postTotal uint64
	var delta int64

	for _, p := range pre {
		post := ic.Tx.Account(p.index)
		writable := ic.writableIndex(p.index)
		owned := p.account.Owner == ic.ProgramID

		if post.Owner != p.account.Owner {
			if !writable || !owned || !zeroed(p.account.Data) {
				return 0, database.ErrModifiedProgramID
			}
		}

		if post.Lamports != p.account.Lamports {
			if !writable {
				return 0, database.ErrReadonlyLamportChange
			}
			if post.Lamports < p.account.Lamports && !owned {
				return 0, database.ErrExternalLamportSpend
			}
		}

		if !bytes.Equal(post.Data, p.account.Data) {
			if !writable {
				return 0, database.ErrReadonlyDataModified
			}
			if !owned {
				return 0, database.ErrExternalDataModified
			}
		}

		if post.Executable != p.account.Executable {
			return 0, database.ErrExecutableModified
		}

		preTotal += p.account.Lamports
		postTotal += post.Lamports
		delta += int64(len(post.Data)) - int64(len(p.account.Data))
	}

	if preTotal != postTotal {
		return 0, database.ErrUnbalancedInstruction
	}

	return delta, nil
}

// writableIndex reports whether the transaction account at the index is
// writable in the instruction.
func (ic *InstructionContext) writableIndex(index int) bool {
	for i, idx := range ic.indices {
		if idx == index && ic.writable[i] {
			return true
		}
	}

	return false
}

func zeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}

	return true
}
