package program

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// MaxLogBytes is the number of log bytes kept per transaction.
const MaxLogBytes = 10_000

// LogCollector keeps the log messages of a transaction up to a byte limit.
type LogCollector struct {
	messages  []string
	written   int
	limit     int
	truncated bool
}

// NewLogCollector constructs a collector that keeps up to limit bytes.
func NewLogCollector(limit int) *LogCollector {
	return &LogCollector{limit: limit}
}

// Log records the message unless the limit was reached.
func (lc *LogCollector) Log(msg string) {
	if lc.truncated {
		return
	}

	if lc.written+len(msg) > lc.limit {
		lc.messages = append(lc.messages, "Log truncated")
		lc.truncated = true
		return
	}

	lc.written += len(msg)
	lc.messages = append(lc.messages, msg)
}

// Messages returns the recorded messages.
func (lc *LogCollector) Messages() []string {
	return lc.messages
}

// =============================================================================

// ReturnData is the data a program handed back to the caller.
type ReturnData struct {
	ProgramID database.Pubkey `json:"program_id"`
	Data      []byte          `json:"data"`
}

// InstructionTrace records an instruction that was invoked.
type InstructionTrace struct {
	Index       int             `json:"index"`
	ProgramID   database.Pubkey `json:"program_id"`
	StackHeight int             `json:"stack_height"`
}

// TransactionContext holds the accounts of one transaction while it
// executes. Accounts are addressed by their index in the message.
type TransactionContext struct {
	keys              []database.Pubkey
	accounts          []database.Account
	remaining         uint64
	consumed          uint64
	logs              *LogCollector
	returnData        ReturnData
	trace             []InstructionTrace
	accountsDataDelta int64
}

// NewTransactionContext constructs the context over the loaded accounts
// with the compute unit budget.
func NewTransactionContext(accounts []database.KeyedAccount, computeUnits uint64) *TransactionContext {
	tc := TransactionContext{
		keys:      make([]database.Pubkey, len(accounts)),
		accounts:  make([]database.Account, len(accounts)),
		remaining: computeUnits,
		logs:      NewLogCollector(MaxLogBytes),
	}

	for i, ka := range accounts {
		tc.keys[i] = ka.Key
		tc.accounts[i] = ka.Account.Clone()
	}

	return &tc
}

// Len returns the number of accounts.
func (tc *TransactionContext) Len() int {
	return len(tc.keys)
}

// Key returns the key of the account at the index.
func (tc *TransactionContext) Key(i int) database.Pubkey {
	return tc.keys[i]
}

// Account returns the working copy of the account at the index.
func (tc *TransactionContext) Account(i int) *database.Account {
	return &tc.accounts[i]
}

// Accounts returns a copy of every account in message order.
func (tc *TransactionContext) Accounts() []database.KeyedAccount {
	out := make([]database.KeyedAccount, len(tc.keys))
	for i := range tc.keys {
		out[i] = database.KeyedAccount{Key: tc.keys[i], Account: tc.accounts[i].Clone()}
	}

	return out
}

// ConsumeUnits charges the compute meter.
func (tc *TransactionContext) ConsumeUnits(units uint64) error {
	if units > tc.remaining {
		tc.consumed += tc.remaining
		tc.remaining = 0
		return database.ErrComputationalBudgetExceed
	}

	tc.remaining -= units
	tc.consumed += units

	return nil
}

// UnitsConsumed returns the compute units charged so far.
func (tc *TransactionContext) UnitsConsumed() uint64 {
	return tc.consumed
}

// Log records a program log message.
func (tc *TransactionContext) Log(format string, args ...any) {
	tc.logs.Log(fmt.Sprintf(format, args...))
}

// Logs returns the log messages.
func (tc *TransactionContext) Logs() []string {
	return tc.logs.Messages()
}

// SetReturnData records the return data of the program.
func (tc *TransactionContext) SetReturnData(programID database.Pubkey, data []byte) {
	tc.returnData = ReturnData{ProgramID: programID, Data: data}
}

// ReturnData returns the data set by the last program that set any.
func (tc *TransactionContext) ReturnData() ReturnData {
	return tc.returnData
}

// Trace returns the instructions invoked.
func (tc *TransactionContext) Trace() []InstructionTrace {
	return tc.trace
}

// AccountsDataDelta returns the change in total account data size.
func (tc *TransactionContext) AccountsDataDelta() int64 {
	return tc.accountsDataDelta
}

// =============================================================================

// InstructionContext is the view a program has of the transaction while it
// processes one of its instructions.
type InstructionContext struct {
	Tx        *TransactionContext
	ProgramID database.Pubkey
	Data      []byte
	Env       Env

	indices  []int
	signer   []bool
	writable []bool
}

// NumAccounts returns the number of accounts passed to the instruction.
func (ic *InstructionContext) NumAccounts() int {
	return len(ic.indices)
}

// Account returns the key and working copy of the instruction account at
// the index.
func (ic *InstructionContext) Account(i int) (database.Pubkey, *database.Account, error) {
	if i >= len(ic.indices) {
		return database.Pubkey{}, nil, database.ErrNotEnoughAccountKeys
	}

	idx := ic.indices[i]
	return ic.Tx.Key(idx), ic.Tx.Account(idx), nil
}

// IsSigner reports whether the instruction account at the index signed the
// transaction.
func (ic *InstructionContext) IsSigner(i int) bool {
	return i < len(ic.signer) && ic.signer[i]
}

// IsWritable reports whether the instruction account at the index is write
// locked by the transaction.
func (ic *InstructionContext) IsWritable(i int) bool {
	return i < len(ic.writable) && ic.writable[i]
}

// Signed reports whether any instruction account with the key signed the
// transaction.
func (ic *InstructionContext) Signed(key database.Pubkey) bool {
	for i, idx := range ic.indices {
		if ic.signer[i] && ic.Tx.Key(idx) == key {
			return true
		}
	}

	return false
}
