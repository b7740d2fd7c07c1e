package program_test

import (
	"strings"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/ardanlabs/ledger/foundation/blockchain/sysvar"
	"github.com/stretchr/testify/require"
)

var (
	alice = database.NewPubkeyFromSeed("alice")
	bob   = database.NewPubkeyFromSeed("bob")
)

// execute compiles the instructions into a message and runs it against the
// accounts. Accounts not provided start out empty.
func execute(t *testing.T, mp program.Processor, env program.Env, accounts map[database.Pubkey]database.Account, feePayer database.Pubkey, ixs ...database.Instruction) (*program.TransactionContext, database.Message, error) {
	t.Helper()

	msg := database.NewMessage(feePayer, database.Hash{}, ixs...)
	require.NoError(t, msg.Sanitize())

	loaded := make([]database.KeyedAccount, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		loaded[i] = database.KeyedAccount{Key: key, Account: accounts[key]}
	}

	programIndices := make([][]int, len(msg.Instructions))
	for i, ix := range msg.Instructions {
		programIndices[i] = []int{int(ix.ProgramIDIndex)}
	}

	txCtx := program.NewTransactionContext(loaded, 200_000)
	_, err := mp.ProcessMessage(msg, programIndices, txCtx, env)

	return txCtx, msg, err
}

func balanceOf(txCtx *program.TransactionContext, key database.Pubkey) uint64 {
	for _, ka := range txCtx.Accounts() {
		if ka.Key == key {
			return ka.Account.Lamports
		}
	}
	return 0
}

func testEnv() program.Env {
	return program.Env{
		Clock:                sysvar.Clock{Slot: 10, Epoch: 2},
		Rent:                 rent.Rent{LamportsPerByteYear: 1, ExemptionThreshold: 1},
		DurableNonce:         program.DurableNonceFromBlockhash(database.HashOf([]byte("blockhash"))),
		LamportsPerSignature: 5_000,
		Executors:            program.NewExecutors(program.MaxCachedExecutors),
	}
}

func TestTransfer(t *testing.T) {
	mp := program.NewMessageProcessor(program.Builtins()...)
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 100},
	}

	txCtx, _, err := execute(t, mp, testEnv(), accounts, alice, program.Transfer(alice, bob, 10))
	require.NoError(t, err)
	require.Equal(t, uint64(90), balanceOf(txCtx, alice))
	require.Equal(t, uint64(10), balanceOf(txCtx, bob))
	require.Equal(t, uint64(150), txCtx.UnitsConsumed())
	require.Len(t, txCtx.Trace(), 1)
	require.Contains(t, txCtx.Logs()[len(txCtx.Logs())-1], "success")
}

func TestTransferInsufficientFunds(t *testing.T) {
	mp := program.NewMessageProcessor(program.Builtins()...)
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 5},
	}

	_, _, err := execute(t, mp, testEnv(), accounts, alice, program.Transfer(alice, bob, 10))
	require.ErrorIs(t, err, database.ErrInsufficientFunds)

	var ie *database.InstructionError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, uint8(0), ie.Index)
}

func TestCreateAccount(t *testing.T) {
	mp := program.NewMessageProcessor(program.Builtins()...)
	owner := database.NewPubkeyFromSeed("owner")
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 1_000},
	}

	txCtx, _, err := execute(t, mp, testEnv(), accounts, alice, program.CreateAccount(alice, bob, 300, 16, owner))
	require.NoError(t, err)

	created := txCtx.Accounts()
	var found bool
	for _, ka := range created {
		if ka.Key == bob {
			found = true
			require.Equal(t, owner, ka.Account.Owner)
			require.Len(t, ka.Account.Data, 16)
			require.Equal(t, uint64(300), ka.Account.Lamports)
		}
	}
	require.True(t, found)
	require.Equal(t, int64(16), txCtx.AccountsDataDelta())

	accounts[bob] = database.Account{Lamports: 1}
	_, _, err = execute(t, mp, testEnv(), accounts, alice, program.CreateAccount(alice, bob, 300, 16, owner))
	require.ErrorIs(t, err, database.ErrAccountAlreadyInUse)
}

func TestVerifyRejectsExternalSpend(t *testing.T) {
	thief := database.NewPubkeyFromSeed("thief")
	steal := program.Builtin{
		Name:        "thief",
		ProgramID:   thief,
		ComputeCost: 1,
		Entrypoint: func(ic *program.InstructionContext) error {
			_, from, _ := ic.Account(0)
			_, to, _ := ic.Account(1)
			from.Lamports--
			to.Lamports++
			return nil
		},
	}

	mp := program.NewMessageProcessor(append(program.Builtins(), steal)...)
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 100},
	}

	ix := database.Instruction{
		ProgramID: thief,
		Accounts: []database.AccountMeta{
			{Pubkey: alice, IsSigner: true, IsWritable: true},
			{Pubkey: bob, IsWritable: true},
		},
	}

	_, _, err := execute(t, mp, testEnv(), accounts, alice, ix)
	require.ErrorIs(t, err, database.ErrExternalLamportSpend)
}

func TestVerifyRejectsUnbalanced(t *testing.T) {
	minter := database.NewPubkeyFromSeed("minter")
	mint := program.Builtin{
		Name:      "minter",
		ProgramID: minter,
		Entrypoint: func(ic *program.InstructionContext) error {
			_, to, _ := ic.Account(0)
			to.Lamports += 1_000
			return nil
		},
	}

	mp := program.NewMessageProcessor(append(program.Builtins(), mint)...)
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 100},
	}

	ix := database.Instruction{
		ProgramID: minter,
		Accounts:  []database.AccountMeta{{Pubkey: alice, IsSigner: true, IsWritable: true}},
	}

	_, _, err := execute(t, mp, testEnv(), accounts, alice, ix)
	require.ErrorIs(t, err, database.ErrUnbalancedInstruction)
}

func TestUnsupportedProgram(t *testing.T) {
	mp := program.NewMessageProcessor(program.Builtins()...)
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 100},
	}

	ix := database.Instruction{
		ProgramID: database.NewPubkeyFromSeed("unknown"),
		Accounts:  []database.AccountMeta{{Pubkey: alice, IsSigner: true, IsWritable: true}},
	}

	_, _, err := execute(t, mp, testEnv(), accounts, alice, ix)
	require.ErrorIs(t, err, database.ErrUnsupportedProgramID)
}

func TestComputeBudgetExceeded(t *testing.T) {
	heavy := database.NewPubkeyFromSeed("heavy")
	b := program.Builtin{
		Name:        "heavy",
		ProgramID:   heavy,
		ComputeCost: 300_000,
		Entrypoint:  func(*program.InstructionContext) error { return nil },
	}

	mp := program.NewMessageProcessor(b)
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 100},
	}

	ix := database.Instruction{
		ProgramID: heavy,
		Accounts:  []database.AccountMeta{{Pubkey: alice, IsSigner: true, IsWritable: true}},
	}

	_, _, err := execute(t, mp, testEnv(), accounts, alice, ix)
	require.ErrorIs(t, err, database.ErrComputationalBudgetExceed)
}

func TestExecutorsCache(t *testing.T) {
	mp := program.NewMessageProcessor(program.Builtins()...)
	env := testEnv()
	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 100},
	}

	_, _, err := execute(t, mp, env, accounts, alice, program.Transfer(alice, bob, 1))
	require.NoError(t, err)
	_, _, err = execute(t, mp, env, accounts, alice, program.Transfer(alice, bob, 1))
	require.NoError(t, err)

	hits, misses := env.Executors.Stats()
	require.Equal(t, uint64(1), hits)
	require.Equal(t, uint64(1), misses)

	clone := env.Executors.Clone()
	require.Equal(t, 1, clone.Len())

	_, exists := clone.Get(database.SystemProgramID)
	require.True(t, exists)
}

func TestNonce(t *testing.T) {
	mp := program.NewMessageProcessor(program.Builtins()...)
	env := testEnv()
	nonce := database.NewPubkeyFromSeed("nonce")

	accounts := map[database.Pubkey]database.Account{
		alice: {Lamports: 1_000},
		nonce: {Lamports: 1_000},
	}

	txCtx, msg, err := execute(t, mp, env, accounts, alice, program.InitializeNonce(nonce, alice))
	require.NoError(t, err)

	for i, key := range msg.AccountKeys {
		accounts[key] = *txCtx.Account(i)
	}

	ns, err := program.DecodeNonce(accounts[nonce])
	require.NoError(t, err)
	require.Equal(t, alice, ns.Authority)
	require.Equal(t, env.DurableNonce, ns.DurableNonce)

	_, _, err = execute(t, mp, env, accounts, alice, program.AdvanceNonce(nonce, alice))
	require.ErrorIs(t, err, database.ErrNonceBlockhashNotExpired)

	env.DurableNonce = program.DurableNonceFromBlockhash(database.HashOf([]byte("next")))
	advance := program.AdvanceNonce(nonce, alice)
	txCtx, msg, err = execute(t, mp, env, accounts, alice, advance)
	require.NoError(t, err)

	idx, ok := program.NonceAccountIndex(msg)
	require.True(t, ok)
	require.Equal(t, nonce, msg.AccountKeys[idx])

	ns, err = program.DecodeNonce(*txCtx.Account(idx))
	require.NoError(t, err)
	require.Equal(t, env.DurableNonce, ns.DurableNonce)
}

func TestVote(t *testing.T) {
	mp := program.NewMessageProcessor(program.Builtins()...)
	node := database.NewPubkeyFromSeed("node")
	voter := database.NewPubkeyFromSeed("vote")

	vote, err := stakes.NewVoteAccount(1_000, stakes.VoteState{NodePubkey: node})
	require.NoError(t, err)

	accounts := map[database.Pubkey]database.Account{
		node:  {Lamports: 1_000},
		voter: vote,
	}

	ix := program.Vote(voter, node, 9)
	msg := database.NewMessage(node, database.Hash{}, ix)

	loaded := make([]database.KeyedAccount, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		loaded[i] = database.KeyedAccount{Key: key, Account: accounts[key]}
	}

	txCtx := program.NewTransactionContext(loaded, 200_000)
	_, err = mp.ProcessMessage(msg, [][]int{{int(msg.Instructions[0].ProgramIDIndex)}}, txCtx, testEnv())
	require.NoError(t, err)

	for i, key := range msg.AccountKeys {
		if key != voter {
			continue
		}
		vs, err := stakes.DecodeVoteState(txCtx.Account(i).Data)
		require.NoError(t, err)
		require.Equal(t, uint64(1), vs.Credits())
		require.Equal(t, uint64(2), vs.EpochCredits[0].Epoch)
	}
}

func TestLogCollectorLimit(t *testing.T) {
	lc := program.NewLogCollector(10)
	lc.Log("12345")
	lc.Log("67890")
	lc.Log("x")
	lc.Log("y")

	require.Equal(t, []string{"12345", "67890", "Log truncated"}, lc.Messages())
	require.False(t, strings.Contains(strings.Join(lc.Messages(), ""), "y"))
}
