package state

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/inflation"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/snapshot"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_SlotLifecycle(t *testing.T) {
	keyA, pkA := newKey(t)
	pkB := database.NewPubkeyFromSeed("bob")

	g := newGenesis()
	g.Accounts[pkA] = database.Account{Lamports: 1_000}

	disk, err := snapshot.NewDisk(t.TempDir(), 0)
	require.NoError(t, err)

	t.Log("Given the need to produce a slot from the mempool.")
	{
		t.Logf("\tTest 0:\tWhen a transfer is submitted before slot 1.")
		{
			s := newState(t, newPrivateKey(t), g, memory.New(), disk)

			if s.Root().Slot() != 0 || !s.Root().IsFrozen() {
				t.Fatalf("\t%s\tTest 0:\tShould start from a frozen genesis root.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould start from a frozen genesis root.", success)

			tx := newTransfer(t, keyA, pkB, 100, s.WorkingBank().LastBlockhash())
			if err := s.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the transaction: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the transaction.", success)

			if _, err := s.NewSlot(0, 1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould create slot 1: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould create slot 1.", success)

			committed, err := s.ProcessMempool(context.Background())
			if err != nil || committed != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould commit the transaction: committed[%d] err[%v]", failed, committed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould commit the transaction.", success)

			if s.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould drain the mempool: %d", failed, s.QueryMempoolLength())
			}
			t.Logf("\t%s\tTest 0:\tShould drain the mempool.", success)

			b, err := s.FreezeWorkingBank()
			if err != nil || !b.IsFrozen() || !b.IsComplete() {
				t.Fatalf("\t%s\tTest 0:\tShould freeze the working bank: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould freeze the working bank.", success)

			account, err := s.QueryAccount(pkB)
			if err != nil || account.Lamports != 100 {
				t.Fatalf("\t%s\tTest 0:\tShould see the transfer in the working bank: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould see the transfer in the working bank.", success)

			if _, err := s.QueryRootAccount(pkB); !errors.Is(err, ErrNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould not see the transfer in the root yet: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould not see the transfer in the root yet.", success)

			if err := s.SetRoot(1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould root slot 1: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould root slot 1.", success)

			fields, exists, err := disk.Latest()
			if err != nil || !exists || fields.Slot != 1 || fields.Hash != b.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould write the snapshot of the root: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould write the snapshot of the root.", success)

			if _, err := s.ProcessMempool(context.Background()); !errors.Is(err, ErrBankFrozen) {
				t.Fatalf("\t%s\tTest 0:\tShould not process into a frozen bank: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould not process into a frozen bank.", success)
		}
	}
}

func Test_SetRootPrunesForks(t *testing.T) {
	keyA, pkA := newKey(t)
	pkB := database.NewPubkeyFromSeed("bob")

	g := newGenesis()
	g.Accounts[pkA] = database.Account{Lamports: 1_000}

	s := newState(t, newPrivateKey(t), g, memory.New(), nil)

	b1, err := s.NewSlot(0, 1)
	require.NoError(t, err)

	b2, err := s.NewSlot(0, 2)
	require.NoError(t, err)

	_, err = b2.Transfer(300, keyA, pkB)
	require.NoError(t, err)

	_, err = s.NewSlot(1, 3)
	require.NoError(t, err)

	_, err = s.NewSlot(3, 2)
	require.ErrorIs(t, err, ErrInvalidSlot)

	_, err = s.NewSlot(9, 10)
	require.ErrorIs(t, err, ErrNotFound)

	_, stored := s.db.StoredInSlot(2, pkB)
	require.True(t, stored)

	require.NoError(t, s.SetRoot(3))

	banks := s.Banks()
	require.Len(t, banks, 1)
	require.Equal(t, uint64(3), banks[0].Slot())
	require.Same(t, banks[0], s.Root())
	require.Same(t, banks[0], s.WorkingBank())

	// The writes of the abandoned fork are gone.
	_, stored = s.db.StoredInSlot(2, pkB)
	require.False(t, stored)

	for _, slot := range []uint64{0, 1, 3} {
		require.True(t, s.db.IsRooted(slot), "slot %d", slot)
	}
	require.False(t, s.db.IsRooted(2))
	require.True(t, b1.IsFrozen())

	_, err = s.QueryBank(2)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.SetRoot(1), ErrNotFound)

	account, err := s.QueryAccount(pkA)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), account.Lamports)
}

func Test_RestoreFromSnapshot(t *testing.T) {
	keyA, pkA := newKey(t)
	pkB := database.NewPubkeyFromSeed("bob")

	g := newGenesis()
	g.Accounts[pkA] = database.Account{Lamports: 1_000}

	storage := memory.New()
	disk, err := snapshot.NewDisk(t.TempDir(), 3)
	require.NoError(t, err)

	identity := newPrivateKey(t)
	s := newState(t, identity, g, storage, disk)

	b1, err := s.NewSlot(0, 1)
	require.NoError(t, err)

	_, err = b1.Transfer(250, keyA, pkB)
	require.NoError(t, err)

	_, err = s.FreezeWorkingBank()
	require.NoError(t, err)
	require.NoError(t, s.SetRoot(1))

	restored := newState(t, identity, g, storage, disk)

	require.Equal(t, uint64(1), restored.Root().Slot())
	require.Equal(t, b1.Hash(), restored.Root().Hash())
	require.Equal(t, b1.Capitalization(), restored.Root().Capitalization())

	account, err := restored.QueryAccount(pkB)
	require.NoError(t, err)
	require.Equal(t, uint64(250), account.Lamports)

	// Both nodes produce the same next slot.
	for _, st := range []*State{s, restored} {
		_, err := st.NewSlot(1, 2)
		require.NoError(t, err)

		_, err = st.FreezeWorkingBank()
		require.NoError(t, err)
	}

	require.Equal(t, s.WorkingBank().Hash(), restored.WorkingBank().Hash())
}

func Test_SubmitTransaction(t *testing.T) {
	keyA, pkA := newKey(t)
	pkB := database.NewPubkeyFromSeed("bob")

	g := newGenesis()
	g.Accounts[pkA] = database.Account{Lamports: 1_000}

	s := newState(t, newPrivateKey(t), g, memory.New(), nil)

	stale := newTransfer(t, keyA, pkB, 10, database.HashOf([]byte("unknown")))
	require.ErrorIs(t, s.SubmitTransaction(stale), database.ErrBlockhashNotFound)

	tx := newTransfer(t, keyA, pkB, 10, s.WorkingBank().LastBlockhash())
	require.NoError(t, s.SubmitTransaction(tx))
	require.ErrorIs(t, s.SubmitTransaction(tx), mempool.ErrDuplicate)

	// A signature made over another message is rejected.
	other := newTransfer(t, keyA, pkB, 999, s.WorkingBank().LastBlockhash())
	forged := tx
	forged.Signatures = other.Signatures
	require.ErrorIs(t, s.SubmitTransaction(forged), database.ErrSignatureFailure)

	require.Equal(t, 1, s.QueryMempoolLength())
}

func Test_ValidatorVotes(t *testing.T) {
	key, identity := newKey(t)

	g := newGenesis()
	g.Validators = []genesis.Validator{{
		Identity:         identity,
		IdentityLamports: 1_000_000,
		VoteAccount:      database.NewPubkeyFromSeed("vote"),
		StakeAccount:     database.NewPubkeyFromSeed("stake"),
		Stake:            1_000_000_000,
		Commission:       10,
	}}

	s, err := New(Config{
		Identity:       key,
		Genesis:        g,
		Storage:        memory.New(),
		SelectStrategy: "price",
		EvHandler:      testEvHandler(t),
	})
	require.NoError(t, err)
	require.True(t, s.IsValidator())

	_, err = s.NewSlot(0, 1)
	require.NoError(t, err)

	_, err = s.FreezeWorkingBank()
	require.NoError(t, err)
	require.Equal(t, 1, s.QueryMempoolLength())

	b2, err := s.NewSlot(1, 2)
	require.NoError(t, err)

	committed, err := s.ProcessMempool(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, committed)

	account, exists := b2.GetAccount(database.NewPubkeyFromSeed("vote"))
	require.True(t, exists)

	vs, err := stakes.DecodeVoteState(account.Data)
	require.NoError(t, err)
	require.Equal(t, uint64(1), vs.Credits())

	other, err := New(Config{
		Identity:       newPrivateKey(t),
		Genesis:        g,
		Storage:        memory.New(),
		SelectStrategy: "price",
	})
	require.NoError(t, err)
	require.False(t, other.IsValidator())
	require.ErrorIs(t, other.Vote(other.Root()), ErrNotValidator)
}

// =============================================================================

func newGenesis() genesis.Genesis {
	g := genesis.Default()
	g.CreationTime = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	g.TicksPerSlot = 4
	g.FeeRateGovernor = fee.NewRateGovernor(0, 0, 50)
	g.Rent = rent.Rent{LamportsPerByteYear: 1, ExemptionThreshold: 2.0 / 128, BurnPercent: 50}
	g.Inflation = inflation.Disabled()
	g.EpochSchedule = epoch.NewSchedule(epoch.MinimumSlotsPerEpoch, false)

	return g
}

func newState(t *testing.T, identity *ecdsa.PrivateKey, g genesis.Genesis, storage database.Serializer, snap Snapshotter) *State {
	t.Helper()

	s, err := New(Config{
		Identity:       identity,
		Genesis:        g,
		Storage:        storage,
		Snapshot:       snap,
		SelectStrategy: "price",
		Workers:        2,
		EvHandler:      testEvHandler(t),
	})
	require.NoError(t, err)

	return s
}

func testEvHandler(t *testing.T) EventHandler {
	return func(v string, args ...any) {
		t.Log(fmt.Sprintf(v, args...))
	}
}

func newPrivateKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return key
}

func newKey(t *testing.T) (*ecdsa.PrivateKey, database.Pubkey) {
	key := newPrivateKey(t)
	return key, database.PublicKeyToPubkey(key.PublicKey)
}

func newTransfer(t *testing.T, from *ecdsa.PrivateKey, to database.Pubkey, lamports uint64, blockhash database.Hash) database.Transaction {
	t.Helper()

	payer := database.PublicKeyToPubkey(from.PublicKey)
	msg := database.NewMessage(payer, blockhash, program.Transfer(payer, to, lamports))

	tx, err := database.NewTransaction(msg, from)
	require.NoError(t, err)

	return tx
}
