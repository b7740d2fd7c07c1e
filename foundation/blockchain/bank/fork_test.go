package bank_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage/memory"
	"github.com/stretchr/testify/require"
)

type destroyCounter struct {
	slots []uint64
}

func (dc *destroyCounter) OnDestroy(b *bank.Bank) {
	dc.slots = append(dc.slots, b.Slot())
}

// =============================================================================

func Test_Forks(t *testing.T) {
	keyA, pkA := newKey(t)
	pkB := database.NewPubkeyFromSeed("bob")
	pkC := database.NewPubkeyFromSeed("carol")

	t.Log("Given the need to run two forks from the same parent.")
	{
		t.Logf("\tTest 0:\tWhen slot 1 and slot 2 both build on the genesis bank.")
		{
			g := newGenesis()
			g.Accounts[pkA] = database.Account{Lamports: 100}

			b0 := newGenesisBank(t, g, nil)
			fork1 := bank.NewFromParent(b0, collector, 1)
			fork2 := bank.NewFromParent(b0, collector, 2)

			if _, err := fork1.Transfer(10, keyA, pkB); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould transfer on fork 1: %s", failed, err)
			}
			if _, err := fork2.Transfer(30, keyA, pkC); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould transfer on fork 2: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould transfer on both forks.", success)

			if fork1.GetBalance(pkC) != 0 || fork2.GetBalance(pkB) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould not see the writes of the other fork.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not see the writes of the other fork.", success)

			if fork1.GetBalance(pkA) != 90 || fork2.GetBalance(pkA) != 70 {
				t.Fatalf("\t%s\tTest 0:\tShould keep separate balances: %d %d", failed, fork1.GetBalance(pkA), fork2.GetBalance(pkA))
			}
			t.Logf("\t%s\tTest 0:\tShould keep separate balances.", success)

			fork1.Freeze()
			fork2.Freeze()

			if fork1.Hash() == fork2.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould produce different hashes.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould produce different hashes.", success)

			if fork1.ParentHash() != b0.Hash() || fork2.ParentHash() != b0.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould link both forks to the parent hash.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould link both forks to the parent hash.", success)
		}
	}
}

func Test_FreezeIsIdempotent(t *testing.T) {
	g := newGenesis()
	b1 := bank.NewFromParent(newGenesisBank(t, g, nil), collector, 1)

	b1.FillWithTicks()
	require.True(t, b1.IsComplete())

	b1.Freeze()
	hash := b1.Hash()
	capitalization := b1.Capitalization()

	b1.Freeze()
	require.Equal(t, hash, b1.Hash())
	require.Equal(t, capitalization, b1.Capitalization())

	b1.VerifyHash()

	require.Panics(t, func() {
		b1.StoreAccount(database.NewPubkeyFromSeed("late"), database.Account{Lamports: 1})
	})
}

func Test_Squash(t *testing.T) {
	keyA, pkA := newKey(t)
	pkB := database.NewPubkeyFromSeed("bob")

	g := newGenesis()
	g.Accounts[pkA] = database.Account{Lamports: 100}

	db, err := database.New(memory.New(), nil)
	require.NoError(t, err)

	b0, err := bank.NewFromGenesis(bank.Config{DB: db}, g, collector)
	require.NoError(t, err)

	b1 := bank.NewFromParent(b0, collector, 1)
	_, err = b1.Transfer(10, keyA, pkB)
	require.NoError(t, err)

	b2 := bank.NewFromParent(b1, collector, 2)

	require.NoError(t, b2.Squash())
	require.True(t, b2.IsFrozen())
	require.Nil(t, b2.Parent())

	for _, slot := range []uint64{0, 1, 2} {
		require.True(t, db.IsRooted(slot), "slot %d", slot)
	}
	require.Equal(t, uint64(2), db.MaxRoot())

	// Rooted state is visible from any ancestor set.
	account, exists := db.Load(database.NewAncestors(), pkB)
	require.True(t, exists)
	require.Equal(t, uint64(10), account.Lamports)

	require.NoError(t, b2.Squash())
	require.True(t, b2.VerifyCapitalization())

	b3 := bank.NewFromParent(b2, collector, 3)
	require.Equal(t, uint64(90), b3.GetBalance(pkA))
}

func Test_SquashBoundsAncestors(t *testing.T) {
	keyA, pkA := newKey(t)
	pkB := database.NewPubkeyFromSeed("bob")

	g := newGenesis()
	g.Accounts[pkA] = database.Account{Lamports: 1_000}

	db, err := database.New(memory.New(), nil)
	require.NoError(t, err)

	b, err := bank.NewFromGenesis(bank.Config{DB: db}, g, collector)
	require.NoError(t, err)

	const slots = 200

	for slot := uint64(1); slot <= slots; slot++ {
		b = bank.NewFromParent(b, collector, slot)
		if slot == 1 {
			_, err := b.Transfer(10, keyA, pkB)
			require.NoError(t, err)
		}
		require.NoError(t, b.Squash())
	}

	require.Nil(t, b.Parent())
	require.Len(t, b.Ancestors(), 1)
	require.True(t, b.Ancestors().Contains(slots))
	require.Equal(t, []uint64{slots}, b.Fields().Ancestors)

	child := bank.NewFromParent(b, collector, slots+1)
	require.Len(t, child.Ancestors(), 2)
	require.Equal(t, uint64(10), child.GetBalance(pkB))
	require.Equal(t, uint64(990), child.GetBalance(pkA))
}

func Test_CapitalizationMismatchPanics(t *testing.T) {
	db, err := database.New(memory.New(), nil)
	require.NoError(t, err)

	b0, err := bank.NewFromGenesis(bank.Config{DB: db}, newGenesis(), collector)
	require.NoError(t, err)

	b1 := bank.NewFromParent(b0, collector, 1)
	require.NotPanics(t, b1.MustVerifyCapitalization)

	// Lamports written behind the bank's back are not tracked.
	db.StoreBatch(1, []database.KeyedAccount{{
		Key:     database.NewPubkeyFromSeed("minted"),
		Account: database.Account{Lamports: 7, Owner: database.SystemProgramID},
	}})

	require.False(t, b1.VerifyCapitalization())
	require.Panics(t, b1.MustVerifyCapitalization)
}

func Test_Destroy(t *testing.T) {
	dc := destroyCounter{}

	db, err := database.New(memory.New(), nil)
	require.NoError(t, err)

	b0, err := bank.NewFromGenesis(bank.Config{DB: db, OnDestroy: &dc}, newGenesis(), collector)
	require.NoError(t, err)

	b1 := bank.NewFromParent(b0, collector, 1)
	b2 := bank.NewFromParent(b0, collector, 2)

	b1.Destroy()
	b1.Destroy()
	b2.Destroy()

	require.Equal(t, []uint64{1, 2}, dc.slots)
}

func Test_HardForks(t *testing.T) {
	hf := bank.NewHardForks()
	hf.Register(10)
	hf.Register(5)
	hf.Register(10)

	require.Equal(t, []bank.HardFork{{Slot: 5, Count: 1}, {Slot: 10, Count: 2}}, hf.Iter())

	require.Nil(t, hf.HashData(4, 3))
	require.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, hf.HashData(5, 4))
	require.Equal(t, []byte{3, 0, 0, 0, 0, 0, 0, 0}, hf.HashData(12, 0))

	// The same bank state hashes differently once a hard fork applies.
	g := newGenesis()

	b := newGenesisBank(t, g, nil)
	plain := bank.NewFromParent(b, collector, 1)
	plain.Freeze()

	forked := newGenesisBank(t, g, nil)
	forked.HardForks().Register(1)
	withFork := bank.NewFromParent(forked, collector, 1)
	withFork.Freeze()

	require.Equal(t, b.Hash(), forked.Hash())
	require.NotEqual(t, plain.Hash(), withFork.Hash())
}
