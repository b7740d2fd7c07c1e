package disk_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage/disk"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDisk(t *testing.T) {
	dir := t.TempDir()

	d, err := disk.New(dir)
	require.NoError(t, err)

	_, exists, err := d.Root()
	require.NoError(t, err)
	require.False(t, exists)

	alice := database.NewPubkeyFromSeed("alice")
	bob := database.NewPubkeyFromSeed("bob")

	err = d.Write(1, []database.KeyedAccount{
		{Key: alice, Account: database.Account{Lamports: 10, Data: []byte{1, 2}}},
		{Key: bob, Account: database.Account{Lamports: 20}},
	})
	require.NoError(t, err)

	err = d.Write(2, []database.KeyedAccount{
		{Key: bob, Account: database.Account{}},
	})
	require.NoError(t, err)

	// A new value over the same folder sees the persisted state.
	d, err = disk.New(dir)
	require.NoError(t, err)

	root, exists, err := d.Root()
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, uint64(2), root)

	var got []database.KeyedAccount
	iter := d.ForEach()
	for ka, err := iter.Next(); !iter.Done(); ka, err = iter.Next() {
		require.NoError(t, err)
		got = append(got, ka)
	}

	exp := []database.KeyedAccount{
		{Key: alice, Account: database.Account{Lamports: 10, Data: []byte{1, 2}}},
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("accounts mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, d.Reset())

	_, exists, err = d.Root()
	require.NoError(t, err)
	require.False(t, exists)

	iter = d.ForEach()
	_, err = iter.Next()
	require.NoError(t, err)
	require.True(t, iter.Done())
}
