package snapshot_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/snapshot"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func Test_Disk(t *testing.T) {
	disk, err := snapshot.NewDisk(t.TempDir(), 2)
	require.NoError(t, err)

	_, exists, err := disk.Latest()
	require.NoError(t, err)
	require.False(t, exists)

	var last bank.Fields
	for slot := uint64(1); slot <= 4; slot++ {
		last = bank.Fields{
			Slot:           slot,
			ParentSlot:     slot - 1,
			Hash:           database.HashOf([]byte{byte(slot)}),
			Ancestors:      []uint64{slot},
			Capitalization: 1_000 * slot,
			Features:       map[database.Pubkey]uint64{database.NewPubkeyFromSeed("f"): 0},
		}
		require.NoError(t, disk.Write(last))
	}

	slots, err := disk.Slots()
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 4}, slots)

	got, exists, err := disk.Latest()
	require.NoError(t, err)
	require.True(t, exists)

	if diff := cmp.Diff(last, got); diff != "" {
		t.Fatalf("latest snapshot mismatch:\n%s", diff)
	}

	_, err = disk.Read(1)
	require.ErrorIs(t, err, snapshot.ErrNotFound)

	require.NoError(t, disk.Reset())

	slots, err = disk.Slots()
	require.NoError(t, err)
	require.Empty(t, slots)
}
