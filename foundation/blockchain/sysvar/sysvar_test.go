package sysvar_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/sysvar"
	"github.com/stretchr/testify/require"
)

func TestUpdateKeepsBalance(t *testing.T) {
	r := rent.Default()

	clock := sysvar.Clock{Slot: 7, Epoch: 1, UnixTimestamp: 1_700_000_000}
	created, err := sysvar.Update(database.Account{}, false, clock, r)
	require.NoError(t, err)
	require.Equal(t, database.SysvarOwnerID, created.Owner)
	require.Equal(t, r.MinimumBalance(len(created.Data)), created.Lamports)

	created.Lamports += 1_000
	created.RentEpoch = 3

	clock.Slot = 8
	updated, err := sysvar.Update(created, true, clock, r)
	require.NoError(t, err)
	require.Equal(t, created.Lamports, updated.Lamports)
	require.Equal(t, uint64(3), updated.RentEpoch)

	got, err := sysvar.Decode[sysvar.Clock](updated.Data)
	require.NoError(t, err)
	require.Equal(t, clock, got)
}

func TestRentRoundTrip(t *testing.T) {
	r := rent.Rent{LamportsPerByteYear: 10, ExemptionThreshold: 2.5, BurnPercent: 30}

	data, err := sysvar.Encode(sysvar.NewRent(r))
	require.NoError(t, err)

	got, err := sysvar.Decode[sysvar.Rent](data)
	require.NoError(t, err)
	require.Equal(t, r, got.Rent())
}

func TestSlotHashes(t *testing.T) {
	var sh sysvar.SlotHashes
	for slot := uint64(0); slot < sysvar.MaxSlotHashes+10; slot++ {
		sh = sh.Add(slot, database.HashOf([]byte{byte(slot)}))
	}

	require.Len(t, sh, sysvar.MaxSlotHashes)
	require.Equal(t, uint64(sysvar.MaxSlotHashes+9), sh[0].Slot)

	_, exists := sh.Get(0)
	require.False(t, exists)

	h, exists := sh.Get(100)
	require.True(t, exists)
	require.Equal(t, database.HashOf([]byte{100}), h)
}

func TestSlotHistory(t *testing.T) {
	sh := sysvar.NewSlotHistory()
	require.Equal(t, sysvar.SlotFound, sh.Check(0))

	sh.Add(2)
	sh.Add(3)

	require.Equal(t, sysvar.SlotNotFound, sh.Check(1))
	require.Equal(t, sysvar.SlotFound, sh.Check(2))
	require.Equal(t, sysvar.SlotFound, sh.Check(3))
	require.Equal(t, sysvar.SlotFuture, sh.Check(4))

	sh.Add(sysvar.MaxSlotHistoryEntries + 10)
	require.Equal(t, sysvar.SlotTooOld, sh.Check(3))
	require.Equal(t, sysvar.SlotFound, sh.Check(sysvar.MaxSlotHistoryEntries+10))
	require.Equal(t, sysvar.SlotNotFound, sh.Check(sysvar.MaxSlotHistoryEntries+9))
}
