package rent_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/stretchr/testify/require"
)

func TestRentDue(t *testing.T) {
	r := rent.Default()

	require.Equal(t, uint64(3480), r.LamportsPerByteYear)
	require.Equal(t, uint64(2*128*3480), r.MinimumBalance(0))
	require.True(t, r.IsExempt(r.MinimumBalance(10), 10))
	require.False(t, r.IsExempt(r.MinimumBalance(10)-1, 10))

	due, exempt := r.Due(100, 0, 1.0)
	require.False(t, exempt)
	require.Equal(t, uint64(128*3480), due)

	burned, distributed := r.CalculateBurn(101)
	require.Equal(t, uint64(50), burned)
	require.Equal(t, uint64(51), distributed)
}

func TestCollectFromExistingAccount(t *testing.T) {
	schedule := epoch.NewSchedule(32, false)
	r := rent.Rent{LamportsPerByteYear: 10, ExemptionThreshold: 2.0, BurnPercent: 50}

	// One year is two epochs so each epoch costs half a year of rent.
	collector := rent.NewCollector(r, 3, schedule, 64)
	key := database.PubkeyFromPrefix(1, 0)

	t.Run("paying account", func(t *testing.T) {
		account := database.NewAccount(2_000, 0, database.SystemProgramID)
		account.RentEpoch = 3

		got := collector.CollectFromExistingAccount(key, &account)
		require.Equal(t, uint64(640), got.Rent)
		require.Equal(t, uint64(2_000-640), account.Lamports)
		require.Equal(t, uint64(4), account.RentEpoch)

		again := collector.CollectFromExistingAccount(key, &account)
		require.Zero(t, again.Rent)
	})

	t.Run("exempt account", func(t *testing.T) {
		account := database.NewAccount(r.MinimumBalance(0), 0, database.SystemProgramID)

		got := collector.CollectFromExistingAccount(key, &account)
		require.Zero(t, got.Rent)
		require.Equal(t, uint64(3), account.RentEpoch)
		require.Equal(t, r.MinimumBalance(0), account.Lamports)
	})

	t.Run("reclaimed account", func(t *testing.T) {
		account := database.NewAccount(100, 16, database.SystemProgramID)
		account.RentEpoch = 3

		got := collector.CollectFromExistingAccount(key, &account)
		require.Equal(t, uint64(100), got.Rent)
		require.Equal(t, uint64(16), got.DataLenReclaimed)
		require.Zero(t, account.Lamports)
	})

	t.Run("left alone", func(t *testing.T) {
		executable := database.NewAccount(1, 0, database.NativeLoaderID)
		executable.Executable = true
		require.Zero(t, collector.CollectFromExistingAccount(key, &executable).Rent)

		incinerator := database.NewAccount(1, 0, database.SystemProgramID)
		require.Zero(t, collector.CollectFromExistingAccount(database.IncineratorID, &incinerator).Rent)

		future := database.NewAccount(1, 0, database.SystemProgramID)
		future.RentEpoch = 4
		require.Zero(t, collector.CollectFromExistingAccount(key, &future).Rent)
	})
}
