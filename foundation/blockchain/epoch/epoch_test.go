package epoch_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/stretchr/testify/require"
)

func TestScheduleWithoutWarmup(t *testing.T) {
	s := epoch.NewSchedule(100, false)

	require.Equal(t, uint64(0), s.GetEpoch(0))
	require.Equal(t, uint64(0), s.GetEpoch(99))
	require.Equal(t, uint64(1), s.GetEpoch(100))

	e, idx := s.GetEpochAndSlotIndex(250)
	require.Equal(t, uint64(2), e)
	require.Equal(t, uint64(50), idx)

	require.Equal(t, uint64(300), s.GetFirstSlotInEpoch(3))
	require.Equal(t, uint64(399), s.GetLastSlotInEpoch(3))
	require.Equal(t, uint64(1), s.GetLeaderScheduleEpoch(0))
}

func TestScheduleWithWarmup(t *testing.T) {
	s := epoch.NewSchedule(256, true)

	require.Equal(t, uint64(3), s.FirstNormalEpoch)
	require.Equal(t, uint64(224), s.FirstNormalSlot)

	// 32, 64, 128 slot epochs followed by 256 slot epochs.
	require.Equal(t, uint64(32), s.GetSlotsInEpoch(0))
	require.Equal(t, uint64(64), s.GetSlotsInEpoch(1))
	require.Equal(t, uint64(128), s.GetSlotsInEpoch(2))
	require.Equal(t, uint64(256), s.GetSlotsInEpoch(3))

	require.Equal(t, uint64(0), s.GetFirstSlotInEpoch(0))
	require.Equal(t, uint64(32), s.GetFirstSlotInEpoch(1))
	require.Equal(t, uint64(96), s.GetFirstSlotInEpoch(2))
	require.Equal(t, uint64(224), s.GetFirstSlotInEpoch(3))
	require.Equal(t, uint64(480), s.GetFirstSlotInEpoch(4))
}

func TestScheduleRoundTrip(t *testing.T) {
	for _, s := range []epoch.Schedule{
		epoch.NewSchedule(32, true),
		epoch.NewSchedule(500, true),
		epoch.NewSchedule(1000, false),
	} {
		for e := uint64(0); e < 12; e++ {
			first := s.GetFirstSlotInEpoch(e)
			last := s.GetLastSlotInEpoch(e)

			gotEpoch, idx := s.GetEpochAndSlotIndex(first)
			require.Equal(t, e, gotEpoch)
			require.Zero(t, idx)

			gotEpoch, idx = s.GetEpochAndSlotIndex(last)
			require.Equal(t, e, gotEpoch)
			require.Equal(t, s.GetSlotsInEpoch(e)-1, idx)

			if e > 0 {
				require.Equal(t, first, s.GetLastSlotInEpoch(e-1)+1, "epoch %d", e)
			}
		}
	}
}
