package rent_test

import (
	"math"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestPubkeyRangeFullRange(t *testing.T) {
	kr := rent.PubkeyRangeFromPartition(rent.Partition{Start: 0, End: 0, Count: 1})

	require.Equal(t, database.PubkeyFromPrefix(0, 0x00), kr.Start)
	require.Equal(t, database.PubkeyFromPrefix(math.MaxUint64, 0xff), kr.End)
}

func TestPubkeyRangeNoopCollapse(t *testing.T) {
	kr := rent.PubkeyRangeFromPartition(rent.Partition{Start: 3, End: 3, Count: 10})
	require.Equal(t, kr.Start, kr.End)

	last := rent.PubkeyRangeFromPartition(rent.Partition{Start: 9, End: 9, Count: 10})
	require.Equal(t, last.Start, last.End)
	require.Equal(t, database.PubkeyFromPrefix(math.MaxUint64, 0xff), last.End)
}

func TestPartitionInverse(t *testing.T) {
	for _, count := range []uint64{2, 3, 7, 32, 100, 432_000} {
		for _, p := range partitionsFor(count) {
			kr := rent.PubkeyRangeFromPartition(p)
			require.True(t, kr.Start.Compare(kr.End) <= 0, "partition %s", p)

			got := rent.PartitionFromPubkey(kr.Start, count)
			require.Equal(t, expectedStartIndex(p), got, "partition %s", p)

			if p.Start == p.End && p.Start != 0 {
				continue
			}

			require.Equal(t, p.End, rent.PartitionFromPubkey(kr.End, count), "partition %s", p)
		}
	}
}

func TestPartitionsCoverKeySpace(t *testing.T) {
	const count = 16

	// Walking slot by slot through an epoch covers every partition exactly once.
	covered := make(map[uint64]int)
	covered[0]++
	for i := uint64(0); i < count-1; i++ {
		kr := rent.PubkeyRangeFromPartition(rent.Partition{Start: i, End: i + 1, Count: count})
		covered[rent.PartitionFromPubkey(kr.Start, count)]++
	}

	for i := uint64(0); i < count; i++ {
		require.Equal(t, 1, covered[i], "partition %d", i)
	}
}

func TestVariableCyclePartitions(t *testing.T) {
	schedule := epoch.NewSchedule(32, false)

	tests := []struct {
		name   string
		parent uint64
		slot   uint64
		exp    []rent.Partition
	}{
		{
			name:   "next slot",
			parent: 4,
			slot:   5,
			exp:    []rent.Partition{{Start: 4, End: 5, Count: 32}},
		},
		{
			name:   "skipped slots",
			parent: 4,
			slot:   9,
			exp:    []rent.Partition{{Start: 4, End: 9, Count: 32}},
		},
		{
			name:   "epoch boundary",
			parent: 31,
			slot:   32,
			exp:    []rent.Partition{{Start: 0, End: 0, Count: 32}},
		},
		{
			name:   "skipped epoch boundary",
			parent: 30,
			slot:   34,
			exp: []rent.Partition{
				{Start: 30, End: 31, Count: 32},
				{Start: 0, End: 0, Count: 32},
				{Start: 0, End: 2, Count: 32},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.exp, rent.Partitions(rent.CycleVariable, schedule, 64, tt.parent, tt.slot))
		})
	}
}

func TestFixedCyclePartitions(t *testing.T) {
	count := rent.SlotCountInTwoDays(64)
	require.Equal(t, uint64(432_000), count)

	got := rent.FixedCyclePartitions(64, count-2, count+1)
	exp := []rent.Partition{
		{Start: count - 2, End: count - 1, Count: count},
		{Start: 0, End: 0, Count: count},
		{Start: 0, End: 1, Count: count},
	}
	require.Equal(t, exp, got)
}

func TestSplitRange(t *testing.T) {
	for _, p := range []rent.Partition{
		{Start: 0, End: 0, Count: 1},
		{Start: 0, End: 5, Count: 10},
		{Start: 4, End: 5, Count: 432_000},
	} {
		kr := rent.PubkeyRangeFromPartition(p)

		for _, n := range []int{1, 2, 3, 8, 13} {
			parts := rent.SplitRange(kr, n)
			require.LessOrEqual(t, len(parts), n)
			require.Equal(t, kr.Start, parts[0].Start)
			require.Equal(t, kr.End, parts[len(parts)-1].End)

			for i := 1; i < len(parts); i++ {
				prevEnd := new(uint256.Int).SetBytes32(parts[i-1].End[:])
				start := new(uint256.Int).SetBytes32(parts[i].Start[:])
				require.Equal(t, prevEnd.AddUint64(prevEnd, 1), start, "partition %s split %d", p, n)
			}
		}
	}
}

// =============================================================================

func partitionsFor(count uint64) []rent.Partition {
	ps := []rent.Partition{
		{Start: 0, End: 0, Count: count},
		{Start: 0, End: 1, Count: count},
		{Start: 0, End: count - 1, Count: count},
		{Start: count - 2, End: count - 1, Count: count},
		{Start: count - 1, End: count - 1, Count: count},
	}

	if count > 2 {
		ps = append(ps,
			rent.Partition{Start: 1, End: 1, Count: count},
			rent.Partition{Start: 1, End: count / 2, Count: count},
			rent.Partition{Start: count / 2, End: count - 1, Count: count},
		)
	}

	return ps
}

func expectedStartIndex(p rent.Partition) uint64 {
	switch {
	case p.Start == 0 && p.End == 0:
		return 0
	case p.Start+1 == p.Count:
		return p.Count - 1
	default:
		return p.Start + 1
	}
}
