package rent

import (
	"fmt"
	"math"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/holiman/uint256"
)

// Cycle models used to schedule rent collection.
const (
	CycleVariable = "variable"
	CycleFixed    = "fixed"
)

// Slot timing used by the fixed cycle.
const (
	DefaultTicksPerSecond = 160
	SecondsPerDay         = 24 * 60 * 60
)

// Partition is a slice of the key space collected in one pass. It covers
// the partitions after Start up to and including End out of Count, except
// for the (0, 0, n) partition which covers partition 0.
type Partition struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Count uint64 `json:"count"`
}

// String implements the fmt.Stringer interface.
func (p Partition) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.Start, p.End, p.Count)
}

// KeyRange is an inclusive range of keys.
type KeyRange struct {
	Start database.Pubkey
	End   database.Pubkey
}

// Contains reports whether the key falls inside the range.
func (kr KeyRange) Contains(key database.Pubkey) bool {
	return key.Compare(kr.Start) >= 0 && key.Compare(kr.End) <= 0
}

// =============================================================================

// partitionWidth is the non-overflowing form of (2^64 / count).
func partitionWidth(count uint64) uint64 {
	return (math.MaxUint64-count+1)/count + 1
}

// PubkeyRangeFromPartition maps a partition to the inclusive range of keys
// it covers. Partitions are compared on the big endian prefix of the key.
// A partition (n, n, count) with n != 0 collapses to a single key and
// collects nothing in practice.
func PubkeyRangeFromPartition(p Partition) KeyRange {
	if p.Start > p.End || p.Start >= p.Count || p.End >= p.Count {
		panic(fmt.Sprintf("rent: invalid partition %s", p))
	}

	start := database.PubkeyFromPrefix(0, 0x00)
	end := database.PubkeyFromPrefix(math.MaxUint64, 0xff)

	if p.Count == 1 {
		return KeyRange{Start: start, End: end}
	}

	width := partitionWidth(p.Count)

	var startPrefix uint64
	switch {
	case p.Start == 0 && p.End == 0:
		startPrefix = 0
	case p.Start+1 == p.Count:
		startPrefix = math.MaxUint64
	default:
		startPrefix = (p.Start + 1) * width
	}

	var endPrefix uint64
	if p.End+1 == p.Count {
		endPrefix = math.MaxUint64
	} else {
		endPrefix = (p.End+1)*width - 1
	}

	startFill, endFill := byte(0x00), byte(0xff)

	if p.Start != 0 && p.Start == p.End {
		if endPrefix == math.MaxUint64 {
			startPrefix = endPrefix
			startFill = endFill
		} else {
			endPrefix = startPrefix
			endFill = startFill
		}
	}

	return KeyRange{
		Start: database.PubkeyFromPrefix(startPrefix, startFill),
		End:   database.PubkeyFromPrefix(endPrefix, endFill),
	}
}

// PartitionFromPubkey returns the lowest partition index containing the key.
// The last partition absorbs the remainder of the key space.
func PartitionFromPubkey(key database.Pubkey, count uint64) uint64 {
	if count <= 1 {
		return 0
	}

	return min(key.Prefix()/partitionWidth(count), count-1)
}

// =============================================================================

// Partitions returns the partitions to collect rent from for the slot range
// (parentSlot, slot].
func Partitions(cycle string, schedule epoch.Schedule, ticksPerSlot uint64, parentSlot uint64, slot uint64) []Partition {
	if cycle == CycleFixed {
		return FixedCyclePartitions(ticksPerSlot, parentSlot, slot)
	}

	return VariableCyclePartitions(schedule, parentSlot, slot)
}

// VariableCyclePartitions sweeps the key space once per epoch. Skipped
// slots that span an epoch boundary produce extra partitions so the end of
// the parent epoch and the start of the new epoch are still collected.
func VariableCyclePartitions(schedule epoch.Schedule, parentSlot uint64, slot uint64) []Partition {
	currentEpoch, currentSlotIndex := schedule.GetEpochAndSlotIndex(slot)
	parentEpoch, parentSlotIndex := schedule.GetEpochAndSlotIndex(parentSlot)

	var partitions []Partition

	if parentEpoch < currentEpoch {
		if slot-parentSlot > 1 {
			parentLastSlotIndex := schedule.GetSlotsInEpoch(parentEpoch) - 1
			partitions = append(partitions, Partition{
				Start: parentSlotIndex,
				End:   parentLastSlotIndex,
				Count: schedule.GetSlotsInEpoch(parentEpoch),
			})

			if currentSlotIndex > 0 {
				partitions = append(partitions, Partition{
					Start: 0,
					End:   0,
					Count: schedule.GetSlotsInEpoch(currentEpoch),
				})
			}
		}
		parentSlotIndex = 0
	}

	partitions = append(partitions, Partition{
		Start: parentSlotIndex,
		End:   currentSlotIndex,
		Count: schedule.GetSlotsInEpoch(currentEpoch),
	})

	return partitions
}

// SlotCountInTwoDays returns the length of the fixed cycle.
func SlotCountInTwoDays(ticksPerSlot uint64) uint64 {
	return 2 * DefaultTicksPerSecond * SecondsPerDay / ticksPerSlot
}

// FixedCyclePartitions sweeps the key space once every two days regardless
// of the epoch schedule.
func FixedCyclePartitions(ticksPerSlot uint64, parentSlot uint64, slot uint64) []Partition {
	count := SlotCountInTwoDays(ticksPerSlot)

	parentCycle, parentCycleIndex := parentSlot/count, parentSlot%count
	currentCycle, currentCycleIndex := slot/count, slot%count

	var partitions []Partition

	if parentCycle < currentCycle {
		if currentCycleIndex > 0 {
			partitions = append(partitions,
				Partition{Start: parentCycleIndex, End: count - 1, Count: count},
				Partition{Start: 0, End: 0, Count: count},
			)
		}
		parentCycleIndex = 0
	}

	partitions = append(partitions, Partition{Start: parentCycleIndex, End: currentCycleIndex, Count: count})

	return partitions
}

// =============================================================================

// SplitRange divides the inclusive key range into at most n contiguous
// sub-ranges of near equal width so they can be scanned in parallel.
func SplitRange(kr KeyRange, n int) []KeyRange {
	start := new(uint256.Int).SetBytes32(kr.Start[:])
	end := new(uint256.Int).SetBytes32(kr.End[:])

	if n <= 1 || start.Cmp(end) >= 0 {
		return []KeyRange{kr}
	}

	total := new(uint256.Int).Sub(end, start)
	step := new(uint256.Int).Div(total, uint256.NewInt(uint64(n)))
	step.AddUint64(step, 1)

	ranges := make([]KeyRange, 0, n)
	for i := 0; i < n; i++ {
		offset, overflow := new(uint256.Int).MulOverflow(step, uint256.NewInt(uint64(i)))
		if overflow {
			break
		}

		s, overflow := new(uint256.Int).AddOverflow(start, offset)
		if overflow || s.Cmp(end) > 0 {
			break
		}

		e, overflow := new(uint256.Int).AddOverflow(s, step)
		if overflow || i == n-1 {
			e = new(uint256.Int).Set(end)
		} else {
			e.SubUint64(e, 1)
			if e.Cmp(end) > 0 {
				e.Set(end)
			}
		}

		ranges = append(ranges, KeyRange{
			Start: database.Pubkey(s.Bytes32()),
			End:   database.Pubkey(e.Bytes32()),
		})

		if e.Cmp(end) == 0 {
			break
		}
	}

	return ranges
}
