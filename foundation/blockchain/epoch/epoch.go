// Package epoch maps slots to epochs. Epochs can start short and double in
// length during a warmup period until they reach the configured size.
package epoch

import (
	"math/bits"
)

// MinimumSlotsPerEpoch is the length of the first epoch when warmup is
// enabled.
const MinimumSlotsPerEpoch = 32

// DefaultSlotsPerEpoch is the epoch length used when none is configured.
const DefaultSlotsPerEpoch = 432_000

// Schedule describes how slots are grouped into epochs.
type Schedule struct {
	SlotsPerEpoch            uint64 `json:"slots_per_epoch"`
	LeaderScheduleSlotOffset uint64 `json:"leader_schedule_slot_offset"`
	Warmup                   bool   `json:"warmup"`
	FirstNormalEpoch         uint64 `json:"first_normal_epoch"`
	FirstNormalSlot          uint64 `json:"first_normal_slot"`
}

// NewSchedule constructs a schedule where the leader schedule is known one
// epoch in advance.
func NewSchedule(slotsPerEpoch uint64, warmup bool) Schedule {
	return NewCustomSchedule(slotsPerEpoch, slotsPerEpoch, warmup)
}

// NewCustomSchedule constructs a schedule with the specified leader schedule
// offset. Slots per epoch can't be lower than MinimumSlotsPerEpoch.
func NewCustomSchedule(slotsPerEpoch uint64, leaderScheduleSlotOffset uint64, warmup bool) Schedule {
	if slotsPerEpoch < MinimumSlotsPerEpoch {
		panic("epoch: slots per epoch below the minimum")
	}

	var firstNormalEpoch, firstNormalSlot uint64
	if warmup {
		nextPow2 := nextPowerOfTwo(slotsPerEpoch)
		log2 := uint64(bits.TrailingZeros64(nextPow2))
		firstNormalEpoch = log2 - uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch))
		firstNormalSlot = (nextPow2 - MinimumSlotsPerEpoch)
	}

	return Schedule{
		SlotsPerEpoch:            slotsPerEpoch,
		LeaderScheduleSlotOffset: leaderScheduleSlotOffset,
		Warmup:                   warmup,
		FirstNormalEpoch:         firstNormalEpoch,
		FirstNormalSlot:          firstNormalSlot,
	}
}

// GetSlotsInEpoch returns the number of slots in the epoch.
func (s Schedule) GetSlotsInEpoch(epoch uint64) uint64 {
	if epoch < s.FirstNormalEpoch {
		return 1 << (epoch + uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch)))
	}

	return s.SlotsPerEpoch
}

// GetEpoch returns the epoch that contains the slot.
func (s Schedule) GetEpoch(slot uint64) uint64 {
	epoch, _ := s.GetEpochAndSlotIndex(slot)
	return epoch
}

// GetEpochAndSlotIndex returns the epoch that contains the slot and the
// offset of the slot inside that epoch.
func (s Schedule) GetEpochAndSlotIndex(slot uint64) (uint64, uint64) {
	if slot < s.FirstNormalSlot {
		minLog2 := uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch))
		epoch := uint64(bits.TrailingZeros64(nextPowerOfTwo(slot+MinimumSlotsPerEpoch+1))) - minLog2 - 1
		epochLen := uint64(1) << (epoch + minLog2)

		return epoch, slot - (epochLen - MinimumSlotsPerEpoch)
	}

	normalSlotIndex := slot - s.FirstNormalSlot
	normalEpochIndex := normalSlotIndex / s.SlotsPerEpoch

	return s.FirstNormalEpoch + normalEpochIndex, normalSlotIndex % s.SlotsPerEpoch
}

// GetFirstSlotInEpoch returns the first slot of the epoch.
func (s Schedule) GetFirstSlotInEpoch(epoch uint64) uint64 {
	if epoch <= s.FirstNormalEpoch {
		return ((uint64(1) << epoch) - 1) * MinimumSlotsPerEpoch
	}

	return (epoch-s.FirstNormalEpoch)*s.SlotsPerEpoch + s.FirstNormalSlot
}

// GetLastSlotInEpoch returns the last slot of the epoch.
func (s Schedule) GetLastSlotInEpoch(epoch uint64) uint64 {
	return s.GetFirstSlotInEpoch(epoch) + s.GetSlotsInEpoch(epoch) - 1
}

// GetLeaderScheduleEpoch returns the epoch whose leader schedule is
// generated at the slot.
func (s Schedule) GetLeaderScheduleEpoch(slot uint64) uint64 {
	if slot < s.FirstNormalSlot {
		epoch, _ := s.GetEpochAndSlotIndex(slot)
		return epoch + 1
	}

	newSlotsSinceFirstNormalSlot := slot - s.FirstNormalSlot
	newFirstNormalLeaderScheduleSlot := newSlotsSinceFirstNormalSlot + s.LeaderScheduleSlotOffset
	newEpochsSinceFirstNormalLeaderSchedule := newFirstNormalLeaderScheduleSlot / s.SlotsPerEpoch

	return s.FirstNormalEpoch + newEpochsSinceFirstNormalLeaderSchedule
}

// =============================================================================

func nextPowerOfTwo(v uint64) uint64 {
	if v <= 1 {
		return 1
	}

	return 1 << (64 - bits.LeadingZeros64(v-1))
}
