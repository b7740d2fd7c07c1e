package bank

import (
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/sysvar"
)

// initSysvars creates every sysvar account of the genesis bank.
func (b *Bank) initSysvars() error {
	if err := b.updateSysvar(database.SysvarRentID, sysvar.NewRent(b.rentCollector.Rent)); err != nil {
		return err
	}

	if err := b.updateSysvar(database.SysvarEpochScheduleID, b.epochSchedule); err != nil {
		return err
	}

	b.updateClock(0)
	b.updateFees()
	b.updateRecentBlockhashes()
	b.updateStakeHistory(0)

	if err := b.updateSysvar(database.SysvarSlotHashesID, sysvar.SlotHashes{}); err != nil {
		return err
	}

	if err := b.updateSysvar(database.SysvarSlotHistoryID, sysvar.NewSlotHistory()); err != nil {
		return err
	}

	return nil
}

// updateSysvar stores the new value of the sysvar. The capitalization
// follows any change of the sysvar balance.
func (b *Bank) updateSysvar(id database.Pubkey, v any) error {
	old, exists := b.GetAccount(id)

	account, err := sysvar.Update(old, exists, v, b.rentCollector.Rent)
	if err != nil {
		return fmt.Errorf("sysvar %s: %w", id, err)
	}

	b.adjustCapitalization(old.Lamports, account.Lamports)
	b.storeAccounts([]database.KeyedAccount{{Key: id, Account: account}})

	return nil
}

// mustUpdateSysvar stores the sysvar or panics. Encoding the fixed sysvar
// types only fails when the binary is broken.
func (b *Bank) mustUpdateSysvar(id database.Pubkey, v any) {
	if err := b.updateSysvar(id, v); err != nil {
		panic(fmt.Sprintf("bank: slot %d: %s", b.slot, err))
	}
}

// readSysvar decodes the current value of the sysvar.
func readSysvar[T any](b *Bank, id database.Pubkey) (T, bool) {
	var zero T

	account, exists := b.GetAccount(id)
	if !exists {
		return zero, false
	}

	v, err := sysvar.Decode[T](account.Data)
	if err != nil {
		b.evHandler("bank: slot[%d]: sysvar[%s]: ERROR: %s", b.slot, id, err)
		return zero, false
	}

	return v, true
}

// =============================================================================

// Clock returns the clock as of this bank.
func (b *Bank) Clock() sysvar.Clock {
	return sysvar.Clock{
		Slot:                b.slot,
		EpochStartTimestamp: b.epochStartTimestamp(),
		Epoch:               b.epoch,
		LeaderScheduleEpoch: b.epochSchedule.GetLeaderScheduleEpoch(b.slot),
		UnixTimestamp:       b.unixTimestamp(b.slot),
	}
}

// unixTimestamp projects the time of the slot from the genesis creation
// time and the target slot duration.
func (b *Bank) unixTimestamp(slot uint64) uint64 {
	elapsed := time.Duration(slot) * b.slotDuration / time.Second
	ts := b.genesisCreationTime + int64(elapsed)
	if ts < 0 {
		return 0
	}

	return uint64(ts)
}

func (b *Bank) epochStartTimestamp() uint64 {
	return b.unixTimestamp(b.epochSchedule.GetFirstSlotInEpoch(b.epoch))
}

func (b *Bank) updateClock(parentEpoch uint64) {
	clock := b.Clock()

	// The epoch start time is only moved at an epoch boundary.
	if b.slot != 0 && parentEpoch == b.epoch {
		if prev, exists := readSysvar[sysvar.Clock](b, database.SysvarClockID); exists {
			clock.EpochStartTimestamp = prev.EpochStartTimestamp
		}
	}

	b.mustUpdateSysvar(database.SysvarClockID, clock)
}

func (b *Bank) updateFees() {
	b.mustUpdateSysvar(database.SysvarFeesID, sysvar.Fees{LamportsPerSignature: b.feeRateGovernor.LamportsPerSignature})
}

func (b *Bank) updateRecentBlockhashes() {
	recent := sysvar.RecentBlockhashes(b.blockhashQueue.Recent(sysvar.MaxRecentBlockhashEntries))
	b.mustUpdateSysvar(database.SysvarRecentBlockhashesID, recent)
}

func (b *Bank) updateSlotHashes() {
	hashes, _ := readSysvar[sysvar.SlotHashes](b, database.SysvarSlotHashesID)
	b.mustUpdateSysvar(database.SysvarSlotHashesID, hashes.Add(b.parentSlot, b.parentHash))
}

func (b *Bank) updateSlotHistory() {
	history, exists := readSysvar[sysvar.SlotHistory](b, database.SysvarSlotHistoryID)
	if !exists {
		history = sysvar.NewSlotHistory()
	}
	history.Add(b.slot)

	b.mustUpdateSysvar(database.SysvarSlotHistoryID, history)
}

// updateStakeHistory records the cluster stake of the parent epoch once the
// bank is in a new epoch.
func (b *Bank) updateStakeHistory(parentEpoch uint64) {
	if b.slot != 0 && parentEpoch == b.epoch {
		return
	}

	b.mustUpdateSysvar(database.SysvarStakeHistoryID, b.stakesCache.History())
}
