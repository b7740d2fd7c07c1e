package bank

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/feature"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/workpool"
)

// RentCycle returns how the key space is swept for rent. Development and
// test clusters with short epochs sweep it over a fixed two day cycle.
func (b *Bank) RentCycle() string {
	if b.clusterType != genesis.ClusterMainnet && b.epochSchedule.SlotsPerEpoch < rent.SlotCountInTwoDays(b.ticksPerSlot) {
		return rent.CycleFixed
	}

	return rent.CycleVariable
}

// RentCollectionPartitions returns the partitions collected by the bank.
func (b *Bank) RentCollectionPartitions() []rent.Partition {
	return rent.Partitions(b.RentCycle(), b.epochSchedule, b.ticksPerSlot, b.parentSlot, b.slot)
}

// CollectRentEagerly collects rent from every account in the partitions of
// the slot. The genesis bank collects nothing and a bank only collects
// once.
func (b *Bank) CollectRentEagerly() {
	if b.slot == 0 || !b.rentCollected.CompareAndSwap(false, true) {
		return
	}

	for _, p := range b.RentCollectionPartitions() {
		b.CollectRentInPartition(p)
	}
}

type skippedRewrite struct {
	key  database.Pubkey
	hash database.Hash
}

type partitionScan struct {
	updates   []database.KeyedAccount
	rewards   []RewardInfo
	skipped   []skippedRewrite
	oldTotal  uint64
	newTotal  uint64
	collected rent.Collected
}

// CollectRentInPartition collects rent from the accounts whose keys fall in the
// partition. The key range is split across the worker pool and scanned in
// parallel. The results are folded in key order before anything is stored.
func (b *Bank) CollectRentInPartition(p rent.Partition) {
	ancestors := b.Ancestors()
	skipRewrites := b.FeatureSet().IsActive(feature.SkipRentRewrites)

	ranges := rent.SplitRange(rent.PubkeyRangeFromPartition(p), b.pool.Size())

	scans, _ := workpool.Map(b.pool, ranges, func(_ int, kr rent.KeyRange) (partitionScan, error) {
		var ps partitionScan

		for _, ka := range b.db.ScanRange(ancestors, kr.Start, kr.End) {
			account := ka.Account.Clone()
			collected := b.rentCollector.CollectFromExistingAccount(ka.Key, &account)

			// Accounts that owe nothing and were not written in this slot
			// only contribute the hash they would have been rewritten with.
			if skipRewrites && collected.Rent == 0 {
				if _, stored := b.db.StoredInSlot(b.slot, ka.Key); !stored {
					ps.skipped = append(ps.skipped, skippedRewrite{key: ka.Key, hash: account.Hash(ka.Key)})
					continue
				}
			}

			ps.updates = append(ps.updates, database.KeyedAccount{Key: ka.Key, Account: account})
			ps.oldTotal += ka.Account.Lamports
			ps.newTotal += account.Lamports
			ps.collected = ps.collected.Add(collected)

			if collected.Rent > 0 {
				ps.rewards = append(ps.rewards, RewardInfo{
					Pubkey:      ka.Key,
					Kind:        RewardRent,
					Lamports:    -int64(collected.Rent),
					PostBalance: account.Lamports,
				})
			}
		}

		return ps, nil
	})

	var total partitionScan
	for _, ps := range scans {
		total.updates = append(total.updates, ps.updates...)
		total.rewards = append(total.rewards, ps.rewards...)
		total.skipped = append(total.skipped, ps.skipped...)
		total.oldTotal += ps.oldTotal
		total.newTotal += ps.newTotal
		total.collected = total.collected.Add(ps.collected)
	}

	b.adjustCapitalization(total.oldTotal, total.newTotal)
	b.storeAccounts(total.updates)

	b.collectedRent.Add(total.collected.Rent)
	b.accountsDataLen.Add(-int64(total.collected.DataLenReclaimed))

	b.mu.Lock()
	{
		b.rewards = append(b.rewards, total.rewards...)
		for _, sr := range total.skipped {
			b.skippedRewrites[sr.key] = sr.hash
		}
	}
	b.mu.Unlock()

	if len(total.updates) > 0 || len(total.skipped) > 0 {
		b.evHandler("bank: collect rent: slot[%d]: partition[%s]: updated[%d]: skipped[%d]: rent[%d]", b.slot, p, len(total.updates), len(total.skipped), total.collected.Rent)
	}
}
