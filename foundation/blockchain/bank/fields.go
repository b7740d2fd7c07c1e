package bank

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/blockhash"
	"github.com/ardanlabs/ledger/foundation/blockchain/cost"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/feature"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/inflation"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/ardanlabs/ledger/foundation/blockchain/statuscache"
	"github.com/ardanlabs/ledger/foundation/blockchain/sysvar"
	"github.com/ardanlabs/ledger/foundation/blockchain/workpool"
)

// Fields is the serializable state of a frozen bank. Together with the
// rooted accounts it is enough to restore the bank on restart.
type Fields struct {
	Slot                uint64                        `json:"slot"`
	Epoch               uint64                        `json:"epoch"`
	ParentSlot          uint64                        `json:"parent_slot"`
	ParentHash          database.Hash                 `json:"parent_hash"`
	Hash                database.Hash                 `json:"hash"`
	BlockHeight         uint64                        `json:"block_height"`
	Ancestors           []uint64                      `json:"ancestors"`
	BlockhashQueue      blockhash.Snapshot            `json:"blockhash_queue"`
	HardForks           []HardFork                    `json:"hard_forks"`
	TransactionCount    uint64                        `json:"transaction_count"`
	SignatureCount      uint64                        `json:"signature_count"`
	TickHeight          uint64                        `json:"tick_height"`
	MaxTickHeight       uint64                        `json:"max_tick_height"`
	TicksPerSlot        uint64                        `json:"ticks_per_slot"`
	SlotDuration        time.Duration                 `json:"slot_duration"`
	GenesisCreationTime int64                         `json:"genesis_creation_time"`
	SlotsPerYear        float64                       `json:"slots_per_year"`
	ClusterType         string                        `json:"cluster_type"`
	Capitalization      uint64                        `json:"capitalization"`
	CollectorID         database.Pubkey               `json:"collector_id"`
	CollectorFees       uint64                        `json:"collector_fees"`
	CollectedRent       uint64                        `json:"collected_rent"`
	FeeRateGovernor     fee.RateGovernor              `json:"fee_rate_governor"`
	FeeStructure        fee.Structure                 `json:"fee_structure"`
	RentCollector       rent.Collector                `json:"rent_collector"`
	EpochSchedule       epoch.Schedule                `json:"epoch_schedule"`
	Inflation           inflation.Inflation           `json:"inflation"`
	EpochStakes         map[uint64]stakes.EpochStakes `json:"epoch_stakes"`
	IsDelta             bool                          `json:"is_delta"`
	AccountsDataLen     int64                         `json:"accounts_data_len"`
	Features            map[database.Pubkey]uint64    `json:"features"`
}

// Fields returns the serializable state of the bank.
func (b *Bank) Fields() Fields {
	b.mu.RLock()
	ancestors := slices.Sorted(maps.Keys(b.ancestors))
	epochStakes := maps.Clone(b.epochStakes)
	hash := b.hash
	b.mu.RUnlock()

	return Fields{
		Slot:                b.slot,
		Epoch:               b.epoch,
		ParentSlot:          b.parentSlot,
		ParentHash:          b.parentHash,
		Hash:                hash,
		BlockHeight:         b.blockHeight,
		Ancestors:           ancestors,
		BlockhashQueue:      b.blockhashQueue.Snapshot(),
		HardForks:           b.hardForks.Iter(),
		TransactionCount:    b.transactionCount.Load(),
		SignatureCount:      b.signatureCount.Load(),
		TickHeight:          b.tickHeight.Load(),
		MaxTickHeight:       b.maxTickHeight,
		TicksPerSlot:        b.ticksPerSlot,
		SlotDuration:        b.slotDuration,
		GenesisCreationTime: b.genesisCreationTime,
		SlotsPerYear:        b.slotsPerYear,
		ClusterType:         b.clusterType,
		Capitalization:      b.capitalization.Load(),
		CollectorID:         b.collectorID,
		CollectorFees:       b.collectorFees.Load(),
		CollectedRent:       b.collectedRent.Load(),
		FeeRateGovernor:     b.feeRateGovernor,
		FeeStructure:        b.feeStructure,
		RentCollector:       b.rentCollector,
		EpochSchedule:       b.epochSchedule,
		Inflation:           b.inflation,
		EpochStakes:         epochStakes,
		IsDelta:             b.isDelta.Load(),
		AccountsDataLen:     b.accountsDataLen.Load(),
		Features:            b.FeatureSet().Active(),
	}
}

// NewFromFields restores a frozen bank from its fields. The accounts of the
// bank must already be rooted in the database and the slot is marked as a
// root. The stakes cache is rebuilt
// by scanning the accounts.
func NewFromFields(cfg Config, f Fields) (*Bank, error) {
	if err := cfg.DB.RestoreRoot(f.Slot); err != nil {
		return nil, fmt.Errorf("restore root: %w", err)
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	statusCache := cfg.StatusCache
	if statusCache == nil {
		statusCache = statuscache.New()
	}

	processor := cfg.Processor
	if processor == nil {
		processor = program.NewMessageProcessor(program.Builtins()...)
	}

	pool := cfg.Pool
	if pool == nil {
		pool = workpool.New(0)
	}

	hardForks := NewHardForks()
	for _, hf := range f.HardForks {
		for range hf.Count {
			hardForks.Register(hf.Slot)
		}
	}

	b := Bank{
		slot:                f.Slot,
		epoch:               f.Epoch,
		parentSlot:          f.ParentSlot,
		parentHash:          f.ParentHash,
		blockHeight:         f.BlockHeight,
		collectorID:         f.CollectorID,
		ticksPerSlot:        f.TicksPerSlot,
		maxTickHeight:       f.MaxTickHeight,
		slotDuration:        f.SlotDuration,
		genesisCreationTime: f.GenesisCreationTime,
		slotsPerYear:        f.SlotsPerYear,
		clusterType:         f.ClusterType,
		epochSchedule:       f.EpochSchedule,
		inflation:           f.Inflation,
		rentCollector:       f.RentCollector,
		feeRateGovernor:     f.FeeRateGovernor,
		feeStructure:        f.FeeStructure,

		db:          cfg.DB,
		statusCache: statusCache,
		processor:   processor,
		pool:        pool,
		onDestroy:   cfg.OnDestroy,
		evHandler:   ev,

		blockhashQueue:  blockhash.FromSnapshot(f.BlockhashQueue),
		executors:       program.NewExecutors(program.MaxCachedExecutors),
		costTracker:     cost.NewDefaultTracker(),
		hardForks:       hardForks,
		ancestors:       database.NewAncestors(f.Ancestors...),
		hash:            f.Hash,
		frozen:          true,
		epochStakes:     maps.Clone(f.EpochStakes),
		skippedRewrites: make(map[database.Pubkey]database.Hash),
	}

	if b.epochStakes == nil {
		b.epochStakes = make(map[uint64]stakes.EpochStakes)
	}

	set := feature.NewSet()
	for id, slot := range f.Features {
		set = set.Activate(id, slot)
	}
	b.features.Store(set)

	b.capitalization.Store(f.Capitalization)
	b.transactionCount.Store(f.TransactionCount)
	b.signatureCount.Store(f.SignatureCount)
	b.tickHeight.Store(f.TickHeight)
	b.collectorFees.Store(f.CollectorFees)
	b.collectedRent.Store(f.CollectedRent)
	b.accountsDataLen.Store(f.AccountsDataLen)
	b.isDelta.Store(f.IsDelta)
	b.rentCollected.Store(true)

	history, _ := readSysvar[sysvar.StakeHistory](&b, database.SysvarStakeHistoryID)
	b.stakesCache = stakes.NewCacheWithHistory(f.Epoch, history)

	all := rent.PubkeyRangeFromPartition(rent.Partition{Start: 0, End: 0, Count: 1})
	for _, ka := range cfg.DB.ScanRange(b.ancestors, all.Start, all.End) {
		b.stakesCache.CheckAndStore(ka.Key, ka.Account)
	}

	if !b.VerifyCapitalization() {
		return nil, fmt.Errorf("capitalization mismatch: recorded %d, calculated %d", f.Capitalization, b.CalculateCapitalization())
	}

	ev("bank: restore: slot[%d]: hash[%s]: capitalization[%d]", f.Slot, f.Hash, f.Capitalization)

	return &b, nil
}
