// Package bank implements the checkpoint of the ledger for one slot. A bank
// is created from its parent, applies transactions against the accounts
// visible from its ancestors, collects rent and fees, distributes rewards
// at epoch boundaries and is finally frozen into a hash every replica must
// agree on.
package bank

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/blockhash"
	"github.com/ardanlabs/ledger/foundation/blockchain/cost"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/feature"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/inflation"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/ardanlabs/ledger/foundation/blockchain/statuscache"
	"github.com/ardanlabs/ledger/foundation/blockchain/workpool"
)

// MaxLeaderScheduleStakes is the number of epoch stake snapshots a bank
// keeps.
const MaxLeaderScheduleStakes = 5

// DestroyHandler is implemented by owners of banks that need to release
// resources when a bank is abandoned.
type DestroyHandler interface {
	OnDestroy(b *Bank)
}

// Config represents the collaborators a bank works with. Every bank of a
// fork tree shares them.
type Config struct {
	DB          *database.Database
	StatusCache *statuscache.Cache
	Processor   program.Processor
	Pool        *workpool.Pool
	OnDestroy   DestroyHandler
	EvHandler   func(v string, args ...any)
}

// Bank is the ledger state for one slot.
type Bank struct {
	slot                uint64
	epoch               uint64
	parentSlot          uint64
	parentHash          database.Hash
	blockHeight         uint64
	collectorID         database.Pubkey
	ticksPerSlot        uint64
	maxTickHeight       uint64
	slotDuration        time.Duration
	genesisCreationTime int64
	slotsPerYear        float64
	clusterType         string
	epochSchedule       epoch.Schedule
	inflation           inflation.Inflation
	rentCollector       rent.Collector
	feeRateGovernor     fee.RateGovernor
	feeStructure        fee.Structure

	db          *database.Database
	statusCache *statuscache.Cache
	processor   program.Processor
	pool        *workpool.Pool
	onDestroy   DestroyHandler
	evHandler   func(v string, args ...any)

	blockhashQueue *blockhash.Queue
	stakesCache    *stakes.Cache
	executors      *program.Executors
	costTracker    *cost.Tracker
	hardForks      *HardForks
	features       atomic.Pointer[feature.Set]

	mu              sync.RWMutex
	parent          *Bank
	ancestors       database.Ancestors
	hash            database.Hash
	frozen          bool
	epochStakes     map[uint64]stakes.EpochStakes
	rewards         []RewardInfo
	txLogs          []TransactionLog
	skippedRewrites map[database.Pubkey]database.Hash

	freezeMu sync.Mutex

	capitalization   atomic.Uint64
	transactionCount atomic.Uint64
	signatureCount   atomic.Uint64
	tickHeight       atomic.Uint64
	collectorFees    atomic.Uint64
	collectedRent    atomic.Uint64
	burned           atomic.Uint64
	accountsDataLen  atomic.Int64
	isDelta          atomic.Bool
	rentCollected    atomic.Bool
	destroyed        atomic.Bool
}

// NewFromGenesis constructs the bank for slot 0 from the genesis file.
// Every genesis account, the builtin programs and the sysvars are stored
// and the genesis hash becomes the first blockhash.
func NewFromGenesis(cfg Config, gen genesis.Genesis, collectorID database.Pubkey) (*Bank, error) {
	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("validate genesis: %w", err)
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

	b := Bank{
		slot:                0,
		epoch:               0,
		collectorID:         collectorID,
		ticksPerSlot:        gen.TicksPerSlot,
		maxTickHeight:       gen.TicksPerSlot,
		slotDuration:        gen.TargetTickDuration * time.Duration(gen.TicksPerSlot),
		genesisCreationTime: gen.CreationTime.Unix(),
		slotsPerYear:        gen.SlotsPerYear(),
		clusterType:         gen.ClusterType,
		epochSchedule:       gen.EpochSchedule,
		inflation:           gen.Inflation,
		rentCollector:       rent.NewCollector(gen.Rent, 0, gen.EpochSchedule, gen.SlotsPerYear()),
		feeRateGovernor:     gen.FeeRateGovernor,
		feeStructure:        gen.FeeStructure,

		db:          cfg.DB,
		statusCache: statusCache,
		processor:   processor,
		pool:        pool,
		onDestroy:   cfg.OnDestroy,
		evHandler:   ev,

		blockhashQueue:  blockhash.New(blockhash.MaxRecentBlockhashes),
		stakesCache:     stakes.NewCache(0),
		executors:       program.NewExecutors(program.MaxCachedExecutors),
		costTracker:     cost.NewDefaultTracker(),
		hardForks:       NewHardForks(),
		ancestors:       database.NewAncestors(0),
		epochStakes:     make(map[uint64]stakes.EpochStakes),
		skippedRewrites: make(map[database.Pubkey]database.Hash),
	}

	features := feature.NewSet()
	for _, name := range gen.Features {
		id, err := feature.ByName(name)
		if err != nil {
			return nil, err
		}
		features = features.Activate(id, 0)
	}
	b.features.Store(features)

	accounts, err := gen.AllAccounts()
	if err != nil {
		return nil, fmt.Errorf("genesis accounts: %w", err)
	}

	for _, builtin := range program.Builtins() {
		accounts = append(accounts, database.KeyedAccount{Key: builtin.ProgramID, Account: program.BuiltinAccount(builtin.Name)})
	}

	for id := range features.Active() {
		account, err := feature.NewAccount(feature.Feature{Activated: true}, gen.Rent)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, database.KeyedAccount{Key: id, Account: account})
	}

	slices.SortFunc(accounts, func(a, b database.KeyedAccount) int {
		return a.Key.Compare(b.Key)
	})

	var capitalization uint64
	var dataLen int64
	for _, ka := range accounts {
		capitalization += ka.Account.Lamports
		dataLen += int64(len(ka.Account.Data))
	}
	b.capitalization.Store(capitalization)
	b.accountsDataLen.Store(dataLen)
	b.tickHeight.Store(gen.TicksPerSlot)

	b.storeAccounts(accounts)

	b.blockhashQueue.GenesisHash(gen.Hash(), b.feeRateGovernor.LamportsPerSignature, b.genesisCreationTime)

	for e := uint64(0); e <= b.epochSchedule.GetLeaderScheduleEpoch(0); e++ {
		b.epochStakes[e] = stakes.NewEpochStakes(b.stakesCache, e)
	}

	if err := b.initSysvars(); err != nil {
		return nil, fmt.Errorf("genesis sysvars: %w", err)
	}

	ev("bank: genesis: accounts[%d]: capitalization[%d]: hash[%s]", len(accounts), capitalization, gen.Hash())

	return &b, nil
}

// NewFromParent constructs the bank for the slot as a child of the parent.
// The parent is frozen as a side effect. Crossing an epoch boundary
// activates pending features, snapshots the stakes and pays the rewards of
// the epoch that ended.
func NewFromParent(parent *Bank, collectorID database.Pubkey, slot uint64) *Bank {
	if slot <= parent.slot {
		panic(fmt.Sprintf("bank: new from parent: slot %d must be greater than parent slot %d", slot, parent.slot))
	}

	parent.Freeze()

	epochNum := parent.epochSchedule.GetEpoch(slot)

	b := Bank{
		slot:                slot,
		epoch:               epochNum,
		parentSlot:          parent.slot,
		parentHash:          parent.Hash(),
		blockHeight:         parent.blockHeight + 1,
		collectorID:         collectorID,
		ticksPerSlot:        parent.ticksPerSlot,
		maxTickHeight:       (slot + 1) * parent.ticksPerSlot,
		slotDuration:        parent.slotDuration,
		genesisCreationTime: parent.genesisCreationTime,
		slotsPerYear:        parent.slotsPerYear,
		clusterType:         parent.clusterType,
		epochSchedule:       parent.epochSchedule,
		inflation:           parent.inflation,
		rentCollector:       parent.rentCollector.CloneWithEpoch(epochNum),
		feeRateGovernor:     parent.feeRateGovernor.NewDerived(parent.signatureCount.Load()),
		feeStructure:        parent.feeStructure,

		db:          parent.db,
		statusCache: parent.statusCache,
		processor:   parent.processor,
		pool:        parent.pool,
		onDestroy:   parent.onDestroy,
		evHandler:   parent.evHandler,

		blockhashQueue:  parent.blockhashQueue.Clone(),
		stakesCache:     parent.stakesCache.Clone(),
		executors:       parent.executors.Clone(),
		costTracker:     cost.NewDefaultTracker(),
		hardForks:       parent.hardForks,
		parent:          parent,
		skippedRewrites: make(map[database.Pubkey]database.Hash),
	}

	b.features.Store(parent.FeatureSet())

	parent.mu.RLock()
	{
		b.ancestors = make(database.Ancestors, len(parent.ancestors)+1)
		for s := range parent.ancestors {
			b.ancestors[s] = struct{}{}
		}
		b.ancestors[slot] = struct{}{}

		b.epochStakes = make(map[uint64]stakes.EpochStakes, len(parent.epochStakes))
		for e, es := range parent.epochStakes {
			b.epochStakes[e] = es
		}
	}
	parent.mu.RUnlock()

	b.capitalization.Store(parent.capitalization.Load())
	b.transactionCount.Store(parent.transactionCount.Load())
	b.tickHeight.Store(parent.tickHeight.Load())
	b.accountsDataLen.Store(parent.accountsDataLen.Load())

	parentEpoch := parent.epoch
	leaderScheduleEpoch := b.epochSchedule.GetLeaderScheduleEpoch(slot)
	b.updateEpochStakes(leaderScheduleEpoch)

	if parentEpoch < epochNum {
		b.processNewEpoch(parentEpoch)
	}

	b.updateSlotHashes()
	b.updateStakeHistory(parentEpoch)
	b.updateClock(parentEpoch)
	b.updateFees()

	b.evHandler("bank: new: slot[%d]: parent[%d]: epoch[%d]: collector[%s]", slot, parent.slot, epochNum, collectorID)

	return &b
}

// processNewEpoch applies everything that happens once when the first bank
// of an epoch is created.
func (b *Bank) processNewEpoch(parentEpoch uint64) {
	b.applyFeatureActivations()
	b.stakesCache.ActivateEpoch(b.epoch)
	b.updateEpochStakes(b.epochSchedule.GetLeaderScheduleEpoch(b.slot))
	b.updateRewards(parentEpoch)

	b.evHandler("bank: new epoch: slot[%d]: epoch[%d]: capitalization[%d]", b.slot, b.epoch, b.capitalization.Load())
}

// updateEpochStakes snapshots the stakes for the leader schedule epoch when
// no snapshot exists yet.
func (b *Bank) updateEpochStakes(leaderScheduleEpoch uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.epochStakes[leaderScheduleEpoch]; exists {
		return
	}

	b.epochStakes[leaderScheduleEpoch] = stakes.NewEpochStakes(b.stakesCache, leaderScheduleEpoch)

	for e := range b.epochStakes {
		if e+MaxLeaderScheduleStakes <= leaderScheduleEpoch {
			delete(b.epochStakes, e)
		}
	}
}

// =============================================================================

// Slot returns the slot of the bank.
func (b *Bank) Slot() uint64 {
	return b.slot
}

// Epoch returns the epoch of the bank.
func (b *Bank) Epoch() uint64 {
	return b.epoch
}

// ParentSlot returns the slot of the parent bank.
func (b *Bank) ParentSlot() uint64 {
	return b.parentSlot
}

// ParentHash returns the hash of the parent bank.
func (b *Bank) ParentHash() database.Hash {
	return b.parentHash
}

// BlockHeight returns the number of banks in the chain before this one.
func (b *Bank) BlockHeight() uint64 {
	return b.blockHeight
}

// CollectorID returns the identity that collects the fees of the slot.
func (b *Bank) CollectorID() database.Pubkey {
	return b.collectorID
}

// Capitalization returns the total lamports tracked by the bank.
func (b *Bank) Capitalization() uint64 {
	return b.capitalization.Load()
}

// TransactionCount returns the number of transactions executed on the
// chain up to and including this bank.
func (b *Bank) TransactionCount() uint64 {
	return b.transactionCount.Load()
}

// SignatureCount returns the number of signatures processed in the slot.
func (b *Bank) SignatureCount() uint64 {
	return b.signatureCount.Load()
}

// TickHeight returns the number of ticks registered on the chain.
func (b *Bank) TickHeight() uint64 {
	return b.tickHeight.Load()
}

// MaxTickHeight returns the tick height the slot is complete at.
func (b *Bank) MaxTickHeight() uint64 {
	return b.maxTickHeight
}

// CollectorFees returns the fees collected in the slot so far.
func (b *Bank) CollectorFees() uint64 {
	return b.collectorFees.Load()
}

// CollectedRent returns the rent collected in the slot so far.
func (b *Bank) CollectedRent() uint64 {
	return b.collectedRent.Load()
}

// Burned returns the lamports removed from the supply in the slot.
func (b *Bank) Burned() uint64 {
	return b.burned.Load()
}

// AccountsDataLen returns the total size of account data.
func (b *Bank) AccountsDataLen() int64 {
	return b.accountsDataLen.Load()
}

// IsDelta reports whether the slot processed any transaction.
func (b *Bank) IsDelta() bool {
	return b.isDelta.Load()
}

// EpochSchedule returns the epoch schedule.
func (b *Bank) EpochSchedule() epoch.Schedule {
	return b.epochSchedule
}

// RentCollector returns the rent collector of the epoch.
func (b *Bank) RentCollector() rent.Collector {
	return b.rentCollector
}

// FeeRateGovernor returns the fee governor of the slot.
func (b *Bank) FeeRateGovernor() fee.RateGovernor {
	return b.feeRateGovernor
}

// FeeStructure returns the fee structure.
func (b *Bank) FeeStructure() fee.Structure {
	return b.feeStructure
}

// FeatureSet returns the current feature set snapshot.
func (b *Bank) FeatureSet() *feature.Set {
	return b.features.Load()
}

// StakesCache returns the stake view of the bank.
func (b *Bank) StakesCache() *stakes.Cache {
	return b.stakesCache
}

// HardForks returns the hard forks registered on the cluster.
func (b *Bank) HardForks() *HardForks {
	return b.hardForks
}

// CostTracker returns the cost tracker of the slot.
func (b *Bank) CostTracker() *cost.Tracker {
	return b.costTracker
}

// Executors returns the executor cache of the bank.
func (b *Bank) Executors() *program.Executors {
	return b.executors
}

// LastBlockhash returns the newest blockhash registered.
func (b *Bank) LastBlockhash() database.Hash {
	return b.blockhashQueue.LastHash()
}

// RecentBlockhashes returns the newest blockhashes, newest first.
func (b *Bank) RecentBlockhashes(max int) []blockhash.Entry {
	return b.blockhashQueue.Recent(max)
}

// IsBlockhashValid reports whether a transaction can reference the
// blockhash.
func (b *Bank) IsBlockhashValid(hash database.Hash) bool {
	return b.blockhashQueue.IsHashValidForAge(hash, blockhash.MaxProcessingAge)
}

// EpochStakes returns the stake snapshot for the epoch.
func (b *Bank) EpochStakes(epochNum uint64) (stakes.EpochStakes, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	es, exists := b.epochStakes[epochNum]
	return es, exists
}

// Rewards returns the rewards recorded in the slot.
func (b *Bank) Rewards() []RewardInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.rewards)
}

// TransactionLogs returns the logs of the transactions committed in the
// slot.
func (b *Bank) TransactionLogs() []TransactionLog {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.txLogs)
}

// GetAccount returns the account visible from the bank.
func (b *Bank) GetAccount(key database.Pubkey) (database.Account, bool) {
	return b.db.Load(b.Ancestors(), key)
}

// GetBalance returns the lamports of the account visible from the bank.
func (b *Bank) GetBalance(key database.Pubkey) uint64 {
	account, exists := b.GetAccount(key)
	if !exists {
		return 0
	}

	return account.Lamports
}

// StoreAccount writes the account into the slot and adjusts the
// capitalization by the change in balance.
func (b *Bank) StoreAccount(key database.Pubkey, account database.Account) {
	b.mustNotBeFrozen("store account")

	old, _ := b.GetAccount(key)
	b.adjustCapitalization(old.Lamports, account.Lamports)
	b.storeAccounts([]database.KeyedAccount{{Key: key, Account: account}})
}

// =============================================================================

// storeAccounts writes the accounts into the slot and updates the stakes
// cache. The caller is responsible for the capitalization.
func (b *Bank) storeAccounts(accounts []database.KeyedAccount) {
	if len(accounts) == 0 {
		return
	}

	b.db.StoreBatch(b.slot, accounts)

	for _, ka := range accounts {
		b.stakesCache.CheckAndStore(ka.Key, ka.Account)
	}
}

// adjustCapitalization applies the change of an account balance to the
// capitalization.
func (b *Bank) adjustCapitalization(oldLamports uint64, newLamports uint64) {
	switch {
	case newLamports > oldLamports:
		b.capitalization.Add(newLamports - oldLamports)
	case newLamports < oldLamports:
		b.capitalization.Add(^(oldLamports - newLamports - 1))
	}
}

// burn records lamports that were taken out of accounts and are not
// deposited anywhere. The capitalization already dropped when the lamports
// left the accounts.
func (b *Bank) burn(lamports uint64) {
	b.burned.Add(lamports)
}

func (b *Bank) mustNotBeFrozen(op string) {
	if b.IsFrozen() {
		panic(fmt.Sprintf("bank: %s: slot %d is frozen", op, b.slot))
	}
}
