package stakes

import (
	"maps"
	"slices"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// VoteAccount is a vote account known to the cache.
type VoteAccount struct {
	Account database.Account
	State   VoteState
}

// StakeAccount is a stake account known to the cache.
type StakeAccount struct {
	Account database.Account
	State   StakeState
}

// StakedVoteAccount is a vote account with the stake delegated to it in the
// current epoch.
type StakedVoteAccount struct {
	VoteAccount
	Stake uint64
}

// Cache is the incrementally updated view of the vote and stake accounts in
// the account store. It is updated every time a bank stores an account
// owned by the vote or stake program.
type Cache struct {
	mu            sync.RWMutex
	epoch         uint64
	voteAccounts  map[database.Pubkey]VoteAccount
	stakeAccounts map[database.Pubkey]StakeAccount
	history       StakeHistory
}

// NewCache constructs an empty cache for the epoch.
func NewCache(epoch uint64) *Cache {
	return &Cache{
		epoch:         epoch,
		voteAccounts:  make(map[database.Pubkey]VoteAccount),
		stakeAccounts: make(map[database.Pubkey]StakeAccount),
	}
}

// NewCacheWithHistory constructs an empty cache for the epoch that starts
// from a recorded stake history.
func NewCacheWithHistory(epoch uint64, history StakeHistory) *Cache {
	c := NewCache(epoch)
	c.history = slices.Clone(history)

	return c
}

// Clone returns an independent copy of the cache for a child bank.
func (c *Cache) Clone() *Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Cache{
		epoch:         c.epoch,
		voteAccounts:  maps.Clone(c.voteAccounts),
		stakeAccounts: maps.Clone(c.stakeAccounts),
		history:       slices.Clone(c.history),
	}
}

// CheckAndStore updates the cache with an account that was stored. Accounts
// not owned by the vote or stake program are ignored. Accounts that were
// drained or can't be decoded are dropped from the cache.
func (c *Cache) CheckAndStore(key database.Pubkey, account database.Account) {
	switch account.Owner {
	case database.VoteProgramID:
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.voteAccounts, key)
		if account.Lamports == 0 {
			return
		}

		vs, err := DecodeVoteState(account.Data)
		if err != nil {
			return
		}
		c.voteAccounts[key] = VoteAccount{Account: account.Clone(), State: vs}

	case database.StakeProgramID:
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.stakeAccounts, key)
		if account.Lamports == 0 {
			return
		}

		ss, err := DecodeStakeState(account.Data)
		if err != nil {
			return
		}
		c.stakeAccounts[key] = StakeAccount{Account: account.Clone(), State: ss}

	default:
		c.mu.Lock()
		defer c.mu.Unlock()

		// An account reassigned away from the programs is no longer tracked.
		delete(c.voteAccounts, key)
		delete(c.stakeAccounts, key)
	}
}

// ActivateEpoch records the stake history entry of the epoch that ended and
// moves the cache to the next epoch.
func (c *Cache) ActivateEpoch(nextEpoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entry StakeHistoryEntry
	for _, key := range sortedKeys(c.stakeAccounts) {
		status := c.stakeAccounts[key].State.Delegation.ActivatingAndDeactivating(c.epoch, c.history)
		entry = entry.Add(status.Entry())
	}

	c.history = c.history.Add(c.epoch, entry)
	c.epoch = nextEpoch
}

// Epoch returns the epoch the cache calculates stake for.
func (c *Cache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.epoch
}

// History returns the stake history.
func (c *Cache) History() StakeHistory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.history)
}

// VoteAccounts returns every vote account with the stake delegated to it in
// the current epoch.
func (c *Cache) VoteAccounts() map[database.Pubkey]StakedVoteAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[database.Pubkey]StakedVoteAccount, len(c.voteAccounts))
	for key, va := range c.voteAccounts {
		out[key] = StakedVoteAccount{VoteAccount: va}
	}

	for _, sa := range c.stakeAccounts {
		d := sa.State.Delegation
		sva, exists := out[d.VoterPubkey]
		if !exists {
			continue
		}
		sva.Stake += d.EffectiveStake(c.epoch, c.history)
		out[d.VoterPubkey] = sva
	}

	return out
}

// StakeAccounts returns a copy of the stake accounts in the cache.
func (c *Cache) StakeAccounts() map[database.Pubkey]StakeAccount {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.stakeAccounts)
}

// StakedNodes returns the stake delegated to each validator identity.
func (c *Cache) StakedNodes() map[database.Pubkey]uint64 {
	out := make(map[database.Pubkey]uint64)
	for _, sva := range c.VoteAccounts() {
		if sva.Stake == 0 {
			continue
		}
		out[sva.State.NodePubkey] += sva.Stake
	}

	return out
}

// VoteBalanceAndStaked returns the lamports held by vote accounts plus the
// lamports delegated by stake accounts.
func (c *Cache) VoteBalanceAndStaked() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total uint64
	for _, va := range c.voteAccounts {
		total += va.Account.Lamports
	}
	for _, sa := range c.stakeAccounts {
		total += sa.State.Delegation.Stake
	}

	return total
}

// =============================================================================

func sortedKeys[V any](m map[database.Pubkey]V) []database.Pubkey {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, database.Pubkey.Compare)
	return keys
}
