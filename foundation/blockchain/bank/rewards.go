package bank

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/feature"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/ardanlabs/ledger/foundation/blockchain/workpool"
	"github.com/holiman/uint256"
)

// RewardKind identifies why an account balance changed outside of a
// transaction.
type RewardKind string

// Set of reward kinds.
const (
	RewardFee     RewardKind = "fee"
	RewardRent    RewardKind = "rent"
	RewardStaking RewardKind = "staking"
	RewardVoting  RewardKind = "voting"
)

// RewardInfo records a balance change made by the bank itself. Rent
// collected from an account is recorded with a negative amount.
type RewardInfo struct {
	Pubkey      database.Pubkey `json:"pubkey"`
	Kind        RewardKind      `json:"kind"`
	Lamports    int64           `json:"lamports"`
	PostBalance uint64          `json:"post_balance"`
	Commission  *uint8          `json:"commission,omitempty"`
}

// =============================================================================

type delegation struct {
	key     database.Pubkey
	account database.Account
	state   stakes.StakeState
}

type voteWithDelegations struct {
	key         database.Pubkey
	account     database.Account
	state       stakes.VoteState
	delegations []delegation
}

// rewardedDelegation is a delegation flattened with the vote account it
// delegates to so points can be calculated in parallel.
type rewardedDelegation struct {
	delegation
	vote *voteWithDelegations
}

// groupingResult holds the vote accounts with their delegations and the
// number of entries that were skipped because they could not be used.
type groupingResult struct {
	votes        []*voteWithDelegations
	invalidStake int
	invalidVote  int
}

// updateRewards pays the validator inflation of the epoch that ended to the
// stake accounts in proportion to the points they earned. The vote account
// of each delegation receives the commission.
func (b *Bank) updateRewards(prevEpoch uint64) {
	year := float64(b.epochSchedule.GetFirstSlotInEpoch(b.epoch)) / b.slotsPerYear
	validatorRate := b.inflation.Validator(year)
	epochDurationInYears := float64(b.epochSchedule.GetSlotsInEpoch(prevEpoch)) / b.slotsPerYear

	capitalization := b.capitalization.Load()
	pool := uint64(validatorRate * float64(capitalization) * epochDurationInYears)

	oldVoteBalanceAndStaked := b.stakesCache.VoteBalanceAndStaked()

	var grouped groupingResult
	if b.FeatureSet().IsActive(feature.CachedRewardCalculation) {
		grouped = b.groupFromCache()
	} else {
		grouped = b.groupFromStore()
	}

	if grouped.invalidStake > 0 || grouped.invalidVote > 0 {
		b.evHandler("bank: rewards: slot[%d]: epoch[%d]: invalid stake accounts[%d]: invalid vote accounts[%d]", b.slot, prevEpoch, grouped.invalidStake, grouped.invalidVote)
	}

	var delegations []rewardedDelegation
	for _, v := range grouped.votes {
		for _, d := range v.delegations {
			delegations = append(delegations, rewardedDelegation{delegation: d, vote: v})
		}
	}

	history := b.stakesCache.History()

	points := workpool.MapReduce(b.pool, delegations,
		func(_ int, rd rewardedDelegation) *uint256.Int {
			p, _ := stakes.CalculatePoints(rd.state, rd.vote.state, history)
			return p
		},
		new(uint256.Int),
		func(acc *uint256.Int, p *uint256.Int) *uint256.Int {
			return acc.Add(acc, p)
		},
	)

	if points.IsZero() {
		b.evHandler("bank: rewards: slot[%d]: epoch[%d]: no points earned: pool[%d]", b.slot, prevEpoch, pool)
		return
	}

	pv := stakes.PointValue{Rewards: pool, Points: points}

	type redemption struct {
		state    stakes.StakeState
		redeemed stakes.Redeemed
		ok       bool
	}

	redemptions, _ := workpool.Map(b.pool, delegations, func(_ int, rd rewardedDelegation) (redemption, error) {
		state, redeemed, ok := stakes.Redeem(prevEpoch, rd.state, pv, rd.vote.state, history)
		return redemption{state: state, redeemed: redeemed, ok: ok}, nil
	})

	var (
		toStore      []database.KeyedAccount
		rewards      []RewardInfo
		paid         uint64
		voterRewards = make(map[database.Pubkey]uint64)
	)

	for i, rd := range delegations {
		r := redemptions[i]
		if !r.ok {
			continue
		}

		data, err := r.state.Encode()
		if err != nil {
			b.evHandler("bank: rewards: slot[%d]: stake[%s]: ERROR: %s", b.slot, rd.key, err)
			continue
		}

		account := rd.account.Clone()
		account.Lamports += r.redeemed.StakerRewards
		account.Data = data
		toStore = append(toStore, database.KeyedAccount{Key: rd.key, Account: account})

		paid += r.redeemed.StakerRewards + r.redeemed.VoterRewards
		voterRewards[rd.vote.key] += r.redeemed.VoterRewards

		if r.redeemed.StakerRewards > 0 {
			commission := rd.vote.state.Commission
			rewards = append(rewards, RewardInfo{
				Pubkey:      rd.key,
				Kind:        RewardStaking,
				Lamports:    int64(r.redeemed.StakerRewards),
				PostBalance: account.Lamports,
				Commission:  &commission,
			})
		}
	}

	for _, v := range grouped.votes {
		reward := voterRewards[v.key]
		if reward == 0 {
			continue
		}

		account := v.account.Clone()
		account.Lamports += reward
		toStore = append(toStore, database.KeyedAccount{Key: v.key, Account: account})

		commission := v.state.Commission
		rewards = append(rewards, RewardInfo{
			Pubkey:      v.key,
			Kind:        RewardVoting,
			Lamports:    int64(reward),
			PostBalance: account.Lamports,
			Commission:  &commission,
		})
	}

	if paid > pool {
		panic(fmt.Sprintf("bank: rewards: slot %d: paid %d more than the pool %d", b.slot, paid, pool))
	}

	b.storeAccounts(toStore)
	b.capitalization.Add(paid)

	newVoteBalanceAndStaked := b.stakesCache.VoteBalanceAndStaked()
	if newVoteBalanceAndStaked-oldVoteBalanceAndStaked != paid {
		panic(fmt.Sprintf("bank: rewards: slot %d: vote balance and stake moved by %d, paid %d", b.slot, newVoteBalanceAndStaked-oldVoteBalanceAndStaked, paid))
	}

	b.mu.Lock()
	{
		b.rewards = append(b.rewards, rewards...)
	}
	b.mu.Unlock()

	b.evHandler("bank: rewards: slot[%d]: epoch[%d]: pool[%d]: paid[%d]: points[%s]: delegations[%d]", b.slot, prevEpoch, pool, paid, points.Dec(), len(delegations))
}

// groupFromStore loads every stake account known to the cache, and the
// vote account it delegates to, from the account store. Stake accounts are
// loaded and decoded on the pool, then grouped in key order.
func (b *Bank) groupFromStore() groupingResult {
	type loadedStake struct {
		account database.Account
		state   stakes.StakeState
		valid   bool
	}

	keys := sortedPubkeys(b.stakesCache.StakeAccounts())
	loaded := make([]loadedStake, len(keys))

	workpool.Each(b.pool, keys, func(i int, key database.Pubkey) {
		account, exists := b.GetAccount(key)
		if !exists || account.Owner != database.StakeProgramID {
			return
		}

		ss, err := stakes.DecodeStakeState(account.Data)
		if err != nil {
			return
		}

		loaded[i] = loadedStake{account: account, state: ss, valid: true}
	})

	var result groupingResult
	votes := make(map[database.Pubkey]*voteWithDelegations)

	for i, key := range keys {
		ls := loaded[i]
		if !ls.valid {
			result.invalidStake++
			continue
		}

		voterKey := ls.state.Delegation.VoterPubkey
		v, exists := votes[voterKey]
		if !exists {
			voteAccount, exists := b.GetAccount(voterKey)
			if !exists || voteAccount.Owner != database.VoteProgramID {
				result.invalidVote++
				continue
			}

			vs, err := stakes.DecodeVoteState(voteAccount.Data)
			if err != nil {
				result.invalidVote++
				continue
			}

			v = &voteWithDelegations{key: voterKey, account: voteAccount, state: vs}
			votes[voterKey] = v
		}

		v.delegations = append(v.delegations, delegation{key: key, account: ls.account, state: ls.state})
	}

	for _, key := range sortedPubkeys(votes) {
		result.votes = append(result.votes, votes[key])
	}

	return result
}

// groupFromCache builds the same grouping from the decoded accounts held by
// the stakes cache without reading the account store.
func (b *Bank) groupFromCache() groupingResult {
	var result groupingResult

	voteAccounts := b.stakesCache.VoteAccounts()
	votes := make(map[database.Pubkey]*voteWithDelegations)

	stakeAccounts := b.stakesCache.StakeAccounts()
	for _, key := range sortedPubkeys(stakeAccounts) {
		sa := stakeAccounts[key]

		voterKey := sa.State.Delegation.VoterPubkey
		v, exists := votes[voterKey]
		if !exists {
			sva, exists := voteAccounts[voterKey]
			if !exists {
				result.invalidVote++
				continue
			}

			v = &voteWithDelegations{key: voterKey, account: sva.Account, state: sva.State}
			votes[voterKey] = v
		}

		v.delegations = append(v.delegations, delegation{key: key, account: sa.Account, state: sa.State})
	}

	for _, key := range sortedPubkeys(votes) {
		result.votes = append(result.votes, votes[key])
	}

	return result
}

func sortedPubkeys[V any](m map[database.Pubkey]V) []database.Pubkey {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, database.Pubkey.Compare)
	return keys
}
