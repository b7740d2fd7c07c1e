package stakes_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	node  = database.PubkeyFromPrefix(1, 0)
	voter = database.PubkeyFromPrefix(2, 0)
	stake = database.PubkeyFromPrefix(3, 0)
)

func TestWarmup(t *testing.T) {
	d := stakes.NewDelegation(voter, 100, 1)

	var history stakes.StakeHistory
	history = history.Add(1, stakes.StakeHistoryEntry{Effective: 200, Activating: 100})

	require.Zero(t, d.EffectiveStake(0, history))

	status := d.ActivatingAndDeactivating(1, history)
	require.Equal(t, stakes.ActivationStatus{Activating: 100}, status)

	// A quarter of the 200 effective lamports can activate in epoch 2.
	status = d.ActivatingAndDeactivating(2, history)
	require.Equal(t, stakes.ActivationStatus{Effective: 50, Activating: 50}, status)

	// Without history for the activation epoch the stake is fully active.
	require.Equal(t, uint64(100), d.EffectiveStake(5, nil))

	bootstrap := stakes.NewDelegation(voter, 100, stakes.BootstrapActivationEpoch)
	require.Equal(t, uint64(100), bootstrap.EffectiveStake(0, nil))
}

func TestCooldown(t *testing.T) {
	d := stakes.NewDelegation(voter, 100, stakes.BootstrapActivationEpoch)
	d.DeactivationEpoch = 3

	var history stakes.StakeHistory
	history = history.Add(3, stakes.StakeHistoryEntry{Effective: 200, Deactivating: 100})

	require.Equal(t, stakes.ActivationStatus{Effective: 100, Deactivating: 100}, d.ActivatingAndDeactivating(3, history))
	require.Equal(t, stakes.ActivationStatus{Effective: 50, Deactivating: 50}, d.ActivatingAndDeactivating(4, history))
	require.Equal(t, stakes.ActivationStatus{}, d.ActivatingAndDeactivating(4, nil))
}

func TestStakeHistory(t *testing.T) {
	var history stakes.StakeHistory
	for e := uint64(0); e < stakes.MaxStakeHistoryEntries+10; e++ {
		history = history.Add(e, stakes.StakeHistoryEntry{Effective: e})
	}

	require.Len(t, history, stakes.MaxStakeHistoryEntries)
	require.Equal(t, uint64(stakes.MaxStakeHistoryEntries+9), history[0].Epoch)

	entry, exists := history.Get(100)
	require.True(t, exists)
	require.Equal(t, uint64(100), entry.Effective)

	_, exists = history.Get(5)
	require.False(t, exists)
}

func TestCommissionSplit(t *testing.T) {
	tests := []struct {
		commission uint8
		on         uint64
		voter      uint64
		staker     uint64
		split      bool
	}{
		{commission: 0, on: 100, voter: 0, staker: 100, split: false},
		{commission: 100, on: 100, voter: 100, staker: 0, split: false},
		{commission: 200, on: 100, voter: 100, staker: 0, split: false},
		{commission: 10, on: 100, voter: 10, staker: 90, split: true},
		{commission: 50, on: 1, voter: 0, staker: 0, split: true},
	}

	for _, tt := range tests {
		vs := stakes.VoteState{Commission: tt.commission}
		voter, staker, split := vs.CommissionSplit(tt.on)
		require.Equal(t, tt.voter, voter, "commission %d", tt.commission)
		require.Equal(t, tt.staker, staker, "commission %d", tt.commission)
		require.Equal(t, tt.split, split, "commission %d", tt.commission)
	}
}

func TestPointsAndRedeem(t *testing.T) {
	vs := stakes.VoteState{NodePubkey: node, Commission: 10}
	vs.IncrementCredits(0, 10)

	ss := stakes.StakeState{Delegation: stakes.NewDelegation(voter, 100, stakes.BootstrapActivationEpoch)}

	points, observed := stakes.CalculatePoints(ss, vs, nil)
	require.Equal(t, uint64(1000), points.Uint64())
	require.Equal(t, uint64(10), observed)

	pv := stakes.PointValue{Rewards: 500, Points: uint256.NewInt(1000)}
	redeemed, got, ok := stakes.Redeem(0, ss, pv, vs, nil)
	require.True(t, ok)
	require.Equal(t, stakes.Redeemed{StakerRewards: 450, VoterRewards: 50, CreditsObserved: 10}, got)
	require.Equal(t, uint64(550), redeemed.Delegation.Stake)
	require.Equal(t, uint64(10), redeemed.CreditsObserved)

	// Nothing left to earn once the credits are observed.
	points, _ = stakes.CalculatePoints(redeemed, vs, nil)
	require.True(t, points.IsZero())

	// A split that loses a whole lamport on one side pays nothing.
	tiny := stakes.PointValue{Rewards: 1, Points: uint256.NewInt(1000)}
	vs.Commission = 50
	_, _, ok = stakes.Redeem(0, ss, tiny, vs, nil)
	require.False(t, ok)
}

func TestCache(t *testing.T) {
	vs := stakes.VoteState{NodePubkey: node}
	voteAccount, err := stakes.NewVoteAccount(10, vs)
	require.NoError(t, err)

	stakeAccount, err := stakes.NewStakeAccount(1_000, 100, node, voter, stakes.BootstrapActivationEpoch)
	require.NoError(t, err)

	c := stakes.NewCache(0)
	c.CheckAndStore(voter, voteAccount)
	c.CheckAndStore(stake, stakeAccount)
	c.CheckAndStore(database.PubkeyFromPrefix(4, 0), database.NewAccount(5, 0, database.SystemProgramID))

	require.Equal(t, uint64(10+900), c.VoteBalanceAndStaked())
	require.Equal(t, map[database.Pubkey]uint64{node: 900}, c.StakedNodes())

	clone := c.Clone()

	c.ActivateEpoch(1)
	require.Equal(t, uint64(1), c.Epoch())

	entry, exists := c.History().Get(0)
	require.True(t, exists)
	require.Equal(t, stakes.StakeHistoryEntry{Effective: 900}, entry)

	if diff := cmp.Diff(stakes.StakeHistory(nil), clone.History()); diff != "" {
		t.Fatalf("Should not change the history of the clone:\n%s", diff)
	}

	drained := stakeAccount.Clone()
	drained.Lamports = 0
	c.CheckAndStore(stake, drained)
	require.Equal(t, uint64(10), c.VoteBalanceAndStaked())
	require.Empty(t, c.StakedNodes())

	es := stakes.NewEpochStakes(clone, 1)
	require.Equal(t, uint64(900), es.TotalStake)
	require.Equal(t, uint64(900), es.NodeStake(node))
}
