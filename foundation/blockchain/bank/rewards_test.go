package bank_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/feature"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/inflation"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/stretchr/testify/require"
)

func Test_EpochRewards(t *testing.T) {
	t.Log("Given the need to pay inflation rewards at the epoch boundary.")
	{
		for i, cached := range []bool{false, true} {
			t.Logf("\tTest %d:\tWhen the cached reward calculation is %t.", i, cached)
			{
				g := newGenesis()
				g.Inflation = inflation.Fixed(0.1)
				if cached {
					g.Features = []string{feature.Names[feature.CachedRewardCalculation]}
				}

				v := newValidator(t, 1_000_000_000_000_000)
				g.Validators = []genesis.Validator{v.Validator}

				b1 := bank.NewFromParent(newGenesisBank(t, g, nil), v.Identity, 1)

				msg := database.NewMessage(v.Identity, b1.LastBlockhash(), program.Vote(v.VoteAccount, v.Identity, 1))
				tx, err := database.NewTransaction(msg, v.key)
				require.NoError(t, err)

				results := b1.ProcessTransactions([]database.Transaction{tx})
				if results[0].Err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould record the vote: %s", failed, i, results[0].Err)
				}
				t.Logf("\t%s\tTest %d:\tShould record the vote.", success, i)

				b1.FillWithTicks()
				capBefore := b1.Capitalization()

				b32 := bank.NewFromParent(b1, v.Identity, 32)

				var staking, voting int64
				for _, r := range b32.Rewards() {
					switch r.Kind {
					case bank.RewardStaking:
						staking += r.Lamports
					case bank.RewardVoting:
						voting += r.Lamports
					}
				}

				if staking == 0 || voting == 0 {
					t.Fatalf("\t%s\tTest %d:\tShould pay both the staker and the voter: staking[%d] voting[%d]", failed, i, staking, voting)
				}
				t.Logf("\t%s\tTest %d:\tShould pay both the staker and the voter.", success, i)

				// The vote account takes its 10% commission.
				if diff := staking - 9*voting; diff < -9 || diff > 9 {
					t.Fatalf("\t%s\tTest %d:\tShould split by the commission: staking[%d] voting[%d]", failed, i, staking, voting)
				}
				t.Logf("\t%s\tTest %d:\tShould split by the commission.", success, i)

				// The sysvars written for the new slot can grow as well.
				if got := b32.Capitalization() - capBefore; got < uint64(staking+voting) {
					t.Fatalf("\t%s\tTest %d:\tShould grow the capitalization by the rewards: got %d, exp %d", failed, i, got, staking+voting)
				}
				t.Logf("\t%s\tTest %d:\tShould grow the capitalization by the rewards.", success, i)

				if !b32.VerifyCapitalization() {
					t.Fatalf("\t%s\tTest %d:\tShould track the capitalization.", failed, i)
				}
				t.Logf("\t%s\tTest %d:\tShould track the capitalization.", success, i)

				account, _ := b32.GetAccount(v.StakeAccount)
				ss, err := stakes.DecodeStakeState(account.Data)
				require.NoError(t, err)

				if ss.CreditsObserved != 1 || ss.Delegation.Stake != v.Stake+uint64(staking) {
					t.Fatalf("\t%s\tTest %d:\tShould update the stake state: credits[%d] stake[%d]", failed, i, ss.CreditsObserved, ss.Delegation.Stake)
				}
				t.Logf("\t%s\tTest %d:\tShould update the stake state.", success, i)
			}
		}
	}
}

func Test_NoRewardsWithoutVotes(t *testing.T) {
	g := newGenesis()
	g.Inflation = inflation.Fixed(0.1)

	v := newValidator(t, 1_000_000_000)
	g.Validators = []genesis.Validator{v.Validator}

	b32 := bank.NewFromParent(newGenesisBank(t, g, nil), collector, 32)

	require.Empty(t, b32.Rewards())
	require.True(t, b32.VerifyCapitalization())
}

func Test_FeatureActivation(t *testing.T) {
	g := newGenesis()

	b0 := newGenesisBank(t, g, nil)
	b1 := bank.NewFromParent(b0, collector, 1)

	account, err := feature.NewAccount(feature.Feature{}, g.Rent)
	require.NoError(t, err)
	b1.StoreAccount(feature.SkipRentRewrites, account)

	b2 := bank.NewFromParent(b1, collector, 2)
	require.False(t, b2.FeatureSet().IsActive(feature.SkipRentRewrites))

	b32 := bank.NewFromParent(b2, collector, 32)
	require.True(t, b32.FeatureSet().IsActive(feature.SkipRentRewrites))

	slot, _ := b32.FeatureSet().ActivatedSlot(feature.SkipRentRewrites)
	require.Equal(t, uint64(32), slot)

	stored, _ := b32.GetAccount(feature.SkipRentRewrites)
	f, err := feature.Decode(stored)
	require.NoError(t, err)
	require.Equal(t, feature.Feature{Activated: true, ActivatedAt: 32}, f)

	require.True(t, b32.VerifyCapitalization())
}
