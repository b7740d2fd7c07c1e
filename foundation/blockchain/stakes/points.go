package stakes

import (
	"github.com/holiman/uint256"
)

// PointValue is the reward pool of an epoch and the points it is split
// across.
type PointValue struct {
	Rewards uint64
	Points  *uint256.Int
}

// CalculatePoints returns the points earned by the stake from the credits
// of the vote account it delegates to, plus the credits it has now observed.
// Points are stake times credits per epoch and can exceed 64 bits.
func CalculatePoints(ss StakeState, vs VoteState, history StakeHistory) (*uint256.Int, uint64) {
	points := new(uint256.Int)

	creditsInStake := ss.CreditsObserved
	creditsInVote := vs.Credits()

	// The vote account was recreated so its credits were rewound.
	if creditsInVote < creditsInStake {
		return points, creditsInVote
	}

	if creditsInVote == creditsInStake {
		return points, creditsInStake
	}

	newCreditsObserved := creditsInStake

	for _, ec := range vs.EpochCredits {
		stake := uint256.NewInt(ss.Delegation.EffectiveStake(ec.Epoch, history))

		var earned uint64
		switch {
		case creditsInStake < ec.PrevCredits:
			earned = ec.Credits - ec.PrevCredits
		case creditsInStake < ec.Credits:
			earned = ec.Credits - newCreditsObserved
		}
		newCreditsObserved = max(newCreditsObserved, ec.Credits)

		earnedPoints := new(uint256.Int).Mul(stake, uint256.NewInt(earned))
		points.Add(points, earnedPoints)
	}

	return points, newCreditsObserved
}

// Redeemed is the outcome of redeeming the points of a stake account.
type Redeemed struct {
	StakerRewards   uint64
	VoterRewards    uint64
	CreditsObserved uint64
}

// CalculateRewards converts the points of the stake into lamports for the
// staker and the vote account. False is returned when nothing should be
// paid and the stake account should be left alone.
func CalculateRewards(rewardedEpoch uint64, ss StakeState, pv PointValue, vs VoteState, history StakeHistory) (Redeemed, bool) {
	points, creditsObserved := CalculatePoints(ss, vs, history)

	// Credits are still observed when there is nothing to pay.
	if pv.Rewards == 0 || ss.Delegation.ActivationEpoch == rewardedEpoch {
		return Redeemed{CreditsObserved: creditsObserved}, true
	}

	if points.IsZero() || pv.Points == nil || pv.Points.IsZero() {
		return Redeemed{}, false
	}

	rewards := new(uint256.Int).Mul(points, uint256.NewInt(pv.Rewards))
	rewards.Div(rewards, pv.Points)

	if rewards.IsZero() || !rewards.IsUint64() {
		return Redeemed{}, false
	}

	voter, staker, split := vs.CommissionSplit(rewards.Uint64())

	// Don't pay when a whole lamport is lost on one side of a split.
	if split && (voter == 0 || staker == 0) {
		return Redeemed{}, false
	}

	redeemed := Redeemed{
		StakerRewards:   staker,
		VoterRewards:    voter,
		CreditsObserved: creditsObserved,
	}

	return redeemed, true
}

// Redeem applies the rewards to the stake state. The staker rewards are
// added to the delegated stake.
func Redeem(rewardedEpoch uint64, ss StakeState, pv PointValue, vs VoteState, history StakeHistory) (StakeState, Redeemed, bool) {
	redeemed, ok := CalculateRewards(rewardedEpoch, ss, pv, vs, history)
	if !ok {
		return ss, Redeemed{}, false
	}

	ss.CreditsObserved = redeemed.CreditsObserved
	ss.Delegation.Stake += redeemed.StakerRewards

	return ss, redeemed, true
}
