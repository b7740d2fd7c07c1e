package stakes

import (
	"fmt"
	"math"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/rlp"
)

// WarmupCooldownRate is the share of the cluster effective stake that can
// activate or deactivate per epoch.
const WarmupCooldownRate = 0.25

// BootstrapActivationEpoch marks a delegation that is fully active from the
// genesis slot.
const BootstrapActivationEpoch = math.MaxUint64

// Meta holds the authorities of a stake account.
type Meta struct {
	RentExemptReserve uint64          `json:"rent_exempt_reserve"`
	Staker            database.Pubkey `json:"staker"`
	Withdrawer        database.Pubkey `json:"withdrawer"`
}

// Delegation binds stake to a vote account from the activation epoch until
// the deactivation epoch.
type Delegation struct {
	VoterPubkey       database.Pubkey `json:"voter_pubkey"`
	Stake             uint64          `json:"stake"`
	ActivationEpoch   uint64          `json:"activation_epoch"`
	DeactivationEpoch uint64          `json:"deactivation_epoch"`
}

// NewDelegation constructs a delegation that activates in the epoch.
func NewDelegation(voter database.Pubkey, stake uint64, activationEpoch uint64) Delegation {
	return Delegation{
		VoterPubkey:       voter,
		Stake:             stake,
		ActivationEpoch:   activationEpoch,
		DeactivationEpoch: math.MaxUint64,
	}
}

// IsBootstrap reports whether the delegation was active at genesis.
func (d Delegation) IsBootstrap() bool {
	return d.ActivationEpoch == BootstrapActivationEpoch
}

// StakeState is the data stored in an account owned by the stake program.
type StakeState struct {
	Meta            Meta       `json:"meta"`
	Delegation      Delegation `json:"delegation"`
	CreditsObserved uint64     `json:"credits_observed"`
}

// DecodeStakeState decodes the data of a stake account.
func DecodeStakeState(data []byte) (StakeState, error) {
	var ss StakeState
	if err := rlp.DecodeBytes(data, &ss); err != nil {
		return StakeState{}, fmt.Errorf("decode stake state: %w", err)
	}

	return ss, nil
}

// Encode returns the account data for the stake state.
func (ss StakeState) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(ss)
}

// NewStakeAccount constructs an account owned by the stake program that
// delegates its balance less the rent exempt reserve.
func NewStakeAccount(lamports uint64, rentExemptReserve uint64, authority database.Pubkey, voter database.Pubkey, activationEpoch uint64) (database.Account, error) {
	if lamports < rentExemptReserve {
		return database.Account{}, fmt.Errorf("stake account needs at least %d lamports", rentExemptReserve)
	}

	ss := StakeState{
		Meta: Meta{
			RentExemptReserve: rentExemptReserve,
			Staker:            authority,
			Withdrawer:        authority,
		},
		Delegation: NewDelegation(voter, lamports-rentExemptReserve, activationEpoch),
	}

	data, err := ss.Encode()
	if err != nil {
		return database.Account{}, err
	}

	account := database.Account{
		Lamports: lamports,
		Data:     data,
		Owner:    database.StakeProgramID,
	}

	return account, nil
}

// =============================================================================

// ActivationStatus is the stake of a delegation in one epoch.
type ActivationStatus struct {
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

// Entry converts the status into a history entry.
func (as ActivationStatus) Entry() StakeHistoryEntry {
	return StakeHistoryEntry{
		Effective:    as.Effective,
		Activating:   as.Activating,
		Deactivating: as.Deactivating,
	}
}

// EffectiveStake returns the effective stake of the delegation in the epoch.
func (d Delegation) EffectiveStake(epoch uint64, history StakeHistory) uint64 {
	return d.ActivatingAndDeactivating(epoch, history).Effective
}

// ActivatingAndDeactivating returns the activation status of the delegation
// in the target epoch. Stake warms up and cools down by at most the
// WarmupCooldownRate share of the cluster effective stake per epoch.
func (d Delegation) ActivatingAndDeactivating(target uint64, history StakeHistory) ActivationStatus {
	effective, activating := d.stakeAndActivating(target, history)

	switch {
	case target < d.DeactivationEpoch:
		return ActivationStatus{Effective: effective, Activating: activating}

	case target == d.DeactivationEpoch:
		return ActivationStatus{Effective: effective, Deactivating: effective}
	}

	prevClusterStake, exists := history.Get(d.DeactivationEpoch)
	if !exists {
		return ActivationStatus{}
	}

	prevEpoch := d.DeactivationEpoch
	currentEffective := effective

	for {
		currentEpoch := prevEpoch + 1

		if prevClusterStake.Deactivating == 0 {
			break
		}

		weight := float64(currentEffective) / float64(prevClusterStake.Deactivating)
		newlyNotEffectiveCluster := float64(prevClusterStake.Effective) * WarmupCooldownRate
		newlyNotEffective := max(uint64(weight*newlyNotEffectiveCluster), 1)

		if newlyNotEffective >= currentEffective {
			currentEffective = 0
			break
		}
		currentEffective -= newlyNotEffective

		if currentEpoch >= target {
			break
		}

		next, exists := history.Get(currentEpoch)
		if !exists {
			break
		}
		prevEpoch, prevClusterStake = currentEpoch, next
	}

	return ActivationStatus{Effective: currentEffective, Deactivating: currentEffective}
}

func (d Delegation) stakeAndActivating(target uint64, history StakeHistory) (uint64, uint64) {
	delegated := d.Stake

	switch {
	case d.IsBootstrap():
		return delegated, 0
	case d.ActivationEpoch == d.DeactivationEpoch:
		return 0, 0
	case target == d.ActivationEpoch:
		return 0, delegated
	case target < d.ActivationEpoch:
		return 0, 0
	}

	prevClusterStake, exists := history.Get(d.ActivationEpoch)
	if !exists {
		return delegated, 0
	}

	prevEpoch := d.ActivationEpoch
	var currentEffective uint64

	for {
		currentEpoch := prevEpoch + 1

		if prevClusterStake.Activating == 0 {
			break
		}

		remaining := delegated - currentEffective
		weight := float64(remaining) / float64(prevClusterStake.Activating)
		newlyEffectiveCluster := float64(prevClusterStake.Effective) * WarmupCooldownRate
		newlyEffective := max(uint64(weight*newlyEffectiveCluster), 1)

		currentEffective += newlyEffective
		if currentEffective >= delegated {
			currentEffective = delegated
			break
		}

		if currentEpoch >= target || currentEpoch >= d.DeactivationEpoch {
			break
		}

		next, exists := history.Get(currentEpoch)
		if !exists {
			break
		}
		prevEpoch, prevClusterStake = currentEpoch, next
	}

	return currentEffective, delegated - currentEffective
}
