// Package stakes maintains the view of vote accounts and the stake delegated
// to them, and calculates the rewards earned by delegations.
package stakes

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// MaxEpochCreditsHistory is the number of epochs of credits kept by a vote
// account.
const MaxEpochCreditsHistory = 64

// EpochCredits records the credits a vote account earned in an epoch.
// Credits is the running total at the end of the epoch and PrevCredits the
// running total at its start.
type EpochCredits struct {
	Epoch       uint64 `json:"epoch"`
	Credits     uint64 `json:"credits"`
	PrevCredits uint64 `json:"prev_credits"`
}

// VoteState is the data stored in an account owned by the vote program.
type VoteState struct {
	NodePubkey           database.Pubkey `json:"node_pubkey"`
	AuthorizedWithdrawer database.Pubkey `json:"authorized_withdrawer"`
	Commission           uint8           `json:"commission"`
	EpochCredits         []EpochCredits  `json:"epoch_credits"`
}

// DecodeVoteState decodes the data of a vote account.
func DecodeVoteState(data []byte) (VoteState, error) {
	var vs VoteState
	if err := rlp.DecodeBytes(data, &vs); err != nil {
		return VoteState{}, fmt.Errorf("decode vote state: %w", err)
	}

	return vs, nil
}

// Encode returns the account data for the vote state.
func (vs VoteState) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(vs)
}

// NewVoteAccount constructs an account owned by the vote program that holds
// the vote state.
func NewVoteAccount(lamports uint64, vs VoteState) (database.Account, error) {
	data, err := vs.Encode()
	if err != nil {
		return database.Account{}, err
	}

	account := database.Account{
		Lamports: lamports,
		Data:     data,
		Owner:    database.VoteProgramID,
	}

	return account, nil
}

// Credits returns the running total of credits earned.
func (vs VoteState) Credits() uint64 {
	if len(vs.EpochCredits) == 0 {
		return 0
	}

	return vs.EpochCredits[len(vs.EpochCredits)-1].Credits
}

// IncrementCredits adds credits earned in the epoch.
func (vs *VoteState) IncrementCredits(epoch uint64, credits uint64) {
	switch {
	case len(vs.EpochCredits) == 0:
		vs.EpochCredits = append(vs.EpochCredits, EpochCredits{Epoch: epoch})

	case epoch != vs.EpochCredits[len(vs.EpochCredits)-1].Epoch:
		last := vs.EpochCredits[len(vs.EpochCredits)-1]

		// Don't keep an entry for an epoch with no credits.
		if last.Credits != last.PrevCredits {
			vs.EpochCredits = append(vs.EpochCredits, EpochCredits{Epoch: epoch, Credits: last.Credits, PrevCredits: last.Credits})
		} else {
			vs.EpochCredits[len(vs.EpochCredits)-1].Epoch = epoch
		}

		if len(vs.EpochCredits) > MaxEpochCreditsHistory {
			vs.EpochCredits = vs.EpochCredits[1:]
		}
	}

	vs.EpochCredits[len(vs.EpochCredits)-1].Credits += credits
}

// CommissionSplit splits the amount between the vote account and the
// stakers. The split flag reports whether both sides were meant to be paid.
func (vs VoteState) CommissionSplit(on uint64) (voter uint64, staker uint64, split bool) {
	commission := min(vs.Commission, 100)

	switch commission {
	case 0:
		return 0, on, false
	case 100:
		return on, 0, false
	}

	amount := uint256.NewInt(on)
	mine := new(uint256.Int).Mul(amount, uint256.NewInt(uint64(commission)))
	mine.Div(mine, uint256.NewInt(100))

	theirs := new(uint256.Int).Mul(amount, uint256.NewInt(uint64(100-commission)))
	theirs.Div(theirs, uint256.NewInt(100))

	return mine.Uint64(), theirs.Uint64(), true
}
