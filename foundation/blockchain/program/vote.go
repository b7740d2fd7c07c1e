package program

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/ethereum/go-ethereum/rlp"
)

// VoteInstruction is the instruction data of the vote program. A vote
// earns the vote account one credit in the current epoch.
type VoteInstruction struct {
	Slot uint64
}

// Vote records a vote of the validator identity for the slot.
func Vote(voteAccount database.Pubkey, node database.Pubkey, slot uint64) database.Instruction {
	data, err := rlp.EncodeToBytes(VoteInstruction{Slot: slot})
	if err != nil {
		panic(err)
	}

	return database.Instruction{
		ProgramID: database.VoteProgramID,
		Accounts: []database.AccountMeta{
			{Pubkey: voteAccount, IsWritable: true},
			{Pubkey: node, IsSigner: true},
		},
		Data: data,
	}
}

func processVoteInstruction(ic *InstructionContext) error {
	var vi VoteInstruction
	if err := rlp.DecodeBytes(ic.Data, &vi); err != nil {
		return fmt.Errorf("%w: %s", database.ErrInvalidInstructionData, err)
	}

	_, account, err := ic.Account(0)
	if err != nil {
		return err
	}

	if account.Owner != database.VoteProgramID {
		return database.ErrInvalidAccountOwner
	}

	if vi.Slot > ic.Env.Clock.Slot {
		return database.ErrInvalidArgument
	}

	vs, err := stakes.DecodeVoteState(account.Data)
	if err != nil {
		return fmt.Errorf("%w: %s", database.ErrInvalidAccountData, err)
	}

	if !ic.Signed(vs.NodePubkey) {
		return database.ErrMissingRequiredSignature
	}

	vs.IncrementCredits(ic.Env.Clock.Epoch, 1)

	data, err := vs.Encode()
	if err != nil {
		return err
	}
	account.Data = data

	return nil
}
