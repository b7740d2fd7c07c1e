package bank

import (
	"errors"
	"math"
	"slices"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/holiman/uint256"
)

// Reasons a deposit can't be made. The lamports are burned instead.
var (
	errDepositInvalidOwner = errors.New("account not owned by the system program")
	errDepositOverflow     = errors.New("balance overflow")
	errDepositNotExempt    = errors.New("balance would not be rent exempt")
)

// distributeTransactionFees pays the fees of the slot to the collector less the share the
// fee governor burns.
func (b *Bank) distributeTransactionFees() {
	collected := b.collectorFees.Load()
	if collected == 0 {
		return
	}

	deposit, burned := b.feeRateGovernor.Burn(collected)

	if deposit > 0 {
		if err := b.deposit(b.collectorID, deposit, RewardFee); err != nil {
			b.evHandler("bank: collect fees: slot[%d]: collector[%s]: burned[%d]: %s", b.slot, b.collectorID, deposit, err)
			burned += deposit
		}
	}

	b.burn(burned)
}

// distributeRent pays the rent collected in the slot to the validators in
// proportion to their stake, less the share burned by the rent parameters.
// The lamports lost to rounding are paid one each to the validators with
// the most stake.
func (b *Bank) distributeRent() {
	collected := b.collectedRent.Load()
	if collected == 0 {
		return
	}

	burned, distributed := b.rentCollector.Rent.CalculateBurn(collected)

	type validator struct {
		node  database.Pubkey
		stake uint64
	}

	var validators []validator
	totalStake := new(uint256.Int)
	for node, stake := range b.stakesCache.StakedNodes() {
		validators = append(validators, validator{node: node, stake: stake})
		totalStake.AddUint64(totalStake, stake)
	}

	if distributed == 0 || totalStake.IsZero() {
		b.burn(burned + distributed)
		return
	}

	slices.SortFunc(validators, func(a, b validator) int {
		switch {
		case a.stake > b.stake:
			return -1
		case a.stake < b.stake:
			return 1
		}
		return b.node.Compare(a.node)
	})

	shares := make([]uint64, len(validators))
	var paid uint64
	for i, v := range validators {
		share := new(uint256.Int).Mul(uint256.NewInt(distributed), uint256.NewInt(v.stake))
		share.Div(share, totalStake)
		shares[i] = share.Uint64()
		paid += shares[i]
	}

	leftover := distributed - paid
	for i := 0; leftover > 0; i = (i + 1) % len(shares) {
		shares[i]++
		leftover--
	}

	for i, v := range validators {
		if shares[i] == 0 {
			continue
		}

		if err := b.deposit(v.node, shares[i], RewardRent); err != nil {
			b.evHandler("bank: distribute rent: slot[%d]: validator[%s]: burned[%d]: %s", b.slot, v.node, shares[i], err)
			burned += shares[i]
		}
	}

	b.burn(burned)
}

// deposit credits lamports to a system account. The deposit is refused when
// the account belongs to another program, the balance would overflow or
// the account would not be rent exempt afterwards.
func (b *Bank) deposit(key database.Pubkey, lamports uint64, kind RewardKind) error {
	account, _ := b.GetAccount(key)

	if account.Owner != database.SystemProgramID {
		return errDepositInvalidOwner
	}

	if account.Lamports > math.MaxUint64-lamports {
		return errDepositOverflow
	}

	old := account.Lamports
	account.Lamports += lamports

	if !b.rentCollector.Rent.IsExempt(account.Lamports, len(account.Data)) {
		return errDepositNotExempt
	}

	b.adjustCapitalization(old, account.Lamports)
	b.storeAccounts([]database.KeyedAccount{{Key: key, Account: account}})

	b.mu.Lock()
	{
		b.rewards = append(b.rewards, RewardInfo{
			Pubkey:      key,
			Kind:        kind,
			Lamports:    int64(lamports),
			PostBalance: account.Lamports,
		})
	}
	b.mu.Unlock()

	return nil
}
