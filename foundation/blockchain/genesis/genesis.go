// Package genesis maintains access to the genesis file.
package genesis

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/inflation"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
)

// Set of cluster types.
const (
	ClusterDevelopment = "development"
	ClusterTestnet     = "testnet"
	ClusterMainnet     = "mainnet"
)

// Default slot timing.
const (
	DefaultTicksPerSlot       = 64
	DefaultTargetTickDuration = time.Second / rent.DefaultTicksPerSecond
)

// SecondsPerYear is the length of a year used to convert slots to years.
const SecondsPerYear = 365.242_199 * 24.0 * 60.0 * 60.0

// Validator describes a validator funded and staked at genesis.
type Validator struct {
	Identity         database.Pubkey `json:"identity"`
	IdentityLamports uint64          `json:"identity_lamports"`
	VoteAccount      database.Pubkey `json:"vote_account"`
	StakeAccount     database.Pubkey `json:"stake_account"`
	Stake            uint64          `json:"stake"`
	Commission       uint8           `json:"commission"`
}

// Genesis represents the genesis file.
type Genesis struct {
	CreationTime       time.Time                            `json:"creation_time"`
	ClusterType        string                               `json:"cluster_type"`
	TicksPerSlot       uint64                               `json:"ticks_per_slot"`
	TargetTickDuration time.Duration                        `json:"target_tick_duration"`
	FeeRateGovernor    fee.RateGovernor                     `json:"fee_rate_governor"`
	FeeStructure       fee.Structure                        `json:"fee_structure"`
	Rent               rent.Rent                            `json:"rent"`
	Inflation          inflation.Inflation                  `json:"inflation"`
	EpochSchedule      epoch.Schedule                       `json:"epoch_schedule"`
	Accounts           map[database.Pubkey]database.Account `json:"accounts"`
	Validators         []Validator                          `json:"validators"`
	Features           []string                             `json:"features"`
}

// Default returns a development genesis with no accounts.
func Default() Genesis {
	return Genesis{
		CreationTime:       time.Now().UTC().Truncate(time.Second),
		ClusterType:        ClusterDevelopment,
		TicksPerSlot:       DefaultTicksPerSlot,
		TargetTickDuration: DefaultTargetTickDuration,
		FeeRateGovernor:    fee.DefaultRateGovernor(),
		FeeStructure:       fee.DefaultStructure(),
		Rent:               rent.Default(),
		Inflation:          inflation.Default(),
		EpochSchedule:      epoch.NewSchedule(epoch.DefaultSlotsPerEpoch, true),
		Accounts:           make(map[database.Pubkey]database.Account),
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Validate checks the parameters can produce a working chain.
func (g Genesis) Validate() error {
	if g.TicksPerSlot == 0 {
		return fmt.Errorf("ticks per slot must be greater than zero")
	}

	if g.TargetTickDuration <= 0 {
		return fmt.Errorf("target tick duration must be greater than zero")
	}

	if g.EpochSchedule.SlotsPerEpoch < epoch.MinimumSlotsPerEpoch {
		return fmt.Errorf("slots per epoch must be at least %d", epoch.MinimumSlotsPerEpoch)
	}

	switch g.ClusterType {
	case ClusterDevelopment, ClusterTestnet, ClusterMainnet:
	default:
		return fmt.Errorf("unknown cluster type %q", g.ClusterType)
	}

	return nil
}

// Hash returns the hash of the genesis content. It seeds the blockhash
// queue of the genesis bank.
func (g Genesis) Hash() database.Hash {
	data, err := json.Marshal(g)
	if err != nil {
		return database.Hash{}
	}

	return database.Hash(sha256.Sum256(data))
}

// SlotsPerYear returns the number of slots produced in a year at the
// target tick rate.
func (g Genesis) SlotsPerYear() float64 {
	ticksPerYear := SecondsPerYear * float64(time.Second) / float64(g.TargetTickDuration)
	return ticksPerYear / float64(g.TicksPerSlot)
}

// AllAccounts returns the accounts of the genesis file plus the identity,
// vote and stake accounts of every validator. Validator stake is active
// from the genesis slot.
func (g Genesis) AllAccounts() ([]database.KeyedAccount, error) {
	accounts := make([]database.KeyedAccount, 0, len(g.Accounts)+3*len(g.Validators))
	for key, account := range g.Accounts {
		accounts = append(accounts, database.KeyedAccount{Key: key, Account: account})
	}

	for _, v := range g.Validators {
		vs := stakes.VoteState{
			NodePubkey:           v.Identity,
			AuthorizedWithdrawer: v.Identity,
			Commission:           v.Commission,
		}

		// The vote state grows as credits are recorded.
		voteLamports := g.Rent.MinimumBalance(1024)
		vote, err := stakes.NewVoteAccount(voteLamports, vs)
		if err != nil {
			return nil, fmt.Errorf("validator %s: %w", v.Identity, err)
		}

		reserve := g.Rent.MinimumBalance(256)
		stake, err := stakes.NewStakeAccount(v.Stake+reserve, reserve, v.Identity, v.VoteAccount, stakes.BootstrapActivationEpoch)
		if err != nil {
			return nil, fmt.Errorf("validator %s: %w", v.Identity, err)
		}

		accounts = append(accounts,
			database.KeyedAccount{Key: v.Identity, Account: database.Account{Lamports: v.IdentityLamports}},
			database.KeyedAccount{Key: v.VoteAccount, Account: vote},
			database.KeyedAccount{Key: v.StakeAccount, Account: stake},
		)
	}

	return accounts, nil
}
