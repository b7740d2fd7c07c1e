// Package sysvar defines the data of the accounts a bank maintains at well
// known keys so programs can read cluster state.
package sysvar

import (
	"fmt"
	"math"

	"github.com/ardanlabs/ledger/foundation/blockchain/blockhash"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/ethereum/go-ethereum/rlp"
)

// Clock is the time of the bank that last updated it.
type Clock struct {
	Slot                uint64 `json:"slot"`
	EpochStartTimestamp uint64 `json:"epoch_start_timestamp"`
	Epoch               uint64 `json:"epoch"`
	LeaderScheduleEpoch uint64 `json:"leader_schedule_epoch"`
	UnixTimestamp       uint64 `json:"unix_timestamp"`
}

// Rent holds the rent parameters. The exemption threshold is kept as the
// bits of the float since the encoding has no floating point support.
type Rent struct {
	LamportsPerByteYear    uint64 `json:"lamports_per_byte_year"`
	ExemptionThresholdBits uint64 `json:"exemption_threshold_bits"`
	BurnPercent            uint8  `json:"burn_percent"`
}

// NewRent converts rent parameters.
func NewRent(r rent.Rent) Rent {
	return Rent{
		LamportsPerByteYear:    r.LamportsPerByteYear,
		ExemptionThresholdBits: math.Float64bits(r.ExemptionThreshold),
		BurnPercent:            r.BurnPercent,
	}
}

// Rent returns the rent parameters.
func (r Rent) Rent() rent.Rent {
	return rent.Rent{
		LamportsPerByteYear: r.LamportsPerByteYear,
		ExemptionThreshold:  math.Float64frombits(r.ExemptionThresholdBits),
		BurnPercent:         r.BurnPercent,
	}
}

// EpochSchedule is the epoch schedule of the cluster.
type EpochSchedule = epoch.Schedule

// Fees is the deprecated signature price of the last blockhash.
type Fees struct {
	LamportsPerSignature uint64 `json:"lamports_per_signature"`
}

// MaxRecentBlockhashEntries is the number of entries in the recent
// blockhashes sysvar.
const MaxRecentBlockhashEntries = 150

// RecentBlockhashes holds the newest blockhashes of the queue, newest first.
type RecentBlockhashes []blockhash.Entry

// StakeHistory is the cluster stake history.
type StakeHistory = stakes.StakeHistory

// =============================================================================

// Encode returns the account data for a sysvar value.
func Encode(v any) ([]byte, error) {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("encode sysvar: %w", err)
	}

	return data, nil
}

// Decode reads a sysvar value from account data.
func Decode[T any](data []byte) (T, error) {
	var v T
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return v, fmt.Errorf("decode sysvar: %w", err)
	}

	return v, nil
}

// Update returns the new version of a sysvar account holding the value.
// An existing account keeps its balance and rent epoch. The balance is
// raised when it falls below the rent exempt minimum for the new data.
func Update(existing database.Account, exists bool, v any, r rent.Rent) (database.Account, error) {
	data, err := Encode(v)
	if err != nil {
		return database.Account{}, err
	}

	account := database.Account{
		Lamports: r.MinimumBalance(len(data)),
		Data:     data,
		Owner:    database.SysvarOwnerID,
	}

	if exists {
		account.Lamports = max(account.Lamports, existing.Lamports)
		account.RentEpoch = existing.RentEpoch
	}

	return account, nil
}
