// Package rent calculates the storage rent owed by accounts and schedules
// which slice of the key space is collected from in each slot.
package rent

// AccountStorageOverhead is the number of bytes charged for every account on
// top of its data.
const AccountStorageOverhead = 128

// Default rent parameters.
const (
	DefaultLamportsPerByteYear = 1_000_000_000 / 100 * 365 / (1024 * 1024)
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50
)

// Rent holds the parameters used to charge accounts for storage.
type Rent struct {
	LamportsPerByteYear uint64  `json:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `json:"exemption_threshold"`
	BurnPercent         uint8   `json:"burn_percent"`
}

// Default returns the rent parameters used when the genesis file does not
// provide them.
func Default() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
		BurnPercent:         DefaultBurnPercent,
	}
}

// MinimumBalance returns the balance an account with the specified data
// size needs to be exempt from rent.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	bytes := uint64(AccountStorageOverhead + dataLen)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether the balance covers the minimum balance.
func (r Rent) IsExempt(balance uint64, dataLen int) bool {
	return balance >= r.MinimumBalance(dataLen)
}

// Due returns the rent owed for the elapsed years and whether the account
// is exempt from paying it.
func (r Rent) Due(balance uint64, dataLen int, yearsElapsed float64) (uint64, bool) {
	if r.IsExempt(balance, dataLen) {
		return 0, true
	}

	bytes := uint64(AccountStorageOverhead + dataLen)
	return uint64(float64(bytes*r.LamportsPerByteYear) * yearsElapsed), false
}

// CalculateBurn splits collected rent into the burned portion and the
// portion distributed to validators.
func (r Rent) CalculateBurn(collected uint64) (burned uint64, distributed uint64) {
	burned = collected * uint64(r.BurnPercent) / 100
	return burned, collected - burned
}
