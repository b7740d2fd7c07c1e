package rent

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
)

// Collector computes the rent owed by accounts during one epoch.
type Collector struct {
	Epoch        uint64         `json:"epoch"`
	Schedule     epoch.Schedule `json:"epoch_schedule"`
	SlotsPerYear float64        `json:"slots_per_year"`
	Rent         Rent           `json:"rent"`
}

// NewCollector constructs a collector for the epoch.
func NewCollector(rent Rent, epochNum uint64, schedule epoch.Schedule, slotsPerYear float64) Collector {
	return Collector{
		Epoch:        epochNum,
		Schedule:     schedule,
		SlotsPerYear: slotsPerYear,
		Rent:         rent,
	}
}

// CloneWithEpoch returns a copy of the collector for a different epoch.
func (c Collector) CloneWithEpoch(epochNum uint64) Collector {
	c.Epoch = epochNum
	return c
}

// Collected is the outcome of collecting rent from one account.
type Collected struct {
	Rent             uint64
	DataLenReclaimed uint64
}

// Add combines the outcome of two collections.
func (c Collected) Add(other Collected) Collected {
	return Collected{
		Rent:             c.Rent + other.Rent,
		DataLenReclaimed: c.DataLenReclaimed + other.DataLenReclaimed,
	}
}

// GetRentDue returns the rent owed by the account for every epoch since its
// rent epoch, up to and including the collector epoch.
func (c Collector) GetRentDue(account database.Account) (uint64, bool) {
	var slotsElapsed uint64
	for e := account.RentEpoch; e <= c.Epoch; e++ {
		slotsElapsed += c.Schedule.GetSlotsInEpoch(e + 1)
	}

	var yearsElapsed float64
	if c.SlotsPerYear != 0 {
		yearsElapsed = float64(slotsElapsed) / c.SlotsPerYear
	}

	return c.Rent.Due(account.Lamports, len(account.Data), yearsElapsed)
}

// CollectFromExistingAccount charges the account the rent it owes and
// updates its rent epoch. An account that can't pay what it owes is
// reclaimed, which leaves it with zero lamports and no data.
func (c Collector) CollectFromExistingAccount(key database.Pubkey, account *database.Account) Collected {
	if account.Executable || account.RentEpoch > c.Epoch || key == database.IncineratorID {
		return Collected{}
	}

	due, exempt := c.GetRentDue(*account)
	if !exempt && due == 0 {
		return Collected{}
	}

	// Exempt accounts are checked again later in the same epoch while
	// paying accounts have paid for the next one.
	if exempt {
		account.RentEpoch = c.Epoch
	} else {
		account.RentEpoch = c.Epoch + 1
	}

	if account.Lamports <= due {
		collected := Collected{
			Rent:             account.Lamports,
			DataLenReclaimed: uint64(len(account.Data)),
		}
		*account = database.Account{}
		return collected
	}

	account.Lamports -= due

	return Collected{Rent: due}
}
