// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyPrice = "price"
	StrategyFair  = "fair"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyPrice: priceSelect,
	StrategyFair:  fairSelect,
}

// Tx is a pending transaction with the values the strategies order by.
type Tx struct {
	Transaction database.Transaction
	UnitPrice   uint64
	Arrival     uint64
	Received    time.Time
}

// Func defines a function that takes a mempool of transactions grouped by
// fee payer and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST keep the arrival order of the
// transactions of one fee payer. Receiving -1 for howMany must return all
// the transactions in the strategies ordering.
type Func func(transactions map[database.Pubkey][]Tx, howMany int) []Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// byArrival provides sorting support by the arrival sequence.
type byArrival []Tx

// Len returns the number of transactions in the list.
func (ba byArrival) Len() int {
	return len(ba)
}

// Less helps to sort the list by arrival in ascending order to keep the
// transactions of a fee payer in the order they were submitted.
func (ba byArrival) Less(i, j int) bool {
	return ba[i].Arrival < ba[j].Arrival
}

// Swap moves transactions in the order of the arrival value.
func (ba byArrival) Swap(i, j int) {
	ba[i], ba[j] = ba[j], ba[i]
}

// =============================================================================

// byPrice provides sorting support by the compute unit price.
type byPrice []Tx

// Len returns the number of transactions in the list.
func (bp byPrice) Len() int {
	return len(bp)
}

// Less helps to sort the list by price in decending order to pick the
// transactions that pay the most per compute unit. Equal prices keep the
// arrival order.
func (bp byPrice) Less(i, j int) bool {
	if bp[i].UnitPrice != bp[j].UnitPrice {
		return bp[i].UnitPrice > bp[j].UnitPrice
	}
	return bp[i].Arrival < bp[j].Arrival
}

// Swap moves transactions in the order of the price value.
func (bp byPrice) Swap(i, j int) {
	bp[i], bp[j] = bp[j], bp[i]
}
