package selector

import (
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// priceSelect returns the transactions paying the best compute unit price
// first. Ties go to the transaction that arrived first.
var priceSelect = func(m map[database.Pubkey][]Tx, howMany int) []Tx {
	var all []Tx
	for _, txs := range m {
		all = append(all, txs...)
	}

	sort.Sort(byPrice(all))

	if howMany == -1 || howMany > len(all) {
		howMany = len(all)
	}

	return all[:howMany]
}
