package selector

import (
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// fairSelect takes one transaction per fee payer at a time so a single
// payer can't fill the block. Each round is ordered by price.
var fairSelect = func(m map[database.Pubkey][]Tx, howMany int) []Tx {

	/*
		Bill: {Arrival: 4, Price: 250},
			  {Arrival: 1, Price: 150},
		Pavl: {Arrival: 5, Price: 200},
			  {Arrival: 2, Price: 75},
		Edua: {Arrival: 6, Price: 75},
			  {Arrival: 3, Price: 100},
	*/

	// Sort the transactions per fee payer by arrival.
	for key := range m {
		if len(m[key]) > 1 {
			sort.Sort(byArrival(m[key]))
		}
	}

	// Pick the first transaction in the slice for each fee payer. Each
	// iteration represents a new row of selections. Keep doing that until
	// all the transactions have been selected.
	var rows [][]Tx
	for {
		var row []Tx
		for key := range m {
			if len(m[key]) > 0 {
				row = append(row, m[key][0])
				m[key] = m[key][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	/*
		0: Bill: {Arrival: 1, Price: 150},
		0: Pavl: {Arrival: 2, Price: 75},
		0: Edua: {Arrival: 3, Price: 100},
		1: Bill: {Arrival: 4, Price: 250},
		1: Pavl: {Arrival: 5, Price: 200},
		1: Edua: {Arrival: 6, Price: 75},
	*/

	// Sort each row by price. Keep pulling transactions from each row until
	// the amount is fulfilled or there are no more transactions.
	final := []Tx{}
done:
	for _, row := range rows {
		sort.Sort(byPrice(row))

		need := howMany - len(final)
		if howMany != -1 && len(row) > need {
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	/*
		0: Bill: {Arrival: 1, Price: 150},
		1: Edua: {Arrival: 3, Price: 100},
		2: Pavl: {Arrival: 2, Price: 75},
		3: Bill: {Arrival: 4, Price: 250},
	*/

	return final
}
