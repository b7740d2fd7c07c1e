package commands

import (
	"flag"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage/leveldb"
)

// Accounts prints the rooted accounts persisted by a stopped node.
func Accounts(args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ContinueOnError)
	path := fs.String("db", "zblock/ledger.db", "path of the leveldb store")

	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	db, err := leveldb.New(*path)
	if err != nil {
		return err
	}
	defer db.Close()

	root, exists, err := db.Root()
	if err != nil {
		return err
	}
	if !exists {
		fmt.Println("No rooted slot")
		return nil
	}
	fmt.Printf("Root: %d\n\n", root)

	var total uint64
	iter := db.ForEach()
	for ka, err := iter.Next(); !iter.Done(); ka, err = iter.Next() {
		if err != nil {
			return err
		}

		total += ka.Account.Lamports
		fmt.Printf("Account: %s  Lamports: %d  Owner: %s\n", ka.Key, ka.Account.Lamports, ka.Account.Owner)
	}

	fmt.Printf("\nTotal: %d\n", total)

	return nil
}
