package commands

import (
	"flag"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/snapshot"
)

// Snapshots prints the bank snapshots written by the node.
func Snapshots(args []string) error {
	fs := flag.NewFlagSet("snapshots", flag.ContinueOnError)
	dir := fs.String("dir", "zblock/snapshots", "folder holding the snapshots")

	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	disk, err := snapshot.NewDisk(*dir, 0)
	if err != nil {
		return err
	}

	slots, err := disk.Slots()
	if err != nil {
		return err
	}

	for _, slot := range slots {
		fields, err := disk.Read(slot)
		if err != nil {
			return err
		}

		fmt.Printf("Slot: %d  Epoch: %d  Hash: %s  Capitalization: %d  Transactions: %d\n",
			fields.Slot, fields.Epoch, fields.Hash, fields.Capitalization, fields.TransactionCount)
	}

	return nil
}
