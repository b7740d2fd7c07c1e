// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ethereum/go-ethereum/crypto"
)

// Genesis writes a development genesis file. Every validator key file
// becomes a staked validator and every account key file is funded.
//
//	admin genesis -out zblock/genesis.json -validators validator1 -accounts kennedy,pavel
func Genesis(args []string) error {
	fs := flag.NewFlagSet("genesis", flag.ContinueOnError)
	out := fs.String("out", "zblock/genesis.json", "path of the genesis file to write")
	folder := fs.String("folder", "zblock/accounts/", "folder holding the .ecdsa key files")
	validators := fs.String("validators", "validator1", "comma separated validator key names")
	accounts := fs.String("accounts", "", "comma separated account key names to fund")
	lamports := fs.Uint64("lamports", 1_000_000_000, "lamports funded to each account")
	stake := fs.Uint64("stake", 10_000_000_000, "lamports staked by each validator")

	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	g := genesis.Default()

	for _, name := range split(*validators) {
		key, err := loadPubkey(*folder, name)
		if err != nil {
			return err
		}

		g.Validators = append(g.Validators, genesis.Validator{
			Identity:         key,
			IdentityLamports: *lamports,
			VoteAccount:      database.NewPubkeyFromSeed(key.String() + "/vote"),
			StakeAccount:     database.NewPubkeyFromSeed(key.String() + "/stake"),
			Stake:            *stake,
		})
	}

	for _, name := range split(*accounts) {
		key, err := loadPubkey(*folder, name)
		if err != nil {
			return err
		}

		g.Accounts[key] = database.Account{Lamports: *lamports}
	}

	if err := g.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(*out, data, 0644); err != nil {
		return err
	}

	fmt.Printf("Genesis: %s  Hash: %s  Validators: %d  Accounts: %d\n", *out, g.Hash(), len(g.Validators), len(g.Accounts))

	return nil
}

func loadPubkey(folder string, name string) (database.Pubkey, error) {
	path := filepath.Join(folder, name+".ecdsa")

	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return database.Pubkey{}, fmt.Errorf("load key %s: %w", path, err)
	}

	return database.PublicKeyToPubkey(privateKey.PublicKey), nil
}

func split(list string) []string {
	var names []string
	for name := range strings.SplitSeq(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	return names
}
