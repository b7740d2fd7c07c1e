// Package disk implements the ability to persist rooted accounts on disk
// with every account in its own human readable file.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

const (
	accountsDir = "accounts"
	rootFile    = "root"
	extension   = ".json"
)

// Disk represents the serialization implementation for storing rooted
// accounts in separate files on disk. This implements the
// database.Serializer interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(dbPath, accountsDir), 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a file is written
// for each account and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the accounts of a rooted slot and stores each account in its
// own file. Accounts with zero lamports are removed. The root file is
// written last so a partial write is replayed from the prior root.
func (d *Disk) Write(slot uint64, accounts []database.KeyedAccount) error {
	for _, ka := range accounts {
		path := d.accountPath(ka.Key)

		if ka.Account.Lamports == 0 {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			continue
		}

		// Marshal the account for writing to disk in a more human readable format.
		data, err := json.MarshalIndent(ka.Account, "", "  ")
		if err != nil {
			return fmt.Errorf("encode account %s: %w", ka.Key, err)
		}

		if err := writeFile(path, data); err != nil {
			return err
		}
	}

	return writeFile(filepath.Join(d.dbPath, rootFile), []byte(strconv.FormatUint(slot, 10)))
}

// Root returns the last slot written to disk.
func (d *Disk) Root() (uint64, bool, error) {
	data, err := os.ReadFile(filepath.Join(d.dbPath, rootFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}

	slot, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse root: %w", err)
	}

	return slot, true, nil
}

// ForEach returns an iterator to walk through all the accounts on disk in
// key order.
func (d *Disk) ForEach() database.Iterator {
	entries, err := os.ReadDir(filepath.Join(d.dbPath, accountsDir))

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), extension) {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	return &Iterator{disk: d, names: names, err: err}
}

// Reset will clear out the accounts on disk.
func (d *Disk) Reset() error {
	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(filepath.Join(d.dbPath, accountsDir), 0755)
}

// getAccount reads the account stored in the named file.
func (d *Disk) getAccount(name string) (database.KeyedAccount, error) {
	key, err := database.ToPubkey(strings.TrimSuffix(name, extension))
	if err != nil {
		return database.KeyedAccount{}, fmt.Errorf("account file %s: %w", name, err)
	}

	f, err := os.Open(filepath.Join(d.dbPath, accountsDir, name))
	if err != nil {
		return database.KeyedAccount{}, err
	}
	defer f.Close()

	var account database.Account
	if err := json.NewDecoder(f).Decode(&account); err != nil {
		return database.KeyedAccount{}, fmt.Errorf("decode account %s: %w", key, err)
	}

	return database.KeyedAccount{Key: key, Account: account}, nil
}

// accountPath forms the path to the file of the specified account.
func (d *Disk) accountPath(key database.Pubkey) string {
	return filepath.Join(d.dbPath, accountsDir, key.String()+extension)
}

// writeFile replaces the file contents through a rename so readers never
// see a partial file.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// =============================================================================

// Iterator represents the iteration implementation for walking through
// the accounts on disk. This implements the database.Iterator interface.
type Iterator struct {
	disk    *Disk
	names   []string
	current int
	err     error
	done    bool
}

// Next retrieves the next account from disk.
func (it *Iterator) Next() (database.KeyedAccount, error) {
	if it.done {
		return database.KeyedAccount{}, errors.New("end of accounts")
	}

	if it.err != nil {
		return database.KeyedAccount{}, it.err
	}

	if it.current >= len(it.names) {
		it.done = true
		return database.KeyedAccount{}, nil
	}

	name := it.names[it.current]
	it.current++

	return it.disk.getAccount(name)
}

// Done returns true when every account has been read.
func (it *Iterator) Done() bool {
	return it.done
}
