// Package leveldb implements the database serializer on top of leveldb so
// the rooted account state survives a restart of the node.
package leveldb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes for the different records kept in the store.
var (
	accountPrefix = []byte("a/")
	rootKey       = []byte("m/root")
)

// LevelDB represents the serialization implementation for storing rooted
// accounts in a leveldb instance. This implements the database.Serializer
// interface.
type LevelDB struct {
	ldb *leveldb.DB
}

// New opens a leveldb instance defined by the given path. If the database
// is corrupted an attempt is made to recover it.
func New(path string) (*LevelDB, error) {
	ldb, err := leveldb.OpenFile(path, nil)

	var corrupted *ldberrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		ldb, err = leveldb.RecoverFile(path, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}

	return &LevelDB{ldb: ldb}, nil
}

// Close closes the leveldb instance.
func (db *LevelDB) Close() error {
	return db.ldb.Close()
}

// Write stores the accounts of a rooted slot in a single batch. Accounts
// with zero lamports are deleted.
func (db *LevelDB) Write(slot uint64, accounts []database.KeyedAccount) error {
	batch := new(leveldb.Batch)

	for _, ka := range accounts {
		key := accountKey(ka.Key)

		if ka.Account.Lamports == 0 {
			batch.Delete(key)
			continue
		}

		value, err := rlp.EncodeToBytes(ka.Account)
		if err != nil {
			return fmt.Errorf("encode account %s: %w", ka.Key, err)
		}
		batch.Put(key, value)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], slot)
	batch.Put(rootKey, buf[:])

	return db.ldb.Write(batch, nil)
}

// Root returns the last slot written to the store.
func (db *LevelDB) Root() (uint64, bool, error) {
	data, err := db.ldb.Get(rootKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return binary.BigEndian.Uint64(data), true, nil
}

// ForEach returns an iterator to walk through all the stored accounts in
// key order.
func (db *LevelDB) ForEach() database.Iterator {
	return &Iterator{
		iter: db.ldb.NewIterator(util.BytesPrefix(accountPrefix), nil),
	}
}

// Reset deletes every record in the store.
func (db *LevelDB) Reset() error {
	iter := db.ldb.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}

	if err := iter.Error(); err != nil {
		return err
	}

	return db.ldb.Write(batch, nil)
}

// =============================================================================

// Iterator represents the iteration implementation for walking through the
// accounts stored in leveldb. This implements the database.Iterator interface.
type Iterator struct {
	iter iterator.Iterator
	done bool
}

// Next retrieves the next account from the store.
func (it *Iterator) Next() (database.KeyedAccount, error) {
	if it.done {
		return database.KeyedAccount{}, errors.New("end of accounts")
	}

	if !it.iter.Next() {
		it.done = true
		err := it.iter.Error()
		it.iter.Release()
		return database.KeyedAccount{}, err
	}

	var key database.Pubkey
	copy(key[:], it.iter.Key()[len(accountPrefix):])

	var account database.Account
	if err := rlp.DecodeBytes(it.iter.Value(), &account); err != nil {
		return database.KeyedAccount{}, fmt.Errorf("decode account %s: %w", key, err)
	}

	return database.KeyedAccount{Key: key, Account: account}, nil
}

// Done returns true when every account has been read.
func (it *Iterator) Done() bool {
	return it.done
}

// =============================================================================

func accountKey(key database.Pubkey) []byte {
	k := make([]byte, 0, len(accountPrefix)+database.PubkeyLength)
	k = append(k, accountPrefix...)
	return append(k, key[:]...)
}
