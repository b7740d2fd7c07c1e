// Package database handles all the lower level support for maintaining the
// versioned account state of the ledger. Unrooted writes are kept per slot
// in memory so sibling forks never observe each other, and rooted state is
// collapsed into a single view that is persisted through a Serializer.
package database

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
)

// Serializer interface represents the behavior required to be implemented by any
// package providing support for persisting rooted account state.
type Serializer interface {
	Write(slot uint64, accounts []KeyedAccount) error
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the persisted accounts.
type Iterator interface {
	Next() (KeyedAccount, error)
	Done() bool
}

// =============================================================================

// Database manages the account state for every slot that has not been
// rooted yet plus the collapsed rooted state.
type Database struct {
	mu sync.RWMutex

	slots       map[uint64]map[Pubkey]Account
	index       map[Pubkey][]uint64
	roots       map[Pubkey]Account
	rootSlots   map[uint64]struct{}
	maxRoot     uint64
	deltaHashes map[uint64]Hash

	locks      *accountLocks
	serializer Serializer
	evHandler  func(v string, args ...any)
}

// New constructs a new database and restores the rooted account state
// persisted by the serializer.
func New(serializer Serializer, evHandler func(v string, args ...any)) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		slots:       make(map[uint64]map[Pubkey]Account),
		index:       make(map[Pubkey][]uint64),
		roots:       make(map[Pubkey]Account),
		rootSlots:   make(map[uint64]struct{}),
		deltaHashes: make(map[uint64]Hash),
		locks:       newAccountLocks(),
		serializer:  serializer,
		evHandler:   ev,
	}

	iter := serializer.ForEach()
	for ka, err := iter.Next(); !iter.Done(); ka, err = iter.Next() {
		if err != nil {
			return nil, fmt.Errorf("restore accounts: %w", err)
		}

		if ka.Account.Lamports == 0 {
			continue
		}
		db.roots[ka.Key] = ka.Account
	}

	ev("database: restored: accounts[%d]", len(db.roots))

	return &db, nil
}

// Close closes the underlying serializer.
func (db *Database) Close() error {
	return db.serializer.Close()
}

// Reset drops all state, both in memory and persisted.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.slots = make(map[uint64]map[Pubkey]Account)
	db.index = make(map[Pubkey][]uint64)
	db.roots = make(map[Pubkey]Account)
	db.rootSlots = make(map[uint64]struct{})
	db.deltaHashes = make(map[uint64]Hash)
	db.maxRoot = 0

	return db.serializer.Reset()
}

// =============================================================================

// Load returns the newest version of the account visible from the ancestor
// set. Accounts with zero lamports are treated as not existing.
func (db *Database) Load(ancestors Ancestors, key Pubkey) (Account, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.load(ancestors, key)
	if !exists || account.Lamports == 0 {
		return Account{}, false
	}

	return account.Clone(), true
}

// StoreBatch writes the accounts as the version for the specified slot.
// Storing into a rooted slot is a programming error.
func (db *Database) StoreBatch(slot uint64, accounts []KeyedAccount) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, rooted := db.rootSlots[slot]; rooted {
		panic(fmt.Sprintf("database: store into rooted slot %d", slot))
	}

	m, exists := db.slots[slot]
	if !exists {
		m = make(map[Pubkey]Account)
		db.slots[slot] = m
	}

	for _, ka := range accounts {
		if _, exists := m[ka.Key]; !exists {
			versions := db.index[ka.Key]
			i, _ := slices.BinarySearch(versions, slot)
			db.index[ka.Key] = slices.Insert(versions, i, slot)
		}
		m[ka.Key] = ka.Account.Clone()
	}

	delete(db.deltaHashes, slot)
}

// StoredInSlot reports whether the account was written in the specified
// slot and returns that version.
func (db *Database) StoredInSlot(slot uint64, key Pubkey) (Account, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.slots[slot][key]
	if !exists {
		return Account{}, false
	}

	return account.Clone(), true
}

// ScanRange returns every live account visible from the ancestor set whose
// key falls in the inclusive range. Results are ordered by key.
func (db *Database) ScanRange(ancestors Ancestors, start Pubkey, end Pubkey) []KeyedAccount {
	db.mu.RLock()
	defer db.mu.RUnlock()

	inRange := func(key Pubkey) bool {
		return key.Compare(start) >= 0 && key.Compare(end) <= 0
	}

	keys := make(map[Pubkey]struct{})
	for key := range db.roots {
		if inRange(key) {
			keys[key] = struct{}{}
		}
	}
	for key := range db.index {
		if inRange(key) {
			keys[key] = struct{}{}
		}
	}

	return db.collect(ancestors, keys)
}

// Capitalization returns the total lamports of all accounts visible from
// the ancestor set.
func (db *Database) Capitalization(ancestors Ancestors) uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	keys := make(map[Pubkey]struct{}, len(db.roots))
	for key := range db.roots {
		keys[key] = struct{}{}
	}
	for key := range db.index {
		keys[key] = struct{}{}
	}

	var total uint64
	for _, ka := range db.collect(ancestors, keys) {
		total += ka.Account.Lamports
	}

	return total
}

// DeltaHash returns the merkle root over the hashes of every account written
// in the slot, merged with the hashes of accounts whose rewrite was skipped.
// Leaves are ordered by key so the result does not depend on the order the
// accounts were written in. Once a slot is rooted the recorded value is
// returned.
func (db *Database) DeltaHash(slot uint64, skipped map[Pubkey]Hash) Hash {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.deltaHash(slot, skipped)
}

// deltaHash calculates and records the delta hash of the slot. The caller
// must hold the write lock.
func (db *Database) deltaHash(slot uint64, skipped map[Pubkey]Hash) Hash {
	if h, exists := db.deltaHashes[slot]; exists {
		return h
	}

	hashes := make(map[Pubkey]Hash, len(db.slots[slot])+len(skipped))
	for key, hash := range skipped {
		hashes[key] = hash
	}
	for key, account := range db.slots[slot] {
		hashes[key] = account.Hash(key)
	}

	keys := make([]Pubkey, 0, len(hashes))
	for key := range hashes {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, Pubkey.Compare)

	leaves := make([]Hash, len(keys))
	for i, key := range keys {
		leaves[i] = hashes[key]
	}

	h := merkle.Root(leaves)
	db.deltaHashes[slot] = h

	return h
}

// AddRoot collapses the writes of the slot into the rooted state and
// persists them. Adding a slot that is already rooted is a no-op.
func (db *Database) AddRoot(slot uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, rooted := db.rootSlots[slot]; rooted {
		return nil
	}

	db.deltaHash(slot, nil)

	writes := db.slots[slot]
	accounts := make([]KeyedAccount, 0, len(writes))
	for key, account := range writes {
		accounts = append(accounts, KeyedAccount{Key: key, Account: account})
		db.removeVersion(key, slot)

		if account.Lamports == 0 {
			delete(db.roots, key)
			continue
		}
		db.roots[key] = account
	}
	slices.SortFunc(accounts, func(a, b KeyedAccount) int {
		return a.Key.Compare(b.Key)
	})

	delete(db.slots, slot)
	db.rootSlots[slot] = struct{}{}
	db.maxRoot = max(db.maxRoot, slot)

	if err := db.serializer.Write(slot, accounts); err != nil {
		return fmt.Errorf("persist root %d: %w", slot, err)
	}

	db.evHandler("database: root: slot[%d]: accounts[%d]", slot, len(accounts))

	return nil
}

// IsRooted reports whether the slot has been rooted.
func (db *Database) IsRooted(slot uint64) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	_, rooted := db.rootSlots[slot]
	return rooted
}

// RestoreRoot records the slot as rooted when the rooted state was
// restored from storage. It fails when the slot still holds unrooted
// writes.
func (db *Database) RestoreRoot(slot uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, pending := db.slots[slot]; pending {
		return fmt.Errorf("slot %d has unrooted writes", slot)
	}

	db.rootSlots[slot] = struct{}{}
	db.maxRoot = max(db.maxRoot, slot)

	return nil
}

// MaxRoot returns the highest rooted slot.
func (db *Database) MaxRoot() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.maxRoot
}

// PurgeSlot drops every write of an unrooted slot. This is used when a fork
// is abandoned.
func (db *Database) PurgeSlot(slot uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, rooted := db.rootSlots[slot]; rooted {
		return
	}

	for key := range db.slots[slot] {
		db.removeVersion(key, slot)
	}
	delete(db.slots, slot)
	delete(db.deltaHashes, slot)

	db.evHandler("database: purge: slot[%d]", slot)
}

// =============================================================================

// load resolves the newest version of the account visible from the
// ancestor set. The caller must hold a lock.
func (db *Database) load(ancestors Ancestors, key Pubkey) (Account, bool) {
	versions := db.index[key]
	for i := len(versions) - 1; i >= 0; i-- {
		if ancestors.Contains(versions[i]) {
			return db.slots[versions[i]][key], true
		}
	}

	account, exists := db.roots[key]
	return account, exists
}

// collect resolves the keys and returns the live accounts sorted by key.
// The caller must hold a lock.
func (db *Database) collect(ancestors Ancestors, keys map[Pubkey]struct{}) []KeyedAccount {
	out := make([]KeyedAccount, 0, len(keys))
	for key := range keys {
		account, exists := db.load(ancestors, key)
		if !exists || account.Lamports == 0 {
			continue
		}
		out = append(out, KeyedAccount{Key: key, Account: account.Clone()})
	}

	slices.SortFunc(out, func(a, b KeyedAccount) int {
		return a.Key.Compare(b.Key)
	})

	return out
}

// removeVersion drops the slot from the version index of the key. The
// caller must hold the write lock.
func (db *Database) removeVersion(key Pubkey, slot uint64) {
	versions := db.index[key]
	i, found := slices.BinarySearch(versions, slot)
	if !found {
		return
	}

	versions = slices.Delete(versions, i, i+1)
	if len(versions) == 0 {
		delete(db.index, key)
		return
	}
	db.index[key] = versions
}
