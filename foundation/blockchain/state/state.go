// Package state is the core API for the ledger node. It owns the fork set of
// banks and implements the slot lifecycle the worker drives.
package state

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/statuscache"
	"github.com/ardanlabs/ledger/foundation/blockchain/workpool"
)

// Set of errors returned by the state API.
var (
	ErrNotFound      = errors.New("not found")
	ErrNoWorkingBank = errors.New("no working bank")
	ErrBankFrozen    = errors.New("working bank is frozen")
	ErrInvalidSlot   = errors.New("invalid slot")
	ErrNotDescendant = errors.New("slot does not descend from the root")
	ErrNotValidator  = errors.New("node identity is not a validator")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of slots.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for producing slots.
type Worker interface {
	Shutdown()
	SignalProcessMempool()
}

// Snapshotter interface represents the behavior required to be implemented by
// any package providing support for persisting the fields of rooted banks.
type Snapshotter interface {
	Write(fields bank.Fields) error
	Latest() (bank.Fields, bool, error)
}

// =============================================================================

// Config represents the configuration required to start
// the ledger node.
type Config struct {
	Identity       *ecdsa.PrivateKey
	Genesis        genesis.Genesis
	Storage        database.Serializer
	Snapshot       Snapshotter
	SelectStrategy string
	Workers        int
	EvHandler      EventHandler
}

// State manages the fork set of banks.
type State struct {
	identity    *ecdsa.PrivateKey
	identityID  database.Pubkey
	voteAccount database.Pubkey
	isValidator bool
	genesis     genesis.Genesis
	evHandler   EventHandler

	db          *database.Database
	statusCache *statuscache.Cache
	snapshot    Snapshotter
	mempool     *mempool.Mempool
	bankCfg     bank.Config

	mu      sync.RWMutex
	banks   map[uint64]*bank.Bank
	root    *bank.Bank
	working *bank.Bank

	Worker Worker
}

// New constructs the state for the node. The latest snapshot is restored
// when one exists, otherwise the ledger starts from the genesis.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Identity == nil {
		return nil, errors.New("identity key is required")
	}

	// Access the account database, restoring the rooted accounts.
	db, err := database.New(cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	// Construct a mempool with the specified sort strategy.
	mp, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	identityID := database.PublicKeyToPubkey(cfg.Identity.PublicKey)

	s := State{
		identity:    cfg.Identity,
		identityID:  identityID,
		genesis:     cfg.Genesis,
		evHandler:   ev,
		db:          db,
		statusCache: statuscache.New(),
		snapshot:    cfg.Snapshot,
		mempool:     mp,
		banks:       make(map[uint64]*bank.Bank),
	}

	for _, v := range cfg.Genesis.Validators {
		if v.Identity == identityID {
			s.voteAccount = v.VoteAccount
			s.isValidator = true
			break
		}
	}

	s.bankCfg = bank.Config{
		DB:          db,
		StatusCache: s.statusCache,
		Pool:        workpool.New(cfg.Workers),
		OnDestroy:   &s,
		EvHandler:   ev,
	}

	root, err := s.loadRoot()
	if err != nil {
		return nil, err
	}

	s.root = root
	s.working = root
	s.banks[root.Slot()] = root

	ev("state: new: root[%d]: hash[%s]: identity[%s]: validator[%t]", root.Slot(), root.Hash(), identityID, s.isValidator)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &s, nil
}

// loadRoot restores the bank of the latest snapshot or creates the rooted
// genesis bank.
func (s *State) loadRoot() (*bank.Bank, error) {
	if s.snapshot != nil {
		fields, exists, err := s.snapshot.Latest()
		if err != nil {
			return nil, fmt.Errorf("latest snapshot: %w", err)
		}

		if exists {
			root, err := bank.NewFromFields(s.bankCfg, fields)
			if err != nil {
				return nil, fmt.Errorf("restore snapshot %d: %w", fields.Slot, err)
			}

			s.evHandler("state: restored: slot[%d]: hash[%s]", root.Slot(), root.Hash())
			return root, nil
		}
	}

	// Without a snapshot the persisted accounts can't be trusted.
	if err := s.db.Reset(); err != nil {
		return nil, fmt.Errorf("reset database: %w", err)
	}

	root, err := bank.NewFromGenesis(s.bankCfg, s.genesis, s.identityID)
	if err != nil {
		return nil, err
	}

	if err := root.Squash(); err != nil {
		return nil, err
	}

	if err := s.writeSnapshot(root); err != nil {
		return nil, err
	}

	return root, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Make sure the database is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all slot production.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// =============================================================================

// Genesis returns the genesis the ledger was started from.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Identity returns the pubkey of the node identity. It collects the fees of
// the slots the node produces.
func (s *State) Identity() database.Pubkey {
	return s.identityID
}

// IsValidator reports whether the node identity votes.
func (s *State) IsValidator() bool {
	return s.isValidator
}

// Root returns the rooted bank.
func (s *State) Root() *bank.Bank {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.root
}

// WorkingBank returns the bank of the newest slot.
func (s *State) WorkingBank() *bank.Bank {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.working
}

// Banks returns the banks of the fork set ordered by slot.
func (s *State) Banks() []*bank.Bank {
	s.mu.RLock()
	defer s.mu.RUnlock()

	banks := make([]*bank.Bank, 0, len(s.banks))
	for _, b := range s.banks {
		banks = append(banks, b)
	}

	slices.SortFunc(banks, func(a, b *bank.Bank) int {
		switch {
		case a.Slot() < b.Slot():
			return -1
		case a.Slot() > b.Slot():
			return 1
		}
		return 0
	})

	return banks
}

// =============================================================================

// OnDestroy implements the bank.DestroyHandler interface. The writes of an
// abandoned fork are dropped from the database and the status cache.
func (s *State) OnDestroy(b *bank.Bank) {
	s.db.PurgeSlot(b.Slot())
	s.statusCache.PurgeSlot(b.Slot())

	s.evHandler("state: destroy: slot[%d]", b.Slot())
}

// writeSnapshot persists the fields of a rooted bank.
func (s *State) writeSnapshot(b *bank.Bank) error {
	if s.snapshot == nil {
		return nil
	}

	if err := s.snapshot.Write(b.Fields()); err != nil {
		return fmt.Errorf("write snapshot %d: %w", b.Slot(), err)
	}

	s.evHandler("viewer: root: slot[%d]: hash[%s]", b.Slot(), b.Hash())

	return nil
}
