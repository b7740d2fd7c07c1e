// Package feature tracks the runtime features activated on a cluster.
// Features are activated at epoch boundaries by storing an account owned
// by the feature program under the feature id.
package feature

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ethereum/go-ethereum/rlp"
)

// Set of known features.
var (
	SkipRentRewrites        = database.NewPubkeyFromSeed("feature:skip-rent-rewrites")
	CachedRewardCalculation = database.NewPubkeyFromSeed("feature:cached-reward-calculation")
)

// Names maps the known feature ids to a readable name.
var Names = map[database.Pubkey]string{
	SkipRentRewrites:        "skip-rent-rewrites",
	CachedRewardCalculation: "cached-reward-calculation",
}

// ByName returns the id of a known feature.
func ByName(name string) (database.Pubkey, error) {
	for id, n := range Names {
		if n == name {
			return id, nil
		}
	}

	return database.Pubkey{}, fmt.Errorf("unknown feature %q", name)
}

// =============================================================================

// Set is an immutable snapshot of the activation state of every known
// feature. Activating a feature returns a new set.
type Set struct {
	active   map[database.Pubkey]uint64
	inactive map[database.Pubkey]struct{}
}

// NewSet constructs a set where every known feature is inactive.
func NewSet() *Set {
	s := Set{
		active:   make(map[database.Pubkey]uint64),
		inactive: make(map[database.Pubkey]struct{}),
	}
	for id := range Names {
		s.inactive[id] = struct{}{}
	}

	return &s
}

// AllEnabled constructs a set where every known feature is active since
// the genesis slot.
func AllEnabled() *Set {
	s := NewSet()
	for id := range Names {
		s = s.Activate(id, 0)
	}

	return s
}

// IsActive reports whether the feature is active.
func (s *Set) IsActive(id database.Pubkey) bool {
	_, exists := s.active[id]
	return exists
}

// ActivatedSlot returns the slot the feature was activated in.
func (s *Set) ActivatedSlot(id database.Pubkey) (uint64, bool) {
	slot, exists := s.active[id]
	return slot, exists
}

// Activate returns a copy of the set with the feature active since the
// slot.
func (s *Set) Activate(id database.Pubkey, slot uint64) *Set {
	ns := Set{
		active:   maps.Clone(s.active),
		inactive: maps.Clone(s.inactive),
	}
	ns.active[id] = slot
	delete(ns.inactive, id)

	return &ns
}

// Inactive returns the ids of the inactive features ordered by key.
func (s *Set) Inactive() []database.Pubkey {
	ids := slices.Collect(maps.Keys(s.inactive))
	slices.SortFunc(ids, database.Pubkey.Compare)
	return ids
}

// Active returns the activation slot of every active feature.
func (s *Set) Active() map[database.Pubkey]uint64 {
	return maps.Clone(s.active)
}

// =============================================================================

// Feature is the data stored in a feature account. A feature account with
// no activation slot is pending and is activated at the next epoch
// boundary.
type Feature struct {
	Activated   bool   `json:"activated"`
	ActivatedAt uint64 `json:"activated_at"`
}

// Decode reads the feature state from an account owned by the feature
// program.
func Decode(account database.Account) (Feature, error) {
	if account.Owner != database.FeatureProgramID {
		return Feature{}, fmt.Errorf("account is not owned by the feature program")
	}

	var f Feature
	if err := rlp.DecodeBytes(account.Data, &f); err != nil {
		return Feature{}, fmt.Errorf("decode feature: %w", err)
	}

	return f, nil
}

// NewAccount constructs a rent exempt feature account.
func NewAccount(f Feature, r rent.Rent) (database.Account, error) {
	return UpdateAccount(database.Account{}, f, r)
}

// UpdateAccount returns the feature account holding the new state.
func UpdateAccount(account database.Account, f Feature, r rent.Rent) (database.Account, error) {
	data, err := rlp.EncodeToBytes(f)
	if err != nil {
		return database.Account{}, fmt.Errorf("encode feature: %w", err)
	}

	account.Data = data
	account.Owner = database.FeatureProgramID
	account.Lamports = max(account.Lamports, r.MinimumBalance(len(data)))

	return account, nil
}
