// Package snapshot handles writing the fields of rooted banks to disk so a
// node can restart from its latest root.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
)

// ErrNotFound is returned when no snapshot exists for the slot.
var ErrNotFound = errors.New("snapshot not found")

const ext = ".json"

// Disk manages one JSON file per rooted slot in a directory.
type Disk struct {
	dir  string
	keep int
	mu   sync.Mutex
}

// NewDisk provides access to the snapshots in the directory. Only the
// newest keep snapshots are retained. A keep of zero retains all of them.
func NewDisk(dir string, keep int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	d := Disk{
		dir:  dir,
		keep: keep,
	}

	return &d, nil
}

// Write stores the fields of a rooted bank and removes the snapshots that
// fall outside the retention window.
func (d *Disk) Write(fields bank.Fields) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}

	// Write to a temp file first so a crash can't leave a partial snapshot.
	path := d.path(fields.Slot)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	return d.prune()
}

// Read returns the snapshot written for the slot.
func (d *Disk) Read(slot uint64) (bank.Fields, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.read(slot)
}

// Latest returns the snapshot of the highest slot. The bool is false when
// the directory holds no snapshots.
func (d *Disk) Latest() (bank.Fields, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slots, err := d.slots()
	if err != nil {
		return bank.Fields{}, false, err
	}

	if len(slots) == 0 {
		return bank.Fields{}, false, nil
	}

	fields, err := d.read(slots[len(slots)-1])
	if err != nil {
		return bank.Fields{}, false, err
	}

	return fields, true, nil
}

// Slots returns the slots with a snapshot in ascending order.
func (d *Disk) Slots() ([]uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.slots()
}

// Reset removes every snapshot.
func (d *Disk) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	slots, err := d.slots()
	if err != nil {
		return err
	}

	for _, slot := range slots {
		if err := os.Remove(d.path(slot)); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================

func (d *Disk) path(slot uint64) string {
	return filepath.Join(d.dir, fmt.Sprintf("%020d%s", slot, ext))
}

func (d *Disk) read(slot uint64) (bank.Fields, error) {
	data, err := os.ReadFile(d.path(slot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bank.Fields{}, ErrNotFound
		}
		return bank.Fields{}, err
	}

	var fields bank.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return bank.Fields{}, fmt.Errorf("decode slot %d: %w", slot, err)
	}

	return fields, nil
}

func (d *Disk) slots() ([]uint64, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	var slots []uint64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}

		slot, err := strconv.ParseUint(strings.TrimSuffix(name, ext), 10, 64)
		if err != nil {
			continue
		}
		slots = append(slots, slot)
	}

	slices.Sort(slots)

	return slots, nil
}

func (d *Disk) prune() error {
	if d.keep == 0 {
		return nil
	}

	slots, err := d.slots()
	if err != nil {
		return err
	}

	if len(slots) <= d.keep {
		return nil
	}

	for _, slot := range slots[:len(slots)-d.keep] {
		if err := os.Remove(d.path(slot)); err != nil {
			return err
		}
	}

	return nil
}
