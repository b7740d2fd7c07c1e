package stakes

import "slices"

// MaxStakeHistoryEntries is the number of epochs kept in the stake history.
const MaxStakeHistoryEntries = 512

// StakeHistoryEntry is the cluster wide stake activation status of an epoch.
type StakeHistoryEntry struct {
	Effective    uint64 `json:"effective"`
	Activating   uint64 `json:"activating"`
	Deactivating uint64 `json:"deactivating"`
}

// Add combines two entries.
func (e StakeHistoryEntry) Add(other StakeHistoryEntry) StakeHistoryEntry {
	return StakeHistoryEntry{
		Effective:    e.Effective + other.Effective,
		Activating:   e.Activating + other.Activating,
		Deactivating: e.Deactivating + other.Deactivating,
	}
}

// EpochStakeHistory pairs an entry with its epoch.
type EpochStakeHistory struct {
	Epoch uint64            `json:"epoch"`
	Entry StakeHistoryEntry `json:"entry"`
}

// StakeHistory holds the entries of recent epochs, newest first.
type StakeHistory []EpochStakeHistory

// Get returns the entry of the epoch.
func (sh StakeHistory) Get(epoch uint64) (StakeHistoryEntry, bool) {
	i, found := slices.BinarySearchFunc(sh, epoch, func(e EpochStakeHistory, target uint64) int {
		switch {
		case e.Epoch > target:
			return -1
		case e.Epoch < target:
			return 1
		}
		return 0
	})
	if !found {
		return StakeHistoryEntry{}, false
	}

	return sh[i].Entry, true
}

// Add returns a history with the entry of the epoch added or replaced.
func (sh StakeHistory) Add(epoch uint64, entry StakeHistoryEntry) StakeHistory {
	out := slices.Clone(sh)

	i := slices.IndexFunc(out, func(e EpochStakeHistory) bool { return e.Epoch <= epoch })
	switch {
	case i == -1:
		out = append(out, EpochStakeHistory{Epoch: epoch, Entry: entry})
	case out[i].Epoch == epoch:
		out[i].Entry = entry
	default:
		out = slices.Insert(out, i, EpochStakeHistory{Epoch: epoch, Entry: entry})
	}

	if len(out) > MaxStakeHistoryEntries {
		out = out[:MaxStakeHistoryEntries]
	}

	return out
}
