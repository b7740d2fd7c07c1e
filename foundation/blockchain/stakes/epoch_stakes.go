package stakes

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// EpochStakes is a snapshot of the stake distribution used for one epoch.
type EpochStakes struct {
	Epoch                uint64                                `json:"epoch"`
	TotalStake           uint64                                `json:"total_stake"`
	VoteAccountStakes    map[database.Pubkey]uint64            `json:"vote_account_stakes"`
	NodeIDToVoteAccounts map[database.Pubkey][]database.Pubkey `json:"node_id_to_vote_accounts"`
}

// NewEpochStakes captures the stake distribution of the cache for the
// leader schedule epoch.
func NewEpochStakes(c *Cache, leaderScheduleEpoch uint64) EpochStakes {
	es := EpochStakes{
		Epoch:                leaderScheduleEpoch,
		VoteAccountStakes:    make(map[database.Pubkey]uint64),
		NodeIDToVoteAccounts: make(map[database.Pubkey][]database.Pubkey),
	}

	voteAccounts := c.VoteAccounts()
	for _, key := range sortedKeys(voteAccounts) {
		sva := voteAccounts[key]

		es.VoteAccountStakes[key] = sva.Stake
		es.TotalStake += sva.Stake

		if sva.Stake > 0 {
			node := sva.State.NodePubkey
			es.NodeIDToVoteAccounts[node] = append(es.NodeIDToVoteAccounts[node], key)
		}
	}

	return es
}

// NodeStake returns the stake of the validator identity.
func (es EpochStakes) NodeStake(node database.Pubkey) uint64 {
	var total uint64
	for _, key := range es.NodeIDToVoteAccounts[node] {
		total += es.VoteAccountStakes[key]
	}

	return total
}
