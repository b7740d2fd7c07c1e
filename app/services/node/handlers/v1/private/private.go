// Package private maintains the group of handlers for operator access.
package private

import (
	"context"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

type status struct {
	Identity      database.Pubkey `json:"identity"`
	IsValidator   bool            `json:"is_validator"`
	RootSlot      uint64          `json:"root_slot"`
	RootHash      database.Hash   `json:"root_hash"`
	WorkingSlot   uint64          `json:"working_slot"`
	WorkingFrozen bool            `json:"working_frozen"`
	ForkSlots     []uint64        `json:"fork_slots"`
	Mempool       int             `json:"mempool"`
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	root := h.State.Root()
	working := h.State.WorkingBank()

	banks := h.State.Banks()
	slots := make([]uint64, len(banks))
	for i, b := range banks {
		slots[i] = b.Slot()
	}

	resp := status{
		Identity:      h.State.Identity(),
		IsValidator:   h.State.IsValidator(),
		RootSlot:      root.Slot(),
		RootHash:      root.Hash(),
		WorkingSlot:   working.Slot(),
		WorkingFrozen: working.IsFrozen(),
		ForkSlots:     slots,
		Mempool:       h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
