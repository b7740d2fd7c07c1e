// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/validate"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Set of commitment levels an account can be read at.
const (
	commitmentWorking = "working"
	commitmentRoot    = "root"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	h.Log.Infow("events", "traceid", web.GetTraceID(ctx), "subscriber", id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// SubmitTransaction adds a signed wallet transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var st submitTx
	if err := web.Decode(r, &st); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(st); err != nil {
		return err
	}

	tx := st.toTransaction()

	h.Log.Infow("submit tx", "traceid", web.GetTraceID(ctx), "tx", tx)

	if err := h.State.SubmitTransaction(tx); err != nil {
		return errs.FromLedger(err)
	}

	resp := submitted{
		Signature: tx.Signature(),
		Pending:   h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.Genesis()

	gi := genesisInfo{
		Hash:         gen.Hash(),
		CreationTime: gen.CreationTime,
		ClusterType:  gen.ClusterType,
		TicksPerSlot: gen.TicksPerSlot,
		Accounts:     len(gen.Accounts),
		Validators:   len(gen.Validators),
		Features:     gen.Features,
	}

	return web.Respond(ctx, w, gi, http.StatusOK)
}

// Account returns the account for the specified pubkey. The commitment
// query parameter selects the working bank (default) or the root.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	key, err := database.ToPubkey(web.Param(r, "pubkey"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	commitment := r.URL.Query().Get("commitment")
	if commitment == "" {
		commitment = commitmentWorking
	}

	var acct database.Account
	var slot uint64

	switch commitment {
	case commitmentWorking:
		slot = h.State.WorkingBank().Slot()
		acct, err = h.State.QueryAccount(key)

	case commitmentRoot:
		slot = h.State.Root().Slot()
		acct, err = h.State.QueryRootAccount(key)

	default:
		return errs.NewTrusted(fmt.Errorf("unknown commitment %q", commitment), http.StatusBadRequest)
	}

	if err != nil {
		return errs.FromLedger(err)
	}

	resp := account{
		Pubkey:     key,
		Commitment: commitment,
		Slot:       slot,
		Lamports:   acct.Lamports,
		Owner:      acct.Owner,
		Executable: acct.Executable,
		RentEpoch:  acct.RentEpoch,
		DataLen:    len(acct.Data),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Bank returns the details of the bank of the specified slot.
func (h Handlers) Bank(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	slot, err := strconv.ParseUint(web.Param(r, "slot"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid slot: %w", err), http.StatusBadRequest)
	}

	b, err := h.State.QueryBank(slot)
	if err != nil {
		return errs.FromLedger(err)
	}

	return web.Respond(ctx, w, toBankInfo(b), http.StatusOK)
}

// Banks returns the details of every bank in the fork set.
func (h Handlers) Banks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	banks := h.State.Banks()

	resp := make([]bankInfo, len(banks))
	for i, b := range banks {
		resp[i] = toBankInfo(b)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
