package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/ledger/foundation/blockchain/epoch"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/inflation"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ardanlabs/ledger/foundation/blockchain/rent"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_PublicRoutes(t *testing.T) {
	keyA, err := crypto.GenerateKey()
	require.NoError(t, err)
	pkA := database.PublicKeyToPubkey(keyA.PublicKey)
	pkB := database.NewPubkeyFromSeed("bob")

	identity, err := crypto.GenerateKey()
	require.NoError(t, err)

	g := genesis.Default()
	g.CreationTime = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	g.TicksPerSlot = 4
	g.FeeRateGovernor = fee.NewRateGovernor(0, 0, 50)
	g.Rent = rent.Rent{LamportsPerByteYear: 1, ExemptionThreshold: 2.0 / 128, BurnPercent: 50}
	g.Inflation = inflation.Disabled()
	g.EpochSchedule = epoch.NewSchedule(epoch.MinimumSlotsPerEpoch, false)
	g.Accounts[pkA] = database.Account{Lamports: 1_000}

	st, err := state.New(state.Config{
		Identity:       identity,
		Genesis:        g,
		Storage:        memory.New(),
		SelectStrategy: "price",
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Shutdown() })

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		Evts:     events.New(),
		Origin:   "*",
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("genesis", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/genesis")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Hash database.Hash `json:"hash"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		require.Equal(t, g.Hash(), got.Hash)
	})

	t.Run("account", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/accounts/" + pkA.String() + "?commitment=root")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Lamports uint64 `json:"lamports"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		require.Equal(t, uint64(1_000), got.Lamports)
	})

	t.Run("account-bad-pubkey", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/accounts/xyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var er errs.Response
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
		require.NotEmpty(t, er.TraceID)
	})

	t.Run("account-missing", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/accounts/" + pkB.String())
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bank", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/banks/0")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Slot   uint64        `json:"slot"`
			Frozen bool          `json:"frozen"`
			Hash   database.Hash `json:"hash"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		require.True(t, got.Frozen)
		require.Equal(t, st.Root().Hash(), got.Hash)
	})

	t.Run("bank-missing", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/banks/99")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("submit", func(t *testing.T) {
		msg := database.NewMessage(pkA, st.WorkingBank().LastBlockhash(), program.Transfer(pkA, pkB, 100))
		tx, err := database.NewTransaction(msg, keyA)
		require.NoError(t, err)

		body, err := json.Marshal(tx)
		require.NoError(t, err)

		resp, err := http.Post(srv.URL+"/v1/tx/submit", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()

		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.Equal(t, 1, st.QueryMempoolLength())

		resp, err = http.Post(srv.URL+"/v1/tx/submit", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()

		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("submit-invalid", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/v1/tx/submit", "application/json", bytes.NewReader([]byte(`{"message":{}}`)))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var er errs.Response
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
		require.Contains(t, er.Fields, "signatures")
	})
}
