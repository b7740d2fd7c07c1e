package public

import (
	"net/http"

	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Evts  *events.Events
}

// Routes binds all the public routes.
func Routes(app *web.App, cfg Config) {
	pbl := Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	const version = "v1"

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/accounts/:pubkey", pbl.Account)
	app.Handle(http.MethodGet, version, "/banks", pbl.Banks)
	app.Handle(http.MethodGet, version, "/banks/:slot", pbl.Bank)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
}
