package mid

import (
	"context"
	"expvar"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/web"
)

// Counters published on the debug mux under /debug/vars.
var (
	requests = expvar.NewInt("requests")
	failures = expvar.NewInt("errors")
	panics   = expvar.NewInt("panics")
)

// Metrics updates program counters.
func Metrics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			requests.Add(1)
			if err != nil {
				failures.Add(1)
			}

			return err
		}

		return h
	}

	return m
}
