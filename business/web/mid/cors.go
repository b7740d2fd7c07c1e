package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/web"
)

// Cors sets the response headers needed for Cross-Origin Resource Sharing.
// Wallets submit transactions from the browser so POST is allowed.
func Cors(origin string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding")
			w.Header().Set("Access-Control-Max-Age", "86400")

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
