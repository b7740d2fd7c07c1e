// Package errs provides the error types returned by the node web api.
package errs

import (
	"errors"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context. Its message is safe to show
// to the client.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap provides support for errors.Is and errors.As.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}

// =============================================================================

// FromLedger maps an error returned by the ledger packages to a trusted
// error carrying the matching status. Errors the ledger does not define are
// returned as is and reported as internal errors.
func FromLedger(err error) error {
	switch {
	case errors.Is(err, state.ErrNotFound):
		return NewTrusted(err, http.StatusNotFound)

	case errors.Is(err, mempool.ErrDuplicate),
		errors.Is(err, database.ErrAlreadyProcessed):
		return NewTrusted(err, http.StatusConflict)

	case errors.Is(err, state.ErrNoWorkingBank),
		errors.Is(err, state.ErrBankFrozen):
		return NewTrusted(err, http.StatusServiceUnavailable)

	case errors.Is(err, database.ErrSanitizeFailure),
		errors.Is(err, database.ErrSignatureFailure),
		errors.Is(err, database.ErrBlockhashNotFound),
		errors.Is(err, database.ErrInsufficientFundsForFee),
		errors.Is(err, database.ErrAccountNotFound),
		database.IsInstructionError(err):
		return NewTrusted(err, http.StatusBadRequest)
	}

	return err
}
