package validate_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/validate"
	"github.com/stretchr/testify/require"
)

type submit struct {
	Payer     string `json:"payer" validate:"required,hexadecimal"`
	Lamports  uint64 `json:"lamports" validate:"gt=0"`
	Signature string `json:"signature,omitempty"`
}

func TestCheck(t *testing.T) {
	err := validate.Check(submit{Payer: "0xabcd", Lamports: 10})
	require.NoError(t, err)

	err = validate.Check(submit{})
	require.True(t, validate.IsFieldErrors(err))

	fields := validate.GetFieldErrors(err).Fields()
	require.Len(t, fields, 2)
	require.Contains(t, fields, "payer")
	require.Contains(t, fields, "lamports")
}
