package inflation_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/inflation"
	"github.com/stretchr/testify/require"
)

func TestInflation(t *testing.T) {
	i := inflation.Default()

	require.InDelta(t, 0.08, i.Total(0), 1e-12)
	require.InDelta(t, 0.08*0.85, i.Total(1), 1e-12)
	require.InDelta(t, 0.015, i.Total(100), 1e-12)

	require.InDelta(t, 0.08*0.05, i.FoundationRate(0), 1e-12)
	require.InDelta(t, 0.08*0.95, i.Validator(0), 1e-12)
	require.Zero(t, i.FoundationRate(7))
	require.InDelta(t, i.Total(8), i.Validator(8), 1e-12)

	// The rate never increases.
	prev := i.Total(0)
	for year := 0.25; year < 30; year += 0.25 {
		next := i.Total(year)
		require.LessOrEqual(t, next, prev)
		prev = next
	}
}

func TestFixedAndDisabled(t *testing.T) {
	require.Zero(t, inflation.Disabled().Validator(3))
	require.InDelta(t, 0.1, inflation.Fixed(0.1).Validator(20), 1e-12)
}
