package events_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/stretchr/testify/require"
)

func Test_Events(t *testing.T) {
	evts := events.New()

	id1, ch1 := evts.Acquire()
	id2, ch2 := evts.Acquire()
	require.NotEqual(t, id1, id2)
	require.Equal(t, 2, evts.Count())

	evts.Send("bank: freeze: slot[1]")
	require.Equal(t, "bank: freeze: slot[1]", <-ch1)
	require.Equal(t, "bank: freeze: slot[1]", <-ch2)

	require.NoError(t, evts.Release(id1))
	require.Error(t, evts.Release(id1))

	_, open := <-ch1
	require.False(t, open)

	// A subscriber that stops reading never blocks the sender.
	for range 200 {
		evts.Send("flood")
	}
	require.Len(t, ch2, 100)

	evts.Shutdown()
	require.Equal(t, 0, evts.Count())
}
