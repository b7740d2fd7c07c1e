package workpool_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/workpool"
	"github.com/stretchr/testify/require"
)

func TestMapKeepsOrder(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	for _, size := range []int{1, 3, 16} {
		p := workpool.New(size)

		got, err := workpool.Map(p, items, func(_ int, v int) (int, error) {
			return v * 2, nil
		})
		require.NoError(t, err)

		for i, v := range got {
			require.Equal(t, i*2, v)
		}
	}
}

func TestMapReduceIsDeterministic(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g"}

	concat := func(p *workpool.Pool) string {
		return workpool.MapReduce(p, items, func(_ int, s string) string { return s }, "", func(a, b string) string { return a + b })
	}

	require.Equal(t, "abcdefg", concat(workpool.New(1)))
	require.Equal(t, "abcdefg", concat(workpool.New(4)))
	require.Equal(t, "abcdefg", concat(workpool.New(0)))
}

func TestMapError(t *testing.T) {
	errBoom := errors.New("boom")

	_, err := workpool.Map(workpool.New(2), []int{1, 2, 3}, func(_ int, v int) (int, error) {
		if v == 2 {
			return 0, errBoom
		}
		return v, nil
	})
	require.ErrorIs(t, err, errBoom)
}

func TestEach(t *testing.T) {
	var sum atomic.Int64
	workpool.Each(workpool.New(3), []int64{1, 2, 3, 4}, func(_ int, v int64) {
		sum.Add(v)
	})
	require.Equal(t, int64(10), sum.Load())
}
