package blockhash_test

import (
	"encoding/binary"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/blockhash"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/stretchr/testify/require"
)

func hashOf(i uint64) database.Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], i)
	return database.HashOf(buf[:])
}

func TestQueueAge(t *testing.T) {
	q := blockhash.New(blockhash.MaxRecentBlockhashes)
	q.GenesisHash(hashOf(0), 5000, 0)

	for i := uint64(1); i <= 200; i++ {
		q.Register(hashOf(i), 5000+i, int64(i))
	}

	require.Equal(t, hashOf(200), q.LastHash())
	require.True(t, q.IsHashValidForAge(hashOf(50), blockhash.MaxProcessingAge))
	require.False(t, q.IsHashValidForAge(hashOf(49), blockhash.MaxProcessingAge))
	require.False(t, q.IsHashValidForAge(hashOf(1_000), blockhash.MaxProcessingAge))

	lps, exists := q.LamportsPerSignature(hashOf(10))
	require.True(t, exists)
	require.Equal(t, uint64(5010), lps)

	age, exists := q.HashAge(hashOf(190))
	require.True(t, exists)
	require.Equal(t, uint64(10), age)
}

func TestQueueEviction(t *testing.T) {
	q := blockhash.New(10)
	q.GenesisHash(hashOf(0), 1, 0)

	for i := uint64(1); i <= 30; i++ {
		q.Register(hashOf(i), 1, 0)
	}

	_, exists := q.LamportsPerSignature(hashOf(0))
	require.False(t, exists)
	require.LessOrEqual(t, len(q.Snapshot().Ages), 11)

	recent := q.Recent(3)
	require.Equal(t, []blockhash.Entry{
		{Hash: hashOf(30), LamportsPerSignature: 1},
		{Hash: hashOf(29), LamportsPerSignature: 1},
		{Hash: hashOf(28), LamportsPerSignature: 1},
	}, recent)
}

func TestQueueClone(t *testing.T) {
	q := blockhash.New(10)
	q.GenesisHash(hashOf(0), 1, 0)

	clone := q.Clone()
	clone.Register(hashOf(1), 1, 0)

	require.Equal(t, hashOf(0), q.LastHash())
	require.Equal(t, hashOf(1), clone.LastHash())
}
