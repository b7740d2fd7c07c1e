package genesis_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/stakes"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	g := genesis.Default()
	g.Accounts[database.NewPubkeyFromSeed("alice")] = database.Account{Lamports: 1_000}

	data, err := json.Marshal(g)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	loaded, err := genesis.Load(path)
	require.NoError(t, err)
	require.Equal(t, g.Hash(), loaded.Hash())
	require.Equal(t, uint64(1_000), loaded.Accounts[database.NewPubkeyFromSeed("alice")].Lamports)
}

func TestValidate(t *testing.T) {
	g := genesis.Default()
	g.ClusterType = "unknown"
	require.Error(t, g.Validate())

	g = genesis.Default()
	g.TicksPerSlot = 0
	require.Error(t, g.Validate())

	require.NoError(t, genesis.Default().Validate())
}

func TestSlotsPerYear(t *testing.T) {
	g := genesis.Default()

	// 160 ticks per second and 64 ticks per slot.
	require.InDelta(t, genesis.SecondsPerYear*2.5, g.SlotsPerYear(), 1)
}

func TestValidatorAccounts(t *testing.T) {
	g := genesis.Default()
	g.Validators = []genesis.Validator{{
		Identity:         database.NewPubkeyFromSeed("node"),
		IdentityLamports: 500,
		VoteAccount:      database.NewPubkeyFromSeed("vote"),
		StakeAccount:     database.NewPubkeyFromSeed("stake"),
		Stake:            1_000_000,
		Commission:       10,
	}}

	accounts, err := g.AllAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	byKey := make(map[database.Pubkey]database.Account)
	for _, ka := range accounts {
		byKey[ka.Key] = ka.Account
	}

	vs, err := stakes.DecodeVoteState(byKey[database.NewPubkeyFromSeed("vote")].Data)
	require.NoError(t, err)
	require.Equal(t, uint8(10), vs.Commission)

	ss, err := stakes.DecodeStakeState(byKey[database.NewPubkeyFromSeed("stake")].Data)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), ss.Delegation.Stake)
	require.True(t, ss.Delegation.IsBootstrap())
}
