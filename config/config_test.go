package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dealvault/crypto"
)

func testBech32(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address().String()
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "dealvault-local", cfg.NetworkName)
	require.NotEmpty(t, cfg.Owner)
	_, err = crypto.ParseAccount(cfg.Owner)
	require.NoError(t, err, "owner should be a valid bech32 address")

	_, err = os.Stat(path)
	require.NoError(t, err, "config file should be persisted")
	keyData, err := os.ReadFile(cfg.OwnerKey)
	require.NoError(t, err, "owner key should be persisted")
	require.NotEmpty(t, keyData)

	// Reloading reads the persisted file instead of regenerating.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Owner, reloaded.Owner)
}

func TestLoadValidatesAddresses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `RPCAddress = ":8545"
DataDir = "./data"
Owner = "not-an-address"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestGenesisConversion(t *testing.T) {
	owner := testBech32(t)
	arb := testBech32(t)
	funded := testBech32(t)
	cfg := &Config{
		RPCAddress: ":8545",
		Owner:      owner,
		Arbiters:   []string{arb},
		Alloc: []GenesisAlloc{
			{Address: funded, Balance: "123456789"},
		},
	}

	genesis, err := cfg.Genesis()
	require.NoError(t, err)

	wantOwner, err := crypto.ParseAccount(owner)
	require.NoError(t, err)
	require.Equal(t, wantOwner, genesis.Owner)
	require.Len(t, genesis.Arbiters, 1)

	fundedBytes, err := crypto.ParseAccount(funded)
	require.NoError(t, err)
	balance, ok := genesis.Alloc[fundedBytes]
	require.True(t, ok, "alloc entry missing")
	require.Zero(t, balance.Cmp(big.NewInt(123_456_789)))
}

func TestGenesisRejectsBadBalance(t *testing.T) {
	cfg := &Config{
		Owner: testBech32(t),
		Alloc: []GenesisAlloc{
			{Address: testBech32(t), Balance: "lots"},
		},
	}
	_, err := cfg.Genesis()
	require.Error(t, err)
}
