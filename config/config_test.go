package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadNodeConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadNodeConfig(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultNodeConfig(), cfg)
	assert.Equal(t, store.LevelDBStoreType, cfg.StoreConfig().Type)
}

func TestLoadNodeConfig(t *testing.T) {
	path := writeFile(t, "config.yml", `
config:
  data_dir: /var/lib/rollup
  store:
    backend: bolt
  api_addr: ":9000"
  tree_depth: 16
`)
	cfg, err := LoadNodeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/rollup", cfg.DataDir)
	assert.Equal(t, ":9000", cfg.APIAddr)
	assert.Equal(t, DefaultJSONRPCAddr, cfg.JSONRPCAddr, "unset keys keep defaults")
	assert.Equal(t, 16, cfg.TreeDepth)

	sc := cfg.StoreConfig()
	assert.Equal(t, store.BoltStoreType, sc.Type)
	assert.Equal(t, filepath.Join("/var/lib/rollup", "history"), sc.Directory)
	assert.Equal(t, filepath.Join("/var/lib/rollup", "checkpoints"), cfg.CheckpointDir())
}

func TestLoadNodeConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown backend", content: "config:\n  store:\n    backend: postgres\n"},
		{name: "depth too large", content: "config:\n  tree_depth: 40\n"},
		{name: "not yaml", content: "config: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadNodeConfig(writeFile(t, "config.yml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadIniSections(t *testing.T) {
	path := writeFile(t, "config.ini", `
[restore]
verify_checkpoint = false
timeout_seconds = 30

[checkpoint]
interval = 25
export_dir = /tmp/cp

[api]
rate_limit = 5
rate_window_ms = 200
`)
	restoreCfg, err := LoadRestoreConfig(path)
	require.NoError(t, err)
	assert.False(t, restoreCfg.VerifyCheckpoint)
	assert.Equal(t, 30, restoreCfg.TimeoutSeconds)

	checkpointCfg, err := LoadCheckpointConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(25), checkpointCfg.Interval)
	assert.Equal(t, "/tmp/cp", checkpointCfg.ExportDir)

	apiCfg, err := LoadAPIConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, apiCfg.RateLimit)
	assert.Equal(t, 200, apiCfg.RateWindowMillis)
}

func TestLoadAPIConfig_Invalid(t *testing.T) {
	_, err := LoadAPIConfig(writeFile(t, "config.ini", "[api]\nrate_window_ms = 0\n"))
	assert.Error(t, err)

	apiCfg, err := LoadAPIConfig(filepath.Join(t.TempDir(), "absent.ini"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIRateLimit, apiCfg.RateLimit)
}

func TestLoadIniSections_Defaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.ini")
	restoreCfg, err := LoadRestoreConfig(missing)
	require.NoError(t, err)
	assert.True(t, restoreCfg.VerifyCheckpoint)

	checkpointCfg, err := LoadCheckpointConfig(writeFile(t, "config.ini", "[restore]\nverify_checkpoint = true\n"))
	require.NoError(t, err)
	assert.Equal(t, uint32(DefaultCheckpointInterval), checkpointCfg.Interval)
}

func TestLoadGenesisConfig(t *testing.T) {
	a := types.BytesToAddress([]byte{1}).String()
	b := types.BytesToAddress([]byte{2}).String()
	path := writeFile(t, "genesis.yml", `
genesis:
  blocks: 3
  checkpoint_at: 2
  accounts:
    - address: "`+a+`"
      grants:
        - token: 0
          amount: "1000000000000000000000"
    - address: "`+b+`"
`)
	g, err := LoadGenesisConfig(path)
	require.NoError(t, err)
	require.Len(t, g.Accounts, 2)
	assert.Equal(t, 3, g.Blocks)
	assert.Equal(t, uint32(2), g.CheckpointAt)

	v, err := g.Accounts[0].Grants[0].Value()
	require.NoError(t, err)
	assert.Equal(t, uint256.MustFromDecimal("1000000000000000000000"), v)
}

func TestGenesisConfig_Validate(t *testing.T) {
	a := types.BytesToAddress([]byte{1}).String()
	tests := []struct {
		name string
		cfg  GenesisConfig
	}{
		{name: "duplicate address", cfg: GenesisConfig{Accounts: []GenesisAccount{{Address: a}, {Address: a}}}},
		{name: "bad address", cfg: GenesisConfig{Accounts: []GenesisAccount{{Address: "0OIl"}}}},
		{name: "bad amount", cfg: GenesisConfig{Accounts: []GenesisAccount{{Address: a, Grants: []Grant{{Amount: "12abc"}}}}}},
		{name: "checkpoint beyond blocks", cfg: GenesisConfig{Blocks: 1, CheckpointAt: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}
