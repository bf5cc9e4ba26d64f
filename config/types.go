package config

import (
	"fmt"

	"github.com/holiman/uint256"
)

// StoreSection selects the history store backend
type StoreSection struct {
	Backend      string `yaml:"backend"`
	RedisAddress string `yaml:"redis_address"`
}

// NodeConfig represents a node's configuration
type NodeConfig struct {
	DataDir     string       `yaml:"data_dir"`
	Store       StoreSection `yaml:"store"`
	APIAddr     string       `yaml:"api_addr"`
	JSONRPCAddr string       `yaml:"jsonrpc_addr"`
	TreeDepth   int          `yaml:"tree_depth"`
}

// ConfigFile is the top-level structure for config.yml
type ConfigFile struct {
	Config NodeConfig `yaml:"config"`
}

type RestoreConfig struct {
	VerifyCheckpoint bool `ini:"verify_checkpoint"`
	TimeoutSeconds   int  `ini:"timeout_seconds"`
}

type APIConfig struct {
	RateLimit        int `ini:"rate_limit"`
	RateWindowMillis int `ini:"rate_window_ms"`
}

type CheckpointConfig struct {
	Interval  uint32 `ini:"interval"`
	ExportDir string `ini:"export_dir"`
}

// Grant is an initial balance of one token
type Grant struct {
	Token  uint32 `yaml:"token"`
	Amount string `yaml:"amount"`
}

func (g Grant) Value() (*uint256.Int, error) {
	v, err := uint256.FromDecimal(g.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q for token %d: %w", g.Amount, g.Token, err)
	}
	return v, nil
}

type GenesisAccount struct {
	Address string  `yaml:"address"`
	Grants  []Grant `yaml:"grants"`
}

// GenesisConfig holds the configuration from genesis.yml
type GenesisConfig struct {
	Accounts []GenesisAccount `yaml:"accounts"`
	// Blocks is the number of blocks sealed; the first one creates the accounts
	Blocks int `yaml:"blocks"`
	// CheckpointAt saves a checkpoint after that block, 0 for none
	CheckpointAt uint32 `yaml:"checkpoint_at"`
}

// GenesisFile is the top-level structure for genesis.yml
type GenesisFile struct {
	Genesis GenesisConfig `yaml:"genesis"`
}
