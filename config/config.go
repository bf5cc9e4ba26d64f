package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/types"
)

func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		DataDir: DefaultDataDir,
		Store: StoreSection{
			Backend:      DefaultStoreBackend,
			RedisAddress: DefaultRedisAddress,
		},
		APIAddr:     DefaultAPIAddr,
		JSONRPCAddr: DefaultJSONRPCAddr,
		TreeDepth:   DefaultTreeDepth,
	}
}

// LoadNodeConfig reads config.yml. A missing file yields the defaults.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfgFile := ConfigFile{Config: *DefaultNodeConfig()}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logx.Warn("CONFIG", fmt.Sprintf("%s not found, using default node config", path))
			return &cfgFile.Config, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := cfgFile.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node config %s: %w", path, err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded node config: data_dir=%s store=%s api=%s jsonrpc=%s",
		cfgFile.Config.DataDir, cfgFile.Config.Store.Backend, cfgFile.Config.APIAddr, cfgFile.Config.JSONRPCAddr))
	return &cfgFile.Config, nil
}

func (c *NodeConfig) Validate() error {
	if c.TreeDepth < 0 || c.TreeDepth > 32 {
		return fmt.Errorf("tree_depth must be within 0..32, got %d", c.TreeDepth)
	}
	return c.StoreConfig().Validate()
}

// StoreConfig maps the store section onto the store factory configuration
func (c *NodeConfig) StoreConfig() *store.StoreConfig {
	return &store.StoreConfig{
		Type:         store.StoreType(c.Store.Backend),
		Directory:    filepath.Join(c.DataDir, "history"),
		RedisAddress: c.Store.RedisAddress,
	}
}

// CheckpointDir is where exported checkpoint files are written by default
func (c *NodeConfig) CheckpointDir() string {
	return filepath.Join(c.DataDir, "checkpoints")
}

func loadSection(path, name string, out interface{}) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}
	return cfg.Section(name).MapTo(out)
}

// LoadRestoreConfig reads the [restore] section of an .ini file
func LoadRestoreConfig(path string) (*RestoreConfig, error) {
	restoreCfg := &RestoreConfig{
		VerifyCheckpoint: true,
		TimeoutSeconds:   DefaultRestoreTimeoutSec,
	}
	if err := loadSection(path, "restore", restoreCfg); err != nil {
		return nil, err
	}
	if restoreCfg.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("restore timeout_seconds cannot be negative")
	}
	return restoreCfg, nil
}

// LoadCheckpointConfig reads the [checkpoint] section of an .ini file
func LoadCheckpointConfig(path string) (*CheckpointConfig, error) {
	checkpointCfg := &CheckpointConfig{
		Interval: DefaultCheckpointInterval,
	}
	if err := loadSection(path, "checkpoint", checkpointCfg); err != nil {
		return nil, err
	}
	return checkpointCfg, nil
}

// LoadAPIConfig reads the [api] section of an .ini file. A rate_limit of 0 disables limiting.
func LoadAPIConfig(path string) (*APIConfig, error) {
	apiCfg := &APIConfig{
		RateLimit:        DefaultAPIRateLimit,
		RateWindowMillis: DefaultAPIRateWindowMs,
	}
	if err := loadSection(path, "api", apiCfg); err != nil {
		return nil, err
	}
	if apiCfg.RateLimit < 0 || apiCfg.RateWindowMillis <= 0 {
		return nil, fmt.Errorf("invalid api rate limit %d per %dms", apiCfg.RateLimit, apiCfg.RateWindowMillis)
	}
	return apiCfg, nil
}

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var genesisFile GenesisFile
	if err := yaml.NewDecoder(file).Decode(&genesisFile); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := genesisFile.Genesis.Validate(); err != nil {
		return nil, err
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded genesis: %d accounts, %d blocks", len(genesisFile.Genesis.Accounts), genesisFile.Genesis.Blocks))
	return &genesisFile.Genesis, nil
}

func (g *GenesisConfig) Validate() error {
	if g.Blocks < 0 {
		return fmt.Errorf("genesis blocks cannot be negative")
	}
	if g.CheckpointAt > uint32(g.Blocks) {
		return fmt.Errorf("checkpoint_at %d is beyond the %d generated blocks", g.CheckpointAt, g.Blocks)
	}
	seen := make(map[string]struct{}, len(g.Accounts))
	for i, acc := range g.Accounts {
		if acc.Address == "" {
			return fmt.Errorf("genesis account %d has no address", i)
		}
		if _, err := types.AddressFromString(acc.Address); err != nil {
			return fmt.Errorf("genesis account %d: %w", i, err)
		}
		if _, ok := seen[acc.Address]; ok {
			return fmt.Errorf("genesis account %s listed twice", acc.Address)
		}
		seen[acc.Address] = struct{}{}
		for _, grant := range acc.Grants {
			if _, err := grant.Value(); err != nil {
				return fmt.Errorf("genesis account %s: %w", acc.Address, err)
			}
		}
	}
	return nil
}
