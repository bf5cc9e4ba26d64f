package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mezonai/rollupstate/config"
	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/monitoring"
	"github.com/mezonai/rollupstate/restore"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/tree"
)

// nodeEnv bundles the configuration and the opened history store shared by all commands
type nodeEnv struct {
	cfg           *config.NodeConfig
	restoreCfg    *config.RestoreConfig
	checkpointCfg *config.CheckpointConfig
	apiCfg        *config.APIConfig
	history       *store.GenericHistoryStore
}

func openNodeEnv() (*nodeEnv, error) {
	monitoring.InitMetrics()

	cfg, err := config.LoadNodeConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load node config: %w", err)
	}
	restoreCfg, err := config.LoadRestoreConfig(iniPath)
	if err != nil {
		return nil, fmt.Errorf("load restore config: %w", err)
	}
	checkpointCfg, err := config.LoadCheckpointConfig(iniPath)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint config: %w", err)
	}

	apiCfg, err := config.LoadAPIConfig(iniPath)
	if err != nil {
		return nil, fmt.Errorf("load api config: %w", err)
	}

	hs, err := store.OpenHistoryStore(cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &nodeEnv{
		cfg:           cfg,
		restoreCfg:    restoreCfg,
		checkpointCfg: checkpointCfg,
		apiCfg:        apiCfg,
		history:       hs,
	}, nil
}

func (e *nodeEnv) Close() {
	if err := e.history.Close(); err != nil {
		logx.Error("CMD", "Failed to close history store:", err)
	}
}

func (e *nodeEnv) depth() int {
	return treeDepth(e.cfg.TreeDepth)
}

func (e *nodeEnv) exportDir() string {
	if e.checkpointCfg.ExportDir != "" {
		return e.checkpointCfg.ExportDir
	}
	return e.cfg.CheckpointDir()
}

func treeDepth(configured int) int {
	if configured == 0 {
		return tree.DefaultDepth
	}
	return configured
}

// restoreState runs a full restore against reader. A positive timeout bounds the whole run.
func restoreState(ctx context.Context, reader store.HistoryReader, depth int, verify bool, timeoutSec int) (*restore.RestoredTree, error) {
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	rt := restore.NewRestoredTree(reader,
		restore.WithDepth(depth),
		restore.WithVerifyCheckpoint(verify),
	)
	if err := rt.Restore(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}
