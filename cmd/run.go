package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mezonai/rollupstate/api"
	"github.com/mezonai/rollupstate/jsonrpc"
	"github.com/mezonai/rollupstate/ledger"
	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/ratelimit"
	"github.com/mezonai/rollupstate/service"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Restore the account state and serve it",
	Long: `Restore the account tree from the block history, then serve it over
the REST API and JSON-RPC until interrupted. Any restore error stops the node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runNode() error {
	env, err := openNodeEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := restoreState(ctx, env.history, env.depth(), env.restoreCfg.VerifyCheckpoint, env.restoreCfg.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	ld := ledger.NewLedger(env.history, rt.Tree(), rt.Block(),
		ledger.WithCheckpointInterval(env.checkpointCfg.Interval),
	)
	stateSvc := service.NewStateService(ld)
	healthSvc := service.NewHealthService(ld, rt.RunID())

	apiSrv := api.NewAPIServer(env.cfg.APIAddr, stateSvc, healthSvc)
	if env.apiCfg.RateLimit > 0 {
		apiSrv.SetRateLimiter(ratelimit.NewLimiter(&ratelimit.Config{
			MaxRequests:     env.apiCfg.RateLimit,
			WindowSize:      time.Duration(env.apiCfg.RateWindowMillis) * time.Millisecond,
			CleanupInterval: 5 * time.Minute,
		}))
	}
	apiSrv.Start()

	rpcSrv := jsonrpc.NewServer(env.cfg.JSONRPCAddr, stateSvc, healthSvc)
	if cors, ok := jsonrpc.CORSFromEnv(); ok {
		rpcSrv.SetCORSConfig(cors)
	}
	rpcSrv.Start()

	logx.Info("NODE", fmt.Sprintf("Serving state at block %d, root %s", ld.LastBlock(), ld.RootHash()))
	<-ctx.Done()
	logx.Info("NODE", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logx.Error("NODE", "API shutdown failed:", err)
	}
	if err := rpcSrv.Shutdown(shutdownCtx); err != nil {
		logx.Error("NODE", "JSON-RPC shutdown failed:", err)
	}
	return nil
}
