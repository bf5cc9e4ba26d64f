package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/rollupstate/ledger"
	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/snapshot"
	"github.com/mezonai/rollupstate/store"
)

var (
	exportDir      string
	importFile     string
	importForce    bool
	saveSkipVerify bool
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage the retained checkpoint",
}

var checkpointSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Restore the state and keep it as the checkpoint at the tip",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		verify := env.restoreCfg.VerifyCheckpoint && !saveSkipVerify
		rt, err := restoreState(cmd.Context(), env.history, env.depth(), verify, env.restoreCfg.TimeoutSeconds)
		if err != nil {
			return describeRestoreError(err)
		}
		block, err := ledger.NewLedger(env.history, rt.Tree(), rt.Block()).SaveCheckpoint()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checkpoint saved at block %d\n", block)
		return nil
	},
}

var checkpointExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the retained checkpoint to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		dir := exportDir
		if dir == "" {
			dir = env.exportDir()
		}
		path, err := exportCheckpoint(env.history, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checkpoint written to %s\n", path)
		return nil
	},
}

var checkpointImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the retained checkpoint with one read from a file",
	Long: `Read a checkpoint file and keep it as the retained checkpoint. The
checkpoint must be internally consistent and, unless --force is given, its root
must equal the root recorded for its block.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFile == "" {
			return fmt.Errorf("--file is required")
		}
		cp, err := snapshot.ReadCheckpointFile(importFile)
		if err != nil {
			return fmt.Errorf("read checkpoint file: %w", err)
		}

		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if err := importCheckpoint(env.history, cp, importForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "checkpoint imported at block %d\n", cp.Meta.Block)
		return nil
	},
}

var checkpointDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Forget the retained checkpoint so the next restore replays from genesis",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		return env.history.DropCheckpoint()
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointSaveCmd, checkpointExportCmd, checkpointImportCmd, checkpointDropCmd)

	checkpointSaveCmd.Flags().BoolVar(&saveSkipVerify, "no-verify", false, "skip checking the current checkpoint before replay")
	checkpointExportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "directory for the checkpoint file (defaults to the configured export dir)")
	checkpointImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "checkpoint file to import")
	checkpointImportCmd.Flags().BoolVar(&importForce, "force", false, "import even if the root differs from the recorded one")
}

func exportCheckpoint(reader store.HistoryReader, dir string) (string, error) {
	block, ok, err := reader.LastCachedBlock()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no checkpoint is retained")
	}
	blob, err := reader.LoadCheckpoint(block)
	if err != nil {
		return "", err
	}
	cp, err := snapshot.Decode(blob)
	if err != nil {
		return "", err
	}
	return snapshot.WriteCheckpointFile(dir, cp)
}

func importCheckpoint(hs store.HistoryStore, cp *snapshot.Checkpoint, force bool) error {
	t, err := cp.Tree()
	if err != nil {
		return fmt.Errorf("checkpoint at block %d is inconsistent: %w", cp.Meta.Block, err)
	}

	if cp.Meta.Block > 0 {
		recorded, err := hs.BlockRootHash(cp.Meta.Block)
		if err != nil {
			return fmt.Errorf("root of block %d: %w", cp.Meta.Block, err)
		}
		if recorded != cp.Meta.RootHash {
			if !force {
				return fmt.Errorf("checkpoint root %s differs from recorded root %s of block %d",
					cp.Meta.RootHash, recorded, cp.Meta.Block)
			}
			logx.Warn("CHECKPOINT", fmt.Sprintf("Importing checkpoint at block %d with root %s, recorded root is %s",
				cp.Meta.Block, cp.Meta.RootHash, recorded))
		}
	}

	blob, err := snapshot.Encode(snapshot.NewCheckpoint(cp.Meta.Block, t))
	if err != nil {
		return err
	}
	return hs.SaveCheckpoint(cp.Meta.Block, blob)
}
