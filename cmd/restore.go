package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/rollupstate/restore"
)

var restoreNoVerify bool

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the account state and report the result",
	Long: `Rebuild the account tree from the retained checkpoint and the block
history without serving it. On a root mismatch the first divergent block is
reported and the command exits non-zero.
Examples:
  # Check the history against its recorded roots
  restore --config ./config/config.yml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		verify := env.restoreCfg.VerifyCheckpoint && !restoreNoVerify
		rt, err := restoreState(cmd.Context(), env.history, env.depth(), verify, env.restoreCfg.TimeoutSeconds)
		if err != nil {
			return describeRestoreError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored block %d: %d accounts, root %s (run %s)\n",
			rt.Block(), rt.Tree().Len(), rt.Tree().RootHash(), rt.RunID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().BoolVar(&restoreNoVerify, "no-verify", false, "skip checking the checkpoint against its recorded root")
}

// describeRestoreError points the operator at the truncate command for a divergence
func describeRestoreError(err error) error {
	var divergence *restore.DivergenceError
	if errors.As(err, &divergence) {
		return fmt.Errorf("%s; run `truncate --from-block %d` to drop the divergent blocks: %w",
			divergence.Detail(), divergence.Block, err)
	}
	if !restore.IsFatal(err) {
		return fmt.Errorf("restore interrupted: %w", err)
	}
	return err
}
