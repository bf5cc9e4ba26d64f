package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/types"
)

var truncateFromBlock uint32

var truncateCmd = &cobra.Command{
	Use:   "truncate [flags]",
	Short: "Truncate the block history",
	Long: `This command removes every block from the given one up to the tip.
A checkpoint taken at or above the given block is dropped as well.
Examples:
  # Drop blocks 100 and later, e.g. after a divergence was reported at 100
  truncate -f 100 --config ./config/config.yml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		tip, err := truncateHistory(env.history, types.BlockNumber(truncateFromBlock))
		if err != nil {
			logx.Error("TRUNCATE", "Failed to truncate history:", err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "history truncated, new tip %d\n", tip)
		return nil
	},
}

var setRootCmd = &cobra.Command{
	Use:    "set-root <block> <root-hex>",
	Short:  "Overwrite the recorded root of a block",
	Hidden: true,
	Args:   cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var block uint32
		if _, err := fmt.Sscan(args[0], &block); err != nil {
			return fmt.Errorf("invalid block %q: %w", args[0], err)
		}
		root, err := types.RootHashFromHex(args[1])
		if err != nil {
			return err
		}

		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()
		return env.history.SetBlockRootHash(types.BlockNumber(block), root)
	},
}

func init() {
	rootCmd.AddCommand(truncateCmd, setRootCmd)
	truncateCmd.Flags().Uint32VarP(&truncateFromBlock, "from-block", "f", 0, "first block to remove")
	_ = truncateCmd.MarkFlagRequired("from-block")
}

// truncateHistory removes blocks from..tip and returns the new tip
func truncateHistory(hs store.HistoryStore, from types.BlockNumber) (types.BlockNumber, error) {
	tip, err := hs.LastCommittedBlock()
	if err != nil {
		return 0, err
	}
	logx.Info("TRUNCATE", fmt.Sprintf("Truncating blocks %d..%d", from, tip))
	if err := hs.TruncateFrom(from); err != nil {
		return 0, err
	}
	return hs.LastCommittedBlock()
}
