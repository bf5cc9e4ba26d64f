package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mezonai/rollupstate/jsonx"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/types"
)

var (
	inspectFrom  uint32
	inspectBlock uint32
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the block history",
	Long: `Print the chain tip, the retained checkpoint and every block's recorded
root with its update count. With --block the updates of one block are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openNodeEnv()
		if err != nil {
			return err
		}
		defer env.Close()

		if inspectBlock != 0 {
			return printBlock(cmd.OutOrStdout(), env.history, types.BlockNumber(inspectBlock))
		}
		if err := printHistory(cmd.OutOrStdout(), env.history, types.BlockNumber(inspectFrom)); err != nil {
			return err
		}
		return printOrphans(cmd.OutOrStdout(), env.history)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Uint32Var(&inspectFrom, "from", 1, "first block to list")
	inspectCmd.Flags().Uint32Var(&inspectBlock, "block", 0, "print the updates of this block")
}

func printHistory(w io.Writer, reader store.HistoryReader, from types.BlockNumber) error {
	tip, err := reader.LastCommittedBlock()
	if err != nil {
		return err
	}
	cached, ok, err := reader.LastCachedBlock()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "tip: %d\n", tip)
	if ok {
		fmt.Fprintf(w, "checkpoint: %d\n", cached)
	} else {
		fmt.Fprintln(w, "checkpoint: none")
	}

	if from == 0 {
		from = 1
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tUPDATES\tROOT")
	for n := from; n <= tip; n++ {
		updates, err := reader.BlockUpdates(n)
		if err != nil {
			return err
		}
		root, err := reader.BlockRootHash(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\n", n, len(updates), root)
	}
	return tw.Flush()
}

func printBlock(w io.Writer, hs store.HistoryStore, n types.BlockNumber) error {
	b, err := hs.Block(n)
	if err != nil {
		return err
	}
	data, err := jsonx.MarshalIndent(b)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printOrphans(w io.Writer, hs *store.GenericHistoryStore) error {
	orphans, err := hs.OrphanedBlocks()
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		fmt.Fprintf(w, "orphaned records above the tip: %v\n", orphans)
	}
	return nil
}
