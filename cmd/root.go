package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/rollupstate/logx"
)

var (
	configPath string
	iniPath    string
)

var rootCmd = &cobra.Command{
	Use:   "rollupstate",
	Short: "Rollup account state node CLI",
	Long:  "Command line interface for restoring, serving and maintaining the rollup account state.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yml", "Path to node config file")
	rootCmd.PersistentFlags().StringVar(&iniPath, "ini", "config/config.ini", "Path to restore/checkpoint settings")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
