// Package cmd implements the octm command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/cli"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
)

var (
	flagConfig string
	flagScope  string
	flagBy     string
	flagStart  int64
	flagEnd    int64
)

var rootCmd = &cobra.Command{
	Use:   "octm",
	Short: "OpenCode token metering",
	Long:  "Track OpenCode token usage and cost: background indexing agent plus query commands.",
	RunE:  runStats,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: user config dir)")

	rootCmd.Flags().StringVarP(&flagScope, "scope", "s", "", "Scope: today, 7days, month, current_session, all")
	rootCmd.Flags().StringVar(&flagBy, "by", "", "Group stats by 'provider' or 'model'")
	rootCmd.Flags().Int64Var(&flagStart, "start", 0, "Range start (Unix seconds, overrides --scope)")
	rootCmd.Flags().Int64Var(&flagEnd, "end", 0, "Range end (Unix seconds)")
}

// loadConfig reads the user config, warning instead of failing when the
// file is unreadable so every command still works with defaults.
func loadConfig() config.Config {
	var cfg config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFrom(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.RenderWarning(err.Error()))
	}
	return cfg
}
