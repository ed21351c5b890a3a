package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/indexer"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/ipc"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/store"
)

var flagScanFull bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index new OpenCode messages",
	Long:  "Ask the running agent for an incremental scan, or scan directly when no agent is up.",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&flagScanFull, "full", false, "Re-index every message file (direct scan only)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	if !flagScanFull {
		client := ipc.NewClient(config.SocketPath())
		n, err := client.Refresh()
		if err == nil {
			fmt.Printf("indexed %d files\n", n)
			return nil
		}
		if !errors.Is(err, ipc.ErrNotRunning) {
			return err
		}
	}

	// No agent to delegate to (or a full rescan was requested): open
	// the database ourselves.
	st, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = st.Close() }()

	mode := indexer.ScanIncremental
	if flagScanFull {
		mode = indexer.ScanFull
	}
	n, err := indexer.New(st, cfg.MessageRoot()).Scan(cmd.Context(), mode)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d files\n", n)
	return nil
}
