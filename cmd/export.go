package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/ipc"
)

var exportCmd = &cobra.Command{
	Use:   "export <out-path>",
	Short: "Export deduplicated usage rows as CSV",
	Long:  "Export usage rows for a scope or explicit range. When out-path is a directory a timestamped filename is generated.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagScope, "scope", "s", "", "Scope: today, 7days, month, current_session, all")
	exportCmd.Flags().Int64Var(&flagStart, "start", 0, "Range start (Unix seconds, overrides --scope)")
	exportCmd.Flags().Int64Var(&flagEnd, "end", 0, "Range end (Unix seconds)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	client := ipc.NewClient(config.SocketPath())

	scope := flagScope
	if scope == "" {
		scope = cfg.General.DefaultScope
	}

	var path string
	var err error
	if flagStart > 0 || flagEnd > 0 {
		path, err = client.ExportCSVRange(args[0], flagStart, flagEnd)
	} else {
		path, err = client.ExportCSV(args[0], scope)
	}
	if errors.Is(err, ipc.ErrNotRunning) {
		return fmt.Errorf("agent is not running; start it with 'octm agent'")
	}
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}
