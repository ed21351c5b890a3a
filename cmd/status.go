package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/cli"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/ipc"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/lock"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status and threshold usage",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	client := ipc.NewClient(config.SocketPath())

	info, err := client.Status()
	if errors.Is(err, ipc.ErrNotRunning) {
		fmt.Println("agent: not running")
		if pid, alive := lock.New(config.LockPath()).OwnerAlive(); alive {
			// Lock held but socket dead: the agent is wedged.
			fmt.Printf("warning: lockfile claims pid %d is alive but the socket does not answer\n", pid)
		}
		return nil
	}
	if err != nil {
		return err
	}
	cli.RenderStatus(os.Stdout, info.LastScanTime, info.MessageCount)

	if cfg.Thresholds.Enabled {
		report, err := client.Thresholds()
		if err != nil {
			return err
		}
		cli.RenderThresholds(os.Stdout, report)
	}
	return nil
}
