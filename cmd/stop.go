package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/ipc"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running agent",
	RunE:  runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	client := ipc.NewClient(config.SocketPath())
	err := client.Shutdown()
	if errors.Is(err, ipc.ErrNotRunning) {
		fmt.Println("agent: not running")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println("agent stopping")
	return nil
}
