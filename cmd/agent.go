package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/agent"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background indexing agent",
	Long:  "Run the agent in the foreground: scans the OpenCode message store, keeps the index fresh, and serves queries over the local socket.",
	RunE:  runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return agent.Run(ctx, cfg)
}
