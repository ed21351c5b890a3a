package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/cli"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/ipc"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage and cost",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVarP(&flagScope, "scope", "s", "", "Scope: today, 7days, month, current_session, all")
	statsCmd.Flags().StringVar(&flagBy, "by", "", "Group stats by 'provider' or 'model'")
	statsCmd.Flags().Int64Var(&flagStart, "start", 0, "Range start (Unix seconds, overrides --scope)")
	statsCmd.Flags().Int64Var(&flagEnd, "end", 0, "Range end (Unix seconds)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	client := ipc.NewClient(config.SocketPath())

	scope := flagScope
	if scope == "" {
		scope = cfg.General.DefaultScope
	}
	useRange := flagStart > 0 || flagEnd > 0
	label := scope
	if useRange {
		label = fmt.Sprintf("%d..%d", flagStart, flagEnd)
	}

	var err error
	switch flagBy {
	case "provider":
		err = statsByProvider(client, scope, label, useRange)
	case "model":
		err = statsByModel(client, scope, label, useRange)
	case "":
		err = statsTotal(client, scope, label, useRange)
	default:
		return fmt.Errorf("unknown grouping %q (want 'provider' or 'model')", flagBy)
	}
	if errors.Is(err, ipc.ErrNotRunning) {
		return fmt.Errorf("agent is not running; start it with 'octm agent'")
	}
	return err
}

func statsTotal(client *ipc.Client, scope, label string, useRange bool) error {
	var stats model.CostedStats
	var err error
	if useRange {
		stats, err = client.StatsRange(flagStart, flagEnd)
	} else {
		stats, err = client.Stats(scope)
	}
	if err != nil {
		return err
	}
	cli.RenderStats(os.Stdout, label, stats)
	return nil
}

func statsByProvider(client *ipc.Client, scope, label string, useRange bool) error {
	var grouped map[string]model.CostedStats
	var err error
	if useRange {
		grouped, err = client.ByProviderRange(flagStart, flagEnd)
	} else {
		grouped, err = client.ByProvider(scope)
	}
	if err != nil {
		return err
	}
	cli.RenderByProvider(os.Stdout, label, grouped)
	return nil
}

func statsByModel(client *ipc.Client, scope, label string, useRange bool) error {
	var grouped map[string]map[string]model.CostedStats
	var err error
	if useRange {
		grouped, err = client.ByModelRange(flagStart, flagEnd)
	} else {
		grouped, err = client.ByModel(scope)
	}
	if err != nil {
		return err
	}
	cli.RenderByModel(os.Stdout, label, grouped)
	return nil
}
