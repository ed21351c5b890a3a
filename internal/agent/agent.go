// Package agent wires the store, indexer, aggregator, and IPC server
// into the long-running background process.
package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/aggregate"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/export"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/indexer"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/ipc"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/lock"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/pricing"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/store"
)

// triggerPollInterval is how often the agent checks for the refresh
// marker file an external collaborator drops to request an expedited
// rescan.
const triggerPollInterval = 2 * time.Second

// Run starts the agent and blocks until ctx is canceled or a client
// sends shutdown. It enforces single-instance via the PID lockfile,
// performs the startup scan, then serves the socket while refreshing on
// a timer.
func Run(ctx context.Context, cfg config.Config) error {
	lk := lock.New(config.LockPath())
	if err := lk.Acquire(); err != nil {
		return err
	}
	defer lk.Release()

	st, err := store.Open(config.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = st.Close() }()

	if fixed, err := st.BackfillRoles(ctx); err != nil {
		return fmt.Errorf("role backfill: %w", err)
	} else if fixed > 0 {
		log.Printf("backfilled role on %d messages", fixed)
	}

	ix := indexer.New(st, cfg.MessageRoot())

	count, err := st.MessageCount(ctx)
	if err != nil {
		return err
	}
	mode := indexer.ScanQuickStart
	if count == 0 {
		mode = indexer.ScanFull
	}
	log.Printf("startup scan (%s)", mode)
	if n, err := ix.Scan(ctx, mode); err != nil {
		return fmt.Errorf("startup scan: %w", err)
	} else {
		log.Printf("startup scan indexed %d files", n)
	}

	pricer := pricing.NewEngine(cfg.Pricing)
	agg := aggregate.New(st, pricer, aggregate.ResolveLocation(cfg.Timezone))
	exp := export.New(st, agg)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := ipc.NewServer(ix, agg, exp, cfg.Thresholds, cancel)

	socketPath := config.SocketPath()
	ln, err := ipc.Listen(socketPath)
	if err != nil {
		return err
	}
	defer ipc.CleanupSocket(socketPath)

	go refreshLoop(runCtx, ix, cfg.General.RefreshInterval)

	log.Printf("agent listening on %s", ln.Addr())
	err = srv.Serve(runCtx, ln)
	log.Printf("agent stopped")
	return err
}

// refreshLoop runs periodic incremental scans and services the trigger
// marker file between ticks.
func refreshLoop(ctx context.Context, ix *indexer.Indexer, intervalSec int) {
	interval := time.Duration(intervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	poll := time.NewTicker(triggerPollInterval)
	defer poll.Stop()

	triggerPath := config.TriggerPath()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scan(ctx, ix, "periodic")
		case <-poll.C:
			if _, err := os.Stat(triggerPath); err != nil {
				continue
			}
			// Consume the marker before scanning so a request arriving
			// mid-scan is not lost.
			_ = os.Remove(triggerPath)
			scan(ctx, ix, "triggered")
		}
	}
}

func scan(ctx context.Context, ix *indexer.Indexer, reason string) {
	n, err := ix.Scan(ctx, indexer.ScanIncremental)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("%s scan failed: %v", reason, err)
		}
		return
	}
	if n > 0 {
		log.Printf("%s scan indexed %d files", reason, n)
	}
}
