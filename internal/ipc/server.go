package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/aggregate"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/export"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/indexer"
)

// requests are a single JSON line; anything larger is rejected.
const maxRequestBytes = 64 * 1024

const requestDeadline = 10 * time.Second

// Server exposes the indexer, aggregator, and exporter over the local
// socket. Each connection carries exactly one command; connections are
// handled concurrently so a long refresh or export never blocks status
// queries.
type Server struct {
	indexer    *indexer.Indexer
	agg        *aggregate.Aggregator
	exporter   *export.Exporter
	thresholds config.ThresholdConfig

	// requestShutdown cancels the agent's run context.
	requestShutdown context.CancelFunc
}

func NewServer(ix *indexer.Indexer, agg *aggregate.Aggregator, exp *export.Exporter, thresholds config.ThresholdConfig, requestShutdown context.CancelFunc) *Server {
	return &Server{
		indexer:         ix,
		agg:             agg,
		exporter:        exp,
		thresholds:      thresholds,
		requestShutdown: requestShutdown,
	}
}

// Serve accepts connections until ctx is canceled. The listener is
// closed from a watcher goroutine to unblock Accept.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(requestDeadline))

	reader := bufio.NewReader(io.LimitReader(conn, maxRequestBytes+1))
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return
	}

	var req Request
	var resp Response
	if len(line) > maxRequestBytes {
		resp = Response{OK: false, Err: "invalid request"}
	} else if err := json.Unmarshal(line, &req); err != nil {
		resp = Response{OK: false, Err: "invalid request"}
	} else {
		resp = s.dispatch(ctx, req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		out = []byte(`{"ok":false,"err":"internal error"}`)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(requestDeadline))
	_, _ = conn.Write(append(out, '\n'))
}

// dispatch routes one command. A panic in a handler is converted to an
// error response; a bad request must never take the agent down.
func (s *Server) dispatch(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic handling %q: %v", req.Cmd, r)
			resp = Response{OK: false, Err: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	now := time.Now()

	switch req.Cmd {
	case CmdStatus:
		// Answered from in-memory state only; must stay cheap even
		// while a scan holds the database writer lock.
		lastScan := s.indexer.LastScanTime()
		count := s.indexer.IndexedCount()
		return Response{OK: true, LastScanTime: &lastScan, MessageCount: &count, Msg: "running"}

	case CmdThresholds:
		report, err := s.agg.Thresholds(ctx, s.thresholds, now)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Thresholds: &report}

	case CmdRefresh:
		n, err := s.indexer.Scan(ctx, indexer.ScanIncremental)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Scanned: &n}

	case CmdStats:
		stats, err := s.agg.Stats(ctx, req.Scope, now)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Data: stats}

	case CmdStatsRange:
		stats, err := s.agg.StatsRange(ctx, req.StartTs, req.EndTs)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Data: stats}

	case CmdByProvider:
		grouped, err := s.agg.ByProvider(ctx, req.Scope, now)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Data: grouped}

	case CmdByProviderRange:
		grouped, err := s.agg.ByProviderRange(ctx, req.StartTs, req.EndTs)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Data: grouped}

	case CmdByModel:
		grouped, err := s.agg.ByModel(ctx, req.Scope, now)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Data: grouped}

	case CmdByModelRange:
		grouped, err := s.agg.ByModelRange(ctx, req.StartTs, req.EndTs)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Data: grouped}

	case CmdExportCSV:
		path, err := s.exporter.ExportScope(ctx, req.OutPath, req.Scope, now)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Path: path}

	case CmdExportCSVRange:
		path, err := s.exporter.ExportRange(ctx, req.OutPath, req.StartTs, req.EndTs, now)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Path: path}

	case CmdShutdown:
		s.requestShutdown()
		return Response{OK: true, Msg: "shutting down"}

	default:
		return Response{OK: false, Err: "unknown command"}
	}
}
