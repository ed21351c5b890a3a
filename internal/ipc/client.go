package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/pricing"
)

const dialTimeout = 3 * time.Second

// ErrNotRunning reports that no agent answered on the socket.
var ErrNotRunning = errors.New("agent not running")

// Client issues one command per connection against a running agent.
type Client struct {
	socketPath string
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// envelope mirrors Response with raw grouped data so each method can
// decode its own payload shape.
type envelope struct {
	OK           bool                     `json:"ok"`
	Err          string                   `json:"err"`
	Data         json.RawMessage          `json:"data"`
	Scanned      *int                     `json:"scanned"`
	Path         string                   `json:"path"`
	LastScanTime *int64                   `json:"last_scan_time"`
	MessageCount *int64                   `json:"message_count"`
	Thresholds   *pricing.ThresholdReport `json:"thresholds"`
	Msg          string                   `json:"msg"`
}

func (c *Client) roundTrip(req Request) (envelope, error) {
	conn, err := Dial(c.socketPath)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(requestDeadline))

	payload, err := json.Marshal(req)
	if err != nil {
		return envelope{}, err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return envelope{}, fmt.Errorf("sending %s: %w", req.Cmd, err)
	}
	// Export and refresh can outlive the default deadline; wait as long
	// as the server is willing to work.
	if req.Cmd == CmdRefresh || req.Cmd == CmdExportCSV || req.Cmd == CmdExportCSVRange {
		_ = conn.SetReadDeadline(time.Time{})
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return envelope{}, fmt.Errorf("reading %s response: %w", req.Cmd, err)
	}
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return envelope{}, fmt.Errorf("decoding %s response: %w", req.Cmd, err)
	}
	if !env.OK {
		return envelope{}, fmt.Errorf("agent: %s", env.Err)
	}
	return env, nil
}

// StatusInfo is the decoded status payload.
type StatusInfo struct {
	LastScanTime int64
	MessageCount int64
}

func (c *Client) Status() (StatusInfo, error) {
	env, err := c.roundTrip(Request{Cmd: CmdStatus})
	if err != nil {
		return StatusInfo{}, err
	}
	var info StatusInfo
	if env.LastScanTime != nil {
		info.LastScanTime = *env.LastScanTime
	}
	if env.MessageCount != nil {
		info.MessageCount = *env.MessageCount
	}
	return info, nil
}

func (c *Client) Thresholds() (pricing.ThresholdReport, error) {
	env, err := c.roundTrip(Request{Cmd: CmdThresholds})
	if err != nil {
		return pricing.ThresholdReport{}, err
	}
	if env.Thresholds == nil {
		return pricing.ThresholdReport{}, errors.New("agent: missing thresholds payload")
	}
	return *env.Thresholds, nil
}

// Refresh triggers an incremental scan and returns the number of files
// indexed.
func (c *Client) Refresh() (int, error) {
	env, err := c.roundTrip(Request{Cmd: CmdRefresh})
	if err != nil {
		return 0, err
	}
	if env.Scanned == nil {
		return 0, errors.New("agent: missing scanned count")
	}
	return *env.Scanned, nil
}

func (c *Client) Stats(scope string) (model.CostedStats, error) {
	return decodeData[model.CostedStats](c, Request{Cmd: CmdStats, Scope: scope})
}

func (c *Client) StatsRange(start, end int64) (model.CostedStats, error) {
	return decodeData[model.CostedStats](c, Request{Cmd: CmdStatsRange, StartTs: start, EndTs: end})
}

func (c *Client) ByProvider(scope string) (map[string]model.CostedStats, error) {
	return decodeData[map[string]model.CostedStats](c, Request{Cmd: CmdByProvider, Scope: scope})
}

func (c *Client) ByProviderRange(start, end int64) (map[string]model.CostedStats, error) {
	return decodeData[map[string]model.CostedStats](c, Request{Cmd: CmdByProviderRange, StartTs: start, EndTs: end})
}

func (c *Client) ByModel(scope string) (map[string]map[string]model.CostedStats, error) {
	return decodeData[map[string]map[string]model.CostedStats](c, Request{Cmd: CmdByModel, Scope: scope})
}

func (c *Client) ByModelRange(start, end int64) (map[string]map[string]model.CostedStats, error) {
	return decodeData[map[string]map[string]model.CostedStats](c, Request{Cmd: CmdByModelRange, StartTs: start, EndTs: end})
}

// ExportCSV writes a scope export on the agent side and returns the
// resolved output path.
func (c *Client) ExportCSV(outPath, scope string) (string, error) {
	env, err := c.roundTrip(Request{Cmd: CmdExportCSV, OutPath: outPath, Scope: scope})
	if err != nil {
		return "", err
	}
	return env.Path, nil
}

func (c *Client) ExportCSVRange(outPath string, start, end int64) (string, error) {
	env, err := c.roundTrip(Request{Cmd: CmdExportCSVRange, OutPath: outPath, StartTs: start, EndTs: end})
	if err != nil {
		return "", err
	}
	return env.Path, nil
}

// Shutdown asks the agent to stop accepting connections and exit.
func (c *Client) Shutdown() error {
	_, err := c.roundTrip(Request{Cmd: CmdShutdown})
	return err
}

func decodeData[T any](c *Client, req Request) (T, error) {
	var out T
	env, err := c.roundTrip(req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decoding %s payload: %w", req.Cmd, err)
	}
	return out, nil
}
