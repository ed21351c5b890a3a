// Package ipc implements the agent's local socket protocol: one
// newline-terminated JSON request and one response per connection.
package ipc

import "github.com/CHW0n9/OpenCode-Token-Meter/internal/pricing"

// Command names accepted on the wire.
const (
	CmdStatus          = "status"
	CmdRefresh         = "refresh"
	CmdStats           = "stats"
	CmdStatsRange      = "stats_range"
	CmdByProvider      = "stats_by_provider"
	CmdByProviderRange = "stats_by_provider_range"
	CmdByModel         = "stats_by_model"
	CmdByModelRange    = "stats_by_model_range"
	CmdExportCSV       = "export_csv"
	CmdExportCSVRange  = "export_csv_range"
	CmdThresholds      = "thresholds"
	CmdShutdown        = "shutdown"
)

// Request is the single JSON object a client sends. Fields beyond Cmd
// are command-specific.
type Request struct {
	Cmd     string `json:"cmd"`
	Scope   string `json:"scope,omitempty"`
	StartTs int64  `json:"start_ts,omitempty"`
	EndTs   int64  `json:"end_ts,omitempty"`
	OutPath string `json:"out_path,omitempty"`
}

// Response is the single JSON object the server replies with. Only the
// fields relevant to the command are populated.
type Response struct {
	OK           bool                     `json:"ok"`
	Err          string                   `json:"err,omitempty"`
	Data         any                      `json:"data,omitempty"`
	Scanned      *int                     `json:"scanned,omitempty"`
	Path         string                   `json:"path,omitempty"`
	LastScanTime *int64                   `json:"last_scan_time,omitempty"`
	MessageCount *int64                   `json:"message_count,omitempty"`
	Thresholds   *pricing.ThresholdReport `json:"thresholds,omitempty"`
	Msg          string                   `json:"msg,omitempty"`
}

func errResponse(err error) Response {
	return Response{OK: false, Err: err.Error()}
}
