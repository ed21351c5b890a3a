// Package model defines the usage records and statistics shared across the agent.
package model

// Role values stored on a message record.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageRecord is one logical usage event parsed from a message file.
// MsgID is the storage primary key; distinct msg_ids may still describe
// the same logical event, so accounting always goes through the
// deduplicated view keyed on the remaining fields.
type MessageRecord struct {
	MsgID      string
	SessionID  string
	Ts         int64 // unix seconds
	Input      int64
	Output     int64
	Reasoning  int64
	CacheRead  int64
	CacheWrite int64
	Model      string // legacy combined "provider/model" string, may be empty
	ProviderID string
	ModelID    string
	Role       string
}

// HasTokens reports whether any token field is nonzero. Used both for
// role inference at parse time and for counting genuine assistant
// responses in aggregates.
func (r MessageRecord) HasTokens() bool {
	return r.Input > 0 || r.Output > 0 || r.Reasoning > 0 || r.CacheRead > 0 || r.CacheWrite > 0
}

// UsageStats is the aggregate over a set of deduplicated records.
// Messages counts assistant rows with token usage; Requests counts user rows.
type UsageStats struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	Reasoning  int64 `json:"reasoning"`
	CacheRead  int64 `json:"cache_read"`
	CacheWrite int64 `json:"cache_write"`
	Messages   int64 `json:"messages"`
	Requests   int64 `json:"requests"`
}

// TotalTokens sums every token field, the figure threshold checks run on.
func (s UsageStats) TotalTokens() int64 {
	return s.Input + s.Output + s.Reasoning + s.CacheRead + s.CacheWrite
}

// CostedStats is UsageStats with the cost attached, as served to clients
// in grouped responses.
type CostedStats struct {
	UsageStats
	Cost float64 `json:"cost"`
}
