// Package export materializes deduplicated usage rows as CSV files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/aggregate"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/store"
)

var header = []string{
	"session_id", "msg_id", "ts_iso", "role",
	"input", "output", "reasoning", "cache_read", "cache_write",
	"model", "provider_id", "model_id",
}

// Exporter streams deduplicated message rows to CSV.
type Exporter struct {
	store *store.Store
	agg   *aggregate.Aggregator
}

func New(st *store.Store, agg *aggregate.Aggregator) *Exporter {
	return &Exporter{store: st, agg: agg}
}

// ExportScope writes all rows in the named scope to outPath and returns
// the resolved file path. If outPath is an existing directory a
// timestamped filename is generated inside it.
func (e *Exporter) ExportScope(ctx context.Context, outPath, scope string, now time.Time) (string, error) {
	start, end, err := e.agg.ResolveScope(ctx, scope, now)
	if err != nil {
		return "", err
	}
	return e.write(ctx, resolvePath(outPath, "opencode_tokens_", now), start, end)
}

// ExportRange writes all rows in the half-open [start, end) interval to
// outPath and returns the resolved file path.
func (e *Exporter) ExportRange(ctx context.Context, outPath string, start, end int64, now time.Time) (string, error) {
	return e.write(ctx, resolvePath(outPath, "opencode_tokens_range_", now), start, end)
}

func (e *Exporter) write(ctx context.Context, path string, start, end int64) (string, error) {
	rows, err := e.store.DeduplicatedRows(ctx, store.Filter{StartTs: start, EndTs: end})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, rec := range rows {
		if err := w.Write(record(rec)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func record(rec model.MessageRecord) []string {
	return []string{
		rec.SessionID,
		rec.MsgID,
		time.Unix(rec.Ts, 0).UTC().Format("2006-01-02T15:04:05Z"),
		rec.Role,
		strconv.FormatInt(rec.Input, 10),
		strconv.FormatInt(rec.Output, 10),
		strconv.FormatInt(rec.Reasoning, 10),
		strconv.FormatInt(rec.CacheRead, 10),
		strconv.FormatInt(rec.CacheWrite, 10),
		rec.Model,
		rec.ProviderID,
		rec.ModelID,
	}
}

// resolvePath accepts either a file path or a destination directory. A
// directory gets a generated timestamped filename.
func resolvePath(outPath, prefix string, now time.Time) string {
	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		return filepath.Join(outPath, fmt.Sprintf("%s%d.csv", prefix, now.Unix()))
	}
	return outPath
}
