package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/aggregate"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/pricing"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/store"
)

func newTestExporter(t *testing.T) (*Exporter, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	agg := aggregate.New(st, pricing.NewEngine(config.DefaultConfig().Pricing), time.UTC)
	return New(st, agg), st
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening export: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	return rows
}

func TestExportRangeRoundTrip(t *testing.T) {
	exp, st := newTestExporter(t)
	ctx := context.Background()

	recs := []model.MessageRecord{
		{MsgID: "msg_1", SessionID: "ses_1", Ts: 1000, Input: 10, Output: 5, Role: model.RoleAssistant, ProviderID: "anthropic", ModelID: "claude-sonnet-4-5", Model: "claude-sonnet-4-5"},
		{MsgID: "msg_2", SessionID: "ses_1", Ts: 1100, Input: 20, Output: 9, Reasoning: 3, Role: model.RoleAssistant, ProviderID: "anthropic", ModelID: "claude-sonnet-4-5", Model: "claude-sonnet-4-5"},
		{MsgID: "msg_3", SessionID: "ses_1", Ts: 1200, Role: model.RoleUser},
	}
	for _, rec := range recs {
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	out := filepath.Join(t.TempDir(), "out.csv")
	path, err := exp.ExportRange(ctx, out, 1000, 2000, time.Now())
	if err != nil {
		t.Fatalf("ExportRange: %v", err)
	}
	if path != out {
		t.Errorf("path = %q, want %q", path, out)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	wantHeader := "session_id,msg_id,ts_iso,role,input,output,reasoning,cache_read,cache_write,model,provider_id,model_id"
	if got := strings.Join(rows[0], ","); got != wantHeader {
		t.Errorf("header = %s", got)
	}

	// Summed CSV token columns must match the deduplicated aggregate.
	var input, output int64
	for _, row := range rows[1:] {
		in, _ := strconv.ParseInt(row[4], 10, 64)
		outTok, _ := strconv.ParseInt(row[5], 10, 64)
		input += in
		output += outTok
	}
	stats, err := st.Aggregate(ctx, store.Filter{StartTs: 1000, EndTs: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if input != stats.Input || output != stats.Output {
		t.Errorf("csv sums %d/%d, aggregate %d/%d", input, output, stats.Input, stats.Output)
	}
}

func TestExportTimestampISO(t *testing.T) {
	exp, st := newTestExporter(t)
	ctx := context.Background()

	err := st.UpsertMessage(ctx, model.MessageRecord{
		MsgID: "msg_1", SessionID: "ses_1", Ts: 1700000000, Input: 1, Role: model.RoleAssistant,
	})
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.csv")
	if _, err := exp.ExportRange(ctx, out, 0, 0, time.Now()); err != nil {
		t.Fatal(err)
	}
	rows := readCSV(t, out)
	if got, want := rows[1][2], "2023-11-14T22:13:20Z"; got != want {
		t.Errorf("ts_iso = %q, want %q", got, want)
	}
}

func TestExportDeduplicates(t *testing.T) {
	exp, st := newTestExporter(t)
	ctx := context.Background()

	// Duplicate group: same logical event, two ids.
	for _, id := range []string{"m2", "m1"} {
		err := st.UpsertMessage(ctx, model.MessageRecord{
			MsgID: id, SessionID: "ses_1", Ts: 1000, Input: 10, Role: model.RoleAssistant,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	out := filepath.Join(t.TempDir(), "out.csv")
	if _, err := exp.ExportRange(ctx, out, 0, 0, time.Now()); err != nil {
		t.Fatal(err)
	}
	rows := readCSV(t, out)
	if len(rows) != 2 {
		t.Fatalf("got %d data rows, want 1", len(rows)-1)
	}
	if rows[1][1] != "m1" {
		t.Errorf("kept msg_id %q, want m1", rows[1][1])
	}
}

func TestExportCreatesParentDirectories(t *testing.T) {
	exp, st := newTestExporter(t)
	ctx := context.Background()

	err := st.UpsertMessage(ctx, model.MessageRecord{
		MsgID: "msg_1", SessionID: "ses_1", Ts: 1000, Input: 1, Role: model.RoleAssistant,
	})
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "nested", "deeper", "out.csv")
	path, err := exp.ExportRange(ctx, out, 0, 2000, time.Now())
	if err != nil {
		t.Fatalf("ExportRange into missing directory: %v", err)
	}
	if rows := readCSV(t, path); len(rows) != 2 {
		t.Errorf("got %d rows, want header + 1", len(rows))
	}
}

func TestExportDirectoryDestination(t *testing.T) {
	exp, st := newTestExporter(t)
	ctx := context.Background()

	err := st.UpsertMessage(ctx, model.MessageRecord{
		MsgID: "msg_1", SessionID: "ses_1", Ts: 1000, Input: 1, Role: model.RoleAssistant,
	})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	path, err := exp.ExportScope(ctx, dir, "all", now)
	if err != nil {
		t.Fatalf("ExportScope: %v", err)
	}
	if want := filepath.Join(dir, "opencode_tokens_1700000000.csv"); path != want {
		t.Errorf("scope export path = %q, want %q", path, want)
	}

	path, err = exp.ExportRange(ctx, dir, 0, 2000, now)
	if err != nil {
		t.Fatalf("ExportRange: %v", err)
	}
	if want := filepath.Join(dir, "opencode_tokens_range_1700000000.csv"); path != want {
		t.Errorf("range export path = %q, want %q", path, want)
	}
}
