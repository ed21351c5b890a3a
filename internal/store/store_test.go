package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testRecord(msgID, sessionID string, ts int64) model.MessageRecord {
	return model.MessageRecord{
		MsgID:      msgID,
		SessionID:  sessionID,
		Ts:         ts,
		Input:      100,
		Output:     50,
		Reasoning:  10,
		CacheRead:  5,
		CacheWrite: 2,
		Model:      "claude-sonnet-4-5",
		ProviderID: "anthropic",
		ModelID:    "claude-sonnet-4-5",
		Role:       model.RoleAssistant,
	}
}

func TestAggregateEmpty(t *testing.T) {
	st := openTestStore(t)

	stats, err := st.Aggregate(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats != (model.UsageStats{}) {
		t.Errorf("empty store aggregate = %+v, want all zeros", stats)
	}
}

func TestAggregateCountsDuplicatesOnce(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// Same logical event recorded under two message ids.
	for _, id := range []string{"msg_b", "msg_a"} {
		if err := st.UpsertMessage(ctx, testRecord(id, "ses_1", 1000)); err != nil {
			t.Fatalf("UpsertMessage(%s): %v", id, err)
		}
	}

	stats, err := st.Aggregate(ctx, Filter{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.Input != 100 || stats.Output != 50 {
		t.Errorf("duplicate group double counted: %+v", stats)
	}
	if stats.Messages != 1 {
		t.Errorf("Messages = %d, want 1", stats.Messages)
	}

	rows, err := st.DeduplicatedRows(ctx, Filter{})
	if err != nil {
		t.Fatalf("DeduplicatedRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].MsgID != "msg_a" {
		t.Errorf("kept msg_id %q, want the smallest (msg_a)", rows[0].MsgID)
	}
}

func TestAggregateDistinguishesTokenVariants(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// Same timestamp but different token counts: two distinct events.
	a := testRecord("msg_1", "ses_1", 1000)
	b := testRecord("msg_2", "ses_1", 1000)
	b.Input = 999
	for _, rec := range []model.MessageRecord{a, b} {
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}

	stats, err := st.Aggregate(ctx, Filter{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.Messages != 2 {
		t.Errorf("Messages = %d, want 2", stats.Messages)
	}
	if want := int64(100 + 999); stats.Input != want {
		t.Errorf("Input = %d, want %d", stats.Input, want)
	}
}

func TestAggregateRequestsAndZeroTokenAssistant(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	user := model.MessageRecord{MsgID: "msg_u", SessionID: "ses_1", Ts: 900, Role: model.RoleUser}
	empty := model.MessageRecord{MsgID: "msg_e", SessionID: "ses_1", Ts: 901, Role: model.RoleAssistant}
	full := testRecord("msg_f", "ses_1", 902)

	for _, rec := range []model.MessageRecord{user, empty, full} {
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}

	stats, err := st.Aggregate(ctx, Filter{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	// The zero-token assistant row is a placeholder, not a message.
	if stats.Messages != 1 {
		t.Errorf("Messages = %d, want 1", stats.Messages)
	}
	if stats.Requests != 1 {
		t.Errorf("Requests = %d, want 1", stats.Requests)
	}
}

func TestFilterRangeHalfOpen(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i, ts := range []int64{100, 200, 300} {
		rec := testRecord("msg_"+string(rune('a'+i)), "ses_1", ts)
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}

	stats, err := st.Aggregate(ctx, Filter{StartTs: 100, EndTs: 300})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.Messages != 2 {
		t.Errorf("Messages = %d, want 2 (start inclusive, end exclusive)", stats.Messages)
	}
}

func TestAggregateByProviderUnknown(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	known := testRecord("msg_1", "ses_1", 100)
	anon := testRecord("msg_2", "ses_1", 200)
	anon.ProviderID = ""
	anon.ModelID = ""
	for _, rec := range []model.MessageRecord{known, anon} {
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}

	grouped, err := st.AggregateByProvider(ctx, Filter{})
	if err != nil {
		t.Fatalf("AggregateByProvider: %v", err)
	}
	if len(grouped) != 2 {
		t.Fatalf("got %d providers, want 2: %v", len(grouped), grouped)
	}
	if _, ok := grouped["unknown"]; !ok {
		t.Error("missing 'unknown' bucket for null provider_id")
	}
	if grouped["anthropic"].Messages != 1 {
		t.Errorf("anthropic messages = %d, want 1", grouped["anthropic"].Messages)
	}
}

func TestAggregateByModelNested(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := testRecord("msg_1", "ses_1", 100)
	b := testRecord("msg_2", "ses_1", 200)
	b.ModelID = "claude-haiku-4-5"
	for _, rec := range []model.MessageRecord{a, b} {
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}

	grouped, err := st.AggregateByModel(ctx, Filter{})
	if err != nil {
		t.Fatalf("AggregateByModel: %v", err)
	}
	if len(grouped["anthropic"]) != 2 {
		t.Fatalf("anthropic models = %d, want 2", len(grouped["anthropic"]))
	}
	if grouped["anthropic"]["claude-haiku-4-5"].Messages != 1 {
		t.Error("per-model split incorrect")
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("msg_1", "ses_1", 100)
	if err := st.UpsertMessage(ctx, rec); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	rec.Output = 5000
	if err := st.UpsertMessage(ctx, rec); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}

	stats, err := st.Aggregate(ctx, Filter{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.Messages != 1 || stats.Output != 5000 {
		t.Errorf("re-upsert did not replace: %+v", stats)
	}
}

func TestWatermarks(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.Watermark(ctx, "/tmp/x"); err != nil || ok {
		t.Fatalf("Watermark on unseen path: ok=%v err=%v", ok, err)
	}
	if err := st.SetWatermark(ctx, "/tmp/x", 42); err != nil {
		t.Fatalf("SetWatermark: %v", err)
	}
	if err := st.SetWatermark(ctx, "/tmp/x", 99); err != nil {
		t.Fatalf("SetWatermark update: %v", err)
	}
	mtime, ok, err := st.Watermark(ctx, "/tmp/x")
	if err != nil || !ok {
		t.Fatalf("Watermark: ok=%v err=%v", ok, err)
	}
	if mtime != 99 {
		t.Errorf("mtime = %d, want 99", mtime)
	}
}

func TestSessionHelpers(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.LatestSessionID(ctx); err != nil || ok {
		t.Fatalf("LatestSessionID on empty store: ok=%v err=%v", ok, err)
	}

	for _, rec := range []model.MessageRecord{
		testRecord("msg_1", "ses_old", 100),
		testRecord("msg_2", "ses_new", 500),
		testRecord("msg_3", "ses_new", 700),
	} {
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}

	id, ok, err := st.LatestSessionID(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestSessionID: ok=%v err=%v", ok, err)
	}
	if id != "ses_new" {
		t.Errorf("latest session = %q, want ses_new", id)
	}

	start, ok, err := st.SessionStart(ctx, "ses_new")
	if err != nil || !ok {
		t.Fatalf("SessionStart: ok=%v err=%v", ok, err)
	}
	if start != 500 {
		t.Errorf("session start = %d, want 500", start)
	}

	earliest, ok, err := st.EarliestTs(ctx)
	if err != nil || !ok {
		t.Fatalf("EarliestTs: ok=%v err=%v", ok, err)
	}
	if earliest != 100 {
		t.Errorf("earliest = %d, want 100", earliest)
	}
}

func TestBackfillRoles(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	withTokens := testRecord("msg_1", "ses_1", 100)
	withTokens.Role = ""
	noTokens := model.MessageRecord{MsgID: "msg_2", SessionID: "ses_1", Ts: 200}

	for _, rec := range []model.MessageRecord{withTokens, noTokens} {
		if err := st.UpsertMessage(ctx, rec); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}

	fixed, err := st.BackfillRoles(ctx)
	if err != nil {
		t.Fatalf("BackfillRoles: %v", err)
	}
	if fixed != 2 {
		t.Errorf("fixed = %d, want 2", fixed)
	}

	stats, err := st.Aggregate(ctx, Filter{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if stats.Messages != 1 || stats.Requests != 1 {
		t.Errorf("after backfill: messages=%d requests=%d, want 1/1", stats.Messages, stats.Requests)
	}
}
