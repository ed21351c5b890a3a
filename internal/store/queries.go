package store

import (
	"context"
	"database/sql"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
)

// Filter selects messages prior to deduplication. Zero fields are
// unconstrained; the timestamp range is half-open [StartTs, EndTs).
type Filter struct {
	StartTs   int64
	EndTs     int64
	SessionID string
	Role      string
}

// clause builds a parameterized WHERE body for the filter. Values are
// always bound, never interpolated.
func (f Filter) clause() (string, []any) {
	where := "1=1"
	var args []any
	if f.StartTs > 0 {
		where += " AND ts >= ?"
		args = append(args, f.StartTs)
	}
	if f.EndTs > 0 {
		where += " AND ts < ?"
		args = append(args, f.EndTs)
	}
	if f.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, f.SessionID)
	}
	if f.Role != "" {
		where += " AND role = ?"
		args = append(args, f.Role)
	}
	return where, args
}

// dedupSubquery keeps exactly one row per duplicate group: the one with
// the lexicographically smallest msg_id.
func dedupSubquery(where string) string {
	return `(SELECT * FROM messages WHERE ` + where + `
		GROUP BY ts, role, input, output, reasoning, cache_read, cache_write, provider_id, model_id
		HAVING msg_id = MIN(msg_id))`
}

// tokenFilter distinguishes genuine assistant responses from zero-usage
// placeholder rows.
const tokenFilter = "(input > 0 OR output > 0 OR reasoning > 0 OR cache_read > 0 OR cache_write > 0)"

const statColumns = `
	COALESCE(SUM(input), 0), COALESCE(SUM(output), 0), COALESCE(SUM(reasoning), 0),
	COALESCE(SUM(cache_read), 0), COALESCE(SUM(cache_write), 0),
	COUNT(CASE WHEN role = 'assistant' AND ` + tokenFilter + ` THEN 1 END),
	COUNT(CASE WHEN role = 'user' THEN 1 END)`

// Aggregate sums token fields and counts messages/requests over the
// deduplicated view matching the filter. An empty match yields all zeros.
func (s *Store) Aggregate(ctx context.Context, f Filter) (model.UsageStats, error) {
	where, args := f.clause()
	var st model.UsageStats
	err := s.db.QueryRowContext(ctx,
		"SELECT"+statColumns+" FROM "+dedupSubquery(where), args...,
	).Scan(&st.Input, &st.Output, &st.Reasoning, &st.CacheRead, &st.CacheWrite,
		&st.Messages, &st.Requests)
	if err != nil {
		return model.UsageStats{}, wrapBusy(err)
	}
	return st, nil
}

// AggregateByProvider groups the deduplicated view by provider_id,
// substituting "unknown" for a null identifier.
func (s *Store) AggregateByProvider(ctx context.Context, f Filter) (map[string]model.UsageStats, error) {
	where, args := f.clause()
	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(provider_id, 'unknown'),"+statColumns+
			" FROM "+dedupSubquery(where)+" GROUP BY provider_id", args...)
	if err != nil {
		return nil, wrapBusy(err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]model.UsageStats)
	for rows.Next() {
		var provider string
		var st model.UsageStats
		if err := rows.Scan(&provider, &st.Input, &st.Output, &st.Reasoning,
			&st.CacheRead, &st.CacheWrite, &st.Messages, &st.Requests); err != nil {
			return nil, err
		}
		result[provider] = st
	}
	return result, rows.Err()
}

// AggregateByModel groups the deduplicated view by provider_id and
// model_id.
func (s *Store) AggregateByModel(ctx context.Context, f Filter) (map[string]map[string]model.UsageStats, error) {
	where, args := f.clause()
	rows, err := s.db.QueryContext(ctx,
		"SELECT COALESCE(provider_id, 'unknown'), COALESCE(model_id, 'unknown'),"+statColumns+
			" FROM "+dedupSubquery(where)+" GROUP BY provider_id, model_id", args...)
	if err != nil {
		return nil, wrapBusy(err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]map[string]model.UsageStats)
	for rows.Next() {
		var provider, modelID string
		var st model.UsageStats
		if err := rows.Scan(&provider, &modelID, &st.Input, &st.Output, &st.Reasoning,
			&st.CacheRead, &st.CacheWrite, &st.Messages, &st.Requests); err != nil {
			return nil, err
		}
		if result[provider] == nil {
			result[provider] = make(map[string]model.UsageStats)
		}
		result[provider][modelID] = st
	}
	return result, rows.Err()
}

// DeduplicatedRows returns one full record per duplicate group matching
// the filter, ordered by timestamp. Within a group the smallest
// session_id, msg_id, and model are kept so the output is stable.
func (s *Store) DeduplicatedRows(ctx context.Context, f Filter) ([]model.MessageRecord, error) {
	where, args := f.clause()
	rows, err := s.db.QueryContext(ctx, `SELECT
		MIN(session_id), MIN(msg_id), ts, role,
		input, output, reasoning, cache_read, cache_write,
		MIN(model), provider_id, model_id
		FROM messages WHERE `+where+`
		GROUP BY ts, role, input, output, reasoning, cache_read, cache_write, provider_id, model_id
		ORDER BY ts`, args...)
	if err != nil {
		return nil, wrapBusy(err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.MessageRecord
	for rows.Next() {
		var rec model.MessageRecord
		var sessionID, msgID, role, modelStr, providerID, modelID sql.NullString
		if err := rows.Scan(&sessionID, &msgID, &rec.Ts, &role,
			&rec.Input, &rec.Output, &rec.Reasoning, &rec.CacheRead, &rec.CacheWrite,
			&modelStr, &providerID, &modelID); err != nil {
			return nil, err
		}
		rec.SessionID = sessionID.String
		rec.MsgID = msgID.String
		rec.Role = role.String
		rec.Model = modelStr.String
		rec.ProviderID = providerID.String
		rec.ModelID = modelID.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
