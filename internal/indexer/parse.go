// Package indexer discovers and parses OpenCode message files and keeps
// the local index in sync with the storage directory.
package indexer

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
)

// parseMessage extracts a usage record from a single message JSON body.
// The on-disk schema has drifted across OpenCode releases, so every
// field has a fallback chain. Returns false when the body is not a JSON
// object at all.
func parseMessage(data []byte, path, sessionID string, now time.Time) (model.MessageRecord, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.MessageRecord{}, false
	}

	rec := model.MessageRecord{
		MsgID:     asString(raw["id"]),
		SessionID: sessionID,
	}
	if rec.MsgID == "" {
		if v, ok := raw["msg_id"]; ok {
			rec.MsgID = asString(v)
		}
	}
	if rec.MsgID == "" {
		rec.MsgID = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	rec.Ts = extractTimestamp(raw, now)
	extractTokens(raw, &rec)
	extractModel(raw, &rec)

	rec.Role = asString(raw["role"])
	if rec.Role == "" {
		if rec.HasTokens() {
			rec.Role = model.RoleAssistant
		} else {
			rec.Role = model.RoleUser
		}
	}

	return rec, true
}

// extractTimestamp resolves the record timestamp in Unix seconds.
// Newer messages nest it under "time", older ones carry a flat numeric
// "time" or a "timestamp" field; values above 1e12 are taken as
// milliseconds. A flat "timestamp" is only consulted when the file has
// no "time" key at all.
func extractTimestamp(raw map[string]any, now time.Time) int64 {
	var ts int64
	if tv, ok := raw["time"]; ok {
		if t, ok := tv.(map[string]any); ok {
			ts = asInt(t["created"])
			if ts == 0 {
				ts = asInt(t["timestamp"])
			}
		} else {
			ts = asInt(tv)
		}
	} else {
		ts = asInt(raw["timestamp"])
	}
	if ts > 1_000_000_000_000 {
		ts /= 1000
	}
	if ts == 0 {
		ts = now.Unix()
	}
	return ts
}

// extractTokens fills the five token counters from either the native
// "tokens" object or the OpenAI-style "usage" object.
func extractTokens(raw map[string]any, rec *model.MessageRecord) {
	if t, ok := raw["tokens"].(map[string]any); ok {
		rec.Input = asInt(t["input"])
		rec.Output = asInt(t["output"])
		rec.Reasoning = asInt(t["reasoning"])
		if c, ok := t["cache"].(map[string]any); ok {
			rec.CacheRead = asInt(c["read"])
			rec.CacheWrite = asInt(c["write"])
		}
		return
	}
	if u, ok := raw["usage"].(map[string]any); ok {
		rec.Input = asInt(u["prompt_tokens"])
		rec.Output = asInt(u["completion_tokens"])
		if d, ok := u["completion_tokens_details"].(map[string]any); ok {
			rec.Reasoning = asInt(d["reasoning_tokens"])
		}
		if d, ok := u["prompt_tokens_details"].(map[string]any); ok {
			rec.CacheRead = asInt(d["cached_tokens"])
		}
	}
}

// extractModel resolves provider and model identifiers. Top-level
// providerID/modelID win; a nested model object fills gaps and yields
// the combined "provider/model" name; a flat model string (or
// meta.model when no model key exists) becomes the raw name.
func extractModel(raw map[string]any, rec *model.MessageRecord) {
	rec.ProviderID = asString(raw["providerID"])
	rec.ModelID = asString(raw["modelID"])

	mv, hasModel := raw["model"]
	switch m := mv.(type) {
	case map[string]any:
		if rec.ProviderID == "" {
			rec.ProviderID = asString(m["providerID"])
		}
		if rec.ModelID == "" {
			rec.ModelID = asString(m["modelID"])
		}
		if rec.ProviderID != "" && rec.ModelID != "" {
			rec.Model = rec.ProviderID + "/" + rec.ModelID
		}
	case string:
		rec.Model = m
	}

	if !hasModel {
		if meta, ok := raw["meta"].(map[string]any); ok {
			rec.Model = asString(meta["model"])
		}
	}
	if rec.Model == "" && rec.ModelID != "" {
		rec.Model = rec.ModelID
	}
}

// asInt coerces a decoded JSON value to a non-negative int64.
func asInt(v any) int64 {
	var n int64
	switch x := v.(type) {
	case float64:
		n = int64(x)
	case json.Number:
		n, _ = x.Int64()
	case int64:
		n = x
	case int:
		n = int64(x)
	}
	if n < 0 {
		return 0
	}
	return n
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
