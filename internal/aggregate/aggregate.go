// Package aggregate resolves scope keywords to time ranges and answers
// usage queries against the deduplicated message view.
package aggregate

import (
	"context"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/pricing"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/store"
)

// Scope keywords accepted by queries and the wire protocol.
const (
	ScopeToday   = "today"
	Scope7Days   = "7days"
	ScopeMonth   = "month"
	ScopeSession = "current_session"
	ScopeAll     = "all"
)

// Aggregator routes every scope query through a single time-range
// resolver so all call sites agree on window boundaries.
type Aggregator struct {
	store  *store.Store
	pricer *pricing.Engine
	loc    *time.Location
}

func New(st *store.Store, pricer *pricing.Engine, loc *time.Location) *Aggregator {
	return &Aggregator{store: st, pricer: pricer, loc: loc}
}

// ResolveLocation maps a configured timezone name to a location.
// "local" and the empty string mean the system zone; an unknown name
// silently falls back to local rather than failing queries.
func ResolveLocation(name string) *time.Location {
	switch name {
	case "", "local":
		return time.Local
	case "UTC", "utc":
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// normalizeScope folds the aliases older clients still send.
func normalizeScope(scope string) string {
	switch scope {
	case "week":
		return Scope7Days
	case "this_month":
		return ScopeMonth
	case "":
		return ScopeAll
	}
	return scope
}

// ResolveScope turns a scope keyword into a half-open [start, end)
// interval with boundaries computed in the aggregator's timezone.
// Unrecognized keywords resolve like "all".
func (a *Aggregator) ResolveScope(ctx context.Context, scope string, now time.Time) (int64, int64, error) {
	now = now.In(a.loc)
	end := now.Unix()

	switch normalizeScope(scope) {
	case ScopeToday:
		return dayStart(now).Unix(), end, nil
	case Scope7Days:
		return dayStart(now).AddDate(0, 0, -7).Unix(), end, nil
	case ScopeMonth:
		return monthStart(now).Unix(), end, nil
	case ScopeSession:
		sessionID, ok, err := a.store.LatestSessionID(ctx)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return end, end, nil
		}
		start, ok, err := a.store.SessionStart(ctx, sessionID)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return end, end, nil
		}
		return start, end, nil
	default:
		earliest, ok, err := a.store.EarliestTs(ctx)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return end, end, nil
		}
		return dayStart(time.Unix(earliest, 0).In(a.loc)).Unix(), end, nil
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Stats aggregates usage for a scope keyword, with the total cost
// computed from the per-model breakdown so each model is billed at its
// own rate.
func (a *Aggregator) Stats(ctx context.Context, scope string, now time.Time) (model.CostedStats, error) {
	start, end, err := a.ResolveScope(ctx, scope, now)
	if err != nil {
		return model.CostedStats{}, err
	}
	return a.StatsRange(ctx, start, end)
}

// StatsRange aggregates usage over an explicit half-open interval.
func (a *Aggregator) StatsRange(ctx context.Context, start, end int64) (model.CostedStats, error) {
	f := store.Filter{StartTs: start, EndTs: end}
	stats, err := a.store.Aggregate(ctx, f)
	if err != nil {
		return model.CostedStats{}, err
	}
	grouped, err := a.store.AggregateByModel(ctx, f)
	if err != nil {
		return model.CostedStats{}, err
	}
	return model.CostedStats{UsageStats: stats, Cost: a.pricer.TotalCost(grouped)}, nil
}

// ByProvider groups usage by provider for a scope keyword.
func (a *Aggregator) ByProvider(ctx context.Context, scope string, now time.Time) (map[string]model.CostedStats, error) {
	start, end, err := a.ResolveScope(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	return a.ByProviderRange(ctx, start, end)
}

// ByProviderRange groups usage by provider over an explicit interval.
// Costs are rolled up from the model-level breakdown.
func (a *Aggregator) ByProviderRange(ctx context.Context, start, end int64) (map[string]model.CostedStats, error) {
	f := store.Filter{StartTs: start, EndTs: end}
	byProvider, err := a.store.AggregateByProvider(ctx, f)
	if err != nil {
		return nil, err
	}
	byModel, err := a.store.AggregateByModel(ctx, f)
	if err != nil {
		return nil, err
	}

	result := make(map[string]model.CostedStats, len(byProvider))
	for provider, stats := range byProvider {
		var cost float64
		for modelID, st := range byModel[provider] {
			cost += a.pricer.Cost(st, modelID, provider)
		}
		result[provider] = model.CostedStats{UsageStats: stats, Cost: cost}
	}
	return result, nil
}

// ByModel groups usage by provider and model for a scope keyword.
func (a *Aggregator) ByModel(ctx context.Context, scope string, now time.Time) (map[string]map[string]model.CostedStats, error) {
	start, end, err := a.ResolveScope(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	return a.ByModelRange(ctx, start, end)
}

// ByModelRange groups usage by provider and model over an explicit
// interval, attaching a cost to each leaf.
func (a *Aggregator) ByModelRange(ctx context.Context, start, end int64) (map[string]map[string]model.CostedStats, error) {
	byModel, err := a.store.AggregateByModel(ctx, store.Filter{StartTs: start, EndTs: end})
	if err != nil {
		return nil, err
	}
	result := make(map[string]map[string]model.CostedStats, len(byModel))
	for provider, models := range byModel {
		result[provider] = make(map[string]model.CostedStats, len(models))
		for modelID, st := range models {
			result[provider][modelID] = model.CostedStats{
				UsageStats: st,
				Cost:       a.pricer.Cost(st, modelID, provider),
			}
		}
	}
	return result, nil
}

// Thresholds evaluates usage against the configured daily and monthly
// limits. The monthly window starts on the configured reset day, or the
// most recent occurrence of it.
func (a *Aggregator) Thresholds(ctx context.Context, cfg config.ThresholdConfig, now time.Time) (pricing.ThresholdReport, error) {
	now = now.In(a.loc)

	day, err := a.StatsRange(ctx, dayStart(now).Unix(), now.Unix())
	if err != nil {
		return pricing.ThresholdReport{}, err
	}

	month, err := a.StatsRange(ctx, resetStart(now, cfg.MonthlyResetDay).Unix(), now.Unix())
	if err != nil {
		return pricing.ThresholdReport{}, err
	}

	return pricing.EvaluateThresholds(cfg, day.UsageStats, month.UsageStats, day.Cost, month.Cost), nil
}

// resetStart finds the most recent midnight on the monthly reset day.
// Days outside 1..28 are clamped so every month has the boundary.
func resetStart(now time.Time, resetDay int) time.Time {
	if resetDay < 1 {
		resetDay = 1
	}
	if resetDay > 28 {
		resetDay = 28
	}
	start := time.Date(now.Year(), now.Month(), resetDay, 0, 0, 0, 0, now.Location())
	if start.After(now) {
		start = start.AddDate(0, -1, 0)
	}
	return start
}
