package pricing

import (
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
)

// ThresholdReport compares today's and this month's usage against the
// configured limits. It is attached to status responses for the external
// notifier to act on.
type ThresholdReport struct {
	DailyTokens           int64   `json:"daily_tokens"`
	DailyTokenLimit       int64   `json:"daily_token_limit"`
	DailyTokensExceeded   bool    `json:"daily_tokens_exceeded"`
	DailyCost             float64 `json:"daily_cost"`
	DailyCostLimit        float64 `json:"daily_cost_limit"`
	DailyCostExceeded     bool    `json:"daily_cost_exceeded"`
	MonthlyTokens         int64   `json:"monthly_tokens"`
	MonthlyTokenLimit     int64   `json:"monthly_token_limit"`
	MonthlyTokensExceeded bool    `json:"monthly_tokens_exceeded"`
	MonthlyCost           float64 `json:"monthly_cost"`
	MonthlyCostLimit      float64 `json:"monthly_cost_limit"`
	MonthlyCostExceeded   bool    `json:"monthly_cost_exceeded"`
}

// EvaluateThresholds builds a report from the day and month aggregates
// and their computed costs. A limit of zero is treated as unset.
func EvaluateThresholds(cfg config.ThresholdConfig, day, month model.UsageStats, dayCost, monthCost float64) ThresholdReport {
	r := ThresholdReport{
		DailyTokens:       day.TotalTokens(),
		DailyTokenLimit:   cfg.DailyTokens,
		DailyCost:         dayCost,
		DailyCostLimit:    cfg.DailyCost,
		MonthlyTokens:     month.TotalTokens(),
		MonthlyTokenLimit: cfg.MonthlyTokens,
		MonthlyCost:       monthCost,
		MonthlyCostLimit:  cfg.MonthlyCost,
	}
	r.DailyTokensExceeded = cfg.DailyTokens > 0 && r.DailyTokens >= cfg.DailyTokens
	r.DailyCostExceeded = cfg.DailyCost > 0 && r.DailyCost >= cfg.DailyCost
	r.MonthlyTokensExceeded = cfg.MonthlyTokens > 0 && r.MonthlyTokens >= cfg.MonthlyTokens
	r.MonthlyCostExceeded = cfg.MonthlyCost > 0 && r.MonthlyCost >= cfg.MonthlyCost
	return r
}
