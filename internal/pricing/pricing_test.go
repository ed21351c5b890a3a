package pricing

import (
	"testing"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
)

func TestLookupPrecedence(t *testing.T) {
	engine := NewEngine(config.PricingConfig{
		Default: config.PriceRule{Input: 0.1, Output: 0.2},
		Models: map[string]config.PriceRule{
			"anthropic/claude-sonnet-4-5": {Input: 99},
			"claude-opus-4-6":             {Input: 88},
		},
	})

	tests := []struct {
		name       string
		modelID    string
		providerID string
		wantInput  float64
	}{
		{"user override by provider/model", "claude-sonnet-4-5", "anthropic", 99},
		{"user override by bare model", "claude-opus-4-6", "anthropic", 88},
		{"built-in default", "claude-haiku-4-5", "anthropic", 1.0},
		{"configured default tier", "totally-unknown", "some-provider", 0.1},
		{"no provider falls through to default tier", "totally-unknown", "", 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Lookup(tt.modelID, tt.providerID); got.Input != tt.wantInput {
				t.Errorf("Lookup(%q, %q).Input = %v, want %v", tt.modelID, tt.providerID, got.Input, tt.wantInput)
			}
		})
	}
}

func TestLookupUserOverrideBeatsBuiltin(t *testing.T) {
	engine := NewEngine(config.PricingConfig{
		Models: map[string]config.PriceRule{
			"anthropic/claude-haiku-4-5": {Input: 42},
		},
	})
	if got := engine.Lookup("claude-haiku-4-5", "anthropic"); got.Input != 42 {
		t.Errorf("user override ignored: got %v", got.Input)
	}
}

func TestProviderFallbacks(t *testing.T) {
	engine := NewEngine(config.PricingConfig{Default: config.PriceRule{Input: 5}})

	free := engine.Lookup("some-new-model", "opencode")
	if free != (config.PriceRule{}) {
		t.Errorf("opencode fallback = %+v, want free tier", free)
	}
	free = engine.Lookup("another-model", "nvidia")
	if free != (config.PriceRule{}) {
		t.Errorf("nvidia fallback = %+v, want free tier", free)
	}

	copilot := engine.Lookup("unlisted-model", "github-copilot")
	if copilot.Input != 0 || copilot.Output != 0 {
		t.Errorf("copilot fallback has token pricing: %+v", copilot)
	}
	if copilot.Request != 0.0132 {
		t.Errorf("copilot request fee = %v, want 0.0132 (first listed model)", copilot.Request)
	}
}

func TestCostFormula(t *testing.T) {
	engine := NewEngine(config.PricingConfig{
		Models: map[string]config.PriceRule{
			"p/m": {Input: 2, Output: 10, Caching: 0.5, Request: 0.01},
		},
	})

	stats := model.UsageStats{
		Input:      1_000_000,
		Output:     500_000,
		Reasoning:  500_000,
		CacheRead:  1_000_000,
		CacheWrite: 1_000_000,
		Requests:   10,
	}
	// 2 + (0.5M+0.5M)*10/1M + 2M*0.5/1M + 10*0.01
	want := 2.0 + 10.0 + 1.0 + 0.1
	if got := engine.Cost(stats, "m", "p"); got != want {
		t.Errorf("Cost = %v, want %v", got, want)
	}
}

func TestCostUnconfiguredFallback(t *testing.T) {
	var engine Engine
	got := engine.Cost(model.UsageStats{Input: 1_000_000}, "x", "y")
	if got != 0.5 {
		t.Errorf("zero-value engine cost = %v, want hardcoded input rate", got)
	}
}

func TestTotalCostPerModelRates(t *testing.T) {
	engine := NewEngine(config.PricingConfig{
		Models: map[string]config.PriceRule{
			"p/cheap":     {Output: 1},
			"p/expensive": {Output: 100},
		},
	})

	grouped := map[string]map[string]model.UsageStats{
		"p": {
			"cheap":     {Output: 1_000_000},
			"expensive": {Output: 1_000_000},
		},
	}
	if got := engine.TotalCost(grouped); got != 101 {
		t.Errorf("TotalCost = %v, want 101", got)
	}
}

func TestEvaluateThresholds(t *testing.T) {
	cfg := config.ThresholdConfig{
		DailyTokens: 100,
		DailyCost:   1.0,
		MonthlyCost: 50,
	}
	day := model.UsageStats{Input: 60, Output: 40}
	month := model.UsageStats{Input: 500}

	r := EvaluateThresholds(cfg, day, month, 0.5, 49.99)
	if !r.DailyTokensExceeded {
		t.Error("daily tokens at exactly the limit should be flagged")
	}
	if r.DailyCostExceeded {
		t.Error("daily cost under limit flagged")
	}
	if r.MonthlyCostExceeded {
		t.Error("monthly cost under limit flagged")
	}
	// Zero limit means unset.
	if r.MonthlyTokensExceeded {
		t.Error("unset monthly token limit flagged")
	}
}
