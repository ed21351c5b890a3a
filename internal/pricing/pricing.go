// Package pricing computes usage cost from pricing rules.
package pricing

import (
	"sort"
	"strings"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/config"
	"github.com/CHW0n9/OpenCode-Token-Meter/internal/model"
)

// Engine resolves pricing rules and turns usage stats into dollars.
// The zero value (no configuration) falls back to a hardcoded tier.
type Engine struct {
	overrides   map[string]config.PriceRule
	defaultTier config.PriceRule
	configured  bool
}

// NewEngine builds an engine from the injected pricing configuration.
func NewEngine(cfg config.PricingConfig) *Engine {
	return &Engine{
		overrides:   cfg.Models,
		defaultTier: cfg.Default,
		configured:  true,
	}
}

// Lookup resolves the pricing rule for a model. Precedence, first match
// wins: user override by "provider/model", user override by model id,
// built-in default by "provider/model", built-in default by model id,
// provider-level fallback, configured default tier, hardcoded tier.
func (e *Engine) Lookup(modelID, providerID string) config.PriceRule {
	combined := ""
	if providerID != "" && modelID != "" {
		combined = providerID + "/" + modelID
	}

	if combined != "" {
		if r, ok := e.overrides[combined]; ok {
			return r
		}
	}
	if modelID != "" {
		if r, ok := e.overrides[modelID]; ok {
			return r
		}
	}
	if combined != "" {
		if r, ok := DefaultRules[combined]; ok {
			return r
		}
	}
	if modelID != "" {
		if r, ok := DefaultRules[modelID]; ok {
			return r
		}
	}
	if r, ok := providerFallback(providerID); ok {
		return r
	}
	if e.configured {
		return e.defaultTier
	}
	return hardcodedFallback
}

// providerFallback covers providers whose models share one billing shape
// even when the specific model is not in the table.
func providerFallback(providerID string) (config.PriceRule, bool) {
	switch providerID {
	case "opencode", "nvidia":
		// Free tiers: zero token and request cost.
		return config.PriceRule{}, true
	case "github-copilot":
		// Token-free; take the request fee from the first known Copilot
		// model so an unlisted model still bills per request.
		keys := make([]string, 0, len(DefaultRules))
		for k := range DefaultRules {
			if strings.HasPrefix(k, "github-copilot/") {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		rule := config.PriceRule{}
		if len(keys) > 0 {
			rule.Request = DefaultRules[keys[0]].Request
		}
		return rule, true
	}
	return config.PriceRule{}, false
}

// Cost computes the dollar cost of the given usage stats. Reasoning
// tokens bill at the output rate, cache reads and writes both at the
// caching rate, and each user request adds the flat request fee.
func (e *Engine) Cost(stats model.UsageStats, modelID, providerID string) float64 {
	p := e.Lookup(modelID, providerID)

	totalOutput := stats.Output + stats.Reasoning
	totalCaching := stats.CacheRead + stats.CacheWrite

	return float64(stats.Input)*p.Input/1_000_000 +
		float64(totalOutput)*p.Output/1_000_000 +
		float64(totalCaching)*p.Caching/1_000_000 +
		float64(stats.Requests)*p.Request
}

// TotalCost sums Cost over every (provider, model) leaf. Applying a
// single rule to a mixed-model total would misprice it, so the grouped
// structure is required.
func (e *Engine) TotalCost(grouped map[string]map[string]model.UsageStats) float64 {
	var total float64
	for providerID, models := range grouped {
		for modelID, stats := range models {
			total += e.Cost(stats, modelID, providerID)
		}
	}
	return total
}
