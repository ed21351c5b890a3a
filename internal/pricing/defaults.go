package pricing

import "github.com/CHW0n9/OpenCode-Token-Meter/internal/config"

// DefaultRules maps "provider/model" keys to their built-in pricing.
// Prices are $ per 1M tokens; Request is a flat $ per request fee.
var DefaultRules = map[string]config.PriceRule{
	// Anthropic
	"anthropic/claude-haiku-4-5":  {Input: 1.0, Output: 5.0, Caching: 0.10},
	"anthropic/claude-opus-4-1":   {Input: 15.0, Output: 75.0, Caching: 1.50},
	"anthropic/claude-opus-4-5":   {Input: 5.0, Output: 25.0, Caching: 0.50},
	"anthropic/claude-opus-4-6":   {Input: 5.0, Output: 25.0, Caching: 0.50},
	"anthropic/claude-sonnet-4-5": {Input: 3.0, Output: 15.0, Caching: 0.30},

	// GitHub Copilot: token-free, billed per premium request
	"github-copilot/claude-haiku-4.5":       {Request: 0.0132},
	"github-copilot/claude-opus-4.5":        {Request: 0.12},
	"github-copilot/claude-sonnet-4.5":      {Request: 0.04},
	"github-copilot/gemini-3-flash-preview": {Request: 0.0132},
	"github-copilot/gemini-3-pro-preview":   {Request: 0.04},
	"github-copilot/gpt-5-mini":             {},
	"github-copilot/gpt-5.2-codex":          {Request: 0.04},

	// Google
	"google/gemini-3-flash-preview": {Input: 0.5, Output: 3.0, Caching: 0.05},
	"google/gemini-3-pro":           {Input: 2.5, Output: 15.0, Caching: 0.25},

	// NVIDIA NIM trial endpoints
	"nvidia/minimaxai/minimax-m2.1": {},
	"nvidia/openai/gpt-oss-120b":    {},
	"nvidia/z-ai/glm4.7":            {},

	// OpenCode hosted free tier
	"opencode/glm-4.7-free":      {},
	"opencode/gpt-5-nano":        {},
	"opencode/kimi-k2.5-free":    {},
	"opencode/minimax-m2.1-free": {},
}

// hardcodedFallback is used only when configuration is entirely absent.
var hardcodedFallback = config.PriceRule{Input: 0.5, Output: 3.0, Caching: 0.05}
