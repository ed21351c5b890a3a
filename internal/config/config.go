// Package config loads the agent settings and resolves well-known paths.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all agent configuration.
type Config struct {
	// Timezone is "local", "UTC", or an IANA zone name like "Asia/Hong_Kong".
	Timezone   string          `toml:"timezone"`
	General    GeneralConfig   `toml:"general"`
	Pricing    PricingConfig   `toml:"pricing"`
	Thresholds ThresholdConfig `toml:"thresholds"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	// MessageRoot overrides the default OpenCode message storage directory.
	MessageRoot string `toml:"message_root,omitempty"`
	// RefreshInterval is the periodic incremental scan interval in seconds.
	RefreshInterval int `toml:"refresh_interval"`
	// DefaultScope is the scope used when a client omits one.
	DefaultScope string `toml:"default_scope"`
}

// PriceRule holds $ per 1M tokens for each token class plus a flat
// per-request fee.
type PriceRule struct {
	Input   float64 `toml:"input"`
	Output  float64 `toml:"output"`
	Caching float64 `toml:"caching"`
	Request float64 `toml:"request"`
}

// PricingConfig holds the default tier and user overrides keyed by
// "provider/model" or bare model id.
type PricingConfig struct {
	Default PriceRule            `toml:"default"`
	Models  map[string]PriceRule `toml:"models,omitempty"`
}

// ThresholdConfig holds usage alert limits, served to clients through
// the thresholds command.
type ThresholdConfig struct {
	Enabled         bool    `toml:"enabled"`
	DailyTokens     int64   `toml:"daily_tokens"`
	DailyCost       float64 `toml:"daily_cost"`
	MonthlyTokens   int64   `toml:"monthly_tokens"`
	MonthlyCost     float64 `toml:"monthly_cost"`
	MonthlyResetDay int     `toml:"monthly_reset_day"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Timezone: "local",
		General: GeneralConfig{
			RefreshInterval: 300,
			DefaultScope:    "7days",
		},
		Pricing: PricingConfig{
			Default: PriceRule{Input: 0.5, Output: 3.0, Caching: 0.05},
		},
		Thresholds: ThresholdConfig{
			DailyTokens:     1_000_000,
			DailyCost:       20.0,
			MonthlyTokens:   10_000_000,
			MonthlyCost:     1000.0,
			MonthlyResetDay: 1,
		},
	}
}

// Load reads the config file, returning defaults if it doesn't exist.
// On a corrupt file the defaults are returned alongside the error so the
// caller can keep running on them.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config: %w", err)
	}

	if cfg.General.RefreshInterval <= 0 {
		cfg.General.RefreshInterval = 300
	}

	return cfg, nil
}
