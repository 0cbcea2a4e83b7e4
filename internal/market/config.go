// Package market holds the per-market configuration value object. The
// engine never hardcodes market specifics; commission rates, currency
// and the benchmark symbol all come from here.
package market

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"paper-trading-lab/internal/costs"
)

// Config describes one market deployment.
type Config struct {
	// Market is a short identifier, e.g. "us" or "kr".
	Market string `yaml:"market"`
	// Currency is the ISO code used in reports, e.g. "USD".
	Currency string `yaml:"currency"`

	// InitialCapital is the paper capital each strategy starts with.
	InitialCapital float64 `yaml:"initial_capital"`

	// BenchmarkSymbol is the index proxy snapshots compare against,
	// e.g. "SPY". Empty disables benchmark columns.
	BenchmarkSymbol string `yaml:"benchmark_symbol"`

	// RiskFreeDailyPct is the daily risk-free rate used by Sharpe,
	// in percent.
	RiskFreeDailyPct float64 `yaml:"risk_free_daily_pct"`

	// Strategies lists the strategy modes run against this market.
	Strategies []string `yaml:"strategies"`

	// Cost parameterizes the transaction cost model.
	Cost costs.Config `yaml:"cost"`
}

// Default returns a US-market configuration used when no file is given.
func Default() Config {
	return Config{
		Market:          "us",
		Currency:        "USD",
		InitialCapital:  100000,
		BenchmarkSymbol: "SPY",
		Strategies:      []string{"us_conservative", "us_aggressive"},
		Cost: costs.Config{
			CommissionRate: 0.0003,
			SlippageRate:   0.0005,
			MinCommission:  1.0,
		},
	}
}

// Load reads a market config file, filling unset fields from Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read market config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse market config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the engine relies on.
func (c Config) Validate() error {
	if c.Market == "" {
		return fmt.Errorf("market config: market is required")
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("market config: initial_capital must be positive, got %v", c.InitialCapital)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("market config: at least one strategy is required")
	}
	if c.Cost.CommissionRate < 0 || c.Cost.SlippageRate < 0 || c.Cost.MinCommission < 0 {
		return fmt.Errorf("market config: cost rates must be non-negative")
	}
	return nil
}
