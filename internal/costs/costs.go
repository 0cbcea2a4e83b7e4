// Package costs models per-market transaction friction (commission plus
// slippage) as a pure function of trade notional.
package costs

// Config holds per-market transaction cost parameters. A nil Config means
// the market has no modeled friction (zero cost).
type Config struct {
	CommissionRate float64 `yaml:"commission_rate"` // fraction of notional, e.g. 0.0005
	SlippageRate   float64 `yaml:"slippage_rate"`   // fraction of notional, e.g. 0.001
	MinCommission  float64 `yaml:"min_commission"`  // floor applied to the commission component
}

// Charge returns the transaction cost for a trade of the given notional
// value:
//
//	max(notional * commission_rate, min_commission) + notional * slippage_rate
//
// It must be applied symmetrically: once when opening (reducing investable
// cash before computing shares) and once when closing (reducing realized
// proceeds). Non-positive notional costs nothing.
func Charge(notional float64, cfg *Config) float64 {
	if cfg == nil || notional <= 0 {
		return 0
	}

	commission := notional * cfg.CommissionRate
	if commission < cfg.MinCommission {
		commission = cfg.MinCommission
	}

	return commission + notional*cfg.SlippageRate
}
