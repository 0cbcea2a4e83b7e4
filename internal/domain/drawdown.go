package domain

// Drawdown tiers classified from the latest snapshot's max drawdown.
const (
	DrawdownTierNormal   = "NORMAL"
	DrawdownTierWarning  = "WARNING"
	DrawdownTierStopped  = "STOPPED"
	DrawdownTierCritical = "CRITICAL"
)

// DrawdownStatus is derived fresh each run from the latest snapshot; it is
// never stored independently.
type DrawdownStatus struct {
	MaxDrawdown    float64 // negative percentage
	Tier           string
	CanOpen        bool
	SizeMultiplier float64 // 1.0 / 0.5 / 0.0
}
