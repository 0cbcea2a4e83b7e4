// Package drawdown classifies a strategy's current max drawdown into
// position-sizing tiers. The governor only throttles new opens; it
// never liquidates existing positions.
package drawdown

import (
	"paper-trading-lab/internal/domain"
)

// CriticalFloorPct is the fixed drawdown floor below which the strategy
// is flagged for operator attention. Not configurable.
const CriticalFloorPct = -50.0

// Governor applies drawdown tier thresholds. Thresholds are negative
// percentages with StopNewPct < WarningPct.
type Governor struct {
	WarningPct float64
	StopNewPct float64
}

// New creates a Governor from resolved strategy parameters.
func New(p domain.StrategyParameters) *Governor {
	return &Governor{
		WarningPct: p.MDDWarningPct,
		StopNewPct: p.MDDStopNewPct,
	}
}

// Classify derives the drawdown status from the latest snapshot. A nil
// snapshot or one without a computed max drawdown is a fresh start:
// normal tier, full size.
func (g *Governor) Classify(latest *domain.Snapshot) domain.DrawdownStatus {
	if latest == nil || latest.MaxDrawdown == nil {
		return domain.DrawdownStatus{
			MaxDrawdown:    0,
			Tier:           domain.DrawdownTierNormal,
			CanOpen:        true,
			SizeMultiplier: 1.0,
		}
	}

	mdd := *latest.MaxDrawdown
	status := domain.DrawdownStatus{MaxDrawdown: mdd}

	switch {
	case mdd > g.WarningPct:
		status.Tier = domain.DrawdownTierNormal
		status.CanOpen = true
		status.SizeMultiplier = 1.0
	case mdd > g.StopNewPct:
		status.Tier = domain.DrawdownTierWarning
		status.CanOpen = true
		status.SizeMultiplier = 0.5
	case mdd > CriticalFloorPct:
		status.Tier = domain.DrawdownTierStopped
		status.CanOpen = false
		status.SizeMultiplier = 0
	default:
		status.Tier = domain.DrawdownTierCritical
		status.CanOpen = false
		status.SizeMultiplier = 0
	}

	return status
}
