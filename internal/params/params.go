// Package params resolves per-strategy trading parameters from a
// key-value source, falling back to hardcoded defaults when the source
// is unavailable. Resolved values are clamped to per-parameter bounds
// and snapped to their step so a bad write can never push the engine
// outside its operating envelope.
package params

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/domain"
)

// Parameter keys as stored in the parameter source.
const (
	KeyStopLossPct         = "stop_loss_pct"
	KeyTakeProfitPct       = "take_profit_pct"
	KeyScoreExitThreshold  = "score_exit_threshold"
	KeyMaxHoldDays         = "max_hold_days"
	KeyAbsoluteMaxHoldDays = "absolute_max_hold_days"
	KeyMaxPositions        = "max_positions"
	KeyMDDWarningPct       = "mdd_warning_pct"
	KeyMDDStopNewPct       = "mdd_stop_new_pct"
)

// Bounds constrains one parameter. Values outside [Min, Max] are
// clamped; Step > 0 snaps the value to the nearest multiple of Step
// counted from Min.
type Bounds struct {
	Min  float64
	Max  float64
	Step float64
}

// bounds holds the operating envelope per parameter key.
var bounds = map[string]Bounds{
	KeyStopLossPct:         {Min: -15, Max: -3, Step: 0.5},
	KeyTakeProfitPct:       {Min: 4, Max: 20, Step: 0.5},
	KeyScoreExitThreshold:  {Min: 0.2, Max: 0.8, Step: 0.05},
	KeyMaxHoldDays:         {Min: 3, Max: 30, Step: 1},
	KeyAbsoluteMaxHoldDays: {Min: 5, Max: 45, Step: 1},
	KeyMaxPositions:        {Min: 1, Max: 20, Step: 1},
	KeyMDDWarningPct:       {Min: -25, Max: -5, Step: 1},
	KeyMDDStopNewPct:       {Min: -40, Max: -8, Step: 1},
}

// Defaults returns the hardcoded parameter set used when the source has
// no value for a key or cannot be reached at all.
func Defaults() domain.StrategyParameters {
	return domain.StrategyParameters{
		StopLossPct:         -7.0,
		TakeProfitPct:       8.0,
		ScoreExitThreshold:  0.45,
		MaxHoldDays:         10,
		AbsoluteMaxHoldDays: 15,
		MaxPositions:        5,
		MDDWarningPct:       -10.0,
		MDDStopNewPct:       -15.0,
	}
}

// Source supplies raw parameter values. ok=false means the key is unset
// or the source failed; the caller falls back to the default either way.
type Source interface {
	Lookup(ctx context.Context, strategy, key string) (float64, bool)
}

// Resolve fetches the full parameter set for a strategy, applying
// defaults, bounds and step snapping. A nil source resolves to pure
// defaults. Resolution never fails; source errors degrade silently to
// defaults.
func Resolve(ctx context.Context, src Source, strategy string, log zerolog.Logger) domain.StrategyParameters {
	d := Defaults()
	if src == nil {
		return d
	}

	get := func(key string, def float64) float64 {
		raw, ok := src.Lookup(ctx, strategy, key)
		if !ok {
			return def
		}
		v := snap(key, raw)
		if v != raw {
			log.Debug().
				Str("strategy", strategy).
				Str("key", key).
				Float64("raw", raw).
				Float64("applied", v).
				Msg("parameter adjusted to bounds")
		}
		return v
	}

	p := domain.StrategyParameters{
		StopLossPct:         get(KeyStopLossPct, d.StopLossPct),
		TakeProfitPct:       get(KeyTakeProfitPct, d.TakeProfitPct),
		ScoreExitThreshold:  get(KeyScoreExitThreshold, d.ScoreExitThreshold),
		MaxHoldDays:         int(get(KeyMaxHoldDays, float64(d.MaxHoldDays))),
		AbsoluteMaxHoldDays: int(get(KeyAbsoluteMaxHoldDays, float64(d.AbsoluteMaxHoldDays))),
		MaxPositions:        int(get(KeyMaxPositions, float64(d.MaxPositions))),
		MDDWarningPct:       get(KeyMDDWarningPct, d.MDDWarningPct),
		MDDStopNewPct:       get(KeyMDDStopNewPct, d.MDDStopNewPct),
	}

	// The soft ceiling must never exceed the hard one.
	if p.MaxHoldDays > p.AbsoluteMaxHoldDays {
		p.MaxHoldDays = p.AbsoluteMaxHoldDays
	}
	// Stop-new must sit below warning.
	if p.MDDStopNewPct > p.MDDWarningPct {
		p.MDDStopNewPct = p.MDDWarningPct
	}

	return p
}

// snap clamps a value to its bounds and rounds to the nearest step.
func snap(key string, v float64) float64 {
	b, ok := bounds[key]
	if !ok {
		return v
	}
	if v < b.Min {
		v = b.Min
	}
	if v > b.Max {
		v = b.Max
	}
	if b.Step > 0 {
		v = b.Min + math.Round((v-b.Min)/b.Step)*b.Step
		if v > b.Max {
			v = b.Max
		}
	}
	return v
}
