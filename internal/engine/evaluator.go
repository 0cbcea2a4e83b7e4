package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/quotes"
)

// Evaluator runs the exit state machine over open positions. Hard exits
// fire unconditionally in priority order; soft triggers consult the
// AI-judgment map before becoming signals.
type Evaluator struct {
	quotes quotes.Provider
	log    zerolog.Logger
}

// EvaluatorOptions contains configuration for creating an Evaluator.
type EvaluatorOptions struct {
	Quotes quotes.Provider
	Log    zerolog.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	return &Evaluator{
		quotes: opts.Quotes,
		log:    opts.Log,
	}
}

// SoftExitCandidates returns the positions whose soft trigger fires this
// cycle, structured for an AI-judgment request. Positions claimed by a
// hard exit are excluded: they close regardless of any verdict.
func (e *Evaluator) SoftExitCandidates(ctx context.Context, positions []*domain.Position, p domain.StrategyParameters, regime string, scores map[string]float64, now time.Time) []domain.SoftExitCandidate {
	var candidates []domain.SoftExitCandidate

	for _, pos := range positions {
		price, ok := e.quotes.Price(ctx, pos.Symbol)
		if !ok || price <= 0 {
			continue
		}

		pnlPct := pos.PnLPctAt(price)
		holdDays := pos.HoldDays(now)

		if _, hard := hardExitReason(p, regime, pnlPct, holdDays); hard {
			continue
		}
		if reason, soft := softTriggerReason(pos, p, scores, pnlPct, holdDays); soft {
			candidates = append(candidates, domain.SoftExitCandidate{
				Symbol:   pos.Symbol,
				PnLPct:   pnlPct,
				HoldDays: holdDays,
				Trigger:  reason,
			})
		}
	}

	return candidates
}

// Evaluate produces exit signals for the positions whose state machine
// resolves to an exit this cycle. A position whose price cannot be
// obtained is skipped with a warning and re-evaluated next cycle.
func (e *Evaluator) Evaluate(ctx context.Context, positions []*domain.Position, p domain.StrategyParameters, regime string, scores map[string]float64, judgments map[string]domain.ExitJudgment, now time.Time) []domain.ExitSignal {
	var signals []domain.ExitSignal

	for _, pos := range positions {
		price, ok := e.quotes.Price(ctx, pos.Symbol)
		if !ok || price <= 0 {
			e.log.Warn().
				Str("strategy", pos.Strategy).
				Str("symbol", pos.Symbol).
				Msg("no price, skipping exit evaluation this cycle")
			continue
		}

		pnlPct := pos.PnLPctAt(price)
		holdDays := pos.HoldDays(now)
		pos.CurrentPrice = price
		pos.CurrentPnLPct = pnlPct

		if reason, hard := hardExitReason(p, regime, pnlPct, holdDays); hard {
			signals = append(signals, domain.ExitSignal{
				Position: *pos,
				Reason:   reason,
				Price:    price,
				PnLPct:   pnlPct,
			})
			continue
		}

		reason, soft := softTriggerReason(pos, p, scores, pnlPct, holdDays)
		if !soft {
			continue
		}

		// The judgment can only save a position; absence means close.
		if j, ok := judgments[pos.Symbol]; ok && j.Hold() {
			e.log.Info().
				Str("strategy", pos.Strategy).
				Str("symbol", pos.Symbol).
				Str("trigger", reason).
				Float64("confidence", j.Confidence).
				Str("rationale", j.Rationale).
				Msg("soft exit overridden by judgment")
			continue
		}

		signals = append(signals, domain.ExitSignal{
			Position: *pos,
			Reason:   reason,
			Price:    price,
			PnLPct:   pnlPct,
		})
	}

	return signals
}

// hardExitReason checks the hard exit conditions in strict priority
// order. The first match wins and suppresses all soft checks.
func hardExitReason(p domain.StrategyParameters, regime string, pnlPct float64, holdDays int) (string, bool) {
	switch {
	case pnlPct <= p.StopLossPct:
		return domain.ExitReasonStopLoss, true
	case regime == domain.RegimeCrisis:
		return domain.ExitReasonRegimeChange, true
	case holdDays >= p.AbsoluteMaxHoldDays:
		return domain.ExitReasonAbsoluteMaxHold, true
	}
	return "", false
}

// softTriggerReason checks the soft triggers in order, taking the first
// match. score_drop only applies when a current score was supplied.
func softTriggerReason(pos *domain.Position, p domain.StrategyParameters, scores map[string]float64, pnlPct float64, holdDays int) (string, bool) {
	if pnlPct >= p.TakeProfitPct {
		return domain.ExitReasonTakeProfit, true
	}
	if score, ok := scores[pos.Symbol]; ok && score < p.ScoreExitThreshold {
		return domain.ExitReasonScoreDrop, true
	}
	if holdDays >= p.MaxHoldDays {
		return domain.ExitReasonMaxHold, true
	}
	return "", false
}
