// Package orchestrator coordinates the two daily trading cycles.
// Morning: size and open new positions under drawdown control.
// Evening: evaluate exits, consult the AI judge, close and reconcile.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/drawdown"
	"paper-trading-lab/internal/engine"
	"paper-trading-lab/internal/judgment"
	"paper-trading-lab/internal/params"
	"paper-trading-lab/internal/storage"
)

// Orchestrator runs the daily cycles for a fixed set of strategies.
// Strategies are isolated: a failure in one never aborts the others.
type Orchestrator struct {
	positions storage.PositionStore
	snapshots storage.SnapshotStore

	params params.Source
	judge  judgment.Judge

	opener     *engine.Opener
	evaluator  *engine.Evaluator
	closer     *engine.Closer
	reconciler *engine.Reconciler

	strategies []string
	log        zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	Positions storage.PositionStore
	Snapshots storage.SnapshotStore

	// Params may be nil; defaults then apply to every strategy.
	Params params.Source
	// Judge may be nil; soft exit triggers then close unconditionally.
	Judge judgment.Judge

	Opener     *engine.Opener
	Evaluator  *engine.Evaluator
	Closer     *engine.Closer
	Reconciler *engine.Reconciler

	Strategies []string
	Log        zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		positions:  opts.Positions,
		snapshots:  opts.Snapshots,
		params:     opts.Params,
		judge:      opts.Judge,
		opener:     opts.Opener,
		evaluator:  opts.Evaluator,
		closer:     opts.Closer,
		reconciler: opts.Reconciler,
		strategies: opts.Strategies,
		log:        opts.Log,
	}
}

// MorningInput carries the day's entry candidates per strategy.
type MorningInput struct {
	Regime string
	// Picks maps strategy to candidate symbols, already ranked upstream.
	Picks map[string][]string
	// Scores maps strategy to per-symbol composite scores; optional.
	Scores map[string]map[string]float64
	Date   time.Time
}

// EveningInput carries the day's exit context per strategy.
type EveningInput struct {
	Regime string
	// Scores maps strategy to per-symbol composite scores; a missing
	// score disables the score-drop trigger for that symbol.
	Scores map[string]map[string]float64
	Date   time.Time
}

// RunResult contains one strategy's cycle outcome.
type RunResult struct {
	Strategy string
	Opened   []string
	Closed   []string
	// Trades are the realized trades behind Closed, evening runs only.
	Trades []*domain.Trade
	// Held lists symbols whose soft exit trigger was vetoed by a judge
	// "hold" verdict this cycle.
	Held     []string
	Snapshot *domain.Snapshot
	Errors   []string
}

// RunMorning executes the opening cycle for every strategy.
func (o *Orchestrator) RunMorning(ctx context.Context, in MorningInput) []*RunResult {
	results := make([]*RunResult, 0, len(o.strategies))
	for _, strategy := range o.strategies {
		results = append(results, o.runMorning(ctx, strategy, in))
	}
	return results
}

func (o *Orchestrator) runMorning(ctx context.Context, strategy string, in MorningInput) *RunResult {
	result := &RunResult{Strategy: strategy}
	p := params.Resolve(ctx, o.params, strategy, o.log)

	status, err := o.drawdownStatus(ctx, strategy, p)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	cash, err := o.reconciler.CashBalance(ctx, strategy)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("cash balance: %v", err))
		return result
	}

	opened, openErrs := o.opener.Open(ctx, engine.OpenRequest{
		Strategy: strategy,
		Symbols:  in.Picks[strategy],
		Scores:   in.Scores[strategy],
		Regime:   in.Regime,
		Date:     in.Date,
	}, p, status, cash)
	result.Errors = append(result.Errors, openErrs...)
	for _, pos := range opened {
		result.Opened = append(result.Opened, pos.Symbol)
	}

	o.reconcile(ctx, strategy, in.Date, result)

	o.log.Info().
		Str("strategy", strategy).
		Str("tier", status.Tier).
		Int("opened", len(result.Opened)).
		Int("errors", len(result.Errors)).
		Msg("morning cycle done")
	return result
}

// RunEvening executes the exit cycle for every strategy.
func (o *Orchestrator) RunEvening(ctx context.Context, in EveningInput) []*RunResult {
	results := make([]*RunResult, 0, len(o.strategies))
	for _, strategy := range o.strategies {
		results = append(results, o.runEvening(ctx, strategy, in))
	}
	return results
}

func (o *Orchestrator) runEvening(ctx context.Context, strategy string, in EveningInput) *RunResult {
	result := &RunResult{Strategy: strategy}
	p := params.Resolve(ctx, o.params, strategy, o.log)

	open, err := o.positions.GetOpen(ctx, strategy)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("get open positions: %v", err))
		return result
	}

	scores := in.Scores[strategy]
	judgments := o.collectJudgments(ctx, strategy, open, p, in.Regime, scores, in.Date, result)

	signals := o.evaluator.Evaluate(ctx, open, p, in.Regime, scores, judgments, in.Date)
	closed, closeErrs := o.closer.Close(ctx, signals, in.Regime, in.Date)
	result.Errors = append(result.Errors, closeErrs...)
	result.Trades = closed
	for _, tr := range closed {
		result.Closed = append(result.Closed, tr.Symbol)
	}
	result.Held = heldSymbols(judgments, signals)

	o.reconcile(ctx, strategy, in.Date, result)

	o.log.Info().
		Str("strategy", strategy).
		Int("evaluated", len(open)).
		Int("closed", len(result.Closed)).
		Int("errors", len(result.Errors)).
		Msg("evening cycle done")
	return result
}

// collectJudgments asks the AI judge about soft-exit candidates. A judge
// failure leaves every candidate unjudged, which downstream treats as
// close; positions are never held open on a guessed verdict.
func (o *Orchestrator) collectJudgments(ctx context.Context, strategy string, open []*domain.Position, p domain.StrategyParameters, regime string, scores map[string]float64, now time.Time, result *RunResult) map[string]domain.ExitJudgment {
	if o.judge == nil {
		return nil
	}

	candidates := o.evaluator.SoftExitCandidates(ctx, open, p, regime, scores, now)
	if len(candidates) == 0 {
		return nil
	}

	judgments, err := o.judge.JudgeExits(ctx, judgment.Request{
		Strategy:   strategy,
		Regime:     regime,
		Candidates: candidates,
	})
	if err != nil {
		o.log.Warn().Err(err).
			Str("strategy", strategy).
			Int("candidates", len(candidates)).
			Msg("exit judge unavailable, soft triggers close unconditionally")
		result.Errors = append(result.Errors, fmt.Sprintf("judge exits: %v", err))
		return nil
	}
	return judgments
}

// heldSymbols lists the hold verdicts that actually kept a position
// open. A hold on a symbol that still exited (a hard trigger fired
// alongside the soft one) is not an honored override.
func heldSymbols(judgments map[string]domain.ExitJudgment, signals []domain.ExitSignal) []string {
	if len(judgments) == 0 {
		return nil
	}
	exiting := make(map[string]bool, len(signals))
	for _, s := range signals {
		exiting[s.Position.Symbol] = true
	}
	var held []string
	for symbol, j := range judgments {
		if j.Hold() && !exiting[symbol] {
			held = append(held, symbol)
		}
	}
	return held
}

// reconcile writes the daily snapshot and records its outcome on the
// result. Runs even after upstream errors so the book is re-marked.
func (o *Orchestrator) reconcile(ctx context.Context, strategy string, now time.Time, result *RunResult) {
	snap, err := o.reconciler.Reconcile(ctx, strategy, now)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reconcile: %v", err))
		return
	}
	result.Snapshot = snap
}

func (o *Orchestrator) drawdownStatus(ctx context.Context, strategy string, p domain.StrategyParameters) (domain.DrawdownStatus, error) {
	latest, err := o.snapshots.GetLatest(ctx, strategy)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return domain.DrawdownStatus{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	return drawdown.New(p).Classify(latest), nil
}
