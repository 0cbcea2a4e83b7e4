// Package orchestrator end-to-end cycle tests against in-memory stores.
package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/engine"
	"paper-trading-lab/internal/judgment"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/storage/memory"
)

type testStores struct {
	positions *memory.PositionStore
	trades    *memory.TradeStore
	snapshots *memory.SnapshotStore
	prices    *quotes.Static
}

func createTestStores() *testStores {
	return &testStores{
		positions: memory.NewPositionStore(),
		trades:    memory.NewTradeStore(),
		snapshots: memory.NewSnapshotStore(),
		prices:    quotes.NewStatic(nil),
	}
}

func createOrchestrator(s *testStores, judge judgment.Judge, strategies ...string) *Orchestrator {
	log := zerolog.Nop()
	reconciler := engine.NewReconciler(engine.ReconcilerOptions{
		Positions:      s.positions,
		Trades:         s.trades,
		Snapshots:      s.snapshots,
		Quotes:         s.prices,
		InitialCapital: 100000,
		Log:            log,
	})
	return New(Options{
		Positions: s.positions,
		Snapshots: s.snapshots,
		Judge:     judge,
		Opener: engine.NewOpener(engine.OpenerOptions{
			Positions: s.positions,
			Trades:    s.trades,
			Quotes:    s.prices,
			Log:       log,
		}),
		Evaluator: engine.NewEvaluator(engine.EvaluatorOptions{
			Quotes: s.prices,
			Log:    log,
		}),
		Closer: engine.NewCloser(engine.CloserOptions{
			Positions: s.positions,
			Trades:    s.trades,
			Log:       log,
		}),
		Reconciler: reconciler,
		Strategies: strategies,
		Log:        log,
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOrchestrator_MorningOpensAndSnapshots(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.prices.Set("AAPL", 100)
	stores.prices.Set("MSFT", 200)

	orch := createOrchestrator(stores, nil, "s")

	results := orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks:  map[string][]string{"s": {"AAPL", "MSFT"}},
		Date:   day(2025, time.March, 3),
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if len(r.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", r.Errors)
	}
	if len(r.Opened) != 2 {
		t.Fatalf("expected 2 opened, got %v", r.Opened)
	}
	if r.Snapshot == nil {
		t.Fatal("expected a snapshot")
	}
	if r.Snapshot.OpenPositions != 2 {
		t.Errorf("expected 2 open positions in snapshot, got %d", r.Snapshot.OpenPositions)
	}
	// Entries only shuffle value between cash and positions
	if diff := r.Snapshot.TotalValue - 100000; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected total value 100000, got %f", r.Snapshot.TotalValue)
	}
}

func TestOrchestrator_MorningNoPicksStillSnapshots(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	orch := createOrchestrator(stores, nil, "s")

	results := orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeNeutral,
		Picks:  map[string][]string{},
		Date:   day(2025, time.March, 3),
	})

	r := results[0]
	if len(r.Opened) != 0 {
		t.Fatalf("expected no opens, got %v", r.Opened)
	}
	if r.Snapshot == nil {
		t.Fatal("expected a snapshot even with nothing to do")
	}
}

func TestOrchestrator_EveningClosesOnHardExit(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.prices.Set("AAPL", 100)
	orch := createOrchestrator(stores, nil, "s")

	orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks:  map[string][]string{"s": {"AAPL"}},
		Date:   day(2025, time.March, 3),
	})

	// Crash through the stop
	stores.prices.Set("AAPL", 90)
	results := orch.RunEvening(ctx, EveningInput{
		Regime: domain.RegimeBull,
		Date:   day(2025, time.March, 5),
	})

	r := results[0]
	if len(r.Closed) != 1 || r.Closed[0] != "AAPL" {
		t.Fatalf("expected AAPL closed, got %v", r.Closed)
	}
	if len(r.Trades) != 1 || r.Trades[0].ExitReason != domain.ExitReasonStopLoss {
		t.Fatalf("expected a stop-loss trade in the result, got %v", r.Trades)
	}
	if r.Trades[0].Win() {
		t.Error("expected trade recorded as a loss")
	}
	if r.Snapshot.OpenPositions != 0 {
		t.Errorf("expected 0 open positions, got %d", r.Snapshot.OpenPositions)
	}
	if r.Snapshot.ClosedToday != 1 {
		t.Errorf("expected 1 closed today, got %d", r.Snapshot.ClosedToday)
	}
	if r.Snapshot.CumulativePnL >= 0 {
		t.Errorf("expected a realized loss, got %f", r.Snapshot.CumulativePnL)
	}
}

func TestOrchestrator_EveningJudgeHoldKeepsPosition(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.prices.Set("AAPL", 100)

	judge := judgment.Static{
		"AAPL": {Decision: domain.JudgmentHold, Confidence: 0.9},
	}
	orch := createOrchestrator(stores, judge, "s")

	orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks:  map[string][]string{"s": {"AAPL"}},
		Date:   day(2025, time.March, 3),
	})

	// Above take-profit, but the judge says hold
	stores.prices.Set("AAPL", 110)
	results := orch.RunEvening(ctx, EveningInput{
		Regime: domain.RegimeBull,
		Date:   day(2025, time.March, 5),
	})

	r := results[0]
	if len(r.Closed) != 0 {
		t.Fatalf("expected no closes, got %v", r.Closed)
	}
	if len(r.Held) != 1 || r.Held[0] != "AAPL" {
		t.Errorf("expected AAPL reported as held by the judge, got %v", r.Held)
	}
	if r.Snapshot.OpenPositions != 1 {
		t.Errorf("expected position still open, got %d", r.Snapshot.OpenPositions)
	}
}

type failingJudge struct{}

func (failingJudge) JudgeExits(context.Context, judgment.Request) (map[string]domain.ExitJudgment, error) {
	return nil, errors.New("judge offline")
}

func TestOrchestrator_JudgeFailureClosesSoftTriggers(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.prices.Set("AAPL", 100)
	orch := createOrchestrator(stores, failingJudge{}, "s")

	orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks:  map[string][]string{"s": {"AAPL"}},
		Date:   day(2025, time.March, 3),
	})

	stores.prices.Set("AAPL", 110)
	results := orch.RunEvening(ctx, EveningInput{
		Regime: domain.RegimeBull,
		Date:   day(2025, time.March, 5),
	})

	r := results[0]
	if len(r.Closed) != 1 {
		t.Fatalf("expected close despite judge failure, got %v", r.Closed)
	}
	if len(r.Errors) == 0 {
		t.Error("expected the judge failure to be surfaced in Errors")
	}
}

func TestOrchestrator_StrategiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.prices.Set("AAPL", 100)
	orch := createOrchestrator(stores, nil, "a", "b")

	results := orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks: map[string][]string{
			"a": {"AAPL"},
			"b": {"GHOST"}, // no quote, nothing opens
		},
		Date: day(2025, time.March, 3),
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	byStrategy := map[string]*RunResult{}
	for _, r := range results {
		byStrategy[r.Strategy] = r
	}
	if len(byStrategy["a"].Opened) != 1 {
		t.Errorf("strategy a: expected 1 open, got %v", byStrategy["a"].Opened)
	}
	if len(byStrategy["b"].Opened) != 0 {
		t.Errorf("strategy b: expected 0 opens, got %v", byStrategy["b"].Opened)
	}
	if byStrategy["b"].Snapshot == nil {
		t.Error("strategy b: expected a snapshot regardless")
	}
}

func TestOrchestrator_DrawdownBlocksMorningEntries(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.prices.Set("AAPL", 100)

	// Latest snapshot deep in drawdown: stop-new tier
	mdd := -20.0
	if err := stores.snapshots.Upsert(ctx, &domain.Snapshot{
		Strategy:    "s",
		Date:        day(2025, time.March, 2),
		Cash:        80000,
		TotalValue:  80000,
		MaxDrawdown: &mdd,
	}); err != nil {
		t.Fatal(err)
	}

	orch := createOrchestrator(stores, nil, "s")
	results := orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks:  map[string][]string{"s": {"AAPL"}},
		Date:   day(2025, time.March, 3),
	})

	if len(results[0].Opened) != 0 {
		t.Fatalf("expected entries blocked, got %v", results[0].Opened)
	}
}

func TestOrchestrator_FullDayCycle(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.prices.Set("AAPL", 100)
	stores.prices.Set("MSFT", 50)
	orch := createOrchestrator(stores, nil, "s")

	orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks:  map[string][]string{"s": {"AAPL", "MSFT"}},
		Date:   day(2025, time.March, 3),
	})

	// AAPL rallies past take-profit, MSFT drifts
	stores.prices.Set("AAPL", 112)
	stores.prices.Set("MSFT", 51)
	evening := orch.RunEvening(ctx, EveningInput{
		Regime: domain.RegimeBull,
		Date:   day(2025, time.March, 6),
	})

	r := evening[0]
	if len(r.Closed) != 1 || r.Closed[0] != "AAPL" {
		t.Fatalf("expected only AAPL closed, got %v", r.Closed)
	}
	if r.Snapshot.OpenPositions != 1 {
		t.Errorf("expected MSFT still open, got %d", r.Snapshot.OpenPositions)
	}
	if r.Snapshot.CumulativePnL <= 0 {
		t.Errorf("expected a realized gain, got %f", r.Snapshot.CumulativePnL)
	}

	// Same-day re-entry of AAPL is refused
	morning := orch.RunMorning(ctx, MorningInput{
		Regime: domain.RegimeBull,
		Picks:  map[string][]string{"s": {"AAPL"}},
		Date:   day(2025, time.March, 6),
	})
	if len(morning[0].Opened) != 0 {
		t.Fatalf("expected same-day re-entry blocked, got %v", morning[0].Opened)
	}
}
