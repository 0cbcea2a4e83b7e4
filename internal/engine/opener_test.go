package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trading-lab/internal/costs"
	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/idhash"
	"paper-trading-lab/internal/params"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/storage/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func deterministicID(strategy, symbol string, entryDate time.Time) string {
	return idhash.ComputePositionID(strategy, symbol, entryDate)
}

func normalStatus() domain.DrawdownStatus {
	return domain.DrawdownStatus{Tier: domain.DrawdownTierNormal, CanOpen: true, SizeMultiplier: 1.0}
}

type fixture struct {
	positions *memory.PositionStore
	trades    *memory.TradeStore
	snapshots *memory.SnapshotStore
	prices    *quotes.Static
	opener    *Opener
	closer    *Closer
	evaluator *Evaluator
}

func newFixture(cost *costs.Config) *fixture {
	f := &fixture{
		positions: memory.NewPositionStore(),
		trades:    memory.NewTradeStore(),
		snapshots: memory.NewSnapshotStore(),
		prices:    quotes.NewStatic(nil),
	}
	f.opener = NewOpener(OpenerOptions{
		Positions: f.positions,
		Trades:    f.trades,
		Quotes:    f.prices,
		Cost:      cost,
		Log:       zerolog.Nop(),
	})
	f.closer = NewCloser(CloserOptions{
		Positions: f.positions,
		Trades:    f.trades,
		Cost:      cost,
		Log:       zerolog.Nop(),
	})
	f.evaluator = NewEvaluator(EvaluatorOptions{
		Quotes: f.prices,
		Log:    zerolog.Nop(),
	})
	return f
}

func (f *fixture) reconciler(initialCapital float64, cost *costs.Config) *Reconciler {
	return NewReconciler(ReconcilerOptions{
		Positions:      f.positions,
		Trades:         f.trades,
		Snapshots:      f.snapshots,
		Quotes:         f.prices,
		Cost:           cost,
		InitialCapital: initialCapital,
		Log:            zerolog.Nop(),
	})
}

func TestOpener_EqualWeightSizing(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)
	f.prices.Set("MSFT", 200)
	f.prices.Set("TSLA", 300)

	opened, errs := f.opener.Open(context.Background(), OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL", "MSFT", "TSLA"},
		Regime:   domain.RegimeBull,
		Date:     day(2025, time.March, 3),
	}, params.Defaults(), normalStatus(), 90000)

	require.Empty(t, errs)
	require.Len(t, opened, 3)
	for _, pos := range opened {
		assert.Equal(t, 30000.0, pos.PositionValue)
	}
	// Zero cost: shares are the full notional over price
	assert.Equal(t, 300.0, opened[0].Shares)
	assert.Equal(t, 150.0, opened[1].Shares)
	assert.Equal(t, 100.0, opened[2].Shares)
}

func TestOpener_EntryCostReducesShares(t *testing.T) {
	cost := &costs.Config{CommissionRate: 0.001, SlippageRate: 0.001}
	f := newFixture(cost)
	f.prices.Set("AAPL", 100)

	opened, errs := f.opener.Open(context.Background(), OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL"},
		Date:     day(2025, time.March, 3),
	}, params.Defaults(), normalStatus(), 10000)

	require.Empty(t, errs)
	require.Len(t, opened, 1)
	// 10000 committed, 20 of cost, 9980 invested at 100
	assert.Equal(t, 10000.0, opened[0].PositionValue)
	assert.InDelta(t, 99.8, opened[0].Shares, 1e-9)
}

func TestOpener_DrawdownMultiplierHalvesSize(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)

	status := domain.DrawdownStatus{Tier: domain.DrawdownTierWarning, CanOpen: true, SizeMultiplier: 0.5}
	opened, errs := f.opener.Open(context.Background(), OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL"},
		Date:     day(2025, time.March, 3),
	}, params.Defaults(), status, 60000)

	require.Empty(t, errs)
	require.Len(t, opened, 1)
	assert.Equal(t, 30000.0, opened[0].PositionValue)
}

func TestOpener_BlockedTierIsNoop(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)

	status := domain.DrawdownStatus{Tier: domain.DrawdownTierStopped, CanOpen: false, SizeMultiplier: 0}
	opened, errs := f.opener.Open(context.Background(), OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL"},
		Date:     day(2025, time.March, 3),
	}, params.Defaults(), status, 100000)

	assert.Empty(t, errs)
	assert.Empty(t, opened)
}

func TestOpener_SkipsHeldSymbols(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)
	f.prices.Set("MSFT", 200)

	ctx := context.Background()
	req := OpenRequest{Strategy: "s", Symbols: []string{"AAPL"}, Date: day(2025, time.March, 3)}
	opened, _ := f.opener.Open(ctx, req, params.Defaults(), normalStatus(), 50000)
	require.Len(t, opened, 1)

	// AAPL already held: only MSFT opens, sized from remaining cash
	req = OpenRequest{Strategy: "s", Symbols: []string{"AAPL", "MSFT"}, Date: day(2025, time.March, 4)}
	opened, errs := f.opener.Open(ctx, req, params.Defaults(), normalStatus(), 50000)
	require.Empty(t, errs)
	require.Len(t, opened, 1)
	assert.Equal(t, "MSFT", opened[0].Symbol)
	assert.Equal(t, 50000.0, opened[0].PositionValue)
}

func TestOpener_SameDayReentryBlocked(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)

	ctx := context.Background()
	d := day(2025, time.March, 3)

	// Record a trade closed today
	require.NoError(t, f.trades.Insert(ctx, &domain.Trade{
		TradeID:    "t1",
		Strategy:   "s",
		Symbol:     "AAPL",
		EntryDate:  day(2025, time.February, 24),
		ExitDate:   d,
		ExitReason: domain.ExitReasonStopLoss,
		PnL:        -700,
	}))

	opened, errs := f.opener.Open(ctx, OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL"},
		Date:     d,
	}, params.Defaults(), normalStatus(), 100000)

	assert.Empty(t, errs)
	assert.Empty(t, opened)

	// Next calendar day the block lifts
	opened, errs = f.opener.Open(ctx, OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL"},
		Date:     day(2025, time.March, 4),
	}, params.Defaults(), normalStatus(), 100000)
	assert.Empty(t, errs)
	assert.Len(t, opened, 1)
}

func TestOpener_SkipsSymbolsWithoutPrice(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)

	opened, errs := f.opener.Open(context.Background(), OpenRequest{
		Strategy: "s",
		Symbols:  []string{"NOPRICE", "AAPL"},
		Date:     day(2025, time.March, 3),
	}, params.Defaults(), normalStatus(), 60000)

	require.Empty(t, errs)
	require.Len(t, opened, 1)
	assert.Equal(t, "AAPL", opened[0].Symbol)
	// Cash splits over accepted symbols only
	assert.Equal(t, 60000.0, opened[0].PositionValue)
}

func TestOpener_RespectsSlotCap(t *testing.T) {
	f := newFixture(nil)
	for _, sym := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		f.prices.Set(sym, 10)
	}

	p := params.Defaults()
	p.MaxPositions = 3

	ctx := context.Background()
	opened, _ := f.opener.Open(ctx, OpenRequest{
		Strategy: "s",
		Symbols:  []string{"A", "B"},
		Date:     day(2025, time.March, 3),
	}, p, normalStatus(), 60000)
	require.Len(t, opened, 2)

	// Only one slot left; first qualifying proposal takes it
	opened, _ = f.opener.Open(ctx, OpenRequest{
		Strategy: "s",
		Symbols:  []string{"C", "D", "E"},
		Date:     day(2025, time.March, 4),
	}, p, normalStatus(), 30000)
	require.Len(t, opened, 1)
	assert.Equal(t, "C", opened[0].Symbol)

	// Full book is a no-op
	opened, _ = f.opener.Open(ctx, OpenRequest{
		Strategy: "s",
		Symbols:  []string{"F", "G"},
		Date:     day(2025, time.March, 5),
	}, p, normalStatus(), 10000)
	assert.Empty(t, opened)
}

func TestOpener_ScoresStoredWhenSupplied(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)
	f.prices.Set("MSFT", 200)

	opened, _ := f.opener.Open(context.Background(), OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL", "MSFT"},
		Scores:   map[string]float64{"AAPL": 0.81},
		Date:     day(2025, time.March, 3),
	}, params.Defaults(), normalStatus(), 60000)

	require.Len(t, opened, 2)
	require.NotNil(t, opened[0].EntryScore)
	assert.Equal(t, 0.81, *opened[0].EntryScore)
	assert.Nil(t, opened[1].EntryScore)
}

func TestOpener_PerSymbolFailureIsolation(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)
	f.prices.Set("MSFT", 200)

	ctx := context.Background()
	d := day(2025, time.March, 3)

	// Pre-seed a position whose deterministic ID collides with the
	// AAPL open below.
	require.NoError(t, f.positions.Open(ctx, &domain.Position{
		PositionID: deterministicID("s", "AAPL", d),
		Strategy:   "other", // different strategy so AAPL is not "held"
		Symbol:     "AAPL",
		EntryDate:  d,
		EntryPrice: 1, Shares: 1, PositionValue: 1,
	}))

	opened, errs := f.opener.Open(ctx, OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL", "MSFT"},
		Date:     d,
	}, params.Defaults(), normalStatus(), 60000)

	// AAPL fails on duplicate ID, MSFT still opens
	require.Len(t, errs, 1)
	require.Len(t, opened, 1)
	assert.Equal(t, "MSFT", opened[0].Symbol)
}

func TestOpener_ZeroCashIsNoop(t *testing.T) {
	f := newFixture(nil)
	f.prices.Set("AAPL", 100)

	opened, errs := f.opener.Open(context.Background(), OpenRequest{
		Strategy: "s",
		Symbols:  []string{"AAPL"},
		Date:     day(2025, time.March, 3),
	}, params.Defaults(), normalStatus(), 0)

	assert.Empty(t, errs)
	assert.Empty(t, opened)
}
