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
	"paper-trading-lab/internal/storage/memory"
)

func insertTestTrade(t *testing.T, f *fixture, symbol string, pnl float64, exitDate time.Time) {
	t.Helper()
	entryDate := exitDate.AddDate(0, 0, -5)
	tr := &domain.Trade{
		TradeID:       idhash.ComputeTradeID("s", symbol, entryDate, exitDate),
		Strategy:      "s",
		Symbol:        symbol,
		EntryDate:     entryDate,
		EntryPrice:    100,
		Shares:        10,
		PositionValue: 1000,
		ExitDate:      exitDate,
		ExitPrice:     100 + pnl/10,
		ExitReason:    domain.ExitReasonMaxHold,
		HoldDays:      5,
		PnL:           pnl,
		PnLPct:        pnl / 10,
	}
	require.NoError(t, f.trades.Insert(context.Background(), tr))
}

func TestReconciler_FreshPortfolio(t *testing.T) {
	f := newFixture(nil)
	rec := f.reconciler(100000, nil)

	snap, err := rec.Reconcile(context.Background(), "s", day(2025, time.March, 3))
	require.NoError(t, err)

	assert.InDelta(t, 100000.0, snap.Cash, 1e-9)
	assert.Zero(t, snap.PositionsValue)
	assert.InDelta(t, 100000.0, snap.TotalValue, 1e-9)
	assert.Zero(t, snap.CumulativePnL)
	assert.Zero(t, snap.DailyPnL)
	assert.Zero(t, snap.OpenPositions)
	assert.Zero(t, snap.ClosedToday)
	assert.Nil(t, snap.SharpeRatio)
	assert.Nil(t, snap.WinRate)
	require.NotNil(t, snap.MaxDrawdown)
	assert.Zero(t, *snap.MaxDrawdown)
}

func TestReconciler_CashConservation(t *testing.T) {
	f := newFixture(nil)
	rec := f.reconciler(100000, nil)
	ctx := context.Background()

	pos := openTestPosition(t, f, "AAPL", 100, 10, day(2025, time.March, 3))
	f.prices.Set("AAPL", 100)

	// Opening moves value between cash and positions, never creates it
	snap, err := rec.Reconcile(ctx, "s", day(2025, time.March, 3))
	require.NoError(t, err)
	assert.InDelta(t, 99000.0, snap.Cash, 1e-9)
	assert.InDelta(t, 1000.0, snap.PositionsValue, 1e-9)
	assert.InDelta(t, 100000.0, snap.TotalValue, 1e-9)

	// Closing at a profit returns the stake plus realized P&L to cash
	f.prices.Set("AAPL", 120)
	signal := domain.ExitSignal{Position: *pos, Reason: domain.ExitReasonTakeProfit, Price: 120}
	_, errs := f.closer.Close(ctx, []domain.ExitSignal{signal}, domain.RegimeBull, day(2025, time.March, 4))
	require.Empty(t, errs)

	snap, err = rec.Reconcile(ctx, "s", day(2025, time.March, 4))
	require.NoError(t, err)
	assert.InDelta(t, 100200.0, snap.Cash, 1e-9)
	assert.Zero(t, snap.PositionsValue)
	assert.InDelta(t, 100200.0, snap.TotalValue, 1e-9)
	assert.InDelta(t, 200.0, snap.CumulativePnL, 1e-9)
	assert.InDelta(t, 0.2, snap.CumulativePnLPct, 1e-9)
	assert.InDelta(t, 200.0, snap.DailyPnL, 1e-9)
	assert.InDelta(t, 0.2, snap.DailyPnLPct, 1e-9)
	assert.Equal(t, 1, snap.ClosedToday)
}

func TestReconciler_SameDayRerunIsIdempotent(t *testing.T) {
	f := newFixture(nil)
	rec := f.reconciler(100000, nil)
	ctx := context.Background()

	openTestPosition(t, f, "AAPL", 100, 10, day(2025, time.March, 3))
	f.prices.Set("AAPL", 105)
	insertTestTrade(t, f, "MSFT", 150, day(2025, time.March, 3))

	first, err := rec.Reconcile(ctx, "s", day(2025, time.March, 3))
	require.NoError(t, err)
	second, err := rec.Reconcile(ctx, "s", day(2025, time.March, 3))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Only one row exists for the day
	latest, err := f.snapshots.GetLatest(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, first.TotalValue, latest.TotalValue)
	assert.True(t, domain.SameDay(latest.Date, day(2025, time.March, 3)))
}

func TestReconciler_MarkToMarketNetsExitCost(t *testing.T) {
	cost := &costs.Config{CommissionRate: 0.001, SlippageRate: 0.001}
	f := newFixture(cost)
	rec := f.reconciler(100000, cost)
	ctx := context.Background()

	openTestPosition(t, f, "AAPL", 100, 10, day(2025, time.March, 3))
	f.prices.Set("AAPL", 110)

	snap, err := rec.Reconcile(ctx, "s", day(2025, time.March, 4))
	require.NoError(t, err)

	// notional 1100, hypothetical exit cost 1100*0.002 = 2.2
	assert.InDelta(t, 1097.8, snap.PositionsValue, 1e-9)
	assert.InDelta(t, 99000.0, snap.Cash, 1e-9)
}

func TestReconciler_PricelessPositionKeepsEntryValue(t *testing.T) {
	f := newFixture(nil)
	rec := f.reconciler(100000, nil)

	openTestPosition(t, f, "AAPL", 100, 10, day(2025, time.March, 3))

	snap, err := rec.Reconcile(context.Background(), "s", day(2025, time.March, 4))
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, snap.PositionsValue, 1e-9)
	assert.InDelta(t, 100000.0, snap.TotalValue, 1e-9)
}

func TestReconciler_MultiDayGap(t *testing.T) {
	f := newFixture(nil)
	rec := f.reconciler(100000, nil)
	ctx := context.Background()

	_, err := rec.Reconcile(ctx, "s", day(2025, time.March, 3))
	require.NoError(t, err)

	insertTestTrade(t, f, "AAPL", 500, day(2025, time.March, 5))

	// Next run a week later still diffs against the last written row
	snap, err := rec.Reconcile(ctx, "s", day(2025, time.March, 10))
	require.NoError(t, err)
	assert.InDelta(t, 100500.0, snap.TotalValue, 1e-9)
	assert.InDelta(t, 500.0, snap.DailyPnL, 1e-9)
	assert.Zero(t, snap.ClosedToday)
}

func TestReconciler_BenchmarkCompounds(t *testing.T) {
	f := newFixture(nil)
	candles := memory.NewCandleStore()
	ctx := context.Background()

	rec := NewReconciler(ReconcilerOptions{
		Positions:      f.positions,
		Trades:         f.trades,
		Snapshots:      f.snapshots,
		Quotes:         f.prices,
		Benchmark:      NewCandleBenchmark(candles, "SPY"),
		InitialCapital: 100000,
		Log:            zerolog.Nop(),
	})

	require.NoError(t, candles.InsertBulk(ctx, []*domain.Candle{
		{Symbol: "SPY", Date: day(2025, time.March, 2), Close: 500},
		{Symbol: "SPY", Date: day(2025, time.March, 3), Close: 510},
	}))

	snap, err := rec.Reconcile(ctx, "s", day(2025, time.March, 3))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, snap.BenchmarkDailyPct, 1e-9)
	assert.InDelta(t, 2.0, snap.BenchmarkCumulativePct, 1e-9)
	assert.InDelta(t, -2.0, snap.AlphaPct, 1e-9)

	require.NoError(t, candles.InsertBulk(ctx, []*domain.Candle{
		{Symbol: "SPY", Date: day(2025, time.March, 4), Close: 520.2},
	}))

	snap, err = rec.Reconcile(ctx, "s", day(2025, time.March, 4))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, snap.BenchmarkDailyPct, 1e-9)
	assert.InDelta(t, 4.04, snap.BenchmarkCumulativePct, 1e-9)
	assert.InDelta(t, -4.04, snap.AlphaPct, 1e-9)
}

func TestReconciler_BenchmarkCarriesForwardWithoutData(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	// Seed yesterday's row with an established benchmark level
	require.NoError(t, f.snapshots.Upsert(ctx, &domain.Snapshot{
		Strategy:               "s",
		Date:                   day(2025, time.March, 3),
		Cash:                   100000,
		TotalValue:             100000,
		BenchmarkCumulativePct: 3.5,
	}))

	// Benchmark store is empty, so no daily return is available
	rec := NewReconciler(ReconcilerOptions{
		Positions:      f.positions,
		Trades:         f.trades,
		Snapshots:      f.snapshots,
		Quotes:         f.prices,
		Benchmark:      NewCandleBenchmark(memory.NewCandleStore(), "SPY"),
		InitialCapital: 100000,
		Log:            zerolog.Nop(),
	})

	snap, err := rec.Reconcile(ctx, "s", day(2025, time.March, 4))
	require.NoError(t, err)
	assert.Zero(t, snap.BenchmarkDailyPct)
	assert.InDelta(t, 3.5, snap.BenchmarkCumulativePct, 1e-9)
	assert.InDelta(t, -3.5, snap.AlphaPct, 1e-9)
}

func TestReconciler_RiskMetricsFromWindow(t *testing.T) {
	f := newFixture(nil)
	rec := f.reconciler(100000, nil)
	ctx := context.Background()

	values := []float64{100000, 100500, 100200, 100800, 101000}
	for i, v := range values {
		require.NoError(t, f.snapshots.Upsert(ctx, &domain.Snapshot{
			Strategy:   "s",
			Date:       day(2025, time.March, 3+i),
			Cash:       v,
			TotalValue: v,
		}))
	}

	insertTestTrade(t, f, "AAPL", 200, day(2025, time.March, 6))
	insertTestTrade(t, f, "MSFT", -100, day(2025, time.March, 7))

	snap, err := rec.Reconcile(ctx, "s", day(2025, time.March, 8))
	require.NoError(t, err)

	// Trades moved cash: 100000 + 200 - 100
	assert.InDelta(t, 100100.0, snap.TotalValue, 1e-9)

	require.NotNil(t, snap.SharpeRatio)
	require.NotNil(t, snap.MaxDrawdown)
	// Peak 101000 to trough 100100
	assert.InDelta(t, -0.891089, *snap.MaxDrawdown, 1e-4)
	require.NotNil(t, snap.WinRate)
	assert.InDelta(t, 50.0, *snap.WinRate, 1e-9)
}

func TestCandleBenchmark_RequiresTwoCloses(t *testing.T) {
	ctx := context.Background()
	candles := memory.NewCandleStore()

	b := NewCandleBenchmark(candles, "SPY")
	_, ok := b.DailyReturnPct(ctx)
	assert.False(t, ok)

	require.NoError(t, candles.InsertBulk(ctx, []*domain.Candle{
		{Symbol: "SPY", Date: day(2025, time.March, 3), Close: 500},
	}))
	_, ok = b.DailyReturnPct(ctx)
	assert.False(t, ok)

	require.NoError(t, candles.InsertBulk(ctx, []*domain.Candle{
		{Symbol: "SPY", Date: day(2025, time.March, 4), Close: 505},
	}))
	daily, ok := b.DailyReturnPct(ctx)
	require.True(t, ok)
	assert.InDelta(t, 1.0, daily, 1e-9)

	// Empty symbol disables tracking entirely
	disabled := NewCandleBenchmark(candles, "")
	_, ok = disabled.DailyReturnPct(ctx)
	assert.False(t, ok)
}
