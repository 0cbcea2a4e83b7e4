package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/costs"
	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/metrics"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/storage"
)

// metricsWindow bounds how many prior snapshots feed the rolling risk
// metrics.
const metricsWindow = 30

// BenchmarkSource supplies today's benchmark daily return in percent.
// ok=false means no benchmark data for today; the snapshot then carries
// the previous cumulative benchmark forward unchanged.
type BenchmarkSource interface {
	DailyReturnPct(ctx context.Context) (float64, bool)
}

// CandleBenchmark derives the benchmark daily return from the last two
// stored daily closes of the benchmark symbol.
type CandleBenchmark struct {
	candles storage.CandleStore
	symbol  string
}

// NewCandleBenchmark creates a CandleBenchmark. An empty symbol
// disables benchmark tracking.
func NewCandleBenchmark(candles storage.CandleStore, symbol string) *CandleBenchmark {
	return &CandleBenchmark{candles: candles, symbol: symbol}
}

// Compile-time interface check.
var _ BenchmarkSource = (*CandleBenchmark)(nil)

// DailyReturnPct computes (last - prev) / prev * 100 from stored closes.
func (b *CandleBenchmark) DailyReturnPct(ctx context.Context) (float64, bool) {
	if b.symbol == "" {
		return 0, false
	}
	closes, err := b.candles.RecentCloses(ctx, b.symbol, 2)
	if err != nil || len(closes) < 2 || closes[1] <= 0 {
		return 0, false
	}
	return (closes[0] - closes[1]) / closes[1] * 100, true
}

// Reconciler writes the daily snapshot. Cash is recomputed from first
// principles on every run: it depends only on the append-only trade
// ledger and the current open-position set, never on a previous
// snapshot's cash field, so it stays correct across multi-day gaps,
// crashed runs and same-day re-invocations.
type Reconciler struct {
	positions storage.PositionStore
	trades    storage.TradeStore
	snapshots storage.SnapshotStore
	quotes    quotes.Provider
	benchmark BenchmarkSource
	cost      *costs.Config

	initialCapital   float64
	riskFreeDailyPct float64
	log              zerolog.Logger
}

// ReconcilerOptions contains configuration for creating a Reconciler.
type ReconcilerOptions struct {
	Positions storage.PositionStore
	Trades    storage.TradeStore
	Snapshots storage.SnapshotStore
	Quotes    quotes.Provider
	// Benchmark is optional; nil disables benchmark columns.
	Benchmark BenchmarkSource
	Cost      *costs.Config

	InitialCapital   float64
	RiskFreeDailyPct float64
	Log              zerolog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	return &Reconciler{
		positions:        opts.Positions,
		trades:           opts.Trades,
		snapshots:        opts.Snapshots,
		quotes:           opts.Quotes,
		benchmark:        opts.Benchmark,
		cost:             opts.Cost,
		initialCapital:   opts.InitialCapital,
		riskFreeDailyPct: opts.RiskFreeDailyPct,
		log:              opts.Log,
	}
}

// CashBalance recomputes available cash from first principles:
//
//	cash = initial_capital + Σ realized_pnl − Σ entry_value of open positions
func (r *Reconciler) CashBalance(ctx context.Context, strategy string) (float64, error) {
	realized, err := r.trades.RealizedPnLTotal(ctx, strategy)
	if err != nil {
		return 0, fmt.Errorf("realized pnl total: %w", err)
	}
	committed, err := r.positions.OpenValueTotal(ctx, strategy)
	if err != nil {
		return 0, fmt.Errorf("open value total: %w", err)
	}
	return r.initialCapital + realized - committed, nil
}

// Reconcile computes and upserts the snapshot for (strategy, today).
// Either the full snapshot is written with consistent cash, or nothing
// is written and the error is returned.
func (r *Reconciler) Reconcile(ctx context.Context, strategy string, now time.Time) (*domain.Snapshot, error) {
	today := domain.Day(now)

	open, err := r.positions.GetOpen(ctx, strategy)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}

	// Mark open positions conservatively: current value net of the
	// hypothetical exit cost, falling back to entry value when no
	// price is available.
	positionsValue := 0.0
	for _, pos := range open {
		price, ok := r.quotes.Price(ctx, pos.Symbol)
		if !ok || price <= 0 {
			positionsValue += pos.PositionValue
			continue
		}
		notional := price * pos.Shares
		positionsValue += notional - costs.Charge(notional, r.cost)
	}

	cash, err := r.CashBalance(ctx, strategy)
	if err != nil {
		return nil, err
	}

	totalValue := cash + positionsValue

	prev, err := r.snapshots.GetLatestBefore(ctx, strategy, today)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get previous snapshot: %w", err)
	}

	snap := &domain.Snapshot{
		Strategy:       strategy,
		Date:           today,
		Cash:           cash,
		PositionsValue: positionsValue,
		TotalValue:     totalValue,
		CumulativePnL:  totalValue - r.initialCapital,
		OpenPositions:  len(open),
	}
	if r.initialCapital > 0 {
		snap.CumulativePnLPct = snap.CumulativePnL / r.initialCapital * 100
	}

	if prev != nil {
		snap.DailyPnL = totalValue - prev.TotalValue
		if prev.TotalValue > 0 {
			snap.DailyPnLPct = snap.DailyPnL / prev.TotalValue * 100
		}
	}

	r.fillBenchmark(ctx, snap, prev)

	closedToday, err := r.trades.SymbolsClosedOn(ctx, strategy, today)
	if err != nil {
		return nil, fmt.Errorf("symbols closed today: %w", err)
	}
	snap.ClosedToday = len(closedToday)

	if err := r.fillRiskMetrics(ctx, snap, strategy, today); err != nil {
		return nil, err
	}

	if err := r.snapshots.Upsert(ctx, snap); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}

	r.log.Info().
		Str("strategy", strategy).
		Time("date", today).
		Float64("cash", cash).
		Float64("positions_value", positionsValue).
		Float64("total_value", totalValue).
		Int("open_positions", snap.OpenPositions).
		Msg("snapshot reconciled")

	return snap, nil
}

// fillBenchmark compounds the benchmark cumulative return and derives
// alpha. Without data for today, the previous cumulative carries
// forward unchanged.
func (r *Reconciler) fillBenchmark(ctx context.Context, snap *domain.Snapshot, prev *domain.Snapshot) {
	prevCum := 0.0
	if prev != nil {
		prevCum = prev.BenchmarkCumulativePct
	}

	if r.benchmark != nil {
		if daily, ok := r.benchmark.DailyReturnPct(ctx); ok {
			snap.BenchmarkDailyPct = daily
			snap.BenchmarkCumulativePct = ((1+prevCum/100)*(1+daily/100) - 1) * 100
			snap.AlphaPct = snap.CumulativePnLPct - snap.BenchmarkCumulativePct
			return
		}
	}

	snap.BenchmarkCumulativePct = prevCum
	snap.AlphaPct = snap.CumulativePnLPct - prevCum
}

// fillRiskMetrics computes the rolling Sharpe, max drawdown and win
// rate for the snapshot.
func (r *Reconciler) fillRiskMetrics(ctx context.Context, snap *domain.Snapshot, strategy string, today time.Time) error {
	window, err := r.snapshots.GetWindowBefore(ctx, strategy, today, metricsWindow)
	if err != nil {
		return fmt.Errorf("get snapshot window: %w", err)
	}

	equity := make([]float64, 0, len(window)+1)
	for _, s := range window {
		equity = append(equity, s.TotalValue)
	}
	equity = append(equity, snap.TotalValue)

	mdd := metrics.MaxDrawdown(equity)
	snap.MaxDrawdown = &mdd
	snap.SharpeRatio = metrics.SharpeRatio(metrics.DailyReturns(equity), r.riskFreeDailyPct/100)

	trades, err := r.trades.GetByStrategy(ctx, strategy)
	if err != nil {
		return fmt.Errorf("get trades: %w", err)
	}
	snap.WinRate = metrics.WinRate(trades)

	return nil
}
