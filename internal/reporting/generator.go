package reporting

import (
	"context"
	"errors"
	"time"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/storage"
)

// recentTradeLimit bounds the trade ledger table per strategy.
const recentTradeLimit = 20

// Generator produces reports from stored data.
type Generator struct {
	positions storage.PositionStore
	trades    storage.TradeStore
	snapshots storage.SnapshotStore
	quotes    quotes.Provider // optional; nil skips mark-to-market columns
	now       func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(
	positions storage.PositionStore,
	trades storage.TradeStore,
	snapshots storage.SnapshotStore,
	prices quotes.Provider,
) *Generator {
	return &Generator{
		positions: positions,
		trades:    trades,
		snapshots: snapshots,
		quotes:    prices,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete daily report for the given strategies.
func (g *Generator) Generate(ctx context.Context, strategies []string) (*Report, error) {
	now := g.now()

	report := &Report{
		GeneratedAt: now,
		Date:        domain.Day(now),
	}

	for _, strategy := range strategies {
		section, err := g.generateSection(ctx, strategy, now)
		if err != nil {
			return nil, err
		}
		report.Strategies = append(report.Strategies, *section)
	}

	return report, nil
}

func (g *Generator) generateSection(ctx context.Context, strategy string, now time.Time) (*StrategySection, error) {
	section := &StrategySection{Strategy: strategy}

	snap, err := g.snapshots.GetLatest(ctx, strategy)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if snap != nil {
		section.Snapshot = snapshotRow(snap)
	}

	open, err := g.positions.GetOpen(ctx, strategy)
	if err != nil {
		return nil, err
	}
	for _, pos := range open {
		section.OpenPositions = append(section.OpenPositions, g.openPositionRow(ctx, pos, now))
	}

	trades, err := g.trades.GetByStrategy(ctx, strategy)
	if err != nil {
		return nil, err
	}
	section.RecentTrades = recentTrades(trades, recentTradeLimit)

	return section, nil
}

func snapshotRow(s *domain.Snapshot) *SnapshotRow {
	return &SnapshotRow{
		Date:                   s.Date,
		Cash:                   s.Cash,
		PositionsValue:         s.PositionsValue,
		TotalValue:             s.TotalValue,
		DailyPnLPct:            s.DailyPnLPct,
		CumulativePnLPct:       s.CumulativePnLPct,
		BenchmarkCumulativePct: s.BenchmarkCumulativePct,
		AlphaPct:               s.AlphaPct,
		OpenPositions:          s.OpenPositions,
		ClosedToday:            s.ClosedToday,
		SharpeRatio:            s.SharpeRatio,
		MaxDrawdown:            s.MaxDrawdown,
		WinRate:                s.WinRate,
	}
}

func (g *Generator) openPositionRow(ctx context.Context, pos *domain.Position, now time.Time) OpenPositionRow {
	row := OpenPositionRow{
		Symbol:        pos.Symbol,
		EntryDate:     pos.EntryDate,
		EntryPrice:    pos.EntryPrice,
		Shares:        pos.Shares,
		PositionValue: pos.PositionValue,
		HoldDays:      pos.HoldDays(now),
	}

	if g.quotes != nil {
		if price, ok := g.quotes.Price(ctx, pos.Symbol); ok && pos.EntryPrice > 0 {
			row.CurrentPrice = price
			row.PnLPct = (price - pos.EntryPrice) / pos.EntryPrice * 100
		}
	}

	return row
}

// recentTrades returns up to limit trades, newest exit first. The store
// returns the ledger ordered by exit date ascending.
func recentTrades(trades []*domain.Trade, limit int) []TradeRow {
	var rows []TradeRow
	for i := len(trades) - 1; i >= 0 && len(rows) < limit; i-- {
		t := trades[i]
		rows = append(rows, TradeRow{
			Symbol:     t.Symbol,
			EntryDate:  t.EntryDate,
			ExitDate:   t.ExitDate,
			ExitReason: t.ExitReason,
			HoldDays:   t.HoldDays,
			PnL:        t.PnL,
			PnLPct:     t.PnLPct,
		})
	}
	return rows
}
