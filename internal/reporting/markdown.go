package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Daily Portfolio Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Date: %s | Strategies: %d\n\n", r.Date.Format("2006-01-02"), len(r.Strategies)))

	for _, s := range r.Strategies {
		sb.WriteString(fmt.Sprintf("## Strategy: %s\n\n", s.Strategy))
		renderSnapshot(&sb, s.Snapshot)
		renderOpenPositions(&sb, s.OpenPositions)
		renderRecentTrades(&sb, s.RecentTrades)
	}

	return sb.String()
}

func renderSnapshot(sb *strings.Builder, snap *SnapshotRow) {
	sb.WriteString("### Portfolio\n\n")
	if snap == nil {
		sb.WriteString("No snapshot reconciled yet.\n\n")
		return
	}

	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Snapshot Date | %s |\n", snap.Date.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Cash | %.2f |\n", snap.Cash))
	sb.WriteString(fmt.Sprintf("| Positions Value | %.2f |\n", snap.PositionsValue))
	sb.WriteString(fmt.Sprintf("| Total Value | %.2f |\n", snap.TotalValue))
	sb.WriteString(fmt.Sprintf("| Daily P&L %% | %.2f |\n", snap.DailyPnLPct))
	sb.WriteString(fmt.Sprintf("| Cumulative P&L %% | %.2f |\n", snap.CumulativePnLPct))
	sb.WriteString(fmt.Sprintf("| Benchmark Cumulative %% | %.2f |\n", snap.BenchmarkCumulativePct))
	sb.WriteString(fmt.Sprintf("| Alpha %% | %.2f |\n", snap.AlphaPct))
	sb.WriteString(fmt.Sprintf("| Open Positions | %d |\n", snap.OpenPositions))
	sb.WriteString(fmt.Sprintf("| Closed Today | %d |\n", snap.ClosedToday))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %s |\n", formatOptional(snap.SharpeRatio, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Max Drawdown %% | %s |\n", formatOptional(snap.MaxDrawdown, "%.2f")))
	sb.WriteString(fmt.Sprintf("| Win Rate %% | %s |\n", formatOptional(snap.WinRate, "%.2f")))
	sb.WriteString("\n")
}

func renderOpenPositions(sb *strings.Builder, positions []OpenPositionRow) {
	sb.WriteString("### Open Positions\n\n")
	if len(positions) == 0 {
		sb.WriteString("No open positions.\n\n")
		return
	}

	sb.WriteString("| Symbol | Entry Date | Entry Price | Shares | Value | Hold Days | Current | P&L% |\n")
	sb.WriteString("|--------|------------|-------------|--------|-------|-----------|---------|------|\n")
	for _, p := range positions {
		current := "n/a"
		pnl := "n/a"
		if p.CurrentPrice > 0 {
			current = fmt.Sprintf("%.2f", p.CurrentPrice)
			pnl = fmt.Sprintf("%.2f", p.PnLPct)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %.4f | %.2f | %d | %s | %s |\n",
			p.Symbol, p.EntryDate.Format("2006-01-02"),
			p.EntryPrice, p.Shares, p.PositionValue, p.HoldDays, current, pnl))
	}
	sb.WriteString("\n")
}

func renderRecentTrades(sb *strings.Builder, trades []TradeRow) {
	sb.WriteString("### Recent Trades\n\n")
	if len(trades) == 0 {
		sb.WriteString("No closed trades.\n\n")
		return
	}

	sb.WriteString("| Symbol | Entry | Exit | Reason | Hold Days | P&L | P&L% |\n")
	sb.WriteString("|--------|-------|------|--------|-----------|-----|------|\n")
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %.2f | %.2f |\n",
			t.Symbol, t.EntryDate.Format("2006-01-02"), t.ExitDate.Format("2006-01-02"),
			t.ExitReason, t.HoldDays, t.PnL, t.PnLPct))
	}
	sb.WriteString("\n")
}

func formatOptional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}
