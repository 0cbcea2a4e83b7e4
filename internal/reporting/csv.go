package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders the trade ledger rows as CSV string.
func RenderCSV(strategy string, trades []TradeRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("strategy,symbol,entry_date,exit_date,exit_reason,hold_days,pnl,pnl_pct\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%.6f,%.6f\n",
			strategy,
			t.Symbol,
			t.EntryDate.Format("2006-01-02"),
			t.ExitDate.Format("2006-01-02"),
			t.ExitReason,
			t.HoldDays,
			t.PnL,
			t.PnLPct,
		))
	}

	return sb.String()
}
