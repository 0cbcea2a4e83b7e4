package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/costs"
	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/idhash"
	"paper-trading-lab/internal/storage"
)

// Closer realizes exit signals: marks positions closed and appends the
// immutable trade records.
type Closer struct {
	positions storage.PositionStore
	trades    storage.TradeStore
	cost      *costs.Config
	log       zerolog.Logger
}

// CloserOptions contains configuration for creating a Closer.
type CloserOptions struct {
	Positions storage.PositionStore
	Trades    storage.TradeStore
	Cost      *costs.Config
	Log       zerolog.Logger
}

// NewCloser creates a Closer.
func NewCloser(opts CloserOptions) *Closer {
	return &Closer{
		positions: opts.Positions,
		trades:    opts.Trades,
		cost:      opts.Cost,
		log:       opts.Log,
	}
}

// Close realizes each signal independently: a failure on one never
// blocks the rest. Returns the trades actually recorded plus failure
// descriptions for run metadata.
func (c *Closer) Close(ctx context.Context, signals []domain.ExitSignal, regime string, now time.Time) ([]*domain.Trade, []string) {
	var trades []*domain.Trade
	var errs []string
	exitDate := domain.Day(now)

	for _, sig := range signals {
		pos := sig.Position

		if sig.Price <= 0 {
			errs = append(errs, fmt.Sprintf("close %s: invalid exit price %v", pos.Symbol, sig.Price))
			continue
		}

		grossPnL := (sig.Price - pos.EntryPrice) * pos.Shares
		exitNotional := sig.Price * pos.Shares
		exitCost := costs.Charge(exitNotional, c.cost)
		netPnL := grossPnL - exitCost

		pnlPct := 0.0
		if pos.PositionValue > 0 {
			pnlPct = netPnL / pos.PositionValue * 100
		}

		exit := domain.PositionExit{
			Date:   exitDate,
			Price:  sig.Price,
			Reason: sig.Reason,
			PnL:    netPnL,
			PnLPct: pnlPct,
			Regime: regime,
		}
		if err := c.positions.Close(ctx, pos.PositionID, exit); err != nil {
			c.log.Error().Err(err).
				Str("strategy", pos.Strategy).
				Str("symbol", pos.Symbol).
				Str("position_id", pos.PositionID).
				Msg("close position failed")
			errs = append(errs, fmt.Sprintf("close %s: %v", pos.Symbol, err))
			continue
		}

		trade := &domain.Trade{
			TradeID:       idhash.ComputeTradeID(pos.Strategy, pos.Symbol, pos.EntryDate, exitDate),
			Strategy:      pos.Strategy,
			Symbol:        pos.Symbol,
			EntryDate:     pos.EntryDate,
			EntryPrice:    pos.EntryPrice,
			Shares:        pos.Shares,
			PositionValue: pos.PositionValue,
			ExitDate:      exitDate,
			ExitPrice:     sig.Price,
			ExitReason:    sig.Reason,
			HoldDays:      pos.HoldDays(now),
			PnL:           netPnL,
			PnLPct:        pnlPct,
			EntryRegime:   pos.EntryRegime,
			ExitRegime:    regime,
		}
		if err := c.trades.Insert(ctx, trade); err != nil {
			// The position is already closed; surface so operators
			// can reconcile the missing ledger row.
			c.log.Error().Err(err).
				Str("strategy", pos.Strategy).
				Str("symbol", pos.Symbol).
				Str("trade_id", trade.TradeID).
				Msg("insert trade failed after position close")
			errs = append(errs, fmt.Sprintf("record trade %s: %v", pos.Symbol, err))
			continue
		}

		c.log.Info().
			Str("strategy", pos.Strategy).
			Str("symbol", pos.Symbol).
			Str("reason", sig.Reason).
			Float64("pnl", netPnL).
			Float64("pnl_pct", pnlPct).
			Int("hold_days", trade.HoldDays).
			Msg("position closed")
		trades = append(trades, trade)
	}

	return trades, errs
}
