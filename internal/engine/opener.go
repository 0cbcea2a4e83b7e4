// Package engine holds the portfolio core: the position opener, the
// exit-signal evaluator, the position closer and the snapshot
// reconciler. All components are single-threaded batch units; any
// concurrency lives in their collaborators.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/costs"
	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/idhash"
	"paper-trading-lab/internal/quotes"
	"paper-trading-lab/internal/storage"
)

// Opener creates new positions from the day's proposed symbols.
type Opener struct {
	positions storage.PositionStore
	trades    storage.TradeStore
	quotes    quotes.Provider
	cost      *costs.Config
	log       zerolog.Logger
}

// OpenerOptions contains configuration for creating an Opener.
type OpenerOptions struct {
	Positions storage.PositionStore
	Trades    storage.TradeStore
	Quotes    quotes.Provider
	Cost      *costs.Config
	Log       zerolog.Logger
}

// NewOpener creates an Opener.
func NewOpener(opts OpenerOptions) *Opener {
	return &Opener{
		positions: opts.Positions,
		trades:    opts.Trades,
		quotes:    opts.Quotes,
		cost:      opts.Cost,
		log:       opts.Log,
	}
}

// OpenRequest is one strategy's proposed entries for the day.
type OpenRequest struct {
	Strategy string
	Symbols  []string
	// Scores carries optional composite scores per symbol; missing
	// entries are stored as null.
	Scores map[string]float64
	Regime string
	Date   time.Time
}

// Open filters the proposed symbols, sizes the accepted ones
// equal-weight from available cash and creates positions. A failure
// opening one symbol never blocks the others; such failures are
// returned as run metadata alongside the successfully opened positions.
func (o *Opener) Open(ctx context.Context, req OpenRequest, p domain.StrategyParameters, status domain.DrawdownStatus, cash float64) ([]*domain.Position, []string) {
	if !status.CanOpen {
		o.log.Info().
			Str("strategy", req.Strategy).
			Str("tier", status.Tier).
			Float64("max_drawdown", status.MaxDrawdown).
			Msg("opens blocked by drawdown tier")
		return nil, nil
	}
	if len(req.Symbols) == 0 {
		return nil, nil
	}

	open, err := o.positions.GetOpen(ctx, req.Strategy)
	if err != nil {
		return nil, []string{fmt.Sprintf("get open positions: %v", err)}
	}

	slots := p.MaxPositions - len(open)
	if slots <= 0 {
		o.log.Debug().
			Str("strategy", req.Strategy).
			Int("open", len(open)).
			Int("max", p.MaxPositions).
			Msg("no free position slots")
		return nil, nil
	}

	held := make(map[string]struct{}, len(open))
	for _, pos := range open {
		held[pos.Symbol] = struct{}{}
	}

	closedToday := make(map[string]struct{})
	symbols, err := o.trades.SymbolsClosedOn(ctx, req.Strategy, domain.Day(req.Date))
	if err != nil {
		// Degrade to allowing re-entry rather than blocking the run.
		o.log.Warn().Err(err).Str("strategy", req.Strategy).Msg("closed-today lookup failed")
	}
	for _, sym := range symbols {
		closedToday[sym] = struct{}{}
	}

	// Filter proposals in order; accept at most slots symbols.
	type accepted struct {
		symbol string
		price  float64
	}
	var picks []accepted
	seen := make(map[string]struct{}, len(req.Symbols))
	for _, sym := range req.Symbols {
		if len(picks) >= slots {
			break
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}

		if _, ok := held[sym]; ok {
			o.log.Debug().Str("strategy", req.Strategy).Str("symbol", sym).Msg("skip: already held")
			continue
		}
		if _, ok := closedToday[sym]; ok {
			o.log.Info().Str("strategy", req.Strategy).Str("symbol", sym).Msg("skip: closed earlier today")
			continue
		}
		price, ok := o.quotes.Price(ctx, sym)
		if !ok || price <= 0 {
			o.log.Warn().Str("strategy", req.Strategy).Str("symbol", sym).Msg("skip: no price available")
			continue
		}
		picks = append(picks, accepted{symbol: sym, price: price})
	}

	if len(picks) == 0 {
		return nil, nil
	}

	// Equal-weight sizing over accepted symbols, then drawdown scaling.
	size := cash / float64(len(picks)) * status.SizeMultiplier
	if size <= 0 {
		return nil, nil
	}

	var opened []*domain.Position
	var errs []string
	entryDate := domain.Day(req.Date)

	for _, pick := range picks {
		entryCost := costs.Charge(size, o.cost)
		shares := (size - entryCost) / pick.price
		if shares <= 0 {
			errs = append(errs, fmt.Sprintf("%s: position size %.2f cannot cover entry cost", pick.symbol, size))
			continue
		}

		pos := &domain.Position{
			PositionID:    idhash.ComputePositionID(req.Strategy, pick.symbol, entryDate),
			Strategy:      req.Strategy,
			Symbol:        pick.symbol,
			EntryDate:     entryDate,
			EntryPrice:    pick.price,
			Shares:        shares,
			PositionValue: size,
			EntryRegime:   req.Regime,
		}
		if score, ok := req.Scores[pick.symbol]; ok {
			pos.EntryScore = &score
		}

		if err := o.positions.Open(ctx, pos); err != nil {
			o.log.Error().Err(err).
				Str("strategy", req.Strategy).
				Str("symbol", pick.symbol).
				Msg("open position failed")
			errs = append(errs, fmt.Sprintf("open %s: %v", pick.symbol, err))
			continue
		}

		o.log.Info().
			Str("strategy", req.Strategy).
			Str("symbol", pick.symbol).
			Float64("price", pick.price).
			Float64("shares", shares).
			Float64("value", size).
			Msg("position opened")
		opened = append(opened, pos)
	}

	return opened, errs
}
