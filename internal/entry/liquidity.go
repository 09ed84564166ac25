package entry

import (
	"context"
	"math"

	"github.com/Alias1177/signalrank/models"
)

const (
	bandBps    = 25.0
	depthLimit = 1000
	topLevels  = 200
)

// liquidityScore measures order-book depth near the entry price. Long entries
// consume asks, short entries consume bids. Any provider failure or an entry
// too far from spot yields the neutral 0.5 — liquidity is never fatal.
func (e *Engine) liquidityScore(ctx context.Context, symbol string, spot, entryPrice float64, direction models.Direction) float64 {
	if spot <= 0 || entryPrice <= 0 {
		return 0.5
	}
	if math.Abs(entryPrice-spot)/spot > 0.01 {
		return 0.5
	}

	book, err := e.book.Depth(ctx, symbol, depthLimit)
	if err != nil {
		e.logger.Debug().Err(err).Str("symbol", symbol).Msg("order book unavailable, neutral liquidity")
		return 0.5
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0.5
	}

	band := entryPrice * (bandBps / 10000.0)
	lo, hi := entryPrice-band, entryPrice+band

	sumNear := func(levels []models.BookLevel) float64 {
		var qty float64
		for _, l := range levels {
			if l.Price >= lo && l.Price <= hi {
				qty += l.Qty
			}
		}
		return qty
	}
	sumTop := func(levels []models.BookLevel) float64 {
		n := topLevels
		if len(levels) < n {
			n = len(levels)
		}
		var qty float64
		for _, l := range levels[:n] {
			qty += l.Qty
		}
		return qty
	}

	var frac float64
	if direction == models.DirectionLong {
		frac = sumNear(book.Asks) / math.Max(sumTop(book.Asks), 1e-9)
	} else {
		frac = sumNear(book.Bids) / math.Max(sumTop(book.Bids), 1e-9)
	}

	return clamp(1.0-math.Exp(-frac*80.0), 0, 1)
}
