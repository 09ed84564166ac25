package models

import (
	"context"
	"time"
)

// MarketSignalProvider yields market snapshots for an asset as of a timestamp.
// Implementations return ErrUnavailable when no data can be supplied; a
// deadline overrun is treated the same way by callers.
type MarketSignalProvider interface {
	Fetch(ctx context.Context, asset Asset, asOf time.Time, lookbackDays int) (*MarketSnapshot, error)
}

// FundamentalsProvider yields a macro/sentiment alignment score in [0,1] for
// an asset and direction as of a timestamp, or ErrUnavailable.
type FundamentalsProvider interface {
	Score(ctx context.Context, asset Asset, direction Direction, asOf time.Time) (float64, error)
}

// OrderBookProvider yields a depth snapshot for the liquidity proxy. Optional:
// scoring stays neutral when no provider exists for the asset's data source.
type OrderBookProvider interface {
	Depth(ctx context.Context, symbol string, limit int) (*OrderBook, error)
}

// AssetResolver maps a raw submitted symbol to a canonical asset.
type AssetResolver interface {
	Resolve(raw string) (Asset, error)
}
