package models

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Direction is the side of a prediction.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// NormalizeDirection maps loader inputs (BUY/SELL/LONG/SHORT, any case) onto
// a Direction. Unknown values default to long, matching the loader contract.
func NormalizeDirection(raw string) Direction {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SELL", "SHORT":
		return DirectionShort
	default:
		return DirectionLong
	}
}

// AssetType groups assets by the data sources usable for them.
type AssetType string

const (
	AssetCrypto AssetType = "crypto"
	AssetForex  AssetType = "forex"
	AssetMetal  AssetType = "metal"
	AssetIndex  AssetType = "index"
	AssetStock  AssetType = "stock"
)

// Asset is a resolved, canonical asset identity plus its vendor symbols.
type Asset struct {
	Canonical    string    `json:"canonical"`
	Type         AssetType `json:"type"`
	VendorSymbol string    `json:"vendor_symbol"`         // time-series API symbol
	BookSymbol   string    `json:"book_symbol,omitempty"` // order-book symbol, crypto only
}

// Prediction is a single directional market call. Immutable once loaded.
// Identity is the (Asset, IssuedAt, Source) tuple.
type Prediction struct {
	Source       string    `json:"source"`        // submitting user/channel
	SubmissionID string    `json:"submission_id"` // unique per submission
	Asset        string    `json:"asset"`         // raw symbol as submitted
	Direction    Direction `json:"direction"`
	Confidence   float64   `json:"user_confidence"` // stated confidence in [0,1]
	IssuedAt     time.Time `json:"issued_at"`

	// Optional entry details. Nil means the entry-quality layer is skipped.
	EntryPrice   *float64 `json:"entry_price,omitempty"`
	MovePct      *float64 `json:"move_pct,omitempty"` // predicted move as decimal, e.g. 0.004
	HorizonHours *int     `json:"horizon_hours,omitempty"`
}

// Seed derives the deterministic random seed for this prediction's resampling.
// Re-scoring the same prediction must reproduce the same bootstrap draws.
func (p Prediction) Seed() int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", p.Asset, p.IssuedAt.UTC().Format(time.RFC3339Nano), p.Source)
	return int64(h.Sum64())
}

// Candle represents a single price candle.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// MomentumSet holds bar-momentum readings over the standard horizons plus
// their weighted combination.
type MomentumSet struct {
	M5H      float64 `json:"momentum_5h"`
	M10H     float64 `json:"momentum_10h"`
	M20H     float64 `json:"momentum_20h"`
	M5D      float64 `json:"momentum_5d"`
	M20D     float64 `json:"momentum_20d"`
	M40D     float64 `json:"momentum_40d"`
	M60D     float64 `json:"momentum_60d"`
	Weighted float64 `json:"weighted_momentum"`
}

// MarketSnapshot is the per-asset market state as of a prediction's timestamp.
// Fetched once, cached by (asset, as-of, lookback), never mutated afterwards.
type MarketSnapshot struct {
	Asset    Asset       `json:"asset"`
	AsOf     time.Time   `json:"as_of"`
	Hourly   []Candle    `json:"-"`
	Daily    []Candle    `json:"-"`
	Weekly   []Candle    `json:"-"`
	Spot     float64     `json:"spot"`
	ATRDaily float64     `json:"atr_daily"`
	VWAP24H  float64     `json:"vwap_24h"`
	Momentum MomentumSet `json:"momentum"`
}

// HourlyCloses extracts the hourly close series.
func (s *MarketSnapshot) HourlyCloses() []float64 {
	closes := make([]float64, 0, len(s.Hourly))
	for _, c := range s.Hourly {
		closes = append(closes, c.Close)
	}
	return closes
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price float64
	Qty   float64
}

// OrderBook is a depth snapshot used by the liquidity proxy.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// EntryBreakdown records every sub-score of the entry-quality layer.
type EntryBreakdown struct {
	PTouch          float64  `json:"p_touch"`
	PReachTarget    float64  `json:"p_reach_target"`
	PReachFromSpot  float64  `json:"p_reach_from_spot"`
	PReachFromEntry float64  `json:"p_reach_from_entry"`
	EntryPrecision  float64  `json:"entry_precision_score"`
	TargetPrecision float64  `json:"target_precision_score"`
	MoveRealism     float64  `json:"move_realism_score"`
	Liquidity       float64  `json:"liquidity_score"`
	TargetPrice     *float64 `json:"target_price,omitempty"`
	HasTarget       bool     `json:"has_target"` // move_pct present, target sub-scores included
	Score           float64  `json:"entry_score"`
}

// ScoreBreakdown holds every intermediate score for one prediction plus
// provenance flags for which inputs were actually available. Created once,
// never mutated after finalization.
type ScoreBreakdown struct {
	TechnicalBias      float64 `json:"technical_bias"` // [-1,1]
	TechnicalAlignment float64 `json:"technical_alignment"`
	TechnicalAvailable bool    `json:"technical_available"`

	WeightedMomentum  float64 `json:"weighted_momentum"`
	MomentumAlignment float64 `json:"momentum_alignment"`
	MomentumAvailable bool    `json:"momentum_available"`
	TimeConsistency   float64 `json:"hourly_time_consistency"`

	FundamentalScore     float64 `json:"fundamental_score"`
	FundamentalAvailable bool    `json:"fundamental_available"`

	StructuralReliability float64 `json:"structural_reliability"`
	ConfidenceReliability float64 `json:"confidence_reliability_score"`

	EntryApplicable bool            `json:"entry_applicable"`
	Entry           *EntryBreakdown `json:"entry,omitempty"`

	FinalScore  float64 `json:"final_reliability_score"`
	Reliability string  `json:"reliability"` // low / moderate / high
}

// Complete reports whether at least one structural input was available.
// Predictions scored entirely from neutral fallbacks fail the completeness gate.
func (b ScoreBreakdown) Complete() bool {
	return b.TechnicalAvailable || b.MomentumAvailable || b.FundamentalAvailable
}

// EntryScore returns the entry score and whether it applies.
func (b ScoreBreakdown) EntryScore() (float64, bool) {
	if !b.EntryApplicable || b.Entry == nil {
		return 0, false
	}
	return b.Entry.Score, true
}

// RankedResult is one row of the ranked output.
type RankedResult struct {
	Prediction Prediction     `json:"prediction"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Rank       int            `json:"rank"`
	Selected   bool           `json:"selected"`
	GateReason string         `json:"gate_reason,omitempty"` // why selection was refused
}

// RejectedPrediction is an input record excluded before scoring.
type RejectedPrediction struct {
	SubmissionID string `json:"submission_id"`
	Source       string `json:"source"`
	Asset        string `json:"asset"`
	Reason       string `json:"reason"`
}
