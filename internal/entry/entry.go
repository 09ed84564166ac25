package entry

import (
	"context"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/models"
)

const (
	maxHorizonHours = 24
	minReturns      = 50 // shortest return history the bootstrap accepts
)

// Engine estimates how executable a prediction's entry price and target move
// are: resampling-based reachability probabilities, precision against
// ATR/VWAP reference levels, move realism and an optional liquidity proxy.
type Engine struct {
	weights config.EntryWeights
	boot    config.Bootstrap
	book    models.OrderBookProvider // nil means liquidity stays neutral
	logger  zerolog.Logger
}

// NewEngine creates an entry-quality engine. book may be nil.
func NewEngine(weights config.EntryWeights, boot config.Bootstrap, book models.OrderBookProvider) *Engine {
	return &Engine{
		weights: weights,
		boot:    boot,
		book:    book,
		logger:  log.With().Str("component", "entry_quality").Logger(),
	}
}

// Evaluate scores the entry quality of a prediction. The second return value
// is false when the layer does not apply (no entry price or horizon); the
// final scorer then bypasses the entry multiplier entirely.
//
// All randomness is drawn from a generator seeded by the prediction identity,
// so re-scoring yields identical results.
func (e *Engine) Evaluate(ctx context.Context, pred models.Prediction, snap *models.MarketSnapshot) (*models.EntryBreakdown, bool) {
	if pred.EntryPrice == nil || pred.HorizonHours == nil {
		return nil, false
	}

	entryPrice := *pred.EntryPrice
	horizon := clampInt(*pred.HorizonHours, 1, maxHorizonHours)
	rng := rand.New(rand.NewSource(pred.Seed()))

	spot := snap.Spot
	closes := snap.HourlyCloses()
	if spot <= 0 && len(closes) > 0 {
		spot = closes[len(closes)-1]
	}

	atr := snap.ATRDaily
	if atr <= 0 && spot > 0 {
		atr = spot * 0.01
	}

	vwap := snap.VWAP24H
	returns := hourlyReturns(closes, e.boot.LookbackHours)

	bd := &models.EntryBreakdown{
		PTouch:          0.5,
		PReachTarget:    0.5,
		PReachFromSpot:  0.5,
		PReachFromEntry: 0.5,
		EntryPrecision:  0.5,
		TargetPrecision: 0.5,
		MoveRealism:     0.5,
		Liquidity:       0.5,
	}

	if len(returns) >= minReturns && spot > 0 {
		bd.PTouch = pTouch(rng, returns, spot, entryPrice, horizon, pred.Direction, e.boot.Paths)
	} else {
		e.logger.Debug().Str("asset", snap.Asset.Canonical).Int("returns", len(returns)).
			Msg("insufficient history for bootstrap, neutral reachability")
	}

	bd.EntryPrecision = entryPrecisionScore(spot, entryPrice, atr, vwap, pred.Direction)

	if pred.MovePct != nil {
		bd.HasTarget = true
		target := impliedTargetPrice(entryPrice, *pred.MovePct, pred.Direction)
		bd.TargetPrice = &target

		if len(returns) >= minReturns && spot > 0 {
			bd.PReachFromSpot = pReach(rng, returns, spot, target, horizon, pred.Direction, e.boot.Paths)
			bd.PReachFromEntry = pReach(rng, returns, entryPrice, target, horizon, pred.Direction, e.boot.Paths)
		}
		// Entry-aware but still pre-trade: not conditional on the entry filling
		bd.PReachTarget = clamp(0.60*bd.PReachFromSpot+0.40*bd.PReachFromEntry, 0, 1)

		bd.TargetPrecision = targetPrecisionScore(entryPrice, target, atr, vwap, pred.Direction)
		bd.MoveRealism = moveRealismScore(spot, atr, *pred.MovePct, horizon)
	}

	if e.book != nil && snap.Asset.BookSymbol != "" {
		bd.Liquidity = e.liquidityScore(ctx, snap.Asset.BookSymbol, spot, entryPrice, pred.Direction)
	}

	bd.Score = e.blend(bd)
	return bd, true
}

// blend combines sub-scores by the configured weights. Target-dependent
// sub-scores are dropped with weight renormalization when the prediction
// carries no move_pct.
func (e *Engine) blend(bd *models.EntryBreakdown) float64 {
	type part struct {
		value, weight float64
	}
	parts := []part{
		{bd.PTouch, e.weights.PTouch},
		{bd.EntryPrecision, e.weights.EntryPrecision},
		{bd.Liquidity, e.weights.Liquidity},
	}
	if bd.HasTarget {
		parts = append(parts,
			part{bd.PReachTarget, e.weights.PReachTarget},
			part{bd.TargetPrecision, e.weights.TargetPrecision},
			part{bd.MoveRealism, e.weights.MoveRealism},
		)
	}

	var sum, weightSum float64
	for _, p := range parts {
		sum += clamp(p.value, 0, 1) * p.weight
		weightSum += p.weight
	}
	if weightSum == 0 {
		return 0.5
	}
	return clamp(sum/weightSum, 0, 1)
}

// impliedTargetPrice converts move_pct into the implied target level.
func impliedTargetPrice(entryPrice, movePct float64, direction models.Direction) float64 {
	mp := math.Abs(movePct)
	if direction == models.DirectionShort {
		return entryPrice * (1.0 - mp)
	}
	return entryPrice * (1.0 + mp)
}

// hourlyReturns computes percentage changes of the close series, keeping the
// trailing lookback window.
func hourlyReturns(closes []float64, lookback int) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) > lookback {
		returns = returns[len(returns)-lookback:]
	}
	return returns
}

// pathExtremes resamples historical returns into simulated price paths and
// records each path's minimum and maximum. The paths themselves are never
// needed, only the extremes, so they are not materialized.
func pathExtremes(rng *rand.Rand, returns []float64, start float64, horizon, paths int) (mins, maxs []float64) {
	mins = make([]float64, paths)
	maxs = make([]float64, paths)
	for p := 0; p < paths; p++ {
		price := start
		lo, hi := math.Inf(1), math.Inf(-1)
		for h := 0; h < horizon; h++ {
			price *= 1.0 + returns[rng.Intn(len(returns))]
			if price < lo {
				lo = price
			}
			if price > hi {
				hi = price
			}
		}
		mins[p] = lo
		maxs[p] = hi
	}
	return mins, maxs
}

// pTouch estimates the probability that price touches the entry level within
// the horizon. Which extreme counts depends on where the entry sits relative
// to spot: a long entry below spot fills on the way down, above spot on a
// push up; mirrored for shorts.
func pTouch(rng *rand.Rand, returns []float64, spot, entryPrice float64, horizon int, direction models.Direction, paths int) float64 {
	mins, maxs := pathExtremes(rng, returns, spot, horizon, paths)

	touched := 0
	for p := 0; p < paths; p++ {
		var hit bool
		if direction == models.DirectionLong {
			if entryPrice <= spot {
				hit = mins[p] <= entryPrice
			} else {
				hit = maxs[p] >= entryPrice
			}
		} else {
			if entryPrice >= spot {
				hit = maxs[p] >= entryPrice
			} else {
				hit = mins[p] <= entryPrice
			}
		}
		if hit {
			touched++
		}
	}
	return float64(touched) / float64(paths)
}

// pReach estimates the probability that price reaches the target within the
// horizon, simulating from the given start level.
func pReach(rng *rand.Rand, returns []float64, start, target float64, horizon int, direction models.Direction, paths int) float64 {
	if start <= 0 {
		return 0.5
	}
	mins, maxs := pathExtremes(rng, returns, start, horizon, paths)

	reached := 0
	for p := 0; p < paths; p++ {
		if direction == models.DirectionLong {
			if maxs[p] >= target {
				reached++
			}
		} else {
			if mins[p] <= target {
				reached++
			}
		}
	}
	return float64(reached) / float64(paths)
}

// entryPrecisionScore rewards entries near the ATR-scaled sweet spot and the
// 24h VWAP, and penalizes chasing in the trade direction.
func entryPrecisionScore(spot, entry, atr float64, vwap float64, direction models.Direction) float64 {
	if spot <= 0 || entry <= 0 {
		return 0.5
	}
	atr = math.Max(atr, 1e-9)

	z := math.Abs(entry-spot) / atr

	const z0 = 0.6
	const k = 1.8
	base := math.Exp(-k * (z - z0) * (z - z0))

	chasing := (direction == models.DirectionLong && entry > spot) ||
		(direction == models.DirectionShort && entry < spot)
	if chasing {
		base *= 0.6
	}

	if vwap > 0 {
		vwZ := math.Abs(entry-vwap) / atr
		vwapBonus := math.Exp(-1.2 * vwZ * vwZ)
		base = 0.75*base + 0.25*vwapBonus
	}
	return clamp(base, 0, 1)
}

// targetPrecisionScore scores target realism relative to the entry, not spot.
// Targets behind the trade direction score near zero; otherwise a smooth
// decay around the typical short-horizon 0.8 ATR zone applies.
func targetPrecisionScore(entry, target, atr float64, vwap float64, direction models.Direction) float64 {
	if entry <= 0 || target <= 0 {
		return 0.5
	}
	atr = math.Max(atr, 1e-9)

	var dz float64
	if direction == models.DirectionLong {
		dz = (target - entry) / atr
	} else {
		dz = (entry - target) / atr
	}
	if dz < 0 {
		return 0.05
	}

	const z0 = 0.8
	const k = 1.1
	base := math.Exp(-k * (dz - z0) * (dz - z0))

	if vwap > 0 {
		vwZ := math.Abs(target-vwap) / atr
		vwapBonus := math.Exp(-0.6 * vwZ * vwZ)
		base = 0.85*base + 0.15*vwapBonus
	}
	return clamp(base, 0, 1)
}

// moveRealismScore penalizes moves far beyond the volatility-scaled
// expectation for the horizon, like "+5% in one hour" on a quiet asset.
func moveRealismScore(spot, atrDaily, movePct float64, horizonHours int) float64 {
	movePct = math.Abs(movePct)
	if spot <= 0 || atrDaily <= 0 {
		return 0.5
	}

	atrPct := math.Max(atrDaily/spot, 1e-9)
	expected := atrPct * math.Sqrt(float64(horizonHours)/24.0)
	ratio := movePct / math.Max(expected, 1e-9)

	return clamp(math.Exp(-ratio*ratio), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
