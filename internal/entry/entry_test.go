package entry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/models"
)

func testSnapshot(bars int, vol float64) *models.MarketSnapshot {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(7))

	price := 100.0
	candles := make([]models.Candle, bars)
	for i := 0; i < bars; i++ {
		price *= 1.0 + (rng.Float64()-0.5)*2*vol
		candles[i] = models.Candle{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price * (1 + vol/2),
			Low:    price * (1 - vol/2),
			Close:  price,
			Volume: 1000,
		}
	}

	return &models.MarketSnapshot{
		Asset:    models.Asset{Canonical: "BTC", Type: models.AssetCrypto, BookSymbol: "BTCUSDT"},
		AsOf:     base.Add(time.Duration(bars) * time.Hour),
		Hourly:   candles,
		Spot:     price,
		ATRDaily: price * 0.02,
		VWAP24H:  price,
	}
}

func testEngine(book models.OrderBookProvider) *Engine {
	cfg := config.Default()
	return NewEngine(cfg.Entry, config.Bootstrap{Paths: 500, LookbackHours: 240}, book)
}

func testPrediction(entry, move *float64, horizon *int) models.Prediction {
	return models.Prediction{
		Source:       "U1001",
		SubmissionID: "sub-1",
		Asset:        "BTC",
		Direction:    models.DirectionLong,
		Confidence:   0.8,
		IssuedAt:     time.Date(2026, 1, 23, 8, 0, 0, 0, time.UTC),
		EntryPrice:   entry,
		MovePct:      move,
		HorizonHours: horizon,
	}
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestNotApplicableWithoutEntryDetails(t *testing.T) {
	engine := testEngine(nil)
	snap := testSnapshot(400, 0.005)

	tests := []struct {
		name string
		pred models.Prediction
	}{
		{"no entry price", testPrediction(nil, nil, iptr(4))},
		{"no horizon", testPrediction(fptr(100), nil, nil)},
		{"neither", testPrediction(nil, nil, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bd, ok := engine.Evaluate(context.Background(), tt.pred, snap)
			assert.False(t, ok)
			assert.Nil(t, bd)
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	engine := testEngine(nil)
	snap := testSnapshot(400, 0.005)
	pred := testPrediction(fptr(snap.Spot*0.995), fptr(0.004), iptr(4))

	first, ok := engine.Evaluate(context.Background(), pred, snap)
	require.True(t, ok)
	second, ok := engine.Evaluate(context.Background(), pred, snap)
	require.True(t, ok)

	assert.Equal(t, *first, *second, "same prediction and snapshot must reproduce bit-identical scores")
}

func TestEvaluateSeedVariesByIdentity(t *testing.T) {
	engine := testEngine(nil)
	snap := testSnapshot(400, 0.005)

	a := testPrediction(fptr(snap.Spot*0.995), fptr(0.004), iptr(4))
	b := a
	b.Source = "U2002"

	bdA, _ := engine.Evaluate(context.Background(), a, snap)
	bdB, _ := engine.Evaluate(context.Background(), b, snap)

	// Different identities draw different bootstrap samples
	tupleA := [3]float64{bdA.PTouch, bdA.PReachFromSpot, bdA.PReachFromEntry}
	tupleB := [3]float64{bdB.PTouch, bdB.PReachFromSpot, bdB.PReachFromEntry}
	assert.NotEqual(t, tupleA, tupleB)
}

func TestEvaluateBounds(t *testing.T) {
	engine := testEngine(nil)
	snap := testSnapshot(400, 0.01)
	pred := testPrediction(fptr(snap.Spot*0.99), fptr(0.01), iptr(8))

	bd, ok := engine.Evaluate(context.Background(), pred, snap)
	require.True(t, ok)

	for name, v := range map[string]float64{
		"p_touch":          bd.PTouch,
		"p_reach_target":   bd.PReachTarget,
		"entry_precision":  bd.EntryPrecision,
		"target_precision": bd.TargetPrecision,
		"move_realism":     bd.MoveRealism,
		"liquidity":        bd.Liquidity,
		"entry_score":      bd.Score,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestPTouchNearVsFarEntry(t *testing.T) {
	engine := testEngine(nil)
	snap := testSnapshot(400, 0.005)

	near := testPrediction(fptr(snap.Spot*0.999), nil, iptr(6))
	far := testPrediction(fptr(snap.Spot*0.80), nil, iptr(6))

	bdNear, _ := engine.Evaluate(context.Background(), near, snap)
	bdFar, _ := engine.Evaluate(context.Background(), far, snap)

	assert.Greater(t, bdNear.PTouch, bdFar.PTouch)
	assert.Less(t, bdFar.PTouch, 0.05, "an entry 20%% away should almost never fill in 6 hours")
}

func TestInsufficientHistoryNeutralReachability(t *testing.T) {
	engine := testEngine(nil)
	snap := testSnapshot(20, 0.005) // fewer than minReturns hourly bars
	pred := testPrediction(fptr(snap.Spot*0.999), nil, iptr(4))

	bd, ok := engine.Evaluate(context.Background(), pred, snap)
	require.True(t, ok)
	assert.Equal(t, 0.5, bd.PTouch)
}

func TestMoveRealismMonotone(t *testing.T) {
	prev := 2.0
	for _, move := range []float64{0.001, 0.005, 0.02, 0.05, 0.2} {
		score := moveRealismScore(100, 2.0, move, 4)
		assert.Less(t, score, prev, "realism must decrease as the implied move grows")
		prev = score
	}

	assert.Equal(t, 0.5, moveRealismScore(0, 2.0, 0.01, 4))
	assert.Equal(t, 0.5, moveRealismScore(100, 0, 0.01, 4))
}

func TestEntryPrecisionChasingPenalty(t *testing.T) {
	spot, atr := 100.0, 2.0

	below := entryPrecisionScore(spot, spot-atr*0.6, atr, 0, models.DirectionLong)
	above := entryPrecisionScore(spot, spot+atr*0.6, atr, 0, models.DirectionLong)

	assert.Greater(t, below, above, "a long chasing above spot must score lower")
	assert.InDelta(t, below*0.6, above, 1e-9)
}

func TestTargetPrecisionBehindDirection(t *testing.T) {
	// long target below entry is behind the trade
	score := targetPrecisionScore(100, 95, 2.0, 0, models.DirectionLong)
	assert.Equal(t, 0.05, score)

	// short target above entry likewise
	score = targetPrecisionScore(100, 105, 2.0, 0, models.DirectionShort)
	assert.Equal(t, 0.05, score)
}

func TestImpliedTargetPrice(t *testing.T) {
	assert.InDelta(t, 100.4, impliedTargetPrice(100, 0.004, models.DirectionLong), 1e-9)
	assert.InDelta(t, 99.6, impliedTargetPrice(100, 0.004, models.DirectionShort), 1e-9)
	assert.InDelta(t, 100.4, impliedTargetPrice(100, -0.004, models.DirectionLong), 1e-9, "sign of move_pct is ignored")
}

func TestBlendRenormalizesWithoutTarget(t *testing.T) {
	engine := testEngine(nil)

	bd := &models.EntryBreakdown{
		PTouch:         1.0,
		EntryPrecision: 1.0,
		Liquidity:      1.0,
		HasTarget:      false,
	}
	// With every included sub-score = 1, a renormalized blend must be 1
	assert.InDelta(t, 1.0, engine.blend(bd), 1e-9)

	bd.HasTarget = true
	bd.PReachTarget = 0
	bd.TargetPrecision = 0
	bd.MoveRealism = 0
	assert.Less(t, engine.blend(bd), 1.0)
}

type fakeBook struct {
	book *models.OrderBook
	err  error
}

func (f *fakeBook) Depth(_ context.Context, _ string, _ int) (*models.OrderBook, error) {
	return f.book, f.err
}

func TestLiquidityScore(t *testing.T) {
	snap := testSnapshot(400, 0.005)
	entryPrice := snap.Spot // at spot, inside the 1% window

	deepNear := &models.OrderBook{}
	for i := 0; i < 50; i++ {
		// levels hugging the entry
		deepNear.Asks = append(deepNear.Asks, models.BookLevel{Price: entryPrice * (1 + float64(i)*0.00001), Qty: 10})
		deepNear.Bids = append(deepNear.Bids, models.BookLevel{Price: entryPrice * (1 - float64(i)*0.00001), Qty: 10})
	}

	thinNear := &models.OrderBook{}
	for i := 0; i < 50; i++ {
		// depth parked far outside the band
		thinNear.Asks = append(thinNear.Asks, models.BookLevel{Price: entryPrice * (1 + 0.05 + float64(i)*0.001), Qty: 10})
		thinNear.Bids = append(thinNear.Bids, models.BookLevel{Price: entryPrice * (1 - 0.05 - float64(i)*0.001), Qty: 10})
	}

	pred := testPrediction(fptr(entryPrice), nil, iptr(4))

	deepEngine := testEngine(&fakeBook{book: deepNear})
	thinEngine := testEngine(&fakeBook{book: thinNear})

	bdDeep, _ := deepEngine.Evaluate(context.Background(), pred, snap)
	bdThin, _ := thinEngine.Evaluate(context.Background(), pred, snap)

	assert.Greater(t, bdDeep.Liquidity, bdThin.Liquidity)
	assert.InDelta(t, 0.0, bdThin.Liquidity, 1e-6)
}

func TestLiquidityNeutralCases(t *testing.T) {
	snap := testSnapshot(400, 0.005)

	// provider error
	engine := testEngine(&fakeBook{err: errors.New("boom")})
	pred := testPrediction(fptr(snap.Spot), nil, iptr(4))
	bd, _ := engine.Evaluate(context.Background(), pred, snap)
	assert.Equal(t, 0.5, bd.Liquidity)

	// entry too far from spot
	engine = testEngine(&fakeBook{book: &models.OrderBook{
		Bids: []models.BookLevel{{Price: 1, Qty: 1}},
		Asks: []models.BookLevel{{Price: 1, Qty: 1}},
	}})
	pred = testPrediction(fptr(snap.Spot*1.05), nil, iptr(4))
	bd, _ = engine.Evaluate(context.Background(), pred, snap)
	assert.Equal(t, 0.5, bd.Liquidity)

	// no provider at all
	engine = testEngine(nil)
	bd, _ = engine.Evaluate(context.Background(), testPrediction(fptr(snap.Spot), nil, iptr(4)), snap)
	assert.Equal(t, 0.5, bd.Liquidity)
}

func TestHourlyReturnsLookback(t *testing.T) {
	closes := make([]float64, 500)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	returns := hourlyReturns(closes, 240)
	assert.Len(t, returns, 240)
	for _, r := range returns {
		assert.False(t, math.IsNaN(r))
	}
}
