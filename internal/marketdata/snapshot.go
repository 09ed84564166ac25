package marketdata

import (
	"fmt"
	"time"

	"github.com/Alias1177/signalrank/internal/momentum"
	"github.com/Alias1177/signalrank/internal/technical"
	"github.com/Alias1177/signalrank/models"
)

const atrPeriod = 14

// BuildSnapshot assembles a market snapshot from raw candle series. Candles
// after the as-of moment are discarded so a prediction is always scored
// against the market state at issue time.
func BuildSnapshot(asset models.Asset, asOf time.Time, hourly, daily, weekly []models.Candle) (*models.MarketSnapshot, error) {
	hourly = sliceAsOf(hourly, asOf)
	daily = sliceAsOf(daily, asOf)
	weekly = sliceAsOf(weekly, asOf)

	if len(hourly) == 0 && len(daily) == 0 {
		return nil, fmt.Errorf("%w: no candles at or before %s for %s",
			models.ErrUnavailable, asOf.Format(time.RFC3339), asset.Canonical)
	}

	snap := &models.MarketSnapshot{
		Asset:  asset,
		AsOf:   asOf,
		Hourly: hourly,
		Daily:  daily,
		Weekly: weekly,
	}

	if len(hourly) > 0 {
		snap.Spot = hourly[len(hourly)-1].Close
	} else {
		snap.Spot = daily[len(daily)-1].Close
	}

	snap.ATRDaily = technical.CalculateATR(daily, atrPeriod)
	snap.VWAP24H = vwap(hourly, 24, snap.Spot)
	snap.Momentum = momentum.ComputeSet(closes(hourly), closes(daily))

	return snap, nil
}

// sliceAsOf drops candles newer than the as-of moment.
func sliceAsOf(candles []models.Candle, asOf time.Time) []models.Candle {
	cut := len(candles)
	for cut > 0 && candles[cut-1].Time.After(asOf) {
		cut--
	}
	return candles[:cut]
}

// vwap is the volume-weighted typical price over the trailing window of
// candles. Series without volume fall back to the plain typical-price mean;
// an empty series falls back to spot.
func vwap(candles []models.Candle, window int, fallback float64) float64 {
	if len(candles) == 0 {
		return fallback
	}
	if len(candles) > window {
		candles = candles[len(candles)-window:]
	}

	var weighted, totalVolume, typicalSum float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3.0
		weighted += typical * c.Volume
		totalVolume += c.Volume
		typicalSum += typical
	}

	if totalVolume > 0 {
		return weighted / totalVolume
	}
	return typicalSum / float64(len(candles))
}

func closes(candles []models.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.Close)
	}
	return out
}
