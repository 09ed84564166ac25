package technical

import (
	"math"

	"github.com/Alias1177/signalrank/models"
)

// CalculateRSI calculates the Relative Strength Index.
func CalculateRSI(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0 // Default value if not enough data
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Wilder smoothing for the rest of the series
	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - change) / float64(period)
		}
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// CalculateATR calculates the Average True Range.
func CalculateATR(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	var trueRanges []float64
	for i := 1; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	periodToUse := period
	if len(trueRanges) < period {
		periodToUse = len(trueRanges)
	}

	var sum float64
	for i := len(trueRanges) - periodToUse; i < len(trueRanges); i++ {
		sum += trueRanges[i]
	}
	return sum / float64(periodToUse)
}

// CalculateADX calculates the Average Directional Index.
func CalculateADX(candles []models.Candle, period int) float64 {
	if len(candles) < period*2 {
		return 0
	}

	var plusDM, minusDM, trueRange []float64
	for i := 1; i < len(candles); i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		pDM, mDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			pDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			mDM = downMove
		}
		plusDM = append(plusDM, pDM)
		minusDM = append(minusDM, mDM)

		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRange = append(trueRange, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	// Wilder-smoothed DI series, then DX averaged into ADX
	smPlus := wilderSmooth(plusDM, period)
	smMinus := wilderSmooth(minusDM, period)
	smTR := wilderSmooth(trueRange, period)

	var dx []float64
	for i := range smTR {
		if smTR[i] == 0 {
			dx = append(dx, 0)
			continue
		}
		pDI := 100 * smPlus[i] / smTR[i]
		mDI := 100 * smMinus[i] / smTR[i]
		if pDI+mDI == 0 {
			dx = append(dx, 0)
			continue
		}
		dx = append(dx, 100*math.Abs(pDI-mDI)/(pDI+mDI))
	}

	if len(dx) < period {
		return 0
	}
	var sum float64
	for i := len(dx) - period; i < len(dx); i++ {
		sum += dx[i]
	}
	return sum / float64(period)
}

func wilderSmooth(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out = append(out, sum)
	prev := sum
	for i := period; i < len(values); i++ {
		prev = prev - prev/float64(period) + values[i]
		out = append(out, prev)
	}
	return out
}

// CalculateSMA calculates the simple moving average of the closes.
func CalculateSMA(candles []models.Candle, period int) float64 {
	if len(candles) < period {
		return 0
	}
	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// CalculateEMA calculates the exponential moving average of the closes.
func CalculateEMA(candles []models.Candle, period int) float64 {
	series := emaSeries(closes(candles), period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)

	// Seed with SMA of the first period
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out = append(out, ema)

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1.0-k)
		out = append(out, ema)
	}
	return out
}

// CalculateMACDHist returns the latest MACD histogram value
// (MACD line minus signal line).
func CalculateMACDHist(candles []models.Candle, fast, slow, signal int) float64 {
	vals := closes(candles)
	if len(vals) < slow+signal {
		return 0
	}

	fastEMA := emaSeries(vals, fast)
	slowEMA := emaSeries(vals, slow)

	// Align: slow series starts (slow-fast) values later
	offset := slow - fast
	macdLine := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macdLine[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalSeries := emaSeries(macdLine, signal)
	if len(signalSeries) == 0 {
		return 0
	}
	return macdLine[len(macdLine)-1] - signalSeries[len(signalSeries)-1]
}

// CalculateBollingerWidth returns (upper-lower)/middle of the Bollinger bands.
func CalculateBollingerWidth(candles []models.Candle, period int, stdDev float64) float64 {
	if len(candles) < period {
		return 0
	}
	mid := CalculateSMA(candles, period)
	if mid == 0 {
		return 0
	}

	var variance float64
	for i := len(candles) - period; i < len(candles); i++ {
		d := candles[i].Close - mid
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(period))
	return 2 * stdDev * sigma / math.Abs(mid)
}

// donchianLevels returns the highest high and lowest low of the lookback
// window ending at the bar before last (the breakout reference levels).
func donchianLevels(candles []models.Candle, lookback int) (high, low float64, ok bool) {
	if len(candles) < lookback+2 {
		return 0, 0, false
	}
	end := len(candles) - 1 // exclude latest bar
	for i := end - lookback; i < end; i++ {
		if i == end-lookback || candles[i].High > high {
			high = candles[i].High
		}
		if i == end-lookback || candles[i].Low < low {
			low = candles[i].Low
		}
	}
	return high, low, true
}
