package technical

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/models"
)

const minBars = 80

// TimeframeBias is the directional bias of one timeframe in [-1,1].
type TimeframeBias struct {
	Bias      float64 `json:"bias"`
	BarsUsed  int     `json:"bars_used"`
	Available bool    `json:"available"`
}

// Result is the full technical bias evaluation for one snapshot.
type Result struct {
	Bias         float64       `json:"technical_bias"` // [-1,1], post filters
	Alignment    float64       `json:"technical_alignment"`
	Available    bool          `json:"available"`
	Hourly       TimeframeBias `json:"hourly"`
	Daily        TimeframeBias `json:"daily"`
	Weekly       TimeframeBias `json:"weekly"`
	RegimeFactor float64       `json:"regime_factor"`
	SRFactor     float64       `json:"sr_factor"`
}

// Engine derives a directional bias from multi-timeframe indicators, weighted
// towards the daily timeframe, and maps it onto an alignment score against a
// prediction's direction.
type Engine struct {
	weights config.TimeframeWeights
	logger  zerolog.Logger
}

// NewEngine creates a bias engine with the given timeframe weights.
func NewEngine(weights config.TimeframeWeights) *Engine {
	return &Engine{
		weights: weights,
		logger:  log.With().Str("component", "technical_bias").Logger(),
	}
}

// Evaluate computes the combined bias for the snapshot and the alignment of
// the given direction with it. Missing timeframes are dropped from the
// weighted average with the remaining weights renormalized; when every
// timeframe is missing the result is neutral and marked unavailable.
func (e *Engine) Evaluate(snap *models.MarketSnapshot, direction models.Direction) Result {
	res := Result{
		Hourly:       trendBias(snap.Hourly),
		Daily:        trendBias(snap.Daily),
		Weekly:       trendBias(snap.Weekly),
		RegimeFactor: 1.0,
		SRFactor:     1.0,
	}

	type part struct {
		tf TimeframeBias
		w  float64
	}
	parts := []part{
		{res.Daily, e.weights.Daily},
		{res.Hourly, e.weights.Hourly},
		{res.Weekly, e.weights.Weekly},
	}

	var combined, weightSum float64
	for _, p := range parts {
		if !p.tf.Available {
			continue
		}
		combined += p.w * p.tf.Bias
		weightSum += p.w
	}

	if weightSum == 0 {
		e.logger.Debug().Str("asset", snap.Asset.Canonical).Msg("no timeframe data, neutral bias")
		res.Alignment = 0.5
		return res
	}
	combined = clamp(combined/weightSum, -1, 1)

	// Both damping filters read the daily timeframe only.
	res.RegimeFactor = volatilityRegimeFactor(snap.Daily)
	res.SRFactor = srProximityFactor(snap.Daily, combined)

	bias := sign(combined) * math.Min(math.Abs(combined)*res.RegimeFactor*res.SRFactor, 1.0)
	res.Bias = clamp(bias, -1, 1)
	res.Available = true
	res.Alignment = AlignmentFor(direction, res.Bias)
	return res
}

// AlignmentFor maps a bias in [-1,1] onto agreement with the direction in [0,1].
func AlignmentFor(direction models.Direction, bias float64) float64 {
	b := clamp(bias, -1, 1)
	if direction == models.DirectionShort {
		b = -b
	}
	return clamp(0.5+0.5*b, 0, 1)
}

// trendBias computes the single-timeframe bias from RSI, MACD, moving average
// structure, Donchian breakout and ADX trend strength.
func trendBias(candles []models.Candle) TimeframeBias {
	if len(candles) < minBars {
		return TimeframeBias{BarsUsed: len(candles)}
	}

	latest := candles[len(candles)-1].Close
	atr := math.Max(CalculateATR(candles, 14), 1e-9)

	rsiBias := clamp((CalculateRSI(candles, 14)-50.0)/50.0, -1, 1)
	macdBias := math.Tanh(CalculateMACDHist(candles, 12, 26, 9) * 5.0)

	sma20 := CalculateSMA(candles, 20)
	sma50 := CalculateSMA(candles, 50)
	ema20 := CalculateEMA(candles, 20)
	ema50 := CalculateEMA(candles, 50)

	// ATR-normalized structure distances
	smaBias := math.Tanh((sma20 - sma50) / atr * 0.8)
	emaBias := math.Tanh((ema20 - ema50) / atr * 0.8)
	priceStructure := math.Tanh((latest - sma50) / atr * 0.6)

	breakoutBias := 0.0
	if high, low, ok := donchianLevels(candles, 20); ok {
		if latest > high {
			breakoutBias = 1.0
		} else if latest < low {
			breakoutBias = -1.0
		}
	}

	raw := clamp(
		0.10*rsiBias+
			0.30*macdBias+
			0.20*smaBias+
			0.20*emaBias+
			0.10*priceStructure+
			0.10*breakoutBias,
		-1, 1)

	// ADX amplifies trending markets, damps rangebound ones
	adxStrength := clamp(CalculateADX(candles, 14)/40.0, 0, 1)
	strengthFactor := 0.4 + 0.6*adxStrength

	return TimeframeBias{
		Bias:      clamp(raw*strengthFactor, -1, 1),
		BarsUsed:  len(candles),
		Available: true,
	}
}

// volatilityRegimeFactor damps the bias magnitude in choppy, low-signal
// conditions. Returns a factor in [0.55, 1.0].
func volatilityRegimeFactor(candles []models.Candle) float64 {
	if len(candles) < 60 {
		return 0.85
	}

	latest := math.Max(math.Abs(candles[len(candles)-1].Close), 1e-9)
	atrp := CalculateATR(candles, 14) / latest
	bbw := CalculateBollingerWidth(candles, 20, 2)

	atrpQ := clamp((atrp-0.001)/0.010, 0, 1)
	bbwQ := clamp((bbw-0.002)/0.020, 0, 1)

	quality := 0.5*atrpQ + 0.5*bbwQ
	return clamp(0.55+0.45*quality, 0.55, 1.0)
}

// srProximityFactor damps the bias when price sits too close to the opposing
// support or resistance level. Returns a factor in [0.60, 1.0].
func srProximityFactor(candles []models.Candle, bias float64) float64 {
	const lookback = 60
	if len(candles) < lookback+5 {
		return 1.0
	}

	atr := math.Max(CalculateATR(candles, 14), 1e-9)
	last := candles[len(candles)-1].Close

	var recentHigh, recentLow float64
	for i := len(candles) - lookback; i < len(candles); i++ {
		if i == len(candles)-lookback || candles[i].High > recentHigh {
			recentHigh = candles[i].High
		}
		if i == len(candles)-lookback || candles[i].Low < recentLow {
			recentLow = candles[i].Low
		}
	}

	proximityPenalty := func(distATR float64) float64 {
		if distATR <= 0 {
			return 0.40
		}
		return clamp(0.40*(1-math.Min(distATR, 2.0)/2.0), 0, 0.40)
	}

	penalty := 0.0
	if bias > 0 {
		penalty = proximityPenalty((recentHigh - last) / atr)
	} else if bias < 0 {
		penalty = proximityPenalty((last - recentLow) / atr)
	}
	return clamp(1.0-penalty, 0.60, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
