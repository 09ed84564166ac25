package momentum

import (
	"math"

	"github.com/Alias1177/signalrank/models"
)

// Horizon weights for the combined momentum reading. Hourly horizons carry
// slightly more weight than the slow daily ones.
const (
	w5h  = 0.30
	w10h = 0.20
	w20h = 0.10
	w5d  = 0.20
	w20d = 0.10
	w40d = 0.05
	w60d = 0.05
)

// minBarsForAlignment is the shortest series that still yields a usable
// momentum reading (the 5-bar horizon).
const minBarsForAlignment = 6

// Result is the momentum evaluation for one prediction.
type Result struct {
	Set             models.MomentumSet `json:"momentums"`
	Alignment       float64            `json:"momentum_alignment"`
	TimeConsistency float64            `json:"hourly_time_consistency"`
	Available       bool               `json:"available"`
}

// BarMomentum is the relative price change over the last n bars.
func BarMomentum(closes []float64, bars int) float64 {
	if len(closes) < bars+1 {
		return 0
	}
	a := closes[len(closes)-1]
	b := closes[len(closes)-(bars+1)]
	if b == 0 {
		return 0
	}
	return (a - b) / b
}

// ComputeSet derives the momentum readings from hourly and daily close series.
func ComputeSet(hourly, daily []float64) models.MomentumSet {
	set := models.MomentumSet{
		M5H:  BarMomentum(hourly, 5),
		M10H: BarMomentum(hourly, 10),
		M20H: BarMomentum(hourly, 20),
		M5D:  BarMomentum(daily, 5),
		M20D: BarMomentum(daily, 20),
		M40D: BarMomentum(daily, 40),
		M60D: BarMomentum(daily, 60),
	}
	set.Weighted = w5h*set.M5H + w10h*set.M10H + w20h*set.M20H +
		w5d*set.M5D + w20d*set.M20D + w40d*set.M40D + w60d*set.M60D
	return set
}

// Alignment converts a weighted momentum reading into agreement with the
// prediction direction in [0,1]: 0.5 is neutral, above 0.5 aligned, below
// misaligned. Magnitude saturates so huge momentum can't dominate.
func Alignment(direction models.Direction, weighted float64) float64 {
	if math.Abs(weighted) < 1e-6 {
		return 0.5
	}

	strength := 1.0 - math.Exp(-math.Abs(weighted)*20.0)
	aligned := (direction == models.DirectionLong && weighted > 0) ||
		(direction == models.DirectionShort && weighted < 0)

	if aligned {
		return 0.5 + 0.5*strength
	}
	return 0.5 - 0.5*strength
}

// TimeConsistency measures how stable hourly momentum has been across short
// rolling windows: low dispersion scores high, erratic flipping scores low.
func TimeConsistency(hourly []float64) float64 {
	const window = 5
	const samples = 12

	if len(hourly) < window+samples {
		return 0.5
	}

	// 5-bar momentum across the trailing rolling windows
	moms := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		end := len(hourly) - i
		sub := hourly[:end]
		moms = append(moms, BarMomentum(sub, window))
	}

	var mean float64
	for _, m := range moms {
		mean += m
	}
	mean /= float64(len(moms))

	var variance float64
	for _, m := range moms {
		d := m - mean
		variance += d * d
	}
	sigma := math.Sqrt(variance / float64(len(moms)))

	return clamp(math.Exp(-60.0*sigma), 0, 1)
}

// Evaluate computes alignment and time consistency for a snapshot. A snapshot
// without enough bars on either series degrades to neutral and is flagged
// unavailable.
func Evaluate(snap *models.MarketSnapshot, direction models.Direction) Result {
	hourly := snap.HourlyCloses()
	daily := make([]float64, 0, len(snap.Daily))
	for _, c := range snap.Daily {
		daily = append(daily, c.Close)
	}

	if len(hourly) < minBarsForAlignment && len(daily) < minBarsForAlignment {
		return Result{Alignment: 0.5, TimeConsistency: 0.5}
	}

	set := snap.Momentum
	if set == (models.MomentumSet{}) {
		set = ComputeSet(hourly, daily)
	}

	return Result{
		Set:             set,
		Alignment:       Alignment(direction, set.Weighted),
		TimeConsistency: TimeConsistency(hourly),
		Available:       true,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
