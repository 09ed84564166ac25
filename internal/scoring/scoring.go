package scoring

import (
	"math"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/models"
)

// Final score blend: entry quality adjusts the confidence reliability score
// but never dominates it, and the multiplier never exceeds 1.
const (
	finalBaseWeight  = 0.7
	finalEntryWeight = 0.3
)

// Inputs carries the independent signal evaluations for one prediction.
// Unavailable signals are replaced by the neutral 0.5 during composition —
// never by zero, which would unfairly punish partial data.
type Inputs struct {
	TechnicalBias      float64
	TechnicalAlignment float64
	TechnicalAvailable bool

	MomentumAlignment float64
	WeightedMomentum  float64
	MomentumAvailable bool
	TimeConsistency   float64

	FundamentalScore     float64
	FundamentalAvailable bool

	Entry           *models.EntryBreakdown
	EntryApplicable bool
}

// Scorer fuses alignment signals, user confidence and entry quality into the
// final reliability score.
type Scorer struct {
	weights config.StructuralWeights
}

// NewScorer creates a scorer with the given structural weights.
func NewScorer(weights config.StructuralWeights) *Scorer {
	return &Scorer{weights: weights}
}

// Structural combines the four alignment signals into the structural
// reliability score in [0,1].
func (s *Scorer) Structural(momentumAlignment, technicalAlignment, fundamentalScore, timeConsistency float64) float64 {
	v := s.weights.Momentum*momentumAlignment +
		s.weights.Technical*technicalAlignment +
		s.weights.Fundamental*fundamentalScore +
		s.weights.Consistency*timeConsistency
	return clamp(v, 0, 1)
}

// ConfidenceReliability weighs structural reliability by the user's stated
// confidence. Confidence outside [0,1] is a validation failure: the
// prediction is excluded with a reason, never silently scored.
func (s *Scorer) ConfidenceReliability(userConfidence, structural float64) (float64, error) {
	if userConfidence < 0 || userConfidence > 1 || math.IsNaN(userConfidence) {
		return 0, &models.ValidationError{Field: "user_confidence", Reason: "must be in [0,1]"}
	}
	return clamp(userConfidence*structural, 0, 1), nil
}

// Final applies the entry-quality multiplier. When the entry layer does not
// apply, the multiplier is bypassed entirely (forced to 1.0) rather than fed
// a neutral entry score — omitting entry details must not cost score.
func Final(confidenceReliability float64, entryScore float64, entryApplicable bool) float64 {
	if !entryApplicable {
		return clamp(confidenceReliability, 0, 1)
	}
	return clamp(confidenceReliability*(finalBaseWeight+finalEntryWeight*clamp(entryScore, 0, 1)), 0, 1)
}

// ReliabilityLabel buckets a final score for human consumption.
func ReliabilityLabel(finalScore float64) string {
	switch {
	case finalScore < 0.4:
		return "low"
	case finalScore < 0.7:
		return "moderate"
	default:
		return "high"
	}
}

// Compose assembles the full, immutable breakdown for one prediction.
func (s *Scorer) Compose(pred models.Prediction, in Inputs) (models.ScoreBreakdown, error) {
	techAlignment := 0.5
	if in.TechnicalAvailable {
		techAlignment = in.TechnicalAlignment
	}
	momAlignment, consistency := 0.5, 0.5
	if in.MomentumAvailable {
		momAlignment = in.MomentumAlignment
		consistency = in.TimeConsistency
	}
	fundamental := 0.5
	if in.FundamentalAvailable {
		fundamental = in.FundamentalScore
	}

	structural := s.Structural(momAlignment, techAlignment, fundamental, consistency)

	crs, err := s.ConfidenceReliability(pred.Confidence, structural)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}

	bd := models.ScoreBreakdown{
		TechnicalBias:        in.TechnicalBias,
		TechnicalAlignment:   techAlignment,
		TechnicalAvailable:   in.TechnicalAvailable,
		WeightedMomentum:     in.WeightedMomentum,
		MomentumAlignment:    momAlignment,
		MomentumAvailable:    in.MomentumAvailable,
		TimeConsistency:      consistency,
		FundamentalScore:     fundamental,
		FundamentalAvailable: in.FundamentalAvailable,

		StructuralReliability: structural,
		ConfidenceReliability: crs,

		EntryApplicable: in.EntryApplicable,
		Entry:           in.Entry,
	}

	entryScore := 0.0
	if in.EntryApplicable && in.Entry != nil {
		entryScore = in.Entry.Score
	} else {
		bd.EntryApplicable = false
		bd.Entry = nil
	}

	bd.FinalScore = Final(crs, entryScore, bd.EntryApplicable)
	bd.Reliability = ReliabilityLabel(bd.FinalScore)
	return bd, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
