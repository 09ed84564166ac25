package ranking

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/models"
)

// Selector sorts scored predictions, applies the selection gates and flags
// the top fraction. Gated-out predictions stay in the ranked output with the
// failure reason recorded — nothing is silently dropped.
type Selector struct {
	gates  config.Gates
	logger zerolog.Logger
}

// NewSelector creates a selector with the given gates.
func NewSelector(gates config.Gates) *Selector {
	return &Selector{
		gates:  gates,
		logger: log.With().Str("component", "ranking").Logger(),
	}
}

// Rank orders the results by final score descending, ties broken by
// confidence reliability descending, then issued-at ascending so the full
// ordering is deterministic. It then gates and selects the top fraction.
func (s *Selector) Rank(results []models.RankedResult) []models.RankedResult {
	ranked := make([]models.RankedResult, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Breakdown.FinalScore != b.Breakdown.FinalScore {
			return a.Breakdown.FinalScore > b.Breakdown.FinalScore
		}
		if a.Breakdown.ConfidenceReliability != b.Breakdown.ConfidenceReliability {
			return a.Breakdown.ConfidenceReliability > b.Breakdown.ConfidenceReliability
		}
		return a.Prediction.IssuedAt.Before(b.Prediction.IssuedAt)
	})

	candidates := make([]int, 0, len(ranked))
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Selected = false

		if reason := s.gateReason(ranked[i]); reason != "" {
			ranked[i].GateReason = reason
			continue
		}
		candidates = append(candidates, i)
	}

	if len(candidates) == 0 {
		s.logger.Info().Int("total", len(ranked)).Msg("no predictions passed the gates")
		return ranked
	}

	// Top fraction of gate-passers, never fewer than one
	nSelect := int(math.Round(float64(len(candidates)) * s.gates.TopPct))
	if nSelect < 1 {
		nSelect = 1
	}

	for pos, idx := range candidates {
		if pos < nSelect {
			ranked[idx].Selected = true
		} else {
			ranked[idx].GateReason = fmt.Sprintf("below top %.0f%% cutoff", s.gates.TopPct*100)
		}
	}

	s.logger.Info().
		Int("total", len(ranked)).
		Int("gate_passed", len(candidates)).
		Int("selected", nSelect).
		Msg("Ranking complete")
	return ranked
}

// gateReason returns an empty string when the result passes every gate.
func (s *Selector) gateReason(r models.RankedResult) string {
	if !r.Breakdown.Complete() {
		return "structural inputs incomplete"
	}
	if r.Prediction.Confidence < s.gates.MinUserConfidence {
		return fmt.Sprintf("user confidence %.2f below %.2f", r.Prediction.Confidence, s.gates.MinUserConfidence)
	}
	if r.Breakdown.StructuralReliability < s.gates.MinStructural {
		return fmt.Sprintf("structural reliability %.2f below %.2f", r.Breakdown.StructuralReliability, s.gates.MinStructural)
	}
	if s.gates.MinFinalScore != nil && r.Breakdown.FinalScore < *s.gates.MinFinalScore {
		return fmt.Sprintf("final score %.2f below %.2f", r.Breakdown.FinalScore, *s.gates.MinFinalScore)
	}
	return ""
}

// Selected returns the gate-passing, selected subset in rank order.
func Selected(ranked []models.RankedResult) []models.RankedResult {
	out := make([]models.RankedResult, 0, len(ranked))
	for _, r := range ranked {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out
}
