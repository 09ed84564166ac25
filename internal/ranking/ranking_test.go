package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/models"
)

func result(id string, confidence, structural, crs, final float64, issuedAt time.Time) models.RankedResult {
	return models.RankedResult{
		Prediction: models.Prediction{
			SubmissionID: id,
			Source:       "U1001",
			Asset:        "BTC",
			Confidence:   confidence,
			IssuedAt:     issuedAt,
		},
		Breakdown: models.ScoreBreakdown{
			MomentumAvailable:     true,
			StructuralReliability: structural,
			ConfidenceReliability: crs,
			FinalScore:            final,
		},
	}
}

func TestRankOrdering(t *testing.T) {
	sel := NewSelector(config.Default().Gates)
	t0 := time.Date(2026, 1, 23, 8, 0, 0, 0, time.UTC)

	ranked := sel.Rank([]models.RankedResult{
		result("low", 0.9, 0.8, 0.5, 0.50, t0),
		result("high", 0.9, 0.8, 0.8, 0.80, t0),
		result("mid", 0.9, 0.8, 0.6, 0.60, t0),
	})

	assert.Equal(t, "high", ranked[0].Prediction.SubmissionID)
	assert.Equal(t, "mid", ranked[1].Prediction.SubmissionID)
	assert.Equal(t, "low", ranked[2].Prediction.SubmissionID)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestRankTieBreaks(t *testing.T) {
	sel := NewSelector(config.Default().Gates)
	t0 := time.Date(2026, 1, 23, 8, 0, 0, 0, time.UTC)

	// same final score: higher confidence reliability wins
	ranked := sel.Rank([]models.RankedResult{
		{Prediction: models.Prediction{SubmissionID: "a", Confidence: 0.9, IssuedAt: t0},
			Breakdown: models.ScoreBreakdown{MomentumAvailable: true, FinalScore: 0.6, ConfidenceReliability: 0.6, StructuralReliability: 0.8}},
		{Prediction: models.Prediction{SubmissionID: "b", Confidence: 0.9, IssuedAt: t0},
			Breakdown: models.ScoreBreakdown{MomentumAvailable: true, FinalScore: 0.6, ConfidenceReliability: 0.7, StructuralReliability: 0.8}},
	})
	assert.Equal(t, "b", ranked[0].Prediction.SubmissionID)

	// full tie: earlier issued_at preferred
	ranked = sel.Rank([]models.RankedResult{
		result("later", 0.9, 0.8, 0.6, 0.6, t0.Add(time.Hour)),
		result("earlier", 0.9, 0.8, 0.6, 0.6, t0),
	})
	assert.Equal(t, "earlier", ranked[0].Prediction.SubmissionID)
	assert.Equal(t, "later", ranked[1].Prediction.SubmissionID)
}

func TestGates(t *testing.T) {
	minFinal := 0.5
	gates := config.Gates{
		MinUserConfidence: 0.70,
		MinStructural:     0.55,
		MinFinalScore:     &minFinal,
		TopPct:            1.0,
	}
	sel := NewSelector(gates)
	t0 := time.Date(2026, 1, 23, 8, 0, 0, 0, time.UTC)

	incomplete := result("incomplete", 0.9, 0.8, 0.7, 0.7, t0)
	incomplete.Breakdown.MomentumAvailable = false

	ranked := sel.Rank([]models.RankedResult{
		result("passes", 0.9, 0.8, 0.7, 0.7, t0),
		result("low confidence", 0.5, 0.8, 0.7, 0.7, t0),
		result("weak structure", 0.9, 0.4, 0.7, 0.7, t0),
		result("low final", 0.9, 0.8, 0.7, 0.3, t0),
		incomplete,
	})

	byID := map[string]models.RankedResult{}
	for _, r := range ranked {
		byID[r.Prediction.SubmissionID] = r
	}

	assert.True(t, byID["passes"].Selected)
	assert.Empty(t, byID["passes"].GateReason)

	for id, fragment := range map[string]string{
		"low confidence": "user confidence",
		"weak structure": "structural reliability",
		"low final":      "final score",
		"incomplete":     "incomplete",
	} {
		r := byID[id]
		assert.False(t, r.Selected, id)
		assert.Contains(t, r.GateReason, fragment, id)
	}

	// gated-out rows are still present in the full ranked output
	assert.Len(t, ranked, 5)
}

func TestBelowThresholdNeverSelected(t *testing.T) {
	minFinal := 0.5
	sel := NewSelector(config.Gates{MinUserConfidence: 0, MinStructural: 0, MinFinalScore: &minFinal, TopPct: 1.0})
	t0 := time.Now()

	ranked := sel.Rank([]models.RankedResult{
		result("a", 0.9, 0.9, 0.45, 0.49, t0),
		result("b", 0.9, 0.9, 0.55, 0.55, t0),
	})

	for _, r := range ranked {
		if r.Breakdown.FinalScore < minFinal {
			assert.False(t, r.Selected)
		}
	}
}

func TestTopPctCutoff(t *testing.T) {
	sel := NewSelector(config.Gates{MinUserConfidence: 0, MinStructural: 0, TopPct: 0.30})
	t0 := time.Now()

	var results []models.RankedResult
	for i := 0; i < 10; i++ {
		results = append(results, result(string(rune('a'+i)), 0.9, 0.9, float64(i)/10, float64(i)/10, t0))
	}

	ranked := sel.Rank(results)
	selected := Selected(ranked)
	require.Len(t, selected, 3)

	// cutoff losers carry a reason
	cut := 0
	for _, r := range ranked {
		if r.GateReason != "" {
			assert.Contains(t, r.GateReason, "top 30%")
			cut++
		}
	}
	assert.Equal(t, 7, cut)
}

func TestAtLeastOneSelectedWhenAnyPass(t *testing.T) {
	sel := NewSelector(config.Gates{MinUserConfidence: 0, MinStructural: 0, TopPct: 0.30})
	ranked := sel.Rank([]models.RankedResult{result("only", 0.9, 0.9, 0.9, 0.9, time.Now())})

	require.Len(t, Selected(ranked), 1)
}

func TestNoCandidates(t *testing.T) {
	sel := NewSelector(config.Default().Gates)
	ranked := sel.Rank([]models.RankedResult{result("weak", 0.1, 0.1, 0.1, 0.1, time.Now())})

	assert.Empty(t, Selected(ranked))
	assert.NotEmpty(t, ranked[0].GateReason)
}
