package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/signalrank/models"
)

func sampleResults() []models.RankedResult {
	entryPrice := 61250.0
	return []models.RankedResult{
		{
			Rank:     1,
			Selected: true,
			Prediction: models.Prediction{
				Source:       "trader-a",
				SubmissionID: "s1",
				Asset:        "BTC",
				Direction:    models.DirectionLong,
				Confidence:   0.9,
				IssuedAt:     time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
				EntryPrice:   &entryPrice,
			},
			Breakdown: models.ScoreBreakdown{
				MomentumAlignment:     0.82,
				TechnicalAlignment:    0.74,
				FundamentalScore:      0.66,
				TimeConsistency:       0.9,
				StructuralReliability: 0.78,
				ConfidenceReliability: 0.70,
				EntryApplicable:       true,
				Entry: &models.EntryBreakdown{
					PTouch:       0.65,
					PReachTarget: 0.4,
					Score:        0.58,
				},
				FinalScore:  0.61,
				Reliability: "moderate",
			},
		},
		{
			Rank:       2,
			Selected:   false,
			GateReason: "user confidence 0.50 below 0.70",
			Prediction: models.Prediction{
				Source:       "trader-b",
				SubmissionID: "s2",
				Asset:        "ETH",
				Direction:    models.DirectionShort,
				Confidence:   0.5,
				IssuedAt:     time.Date(2026, 8, 20, 13, 0, 0, 0, time.UTC),
			},
			Breakdown: models.ScoreBreakdown{
				StructuralReliability: 0.6,
				ConfidenceReliability: 0.3,
				FinalScore:            0.3,
				Reliability:           "low",
			},
		},
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	results := sampleResults()

	paths, err := NewWriter(dir).WriteAll(results, results[:1])
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
}

func TestCSVContents(t *testing.T) {
	dir := t.TempDir()
	results := sampleResults()

	_, err := NewWriter(dir).WriteAll(results, nil)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "full_ranked.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two rows")
	assert.Equal(t, csvHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "true", first[1])
	assert.Equal(t, "s1", first[3])
	assert.Equal(t, "long", first[6])
	assert.Equal(t, "61250", first[9])

	second := rows[2]
	assert.Equal(t, "user confidence 0.50 below 0.70", second[2])
	assert.Equal(t, "", second[9], "missing entry price stays empty")
	assert.Equal(t, "", second[21], "no entry score without entry layer")
}

func TestJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	results := sampleResults()

	_, err := NewWriter(dir).WriteAll(results, results[:1])
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "selected.json"))
	require.NoError(t, err)

	var decoded []models.RankedResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "s1", decoded[0].Prediction.SubmissionID)
	assert.Equal(t, 0.61, decoded[0].Breakdown.FinalScore)
	require.NotNil(t, decoded[0].Breakdown.Entry)
	assert.Equal(t, 0.65, decoded[0].Breakdown.Entry.PTouch)
}

func TestEmptyCollections(t *testing.T) {
	dir := t.TempDir()

	_, err := NewWriter(dir).WriteAll(nil, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "full_ranked.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}
