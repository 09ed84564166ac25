package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/signalrank/models"
)

// Writer persists ranked collections as CSV and JSON side by side.
type Writer struct {
	outputDir string
}

// NewWriter creates a writer rooted at outputDir; the directory is created on
// first use.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// WriteAll exports the full ranked collection and the selected subset, each
// as <name>.csv and <name>.json. It returns the paths written.
func (w *Writer) WriteAll(full, selected []models.RankedResult) ([]string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	var paths []string
	for _, set := range []struct {
		name string
		rows []models.RankedResult
	}{
		{"full_ranked", full},
		{"selected", selected},
	} {
		csvPath := filepath.Join(w.outputDir, set.name+".csv")
		if err := writeCSV(csvPath, set.rows); err != nil {
			return nil, err
		}
		jsonPath := filepath.Join(w.outputDir, set.name+".json")
		if err := writeJSON(jsonPath, set.rows); err != nil {
			return nil, err
		}
		paths = append(paths, csvPath, jsonPath)
	}

	log.Info().Str("dir", w.outputDir).Int("full", len(full)).Int("selected", len(selected)).Msg("results exported")
	return paths, nil
}

var csvHeader = []string{
	"rank", "selected", "gate_reason",
	"submission_id", "source", "asset", "direction", "issued_at",
	"user_confidence", "entry_price", "move_pct", "horizon_hours",
	"momentum_alignment", "weighted_momentum", "hourly_time_consistency",
	"technical_bias", "technical_alignment", "fundamental_score",
	"structural_reliability", "confidence_reliability_score",
	"entry_applicable", "entry_score", "p_touch", "p_reach_target",
	"final_reliability_score", "reliability",
}

func writeCSV(path string, rows []models.RankedResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(csvRow(row)); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(row models.RankedResult) []string {
	p, b := row.Prediction, row.Breakdown

	entryScore, pTouch, pReach := "", "", ""
	if b.EntryApplicable && b.Entry != nil {
		entryScore = formatFloat(b.Entry.Score)
		pTouch = formatFloat(b.Entry.PTouch)
		pReach = formatFloat(b.Entry.PReachTarget)
	}

	return []string{
		strconv.Itoa(row.Rank),
		strconv.FormatBool(row.Selected),
		row.GateReason,
		p.SubmissionID,
		p.Source,
		p.Asset,
		string(p.Direction),
		p.IssuedAt.UTC().Format(time.RFC3339),
		formatFloat(p.Confidence),
		formatOptional(p.EntryPrice),
		formatOptional(p.MovePct),
		formatOptionalInt(p.HorizonHours),
		formatFloat(b.MomentumAlignment),
		formatFloat(b.WeightedMomentum),
		formatFloat(b.TimeConsistency),
		formatFloat(b.TechnicalBias),
		formatFloat(b.TechnicalAlignment),
		formatFloat(b.FundamentalScore),
		formatFloat(b.StructuralReliability),
		formatFloat(b.ConfidenceReliability),
		strconv.FormatBool(b.EntryApplicable),
		entryScore,
		pTouch,
		pReach,
		formatFloat(b.FinalScore),
		b.Reliability,
	}
}

func writeJSON(path string, rows []models.RankedResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if rows == nil {
		rows = []models.RankedResult{}
	}
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
