package loader

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/signalrank/models"
)

const (
	minHorizonHours = 1
	maxHorizonHours = 24
)

// Result is the outcome of loading a batch: normalized predictions plus the
// per-record rejections. Schema violations never fail the whole batch.
type Result struct {
	Predictions []models.Prediction
	Rejected    []models.RejectedPrediction
}

// rawPrediction tolerates the field aliases seen in submitted batches.
type rawPrediction struct {
	UserID         string          `json:"user_id"`
	User           string          `json:"user"`
	UID            string          `json:"uid"`
	SubmissionID   string          `json:"submission_id"`
	ID             string          `json:"id"`
	Timestamp      string          `json:"timestamp"`
	Time           string          `json:"time"`
	Asset          string          `json:"asset"`
	Symbol         string          `json:"symbol"`
	Ticker         string          `json:"ticker"`
	Direction      string          `json:"direction"`
	Confidence     *float64        `json:"confidence"`
	UserConfidence *float64        `json:"user_confidence"`
	HorizonHours   *float64        `json:"horizon_hours"`
	EntryPrice     *float64        `json:"entry_price"`
	MovePct        json.RawMessage `json:"move_pct"`
}

type batchWrapper struct {
	Predictions []rawPrediction `json:"predictions"`
}

// LoadFile loads and normalizes a predictions JSON file. The file may hold a
// bare list or a {"predictions": [...]} wrapper.
func LoadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading predictions file: %w", err)
	}
	return Parse(data)
}

// Parse normalizes a raw predictions document.
func Parse(data []byte) (*Result, error) {
	var items []rawPrediction
	if err := json.Unmarshal(data, &items); err != nil {
		var wrapped batchWrapper
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("predictions must be a list or a {\"predictions\": [...]} object: %w", err)
		}
		items = wrapped.Predictions
	}

	res := &Result{}
	for i, raw := range items {
		pred, err := normalize(raw)
		if err != nil {
			res.Rejected = append(res.Rejected, models.RejectedPrediction{
				SubmissionID: firstNonEmpty(raw.SubmissionID, raw.ID),
				Source:       firstNonEmpty(raw.UserID, raw.User, raw.UID),
				Asset:        firstNonEmpty(raw.Asset, raw.Symbol, raw.Ticker),
				Reason:       err.Error(),
			})
			log.Warn().Int("index", i).Err(err).Msg("rejecting prediction record")
			continue
		}
		res.Predictions = append(res.Predictions, pred)
	}
	return res, nil
}

func normalize(raw rawPrediction) (models.Prediction, error) {
	asset := strings.TrimSpace(firstNonEmpty(raw.Asset, raw.Symbol, raw.Ticker))
	if asset == "" {
		return models.Prediction{}, &models.ValidationError{Field: "asset", Reason: "missing"}
	}

	source := firstNonEmpty(raw.UserID, raw.User, raw.UID)
	if source == "" {
		return models.Prediction{}, &models.ValidationError{Field: "user_id", Reason: "missing"}
	}

	confidence := 0.5
	if c := firstFloat(raw.Confidence, raw.UserConfidence); c != nil {
		if *c < 0 || *c > 1 || math.IsNaN(*c) {
			return models.Prediction{}, &models.ValidationError{Field: "user_confidence", Reason: "must be in [0,1]"}
		}
		confidence = *c
	}

	issuedAt := time.Now().UTC()
	if ts := firstNonEmpty(raw.Timestamp, raw.Time); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return models.Prediction{}, &models.ValidationError{Field: "timestamp", Reason: "not RFC3339"}
		}
		issuedAt = parsed.UTC()
	}

	pred := models.Prediction{
		Source:       source,
		SubmissionID: firstNonEmpty(raw.SubmissionID, raw.ID),
		Asset:        strings.ToUpper(asset),
		Direction:    models.NormalizeDirection(raw.Direction),
		Confidence:   confidence,
		IssuedAt:     issuedAt,
	}
	if pred.SubmissionID == "" {
		pred.SubmissionID = uuid.NewString()
	}

	if raw.HorizonHours != nil {
		h := *raw.HorizonHours
		if h < 0 || math.IsNaN(h) {
			return models.Prediction{}, &models.ValidationError{Field: "horizon_hours", Reason: "negative"}
		}
		horizon := clampInt(int(h), minHorizonHours, maxHorizonHours)
		pred.HorizonHours = &horizon
	}

	if raw.EntryPrice != nil {
		if *raw.EntryPrice <= 0 || math.IsNaN(*raw.EntryPrice) {
			return models.Prediction{}, &models.ValidationError{Field: "entry_price", Reason: "must be positive"}
		}
		pred.EntryPrice = raw.EntryPrice
	}

	if len(raw.MovePct) > 0 {
		mp, err := normalizeMovePct(raw.MovePct)
		if err != nil {
			return models.Prediction{}, err
		}
		if mp != nil {
			pred.MovePct = mp
		}
	}

	return pred, nil
}

// normalizeMovePct accepts decimals (0.004), bare percents (0.4 meaning
// 0.4%), and "0.4%" strings. Values above 0.2 are assumed to be percents.
func normalizeMovePct(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "null" || s == `""` {
		return nil, nil
	}

	isPercentString := false
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, &models.ValidationError{Field: "move_pct", Reason: "not a number"}
		}
		str = strings.TrimSpace(str)
		if strings.HasSuffix(str, "%") {
			isPercentString = true
			str = strings.TrimSuffix(str, "%")
		}
		s = str
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, &models.ValidationError{Field: "move_pct", Reason: "not a number"}
	}
	v = math.Abs(v)

	switch {
	case isPercentString:
		v /= 100.0
	case v > 1.0: // "40" meaning 40%
		v /= 100.0
	case v > 0.2: // 0.4 likely means 0.4%
		v /= 100.0
	}
	return &v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
