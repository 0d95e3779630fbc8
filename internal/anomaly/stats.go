// Package anomaly computes batch-wide field statistics and per-claim
// deviation scores. Statistics are computed once over a full batch and are
// read-only afterward, so they can be shared across concurrent claim runs.
package anomaly

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/model"
)

// DefaultStdFloor replaces a zero or undefined standard deviation so that
// z-scores stay finite. Deviations against a floored std come out either
// exactly zero or enormous; both are accepted behavior.
const DefaultStdFloor = 1e-6

// Bucket thresholds on the mean absolute z-score.
const (
	highThreshold   = 2.5
	mediumThreshold = 1.5
)

// DefaultFields are the numeric claim fields scored when no explicit list
// is configured.
var DefaultFields = []string{
	"total_cost", "labor_cost", "part_cost", "mileage", "previous_claims",
}

type fieldStats struct {
	mean float64
	std  float64
}

// Statistics holds frozen per-field mean/std for one batch.
type Statistics struct {
	fields []string
	stats  map[string]fieldStats
	floor  float64
}

// Compute builds batch statistics for the given candidate fields. Values
// that fail numeric coercion are ignored; a field with no coercible values
// in the whole batch is excluded from scoring entirely.
func Compute(claims []model.Claim, fields []string, stdFloor float64) *Statistics {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	if stdFloor <= 0 {
		stdFloor = DefaultStdFloor
	}

	s := &Statistics{
		stats: make(map[string]fieldStats, len(fields)),
		floor: stdFloor,
	}

	for _, field := range fields {
		var values []float64
		for _, c := range claims {
			if v, ok := coerce(c, field); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		mean, std := meanStd(values)
		if std == 0 || math.IsNaN(std) {
			std = stdFloor
		}

		s.fields = append(s.fields, field)
		s.stats[field] = fieldStats{mean: mean, std: std}
	}

	zap.L().Debug("anomaly: batch statistics computed",
		zap.Int("claims", len(claims)),
		zap.Int("scored_fields", len(s.fields)),
	)

	return s
}

// Score computes the anomaly result for one claim against the frozen batch
// statistics. Fields that are absent or non-numeric on the claim are
// skipped; when no field scores, the anomaly score is exactly 0.
func (s *Statistics) Score(c model.Claim) model.AnomalyResult {
	perField := make(map[string]float64)
	var total float64

	for _, field := range s.fields {
		v, ok := coerce(c, field)
		if !ok {
			continue
		}
		fs := s.stats[field]
		z := math.Abs((v - fs.mean) / fs.std)
		perField[field] = z
		total += z
	}

	score := 0.0
	if len(perField) > 0 {
		score = total / float64(len(perField))
	}

	return model.AnomalyResult{
		Score:     score,
		Bucket:    BucketFor(score),
		PerFieldZ: perField,
	}
}

// FieldStats returns the frozen mean and std for a field, if it was scored.
func (s *Statistics) FieldStats(field string) (mean, std float64, ok bool) {
	fs, found := s.stats[field]
	if !found {
		return 0, 0, false
	}
	return fs.mean, fs.std, true
}

// BucketFor maps an anomaly score onto a risk bucket. Thresholds are
// checked in order: >2.5 high, >1.5 medium, else low.
func BucketFor(score float64) model.RiskBucket {
	switch {
	case score > highThreshold:
		return model.RiskHigh
	case score > mediumThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// coerce fetches a claim field and parses it as a float. Currency-style
// separators are tolerated.
func coerce(c model.Claim, field string) (float64, bool) {
	raw, ok := c.Field(field)
	if !ok {
		return 0, false
	}
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}
