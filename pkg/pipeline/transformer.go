package pipeline

import (
	"sort"
	"time"

	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models"
)

// Transformer enriches cleaned records with derived features: date
// components, a min-max scaled value and a quartile band label.
type Transformer struct {
	logger *logger.Logger
}

func NewTransformer(log *logger.Logger) *Transformer {
	return &Transformer{logger: log}
}

// Transform runs the full feature pass over cleaned records.
func (t *Transformer) Transform(cleaned []models.Record) []models.Record {
	if len(cleaned) == 0 {
		t.logger.Warn().
			Str("action", "transform_skipped").
			Msg("No data to transform")
		return nil
	}

	records := t.addDateFeatures(cleaned)
	records = t.scaleValues(records)
	records = t.bandValues(records)

	now := time.Now().UTC()
	for i := range records {
		records[i].ProcessedAt = now
	}

	t.logger.Info().
		Str("action", "transform_complete").
		Int("count", len(records)).
		Msg("Transformation complete")

	return records
}

// addDateFeatures extracts calendar components from the record
// timestamp. Weekday follows Go's convention, Sunday is 0.
func (t *Transformer) addDateFeatures(records []models.Record) []models.Record {
	for i := range records {
		ts := records[i].RecordedAt
		if ts.IsZero() {
			continue
		}
		records[i].Year = ts.Year()
		records[i].Month = int(ts.Month())
		records[i].Day = ts.Day()
		records[i].Weekday = int(ts.Weekday())
	}
	return records
}

// scaleValues min-max scales Value into [0, 1]. When all values are
// equal there is no spread to scale and ValueNorm is left unset.
func (t *Transformer) scaleValues(records []models.Record) []models.Record {
	minVal, maxVal := records[0].Value, records[0].Value
	for _, r := range records[1:] {
		if r.Value < minVal {
			minVal = r.Value
		}
		if r.Value > maxVal {
			maxVal = r.Value
		}
	}

	if minVal == maxVal {
		return records
	}

	spread := maxVal - minVal
	for i := range records {
		scaled := (records[i].Value - minVal) / spread
		records[i].ValueNorm = &scaled
	}
	return records
}

// bandValues labels each record with the quartile its value falls in.
func (t *Transformer) bandValues(records []models.Record) []models.Record {
	if len(records) < 4 {
		return records
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Value
	}
	sort.Float64s(values)

	q1 := quantile(values, 0.25)
	q2 := quantile(values, 0.50)
	q3 := quantile(values, 0.75)

	for i := range records {
		switch v := records[i].Value; {
		case v <= q1:
			records[i].ValueBand = "low"
		case v <= q2:
			records[i].ValueBand = "medium_low"
		case v <= q3:
			records[i].ValueBand = "medium_high"
		default:
			records[i].ValueBand = "high"
		}
	}
	return records
}
