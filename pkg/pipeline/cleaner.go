package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models"
)

// Cleaner scrubs raw records before they enter the transform stage.
// Duplicates are dropped, missing values filled, extreme values
// clipped and text fields normalized.
type Cleaner struct {
	logger *logger.Logger
}

func NewCleaner(log *logger.Logger) *Cleaner {
	return &Cleaner{logger: log}
}

// Clean runs the full cleaning pass and returns the surviving records.
func (c *Cleaner) Clean(raw []models.Record) []models.Record {
	if len(raw) == 0 {
		c.logger.Warn().
			Str("action", "clean_skipped").
			Msg("No data to clean")
		return nil
	}

	records := c.removeDuplicates(raw)
	records = c.fillMissingValues(records)
	records = c.clipOutliers(records)
	records = c.normalizeText(records)

	c.logger.Info().
		Str("action", "clean_complete").
		Int("input", len(raw)).
		Int("output", len(records)).
		Msg("Cleaning complete")

	return records
}

// removeDuplicates keeps the first occurrence of each record ID.
func (c *Cleaner) removeDuplicates(records []models.Record) []models.Record {
	seen := make(map[string]bool, len(records))
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if r.ID != "" && seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}

	if dropped := len(records) - len(out); dropped > 0 {
		c.logger.Info().
			Str("action", "duplicates_removed").
			Int("count", dropped).
			Msg("Removed duplicate records")
	}
	return out
}

// fillMissingValues substitutes the column median for zero values and
// "unknown" for empty text fields. Records missing a timestamp get the
// timestamp of the preceding record, falling back to now.
func (c *Cleaner) fillMissingValues(records []models.Record) []models.Record {
	median := medianValue(records)

	filled := 0
	var lastRecorded time.Time
	for i := range records {
		if records[i].Value == 0 && median != 0 {
			records[i].Value = median
			filled++
		}
		if records[i].DataType == "" {
			records[i].DataType = "unknown"
			filled++
		}
		if records[i].Category == "" {
			records[i].Category = "unknown"
			filled++
		}
		if records[i].RecordedAt.IsZero() {
			if !lastRecorded.IsZero() {
				records[i].RecordedAt = lastRecorded
			} else {
				records[i].RecordedAt = time.Now().UTC()
			}
			filled++
		}
		lastRecorded = records[i].RecordedAt
	}

	if filled > 0 {
		c.logger.Info().
			Str("action", "missing_filled").
			Int("count", filled).
			Msg("Filled missing values")
	}
	return records
}

// clipOutliers clips values outside [Q1 - 3*IQR, Q3 + 3*IQR] to the
// bounds rather than dropping the rows.
func (c *Cleaner) clipOutliers(records []models.Record) []models.Record {
	if len(records) < 4 {
		return records
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Value
	}
	sort.Float64s(values)

	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	lower := q1 - 3*iqr
	upper := q3 + 3*iqr

	clipped := 0
	for i := range records {
		if records[i].Value < lower {
			records[i].Value = lower
			clipped++
		} else if records[i].Value > upper {
			records[i].Value = upper
			clipped++
		}
	}

	if clipped > 0 {
		c.logger.Info().
			Str("action", "outliers_clipped").
			Int("count", clipped).
			Float64("lower_bound", lower).
			Float64("upper_bound", upper).
			Msg("Clipped outlier values")
	}
	return records
}

// normalizeText trims whitespace and lowercases the categorical fields.
func (c *Cleaner) normalizeText(records []models.Record) []models.Record {
	for i := range records {
		records[i].DataType = strings.ToLower(strings.TrimSpace(records[i].DataType))
		records[i].Category = strings.ToLower(strings.TrimSpace(records[i].Category))
		records[i].ID = strings.TrimSpace(records[i].ID)
	}
	return records
}

func medianValue(records []models.Record) float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Value != 0 {
			values = append(values, r.Value)
		}
	}
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	return quantile(values, 0.5)
}

// quantile interpolates linearly between the two nearest ranks.
// Input must be sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
