package reporting

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/databot-labs/core/pkg/database"
	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/models"
	"github.com/databot-labs/core/pkg/utils"
)

// RecordSource provides the stored records a report is built from.
type RecordSource interface {
	GetRecords(ctx context.Context, filter database.RecordFilter) ([]models.Record, error)
}

// Generator writes summary reports of stored records to disk.
type Generator struct {
	source        RecordSource
	outputDir     string
	defaultFormat string
	logger        *logger.Logger
}

func NewGenerator(source RecordSource, outputDir, defaultFormat string, log *logger.Logger) *Generator {
	if defaultFormat == "" {
		defaultFormat = "json"
	}
	return &Generator{
		source:        source,
		outputDir:     outputDir,
		defaultFormat: defaultFormat,
		logger:        log,
	}
}

// Report is the JSON report document.
type Report struct {
	Title       string          `json:"title"`
	GeneratedAt time.Time       `json:"generated_at"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Summary     Summary         `json:"summary"`
	Records     []models.Record `json:"records"`
}

// Summary holds the aggregate stats for the reporting period.
type Summary struct {
	TotalRecords int            `json:"total_records"`
	MeanValue    float64        `json:"mean_value"`
	MinValue     float64        `json:"min_value"`
	MaxValue     float64        `json:"max_value"`
	ByDataType   map[string]int `json:"by_data_type"`
	ByCategory   map[string]int `json:"by_category"`
}

// GenerateDaily builds a report covering the previous calendar day.
func (g *Generator) GenerateDaily(ctx context.Context, dataType, format string) (string, error) {
	now := time.Now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, 0, -1)

	title := "Daily Report - " + start.Format("2006-01-02")
	if dataType != "" {
		title += " - " + dataType
	}
	return g.generate(ctx, title, dataType, start, end, format, 10000)
}

// GenerateWeekly builds a report covering the previous seven days.
func (g *Generator) GenerateWeekly(ctx context.Context, dataType, format string) (string, error) {
	now := time.Now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, 0, -7)

	title := fmt.Sprintf("Weekly Report - %s to %s",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if dataType != "" {
		title += " - " + dataType
	}
	return g.generate(ctx, title, dataType, start, end, format, 50000)
}

func (g *Generator) generate(ctx context.Context, title, dataType string, start, end time.Time, format string, limit int) (string, error) {
	if format == "" {
		format = g.defaultFormat
	}

	records, err := g.source.GetRecords(ctx, database.RecordFilter{
		DataType: dataType,
		Since:    start,
		Until:    end,
		Limit:    limit,
	})
	if err != nil {
		return "", fmt.Errorf("failed to load records for report: %w", err)
	}

	if len(records) == 0 {
		g.logger.Warn().
			Str("action", "empty_report").
			Str("title", title).
			Msg("No data available for report period")
	}

	report := Report{
		Title:       title,
		GeneratedAt: time.Now(),
		PeriodStart: start,
		PeriodEnd:   end,
		Summary:     summarize(records),
		Records:     records,
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	base := utils.GenerateReportSlug(title, report.GeneratedAt)

	var path string
	switch format {
	case "csv":
		path = filepath.Join(g.outputDir, base+".csv")
		err = g.writeCSV(path, records)
	case "json":
		path = filepath.Join(g.outputDir, base+".json")
		err = g.writeJSON(path, report)
	default:
		g.logger.Warn().
			Str("action", "unsupported_format").
			Str("format", format).
			Msg("Unsupported report format, using JSON instead")
		path = filepath.Join(g.outputDir, base+".json")
		err = g.writeJSON(path, report)
	}
	if err != nil {
		return "", err
	}

	g.logger.Info().
		Str("action", "report_generated").
		Str("path", path).
		Int("records", len(records)).
		Msg("Report generated")

	return path, nil
}

func summarize(records []models.Record) Summary {
	summary := Summary{
		TotalRecords: len(records),
		ByDataType:   make(map[string]int),
		ByCategory:   make(map[string]int),
	}
	if len(records) == 0 {
		return summary
	}

	sum := 0.0
	summary.MinValue = records[0].Value
	summary.MaxValue = records[0].Value
	for _, r := range records {
		sum += r.Value
		if r.Value < summary.MinValue {
			summary.MinValue = r.Value
		}
		if r.Value > summary.MaxValue {
			summary.MaxValue = r.Value
		}
		summary.ByDataType[r.DataType]++
		summary.ByCategory[r.Category]++
	}
	summary.MeanValue = sum / float64(len(records))
	return summary
}

func (g *Generator) writeJSON(path string, report Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	return nil
}

func (g *Generator) writeCSV(path string, records []models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{"id", "data_type", "category", "value", "value_band", "recorded_at", "processed_at"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.ID,
			r.DataType,
			r.Category,
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			r.ValueBand,
			r.RecordedAt.Format(time.RFC3339),
			r.ProcessedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV report: %w", err)
	}
	return nil
}
