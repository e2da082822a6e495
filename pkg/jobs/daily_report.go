package jobs

import (
	"context"
	"fmt"

	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/reporting"
	"github.com/databot-labs/core/pkg/scheduler"
)

// DailyReportJob writes the previous day's summary report each morning.
type DailyReportJob struct {
	generator *reporting.Generator
	format    string
	logger    *logger.Logger
}

func NewDailyReportJob(generator *reporting.Generator, format string, log *logger.Logger) Job {
	return &DailyReportJob{
		generator: generator,
		format:    format,
		logger:    log.WithJob("daily_report"),
	}
}

func (j *DailyReportJob) Name() string {
	return "daily_report"
}

func (j *DailyReportJob) Trigger() scheduler.Trigger {
	return scheduler.Daily{Hour: 6, Minute: 0}
}

func (j *DailyReportJob) Execute(ctx context.Context) error {
	path, err := j.generator.GenerateDaily(ctx, "", j.format)
	if err != nil {
		return fmt.Errorf("failed to generate daily report: %w", err)
	}

	j.logger.Info().
		Str("action", "report_written").
		Str("path", path).
		Msg("Daily report written")

	return nil
}
