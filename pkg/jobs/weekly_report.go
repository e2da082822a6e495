package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/databot-labs/core/pkg/logger"
	"github.com/databot-labs/core/pkg/reporting"
	"github.com/databot-labs/core/pkg/scheduler"
)

// WeeklyReportJob writes the previous week's summary report on Monday
// mornings.
type WeeklyReportJob struct {
	generator *reporting.Generator
	format    string
	logger    *logger.Logger
}

func NewWeeklyReportJob(generator *reporting.Generator, format string, log *logger.Logger) Job {
	return &WeeklyReportJob{
		generator: generator,
		format:    format,
		logger:    log.WithJob("weekly_report"),
	}
}

func (j *WeeklyReportJob) Name() string {
	return "weekly_report"
}

func (j *WeeklyReportJob) Trigger() scheduler.Trigger {
	return scheduler.Weekly{Day: time.Monday, Hour: 7, Minute: 0}
}

func (j *WeeklyReportJob) Execute(ctx context.Context) error {
	path, err := j.generator.GenerateWeekly(ctx, "", j.format)
	if err != nil {
		return fmt.Errorf("failed to generate weekly report: %w", err)
	}

	j.logger.Info().
		Str("action", "report_written").
		Str("path", path).
		Msg("Weekly report written")

	return nil
}
