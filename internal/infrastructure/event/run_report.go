package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

// RunReportSink consumes run outcome events and writes a structured report
// line per finished run. It is the default subscriber; external delivery
// channels plug in next to it with their own handlers.
type RunReportSink struct {
	logger *zap.Logger
}

// NewRunReportSink creates a sink logging through the given logger
func NewRunReportSink(logger *zap.Logger) *RunReportSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunReportSink{logger: logger.Named("runreport")}
}

var _ shared.EventHandler = (*RunReportSink)(nil)

// EventTypes subscribes the sink to run completions only
func (s *RunReportSink) EventTypes() []string {
	return []string{syncrun.EventTypeRunCompleted}
}

// Handle logs the outcome of one finished run
func (s *RunReportSink) Handle(ctx context.Context, event shared.DomainEvent) error {
	completed, ok := event.(*syncrun.RunCompletedEvent)
	if !ok {
		return nil
	}

	fields := []zap.Field{
		zap.String("run_id", completed.AggregateID().String()),
		zap.String("tenant_id", completed.TenantID().String()),
		zap.String("system", completed.System),
		zap.String("job_type", completed.JobType),
		zap.String("status", completed.Status),
		zap.Int("created", completed.Counters.Created),
		zap.Int("updated", completed.Counters.Updated),
		zap.Int("unchanged", completed.Counters.Unchanged),
		zap.Int("conflicts", completed.Counters.Conflicts),
		zap.Int("failed", completed.Counters.Failed),
	}
	if len(completed.Errors) > 0 {
		fields = append(fields, zap.Int("error_count", len(completed.Errors)),
			zap.String("first_error", completed.Errors[0].Code))
	}

	switch completed.Status {
	case string(syncrun.RunStatusFailed):
		s.logger.Error("sync run report", fields...)
	case string(syncrun.RunStatusPartial), string(syncrun.RunStatusSkipped):
		s.logger.Warn("sync run report", fields...)
	default:
		s.logger.Info("sync run report", fields...)
	}
	return nil
}
