package syncrun

import (
	"github.com/catalogsync/backend/internal/domain/shared"
)

// EventTypeRunCompleted is emitted whenever a run reaches a terminal status
const EventTypeRunCompleted = "syncrun.completed"

// RunCompletedEvent carries the structured outcome of a finished run.
// External notification sinks subscribe to it; the core never renders
// or delivers notifications itself.
type RunCompletedEvent struct {
	shared.BaseDomainEvent
	System   string       `json:"system"`
	JobType  string       `json:"job_type"`
	Status   string       `json:"status"`
	Counters ItemCounters `json:"counters"`
	Errors   []RunError   `json:"errors"`
}

// NewRunCompletedEvent creates a RunCompletedEvent from a terminal run
func NewRunCompletedEvent(run *SyncJobRun) *RunCompletedEvent {
	return &RunCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRunCompleted, "SyncJobRun", run.ID, run.TenantID),
		System:          run.System.String(),
		JobType:         run.JobType.String(),
		Status:          string(run.Status),
		Counters:        run.Counters,
		Errors:          run.Errors,
	}
}
