package syncrun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// JobType identifies a logical sync job
type JobType string

const (
	JobTypeCatalogSync JobType = "CATALOG_SYNC"
	JobTypeStockSync   JobType = "STOCK_SYNC"
	JobTypePriceSync   JobType = "PRICE_SYNC"
	JobTypeOrderSync   JobType = "ORDER_SYNC"
	JobTypeFullSync    JobType = "FULL_SYNC"
)

// IsValid checks if the job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeCatalogSync, JobTypeStockSync, JobTypePriceSync, JobTypeOrderSync, JobTypeFullSync:
		return true
	}
	return false
}

// String returns the string representation
func (t JobType) String() string {
	return string(t)
}

// RunStatus represents the lifecycle state of a sync run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusSkipped RunStatus = "SKIPPED"
)

// IsValid checks if the run status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusSuccess, RunStatusPartial, RunStatusFailed, RunStatusSkipped:
		return true
	}
	return false
}

// IsTerminal reports whether the run has finished
func (s RunStatus) IsTerminal() bool {
	return s != RunStatusRunning
}

// SkipReasonAlreadyRunning marks a run skipped because the advisory lock
// for its key was held by another run.
const SkipReasonAlreadyRunning = "AlreadyRunning"

// ItemCounters accumulates per-item reconciliation outcomes for one run
type ItemCounters struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Conflicts int `json:"conflicts"`
	Failed    int `json:"failed"`
}

// Total returns the number of items the run touched
func (c ItemCounters) Total() int {
	return c.Created + c.Updated + c.Unchanged + c.Conflicts + c.Failed
}

// RunError is one recorded failure inside a run report
type RunError struct {
	ItemID string `json:"item_id,omitempty"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// SyncJobRun records one execution of a sync job for a tenant and system.
// Every trigger produces a run record, including skipped ones. A run in
// RUNNING state transitions exactly once to a terminal status.
type SyncJobRun struct {
	shared.TenantAggregateRoot
	System  channel.SystemCode `gorm:"type:varchar(20);not null;index:idx_run_tenant_system_job,priority:2"`
	JobType JobType            `gorm:"type:varchar(20);not null;index:idx_run_tenant_system_job,priority:3"`
	Status  RunStatus          `gorm:"type:varchar(20);not null;index"`
	// Cursor is the last page cursor the pull phase completed
	Cursor     string       `gorm:"type:varchar(255)"`
	Counters   ItemCounters `gorm:"embedded;embeddedPrefix:count_"`
	Errors     []RunError   `gorm:"serializer:json"`
	SkipReason string       `gorm:"type:varchar(50)"`
	StartedAt  time.Time    `gorm:"not null"`
	FinishedAt *time.Time
}

// TableName returns the table name for GORM
func (SyncJobRun) TableName() string {
	return "sync_job_runs"
}

// NewSyncJobRun starts a run record in RUNNING state
func NewSyncJobRun(tenantID uuid.UUID, system channel.SystemCode, jobType JobType) (*SyncJobRun, error) {
	if !system.IsValid() {
		return nil, shared.NewDomainError("INVALID_SYSTEM", "Unknown external system code")
	}
	if !jobType.IsValid() {
		return nil, shared.NewDomainError("INVALID_JOB_TYPE", fmt.Sprintf("Unknown job type: %s", jobType))
	}

	run := &SyncJobRun{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		System:              system,
		JobType:             jobType,
		Status:              RunStatusRunning,
		Errors:              make([]RunError, 0),
		StartedAt:           time.Now(),
	}
	return run, nil
}

// NewSkippedRun records a trigger that never entered Running because the
// advisory lock for its key was contended.
func NewSkippedRun(tenantID uuid.UUID, system channel.SystemCode, jobType JobType) (*SyncJobRun, error) {
	run, err := NewSyncJobRun(tenantID, system, jobType)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	run.Status = RunStatusSkipped
	run.SkipReason = SkipReasonAlreadyRunning
	run.FinishedAt = &now
	run.AddDomainEvent(NewRunCompletedEvent(run))
	return run, nil
}

// Key returns the exclusion key for the advisory lock
func (r *SyncJobRun) Key() string {
	return RunKey(r.TenantID, r.System, r.JobType)
}

// RunKey builds the advisory-lock key for a (tenant, system, job type) triple
func RunKey(tenantID uuid.UUID, system channel.SystemCode, jobType JobType) string {
	return fmt.Sprintf("sync:%s:%s:%s", tenantID, system, jobType)
}

// RecordItem folds one item outcome into the counters
func (r *SyncJobRun) RecordItem(outcome ItemOutcome) {
	switch outcome {
	case ItemCreated:
		r.Counters.Created++
	case ItemUpdated:
		r.Counters.Updated++
	case ItemUnchanged:
		r.Counters.Unchanged++
	case ItemConflict:
		r.Counters.Conflicts++
	case ItemFailed:
		r.Counters.Failed++
	}
}

// ItemOutcome classifies what reconciliation did with one item
type ItemOutcome string

const (
	ItemCreated   ItemOutcome = "CREATED"
	ItemUpdated   ItemOutcome = "UPDATED"
	ItemUnchanged ItemOutcome = "UNCHANGED"
	ItemConflict  ItemOutcome = "CONFLICT"
	ItemFailed    ItemOutcome = "FAILED"
)

// AddError appends a failure to the run report
func (r *SyncJobRun) AddError(itemID, code, detail string) {
	r.Errors = append(r.Errors, RunError{ItemID: itemID, Code: code, Detail: detail})
}

// SaveCursor records pull progress so a later run can resume
func (r *SyncJobRun) SaveCursor(cursor string) {
	r.Cursor = cursor
}

// Complete finishes the run; SUCCESS when nothing failed, PARTIAL when
// some items failed but others were applied.
func (r *SyncJobRun) Complete() error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete run in status %s", r.Status))
	}
	now := time.Now()
	if r.Counters.Failed > 0 || len(r.Errors) > 0 {
		r.Status = RunStatusPartial
	} else {
		r.Status = RunStatusSuccess
	}
	r.FinishedAt = &now
	r.IncrementVersion()
	r.AddDomainEvent(NewRunCompletedEvent(r))
	return nil
}

// Fail terminates the run without partial application
func (r *SyncJobRun) Fail(code, detail string) error {
	if r.Status != RunStatusRunning {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail run in status %s", r.Status))
	}
	now := time.Now()
	r.Status = RunStatusFailed
	r.AddError("", code, detail)
	r.FinishedAt = &now
	r.IncrementVersion()
	r.AddDomainEvent(NewRunCompletedEvent(r))
	return nil
}

// Duration returns how long the run took, zero while still running
func (r *SyncJobRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncJobRunRepository persists run records
type SyncJobRunRepository interface {
	// FindByID returns a run by ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncJobRun, error)
	// FindRecent returns the newest runs for a tenant, most recent first
	FindRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]SyncJobRun, error)
	// FindLastCompleted returns the most recent terminal run for a key
	FindLastCompleted(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, jobType JobType) (*SyncJobRun, error)
	// Save creates or updates a run record
	Save(ctx context.Context, run *SyncJobRun) error
}
