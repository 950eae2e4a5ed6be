package syncrun

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// ScheduleDefinition declares when a sync job fires for a tenant. It is
// created and edited through the settings surface; the scheduler only
// reads it. Cron expression validity is checked by the settings surface,
// the scheduler skips entries it cannot parse.
type ScheduleDefinition struct {
	shared.TenantAggregateRoot
	System   channel.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_schedule_tenant_system_job,priority:2"`
	JobType  JobType            `gorm:"type:varchar(20);not null;uniqueIndex:idx_schedule_tenant_system_job,priority:3"`
	CronExpr string             `gorm:"type:varchar(100);not null"`
	Enabled  bool               `gorm:"not null;default:true"`
	// Settings holds job-specific knobs, e.g. order lookback hours
	Settings map[string]string `gorm:"serializer:json"`
}

// TableName returns the table name for GORM
func (ScheduleDefinition) TableName() string {
	return "schedule_definitions"
}

// NewScheduleDefinition creates a schedule for a tenant job
func NewScheduleDefinition(tenantID uuid.UUID, system channel.SystemCode, jobType JobType, cronExpr string) (*ScheduleDefinition, error) {
	if !system.IsValid() {
		return nil, shared.NewDomainError("INVALID_SYSTEM", "Unknown external system code")
	}
	if !jobType.IsValid() {
		return nil, shared.NewDomainError("INVALID_JOB_TYPE", "Unknown job type")
	}
	cronExpr = strings.TrimSpace(cronExpr)
	if cronExpr == "" {
		return nil, shared.NewDomainError("INVALID_CRON", "Cron expression cannot be empty")
	}

	return &ScheduleDefinition{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		System:              system,
		JobType:             jobType,
		CronExpr:            cronExpr,
		Enabled:             true,
		Settings:            make(map[string]string),
	}, nil
}

// Reschedule replaces the cron expression
func (s *ScheduleDefinition) Reschedule(cronExpr string) error {
	cronExpr = strings.TrimSpace(cronExpr)
	if cronExpr == "" {
		return shared.NewDomainError("INVALID_CRON", "Cron expression cannot be empty")
	}
	s.CronExpr = cronExpr
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// Enable turns the schedule on
func (s *ScheduleDefinition) Enable() {
	s.Enabled = true
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Disable turns the schedule off without deleting it
func (s *ScheduleDefinition) Disable() {
	s.Enabled = false
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Setting returns a job-specific setting value
func (s *ScheduleDefinition) Setting(key string) (string, bool) {
	v, ok := s.Settings[key]
	return v, ok
}

// SetSetting stores a job-specific setting value
func (s *ScheduleDefinition) SetSetting(key, value string) {
	if s.Settings == nil {
		s.Settings = make(map[string]string)
	}
	s.Settings[key] = value
	s.UpdatedAt = time.Now()
}

// ScheduleRepository persists schedule definitions
type ScheduleRepository interface {
	// FindByTenant returns all schedules for a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]ScheduleDefinition, error)
	// FindEnabled returns all enabled schedules across tenants
	FindEnabled(ctx context.Context) ([]ScheduleDefinition, error)
	// Save creates or updates a schedule
	Save(ctx context.Context, schedule *ScheduleDefinition) error
	// Delete removes a schedule
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
