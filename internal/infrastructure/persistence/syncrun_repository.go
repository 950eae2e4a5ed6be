package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

// GormSyncJobRunRepository implements syncrun.SyncJobRunRepository using GORM
type GormSyncJobRunRepository struct {
	db *gorm.DB
}

// NewGormSyncJobRunRepository creates a new GormSyncJobRunRepository
func NewGormSyncJobRunRepository(db *gorm.DB) *GormSyncJobRunRepository {
	return &GormSyncJobRunRepository{db: db}
}

var _ syncrun.SyncJobRunRepository = (*GormSyncJobRunRepository)(nil)

// FindByID returns a run by ID
func (r *GormSyncJobRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncrun.SyncJobRun, error) {
	var run syncrun.SyncJobRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// FindRecent returns the newest runs for a tenant, most recent first
func (r *GormSyncJobRunRepository) FindRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]syncrun.SyncJobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []syncrun.SyncJobRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// FindLastCompleted returns the most recent terminal run for a key
func (r *GormSyncJobRunRepository) FindLastCompleted(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, jobType syncrun.JobType) (*syncrun.SyncJobRun, error) {
	var run syncrun.SyncJobRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND system = ? AND job_type = ? AND status <> ?",
			tenantID, system, jobType, syncrun.RunStatusRunning).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// Save creates or updates a run record
func (r *GormSyncJobRunRepository) Save(ctx context.Context, run *syncrun.SyncJobRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GormScheduleRepository implements syncrun.ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

var _ syncrun.ScheduleRepository = (*GormScheduleRepository)(nil)

// FindByTenant returns all schedules for a tenant
func (r *GormScheduleRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]syncrun.ScheduleDefinition, error) {
	var schedules []syncrun.ScheduleDefinition
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("system ASC, job_type ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// FindEnabled returns all enabled schedules across tenants
func (r *GormScheduleRepository) FindEnabled(ctx context.Context) ([]syncrun.ScheduleDefinition, error) {
	var schedules []syncrun.ScheduleDefinition
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// Save creates or updates a schedule
func (r *GormScheduleRepository) Save(ctx context.Context, schedule *syncrun.ScheduleDefinition) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}

// Delete removes a schedule
func (r *GormScheduleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&syncrun.ScheduleDefinition{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
