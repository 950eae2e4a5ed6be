package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// GormSystemConfigRepository implements channel.ExternalSystemConfigRepository
// using GORM
type GormSystemConfigRepository struct {
	db *gorm.DB
}

// NewGormSystemConfigRepository creates a new GormSystemConfigRepository
func NewGormSystemConfigRepository(db *gorm.DB) *GormSystemConfigRepository {
	return &GormSystemConfigRepository{db: db}
}

var _ channel.ExternalSystemConfigRepository = (*GormSystemConfigRepository)(nil)

// FindByTenantAndSystem returns the config for one tenant+system pair
func (r *GormSystemConfigRepository) FindByTenantAndSystem(ctx context.Context, tenantID uuid.UUID, code channel.SystemCode) (*channel.ExternalSystemConfig, error) {
	var config channel.ExternalSystemConfig
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND system_code = ?", tenantID, code).
		First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &config, nil
}

// FindEnabledForTenant returns all enabled configs for a tenant
func (r *GormSystemConfigRepository) FindEnabledForTenant(ctx context.Context, tenantID uuid.UUID) ([]channel.ExternalSystemConfig, error) {
	var configs []channel.ExternalSystemConfig
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND enabled = ?", tenantID, true).
		Order("system_code ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// Save creates or updates a config
func (r *GormSystemConfigRepository) Save(ctx context.Context, config *channel.ExternalSystemConfig) error {
	return r.db.WithContext(ctx).Save(config).Error
}
