package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/taxonomy"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
)

// GormMappingRepository implements taxonomy.MappingRepository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

var _ taxonomy.MappingRepository = (*GormMappingRepository)(nil)

// FindActive returns the single active mapping for a key
func (r *GormMappingRepository) FindActive(ctx context.Context, key taxonomy.MappingKey) (*taxonomy.Mapping, error) {
	var model models.MappingModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND system_code = ? AND kind = ? AND token = ? AND active = ?",
			key.TenantID, key.SystemCode, key.Kind, key.Token, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taxonomy.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveBatch returns active mappings for many tokens in one round trip
func (r *GormMappingRepository) FindActiveBatch(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind taxonomy.MappingKind, tokens []string) (map[string]*taxonomy.Mapping, error) {
	if len(tokens) == 0 {
		return map[string]*taxonomy.Mapping{}, nil
	}
	var rows []models.MappingModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND system_code = ? AND kind = ? AND token IN ? AND active = ?",
			tenantID, system, kind, tokens, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]*taxonomy.Mapping, len(rows))
	for i := range rows {
		out[rows[i].Token] = rows[i].ToDomain()
	}
	return out, nil
}

// Upsert inserts the mapping or supersedes the existing row for its key
func (r *GormMappingRepository) Upsert(ctx context.Context, mapping *taxonomy.Mapping) error {
	model := models.MappingModelFromDomain(mapping)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "system_code"}, {Name: "kind"}, {Name: "token"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"canonical_id", "confidence", "origin", "active", "conversion", "updated_at",
			}),
		}).
		Create(model).Error
}

// Deactivate retires the active mapping for a key; absent keys are a no-op
func (r *GormMappingRepository) Deactivate(ctx context.Context, key taxonomy.MappingKey) error {
	return r.db.WithContext(ctx).
		Model(&models.MappingModel{}).
		Where("tenant_id = ? AND system_code = ? AND kind = ? AND token = ?",
			key.TenantID, key.SystemCode, key.Kind, key.Token).
		Update("active", false).Error
}

// GormUnmappedTokenRepository implements taxonomy.UnmappedTokenRepository
// using GORM
type GormUnmappedTokenRepository struct {
	db *gorm.DB
}

// NewGormUnmappedTokenRepository creates a new GormUnmappedTokenRepository
func NewGormUnmappedTokenRepository(db *gorm.DB) *GormUnmappedTokenRepository {
	return &GormUnmappedTokenRepository{db: db}
}

var _ taxonomy.UnmappedTokenRepository = (*GormUnmappedTokenRepository)(nil)

// FindPending lists pending entries for a tenant, newest sighting first
func (r *GormUnmappedTokenRepository) FindPending(ctx context.Context, tenantID uuid.UUID, kind *taxonomy.MappingKind) ([]taxonomy.UnmappedToken, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, taxonomy.UnmappedStatusPending)
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}

	var rows []models.UnmappedTokenModel
	if err := query.Order("last_seen DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]taxonomy.UnmappedToken, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// FindByKey returns the entry for a worklist key regardless of status
func (r *GormUnmappedTokenRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind taxonomy.MappingKind, normalizedToken string) (*taxonomy.UnmappedToken, error) {
	var model models.UnmappedTokenModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND system_code = ? AND kind = ? AND normalized_token = ?",
			tenantID, system, kind, normalizedToken).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taxonomy.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an entry
func (r *GormUnmappedTokenRepository) Save(ctx context.Context, token *taxonomy.UnmappedToken) error {
	model := models.UnmappedTokenModelFromDomain(token)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "system_code"}, {Name: "kind"}, {Name: "normalized_token"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"token", "candidates", "status", "seen_count", "last_seen",
			}),
		}).
		Create(model).Error
}
