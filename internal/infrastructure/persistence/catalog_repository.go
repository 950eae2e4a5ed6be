package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// GormBrandRepository implements catalog.BrandRepository using GORM
type GormBrandRepository struct {
	db *gorm.DB
}

// NewGormBrandRepository creates a new GormBrandRepository
func NewGormBrandRepository(db *gorm.DB) *GormBrandRepository {
	return &GormBrandRepository{db: db}
}

var _ catalog.BrandRepository = (*GormBrandRepository)(nil)

// FindByID returns a brand by ID within a tenant
func (r *GormBrandRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Brand, error) {
	var brand catalog.Brand
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&brand).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &brand, nil
}

// FindActive returns all active brands for a tenant ordered by name
func (r *GormBrandRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]catalog.Brand, error) {
	var brands []catalog.Brand
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("name ASC").
		Find(&brands).Error
	if err != nil {
		return nil, err
	}
	return brands, nil
}

// Save creates or updates a brand
func (r *GormBrandRepository) Save(ctx context.Context, brand *catalog.Brand) error {
	return r.db.WithContext(ctx).Save(brand).Error
}

// GormCategoryRepository implements catalog.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)

// FindByID returns a category by ID within a tenant
func (r *GormCategoryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Category, error) {
	var category catalog.Category
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &category, nil
}

// FindActive returns all active categories for a tenant ordered by path
func (r *GormCategoryRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]catalog.Category, error) {
	var categories []catalog.Category
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("path ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Save creates or updates a category
func (r *GormCategoryRepository) Save(ctx context.Context, category *catalog.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

// GormPriceRepository implements catalog.PriceRepository using GORM
type GormPriceRepository struct {
	db *gorm.DB
}

// NewGormPriceRepository creates a new GormPriceRepository
func NewGormPriceRepository(db *gorm.DB) *GormPriceRepository {
	return &GormPriceRepository{db: db}
}

var _ catalog.PriceRepository = (*GormPriceRepository)(nil)

// FindByProductAndSystem returns the price of a product on a system
func (r *GormPriceRepository) FindByProductAndSystem(ctx context.Context, tenantID, productID uuid.UUID, system channel.SystemCode) (*catalog.PriceRecord, error) {
	var record catalog.PriceRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND system_code = ?", tenantID, productID, system).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindBySystem returns all prices for a tenant on a system
func (r *GormPriceRepository) FindBySystem(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode) ([]catalog.PriceRecord, error) {
	var records []catalog.PriceRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND system_code = ?", tenantID, system).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Upsert writes a price record, keyed on (tenant, product, system)
func (r *GormPriceRepository) Upsert(ctx context.Context, record *catalog.PriceRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "product_id"}, {Name: "system_code"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"price", "old_price", "currency", "updated_at", "version",
			}),
		}).
		Create(record).Error
}
