package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// GormProductRepository implements catalog.ProductRepository using GORM.
// External refs are persisted through the association so a product and its
// identities stay consistent.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// FindByID returns a product by ID within a tenant
func (r *GormProductRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	err := r.db.WithContext(ctx).
		Preload("ExternalRefs").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindByArticle returns a product by its article within a tenant
func (r *GormProductRepository) FindByArticle(ctx context.Context, tenantID uuid.UUID, article string) (*catalog.Product, error) {
	var product catalog.Product
	err := r.db.WithContext(ctx).
		Preload("ExternalRefs").
		Where("tenant_id = ? AND article = ?", tenantID, article).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindByExternalID returns the product linked to an external identity
func (r *GormProductRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, externalID string) (*catalog.Product, error) {
	var ref catalog.ExternalRef
	err := r.db.WithContext(ctx).
		Where("system_code = ? AND external_id = ?", system, externalID).
		First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, tenantID, ref.ProductID)
}

// FindActiveForSystem returns all active products linked to a system
func (r *GormProductRepository) FindActiveForSystem(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode) ([]catalog.Product, error) {
	var products []catalog.Product
	err := r.db.WithContext(ctx).
		Preload("ExternalRefs").
		Joins("JOIN product_external_refs ON product_external_refs.product_id = canonical_products.id").
		Where("canonical_products.tenant_id = ? AND canonical_products.active = ? AND product_external_refs.system_code = ?",
			tenantID, true, system).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Save creates or updates a product and its external refs
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(product).Error
}

// SaveBatch persists many products inside one transaction
func (r *GormProductRepository) SaveBatch(ctx context.Context, products []*catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session := tx.Session(&gorm.Session{FullSaveAssociations: true})
		for _, product := range products {
			if err := session.Save(product).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
