package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// Product represents a canonical product in the tenant's catalog. It is
// created by import/mapping, mutated by the sync orchestrator on
// reconciliation, and never deleted — only deactivated.
type Product struct {
	shared.TenantAggregateRoot
	// Article is the seller's SKU shared across external systems
	Article string `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_tenant_article,priority:2"`
	Name    string `gorm:"type:varchar(255);not null"`
	// BrandID references the canonical brand; nil while unmapped
	BrandID *uuid.UUID `gorm:"type:uuid;index"`
	// CategoryID references the canonical category; nil while unmapped
	CategoryID *uuid.UUID `gorm:"type:uuid;index"`
	// Attributes holds mapped attribute name -> value pairs
	Attributes map[string]string `gorm:"serializer:json"`
	Barcode    string            `gorm:"type:varchar(64)"`
	Active     bool              `gorm:"not null;default:true"`
	// LastSyncAt is the newest reconciliation touching this product
	LastSyncAt *time.Time

	// ExternalRefs link this product to its IDs on external systems
	ExternalRefs []ExternalRef `gorm:"foreignKey:ProductID;references:ID"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "canonical_products"
}

// ExternalRef links a canonical product to its identity on one external system
type ExternalRef struct {
	ID         uuid.UUID          `gorm:"type:uuid;primary_key"`
	ProductID  uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_external_ref_product_system,priority:1"`
	SystemCode channel.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_external_ref_product_system,priority:2"`
	ExternalID string             `gorm:"type:varchar(100);not null;index"`
}

// TableName returns the table name for GORM
func (ExternalRef) TableName() string {
	return "product_external_refs"
}

// NewProduct creates a new canonical product
func NewProduct(tenantID uuid.UUID, article, name string) (*Product, error) {
	article = strings.TrimSpace(article)
	name = strings.TrimSpace(name)
	if article == "" {
		return nil, shared.NewDomainError("INVALID_ARTICLE", "Product article cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}

	product := &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Article:             article,
		Name:                name,
		Attributes:          make(map[string]string),
		Active:              true,
		ExternalRefs:        make([]ExternalRef, 0),
	}
	product.AddDomainEvent(NewProductCreatedEvent(product))
	return product, nil
}

// SetBrand assigns the canonical brand reference
func (p *Product) SetBrand(brandID uuid.UUID) {
	p.BrandID = &brandID
	p.Touch()
	p.IncrementVersion()
}

// SetCategory assigns the canonical category reference
func (p *Product) SetCategory(categoryID uuid.UUID) {
	p.CategoryID = &categoryID
	p.Touch()
	p.IncrementVersion()
}

// SetAttribute stores one mapped attribute value
func (p *Product) SetAttribute(name, value string) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]string)
	}
	p.Attributes[name] = value
	p.Touch()
}

// LinkExternal records or updates this product's identity on a system.
// Re-linking the identity it already holds changes nothing.
func (p *Product) LinkExternal(system channel.SystemCode, externalID string) error {
	if !system.IsValid() {
		return shared.NewDomainError("INVALID_SYSTEM", "Unknown external system code")
	}
	if externalID == "" {
		return shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot be empty")
	}
	for i := range p.ExternalRefs {
		if p.ExternalRefs[i].SystemCode == system {
			if p.ExternalRefs[i].ExternalID == externalID {
				return nil
			}
			p.ExternalRefs[i].ExternalID = externalID
			p.Touch()
			return nil
		}
	}
	p.ExternalRefs = append(p.ExternalRefs, ExternalRef{
		ID:         uuid.New(),
		ProductID:  p.ID,
		SystemCode: system,
		ExternalID: externalID,
	})
	p.Touch()
	return nil
}

// ExternalIDFor returns the product's identity on a system
func (p *Product) ExternalIDFor(system channel.SystemCode) (string, bool) {
	for _, ref := range p.ExternalRefs {
		if ref.SystemCode == system {
			return ref.ExternalID, true
		}
	}
	return "", false
}

// RecordSync stamps the product with the run that last reconciled it
func (p *Product) RecordSync(at time.Time) {
	p.LastSyncAt = &at
	p.UpdatedAt = at
}

// Deactivate retires the product; products are never deleted
func (p *Product) Deactivate() {
	if !p.Active {
		return
	}
	p.Active = false
	p.Touch()
	p.IncrementVersion()
	p.AddDomainEvent(NewProductDeactivatedEvent(p))
}

// ProductRepository persists canonical products
type ProductRepository interface {
	// FindByID returns a product by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	// FindByArticle returns a product by its article within a tenant
	FindByArticle(ctx context.Context, tenantID uuid.UUID, article string) (*Product, error)
	// FindByExternalID returns the product linked to an external identity
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, externalID string) (*Product, error)
	// FindActiveForSystem returns all active products linked to a system
	FindActiveForSystem(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode) ([]Product, error)
	// Save creates or updates a product and its external refs
	Save(ctx context.Context, product *Product) error
	// SaveBatch persists many products inside one transaction
	SaveBatch(ctx context.Context, products []*Product) error
}
