package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/shared"
)

// Brand represents a canonical brand in the tenant's catalog
type Brand struct {
	shared.TenantAggregateRoot
	Name string `gorm:"type:varchar(100);not null;uniqueIndex:idx_brand_tenant_name,priority:2"`
	// Slug is the normalized lookup form of the name
	Slug   string `gorm:"type:varchar(100);not null;index"`
	Active bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Brand) TableName() string {
	return "canonical_brands"
}

// NewBrand creates a new canonical brand
func NewBrand(tenantID uuid.UUID, name string) (*Brand, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Brand name cannot be empty")
	}
	if len(name) > 100 {
		return nil, shared.NewDomainError("INVALID_NAME", "Brand name cannot exceed 100 characters")
	}

	brand := &Brand{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Slug:                strings.ToLower(name),
		Active:              true,
	}
	return brand, nil
}

// Rename updates the brand name and its lookup slug
func (b *Brand) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Brand name cannot be empty")
	}
	b.Name = name
	b.Slug = strings.ToLower(name)
	b.IncrementVersion()
	return nil
}

// Deactivate retires the brand; brands are never deleted
func (b *Brand) Deactivate() {
	b.Active = false
	b.IncrementVersion()
}

// BrandRepository persists canonical brands
type BrandRepository interface {
	// FindByID returns a brand by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Brand, error)
	// FindActive returns all active brands for a tenant ordered by name
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]Brand, error)
	// Save creates or updates a brand
	Save(ctx context.Context, brand *Brand) error
}
