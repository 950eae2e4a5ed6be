package mapping

import (
	"context"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/taxonomy"
)

// CatalogSource feeds the resolver canonical brand and category names from
// the tenant's catalog. Attribute tokens have no canonical dictionary to
// score against; they resolve through confirmed synonyms only.
type CatalogSource struct {
	brands     catalog.BrandRepository
	categories catalog.CategoryRepository
}

var _ CanonicalSource = (*CatalogSource)(nil)

// NewCatalogSource creates a CanonicalSource backed by the catalog
func NewCatalogSource(brands catalog.BrandRepository, categories catalog.CategoryRepository) *CatalogSource {
	return &CatalogSource{brands: brands, categories: categories}
}

// Entries lists canonical entities of the given kind for a tenant
func (s *CatalogSource) Entries(ctx context.Context, tenantID uuid.UUID, kind taxonomy.MappingKind) ([]CanonicalEntry, error) {
	switch kind {
	case taxonomy.MappingKindBrand:
		brands, err := s.brands.FindActive(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		entries := make([]CanonicalEntry, 0, len(brands))
		for _, brand := range brands {
			entries = append(entries, CanonicalEntry{ID: brand.ID, Name: brand.Name})
		}
		return entries, nil
	case taxonomy.MappingKindCategory:
		categories, err := s.categories.FindActive(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		entries := make([]CanonicalEntry, 0, len(categories))
		for _, category := range categories {
			entries = append(entries, CanonicalEntry{ID: category.ID, Name: category.Name})
		}
		return entries, nil
	default:
		return nil, nil
	}
}
