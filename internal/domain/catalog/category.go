package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/shared"
)

// MaxCategoryDepth is the maximum depth of the category tree
const MaxCategoryDepth = 6

// Category represents a canonical category node. The tree is an arena of
// nodes with explicit parent references and a materialized path; acyclicity
// is guaranteed by construction because a child's path always extends its
// parent's path at write time.
type Category struct {
	shared.TenantAggregateRoot
	Name     string     `gorm:"type:varchar(150);not null"`
	ParentID *uuid.UUID `gorm:"type:uuid;index"`
	// Path is the materialized ancestor chain, "<rootID>/.../<selfID>"
	Path   string `gorm:"type:varchar(500);not null;index"`
	Level  int    `gorm:"not null;default:0"`
	Active bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Category) TableName() string {
	return "canonical_categories"
}

// NewRootCategory creates a new top-level category
func NewRootCategory(tenantID uuid.UUID, name string) (*Category, error) {
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}

	category := &Category{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		Active:              true,
		Level:               0,
	}
	category.Path = category.ID.String()
	return category, nil
}

// NewChildCategory creates a category under a parent
func NewChildCategory(tenantID uuid.UUID, name string, parent *Category) (*Category, error) {
	if parent == nil {
		return nil, shared.NewDomainError("INVALID_PARENT", "Parent category is required")
	}
	if parent.TenantID != tenantID {
		return nil, shared.NewDomainError("INVALID_PARENT", "Parent category belongs to another tenant")
	}
	if parent.Level >= MaxCategoryDepth-1 {
		return nil, shared.NewDomainError("MAX_DEPTH_EXCEEDED", fmt.Sprintf("Category depth cannot exceed %d levels", MaxCategoryDepth))
	}
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}

	category := &Category{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		ParentID:            &parent.ID,
		Level:               parent.Level + 1,
		Active:              true,
	}
	category.Path = parent.Path + "/" + category.ID.String()
	return category, nil
}

// Rename updates the category name
func (c *Category) Rename(name string) error {
	if err := validateCategoryName(name); err != nil {
		return err
	}
	c.Name = strings.TrimSpace(name)
	c.IncrementVersion()
	return nil
}

// IsDescendantOf reports whether c sits under ancestor in the tree
func (c *Category) IsDescendantOf(ancestor *Category) bool {
	return c.ID != ancestor.ID && strings.HasPrefix(c.Path, ancestor.Path+"/")
}

// Deactivate retires the category node
func (c *Category) Deactivate() {
	c.Active = false
	c.IncrementVersion()
}

func validateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Category name cannot be empty")
	}
	if len(name) > 150 {
		return shared.NewDomainError("INVALID_NAME", "Category name cannot exceed 150 characters")
	}
	return nil
}

// CategoryRepository persists canonical categories
type CategoryRepository interface {
	// FindByID returns a category by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Category, error)
	// FindActive returns all active categories for a tenant ordered by path
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]Category, error)
	// Save creates or updates a category
	Save(ctx context.Context, category *Category) error
}
