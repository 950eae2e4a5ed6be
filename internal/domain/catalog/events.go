package catalog

import (
	"github.com/catalogsync/backend/internal/domain/shared"
)

// Event types emitted by the catalog domain
const (
	EventTypeProductCreated     = "catalog.product.created"
	EventTypeProductDeactivated = "catalog.product.deactivated"
)

// ProductCreatedEvent is emitted when a canonical product is created
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	Article string `json:"article"`
	Name    string `json:"name"`
}

// NewProductCreatedEvent creates a ProductCreatedEvent
func NewProductCreatedEvent(p *Product) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, "Product", p.ID, p.TenantID),
		Article:         p.Article,
		Name:            p.Name,
	}
}

// ProductDeactivatedEvent is emitted when a canonical product is retired
type ProductDeactivatedEvent struct {
	shared.BaseDomainEvent
	Article string `json:"article"`
}

// NewProductDeactivatedEvent creates a ProductDeactivatedEvent
func NewProductDeactivatedEvent(p *Product) *ProductDeactivatedEvent {
	return &ProductDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductDeactivated, "Product", p.ID, p.TenantID),
		Article:         p.Article,
	}
}
