package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// PriceRecord holds the price of a product on one external system
type PriceRecord struct {
	shared.TenantAggregateRoot
	ProductID  uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_price_tenant_product_system,priority:2"`
	SystemCode channel.SystemCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_price_tenant_product_system,priority:3"`
	Price      decimal.Decimal    `gorm:"type:decimal(15,2);not null"`
	// OldPrice is the crossed-out price shown next to a discount, zero when absent
	OldPrice decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Currency string          `gorm:"type:varchar(3);not null;default:'RUB'"`
}

// TableName returns the table name for GORM
func (PriceRecord) TableName() string {
	return "price_records"
}

// NewPriceRecord creates a price record for a product-system pair
func NewPriceRecord(tenantID, productID uuid.UUID, system channel.SystemCode, price decimal.Decimal, currency string) (*PriceRecord, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if !system.IsValid() {
		return nil, shared.NewDomainError("INVALID_SYSTEM", "Unknown external system code")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	if currency == "" {
		currency = "RUB"
	}

	return &PriceRecord{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		SystemCode:          system,
		Price:               price,
		OldPrice:            decimal.Zero,
		Currency:            currency,
	}, nil
}

// SetPrice replaces the current and crossed-out prices
func (p *PriceRecord) SetPrice(price, oldPrice decimal.Decimal) error {
	if price.IsNegative() || oldPrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	p.Price = price
	p.OldPrice = oldPrice
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// PriceRepository persists price records
type PriceRepository interface {
	// FindByProductAndSystem returns the price of a product on a system
	FindByProductAndSystem(ctx context.Context, tenantID, productID uuid.UUID, system channel.SystemCode) (*PriceRecord, error)
	// FindBySystem returns all prices for a tenant on a system
	FindBySystem(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode) ([]PriceRecord, error)
	// Upsert writes a price record, keyed on (tenant, product, system)
	Upsert(ctx context.Context, record *PriceRecord) error
}
