package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/shared"
)

// Record holds stock for one product at one warehouse. Available is always
// derived as quantity minus reserved, clamped at zero; a negative value is
// never persisted.
type Record struct {
	shared.TenantAggregateRoot
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_tenant_product_warehouse,priority:2"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_tenant_product_warehouse,priority:3"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Reserved    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Record) TableName() string {
	return "stock_records"
}

// NewRecord creates a stock record for a product-warehouse pair
func NewRecord(tenantID, productID, warehouseID uuid.UUID) (*Record, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse ID cannot be empty")
	}
	return &Record{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		WarehouseID:         warehouseID,
		Quantity:            decimal.Zero,
		Reserved:            decimal.Zero,
	}, nil
}

// Available returns the sellable quantity, clamped at zero
func (r *Record) Available() decimal.Decimal {
	avail := r.Quantity.Sub(r.Reserved)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// SetLevels replaces quantity and reserved with fresh remote values
func (r *Record) SetLevels(quantity, reserved decimal.Decimal) error {
	if quantity.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	if reserved.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Reserved cannot be negative")
	}
	r.Quantity = quantity
	r.Reserved = reserved
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
	return nil
}

// AggregateAvailable sums clamped availability across warehouses. It is
// recomputed fresh on every call; no incremental accumulation, so repeated
// runs cannot drift.
func AggregateAvailable(records []Record) decimal.Decimal {
	total := decimal.Zero
	for i := range records {
		total = total.Add(records[i].Available())
	}
	return total
}

// Repository persists stock records
type Repository interface {
	// FindByProduct returns all warehouse records for a product
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]Record, error)
	// FindByProducts returns warehouse records for many products keyed by product ID
	FindByProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID][]Record, error)
	// Upsert writes a record, keyed on (tenant, product, warehouse)
	Upsert(ctx context.Context, record *Record) error
}
