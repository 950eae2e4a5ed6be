package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/catalogsync/backend/internal/domain/stock"
)

// GormStockRepository implements stock.Repository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

var _ stock.Repository = (*GormStockRepository)(nil)

// FindByProduct returns all warehouse records for a product
func (r *GormStockRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]stock.Record, error) {
	var records []stock.Record
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindByProducts returns warehouse records for many products keyed by product ID
func (r *GormStockRepository) FindByProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID][]stock.Record, error) {
	out := make(map[uuid.UUID][]stock.Record, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	var records []stock.Record
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id IN ?", tenantID, productIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	for i := range records {
		out[records[i].ProductID] = append(out[records[i].ProductID], records[i])
	}
	return out, nil
}

// Upsert writes a record, keyed on (tenant, product, warehouse)
func (r *GormStockRepository) Upsert(ctx context.Context, record *stock.Record) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "product_id"}, {Name: "warehouse_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"quantity", "reserved", "updated_at", "version",
			}),
		}).
		Create(record).Error
}
