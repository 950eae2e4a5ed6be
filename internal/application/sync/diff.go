package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/channel"
)

// diffRecord reports whether applying the remote record would change the
// canonical product. External refs are not compared here; relinking an
// identity is not a content change.
func diffRecord(product *catalog.Product, record channel.ProductRecord, brandID, categoryID *uuid.UUID) bool {
	if product.Name != record.Name {
		return true
	}
	if product.Barcode != record.Barcode {
		return true
	}
	if product.Active != record.Active {
		return true
	}
	if !uuidPtrEqual(product.BrandID, brandID) && brandID != nil {
		return true
	}
	if !uuidPtrEqual(product.CategoryID, categoryID) && categoryID != nil {
		return true
	}
	for name, value := range record.Attributes {
		if product.Attributes[name] != value {
			return true
		}
	}
	return false
}

// hasLocalConflict reports a concurrent local edit: the product was modified
// after the last reconciliation touched it. Without a recorded sync there is
// nothing to conflict with.
func hasLocalConflict(product *catalog.Product) bool {
	if product.LastSyncAt == nil {
		return false
	}
	return product.UpdatedAt.After(*product.LastSyncAt)
}

// remoteWins applies most-recent-write-wins between the remote modification
// time and the local edit time. A remote record without a timestamp loses.
func remoteWins(product *catalog.Product, record channel.ProductRecord) bool {
	if record.UpdatedAt.IsZero() {
		return false
	}
	return record.UpdatedAt.After(product.UpdatedAt)
}

// applyRecord overwrites canonical fields with the remote record's values
func applyRecord(product *catalog.Product, record channel.ProductRecord, brandID, categoryID *uuid.UUID, now time.Time) {
	product.Name = record.Name
	product.Barcode = record.Barcode
	product.Active = record.Active
	if brandID != nil {
		product.SetBrand(*brandID)
	}
	if categoryID != nil {
		product.SetCategory(*categoryID)
	}
	for name, value := range record.Attributes {
		product.SetAttribute(name, value)
	}
	product.RecordSync(now)
	product.IncrementVersion()
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
