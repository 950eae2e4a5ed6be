package channel

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Canonical Wire Records
// ---------------------------------------------------------------------------

// Canonical records are the only shapes allowed past the adapter boundary.
// Each adapter owns a normalization function from its raw response types
// into these.

// ProductRecord is one remote product normalized into canonical form
type ProductRecord struct {
	// ExternalID is the stable product identifier on the remote system
	ExternalID string
	// Article is the seller's SKU/article code shared across systems
	Article string
	// Name is the product title as the remote system reports it
	Name string
	// BrandToken is the raw brand string prior to mapping
	BrandToken string
	// CategoryToken is the raw category path/name prior to mapping
	CategoryToken string
	// Attributes holds raw attribute name -> value pairs prior to mapping
	Attributes map[string]string
	// Barcode is the EAN/UPC when the remote system provides one
	Barcode string
	// Active reports whether the product is currently listed
	Active bool
	// UpdatedAt is the remote modification timestamp when available
	UpdatedAt time.Time
}

// TaxonomyTokens returns the distinct raw tokens this record needs resolved
func (r *ProductRecord) TaxonomyTokens() []string {
	tokens := make([]string, 0, 2+len(r.Attributes))
	if r.BrandToken != "" {
		tokens = append(tokens, r.BrandToken)
	}
	if r.CategoryToken != "" {
		tokens = append(tokens, r.CategoryToken)
	}
	return tokens
}

// CatalogPage is one page of a lazy, restartable catalog sequence
type CatalogPage struct {
	Records []ProductRecord
	// NextCursor resumes the sequence after this page; opaque to callers
	NextCursor string
	// Done reports that no further pages exist
	Done bool
}

// StockQuote is a remote stock level for one product at one warehouse
type StockQuote struct {
	ExternalID   string
	WarehouseRef string
	Quantity     decimal.Decimal
	Reserved     decimal.Decimal
}

// Available returns the sellable quantity, clamped at zero
func (q StockQuote) Available() decimal.Decimal {
	avail := q.Quantity.Sub(q.Reserved)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// PriceQuote is a remote price for one product
type PriceQuote struct {
	ExternalID string
	Price      decimal.Decimal
	OldPrice   decimal.Decimal
	Currency   string
}

// StockUpdate is one outbound stock level change
type StockUpdate struct {
	ExternalID   string
	WarehouseRef string
	Available    decimal.Decimal
}

// PriceUpdate is one outbound price change
type PriceUpdate struct {
	ExternalID string
	Price      decimal.Decimal
	OldPrice   decimal.Decimal
	Currency   string
}

// ---------------------------------------------------------------------------
// Push Results
// ---------------------------------------------------------------------------

// PushItemResult is the per-item outcome of a partial-failure-aware push
type PushItemResult struct {
	ExternalID string
	OK         bool
	// Err carries the classified failure when OK is false
	Err error
}

// PushResult aggregates per-item outcomes; a push never aborts the whole
// batch on one item's rejection
type PushResult struct {
	Items []PushItemResult
}

// Counts returns (succeeded, failed) item counts
func (r *PushResult) Counts() (ok int, failed int) {
	for _, item := range r.Items {
		if item.OK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// Failures returns only the failed items
func (r *PushResult) Failures() []PushItemResult {
	failures := make([]PushItemResult, 0)
	for _, item := range r.Items {
		if !item.OK {
			failures = append(failures, item)
		}
	}
	return failures
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderStatus is the canonical order state across marketplaces
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusAwaiting  OrderStatus = "AWAITING_SHIPMENT"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew, OrderStatusAwaiting, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderRecord is one remote order normalized into canonical form
type OrderRecord struct {
	ExternalID string
	Status     OrderStatus
	Items      []OrderItemRecord
	Total      decimal.Decimal
	Currency   string
	CreatedAt  time.Time
}

// OrderItemRecord is one line of a remote order
type OrderItemRecord struct {
	ExternalProductID string
	Article           string
	Quantity          decimal.Decimal
	UnitPrice         decimal.Decimal
}

// OrderWindow bounds an order pull by remote creation time
type OrderWindow struct {
	From time.Time
	To   time.Time
}

// ---------------------------------------------------------------------------
// Connection Probe
// ---------------------------------------------------------------------------

// ConnectionProbe is the result of a cheap, side-effect-free health check
type ConnectionProbe struct {
	OK      bool
	Latency time.Duration
	Detail  string
}
