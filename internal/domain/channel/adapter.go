package channel

import (
	"context"
)

// ---------------------------------------------------------------------------
// MarketplaceAdapter Port Interface
// ---------------------------------------------------------------------------

// MarketplaceAdapter is the port every external system implements. One
// instance is scoped to one tenant+credential set and holds no cross-tenant
// shared mutable state. Concrete implementations (Ozon, Yandex Market,
// Amazon, ETM, RS24) live in the infrastructure layer.
//
// All methods classify failures into the package error taxonomy; raw
// transport errors never cross this boundary. Operations a system lacks
// return ErrCapabilityNotSupported.
type MarketplaceAdapter interface {
	// SystemCode returns the external system this adapter talks to
	SystemCode() SystemCode

	// Authenticate establishes or refreshes a session/token. Idempotent.
	// Fails with an AuthError on invalid credentials and a TransientError
	// on timeout.
	Authenticate(ctx context.Context) error

	// FetchCatalog returns one page of the remote catalog. An empty cursor
	// starts the sequence; the returned cursor resumes it. The sequence is
	// finite and restartable from any previously returned cursor.
	FetchCatalog(ctx context.Context, cursor string) (*CatalogPage, error)

	// FetchStock returns remote stock levels for the given external IDs,
	// optionally narrowed to one remote warehouse.
	FetchStock(ctx context.Context, externalIDs []string, warehouseRef string) ([]StockQuote, error)

	// FetchPrices returns remote prices for the given external IDs.
	FetchPrices(ctx context.Context, externalIDs []string) ([]PriceQuote, error)

	// PushStock applies stock updates remotely, returning a per-item result
	// list. One item's rejection never aborts the batch.
	PushStock(ctx context.Context, updates []StockUpdate) (*PushResult, error)

	// PushPrices applies price updates remotely with the same partial-failure
	// semantics as PushStock.
	PushPrices(ctx context.Context, updates []PriceUpdate) (*PushResult, error)

	// FetchOrders returns orders created inside the window.
	FetchOrders(ctx context.Context, window OrderWindow) ([]OrderRecord, error)

	// UpdateOrderStatus pushes a status transition for one remote order.
	UpdateOrderStatus(ctx context.Context, externalOrderID string, status OrderStatus) error

	// TestConnection is a cheap, side-effect-free health probe used by the
	// settings surface and the scheduler pre-flight.
	TestConnection(ctx context.Context) (*ConnectionProbe, error)
}

// AdapterFactory builds a tenant-scoped adapter from its stored config
type AdapterFactory interface {
	// NewAdapter returns an adapter bound to the config's tenant and
	// credentials, or ErrNotConfigured / ErrNotEnabled.
	NewAdapter(config *ExternalSystemConfig) (MarketplaceAdapter, error)
}

// AdapterRegistry resolves the factory for a system code
type AdapterRegistry interface {
	// Factory returns the factory registered for the code
	Factory(code SystemCode) (AdapterFactory, error)
	// SupportedSystems lists every registered system code
	SupportedSystems() []SystemCode
}
