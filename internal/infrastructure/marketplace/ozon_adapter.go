package marketplace

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// defaultOzonBaseURL is the Ozon Seller API endpoint
const defaultOzonBaseURL = "https://api-seller.ozon.ru"

// ozonPageSize is the listing page size requested from Ozon
const ozonPageSize = 100

// OzonAdapter talks to the Ozon Seller API. Authentication is stateless:
// every request carries the Client-Id and Api-Key headers. Catalog listing
// paginates with the last_id cursor, which is opaque and restartable.
type OzonAdapter struct {
	baseURL string
	config  *channel.ExternalSystemConfig
	client  *apiClient
}

var _ channel.MarketplaceAdapter = (*OzonAdapter)(nil)

// NewOzonAdapter creates an adapter bound to one tenant's credentials
func NewOzonAdapter(config *channel.ExternalSystemConfig) (*OzonAdapter, error) {
	if config.ClientID == "" || config.APIKey == "" {
		return nil, channel.ErrNotConfigured
	}
	baseURL := config.Endpoint
	if baseURL == "" {
		baseURL = defaultOzonBaseURL
	}
	return &OzonAdapter{
		baseURL: baseURL,
		config:  config,
		client:  newAPIClient(channel.SystemCodeOzon, config.RateLimit),
	}, nil
}

// SystemCode returns the external system this adapter handles
func (a *OzonAdapter) SystemCode() channel.SystemCode {
	return channel.SystemCodeOzon
}

func (a *OzonAdapter) headers() map[string]string {
	return map[string]string{
		"Client-Id": a.config.ClientID,
		"Api-Key":   a.config.APIKey,
	}
}

// Authenticate verifies the header credentials with a cheap listing call.
// The API is stateless, so there is no session to establish.
func (a *OzonAdapter) Authenticate(ctx context.Context) error {
	req := ozonProductListRequest{Filter: ozonProductFilter{Visibility: "ALL"}, Limit: 1}
	var resp ozonProductListResponse
	return a.client.doJSON(ctx, "POST", a.baseURL+"/v3/product/list", a.headers(), req, &resp)
}

// FetchCatalog returns one page of the product listing
func (a *OzonAdapter) FetchCatalog(ctx context.Context, cursor string) (*channel.CatalogPage, error) {
	req := ozonProductListRequest{
		Filter: ozonProductFilter{Visibility: "ALL"},
		LastID: cursor,
		Limit:  ozonPageSize,
	}
	var resp ozonProductListResponse
	if err := a.client.doJSON(ctx, "POST", a.baseURL+"/v3/product/list", a.headers(), req, &resp); err != nil {
		return nil, err
	}

	page := &channel.CatalogPage{
		Records:    make([]channel.ProductRecord, 0, len(resp.Result.Items)),
		NextCursor: resp.Result.LastID,
		Done:       len(resp.Result.Items) < ozonPageSize,
	}
	for _, item := range resp.Result.Items {
		page.Records = append(page.Records, normalizeOzonProduct(item))
	}
	return page, nil
}

// FetchStock returns per-warehouse stock levels for the given products
func (a *OzonAdapter) FetchStock(ctx context.Context, externalIDs []string, _ string) ([]channel.StockQuote, error) {
	req := ozonStocksRequest{ProductIDs: externalIDs}
	var resp ozonStocksResponse
	if err := a.client.doJSON(ctx, "POST", a.baseURL+"/v3/product/info/stocks", a.headers(), req, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.StockQuote, 0, len(resp.Result.Items))
	for _, item := range resp.Result.Items {
		for _, s := range item.Stocks {
			quotes = append(quotes, channel.StockQuote{
				ExternalID:   strconv.FormatInt(item.ProductID, 10),
				WarehouseRef: strconv.FormatInt(s.WarehouseID, 10),
				Quantity:     decimal.NewFromInt(s.Present),
				Reserved:     decimal.NewFromInt(s.Reserved),
			})
		}
	}
	return quotes, nil
}

// FetchPrices returns current prices for the given products
func (a *OzonAdapter) FetchPrices(ctx context.Context, externalIDs []string) ([]channel.PriceQuote, error) {
	req := ozonPricesRequest{ProductIDs: externalIDs}
	var resp ozonPricesResponse
	if err := a.client.doJSON(ctx, "POST", a.baseURL+"/v4/product/info/prices", a.headers(), req, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.PriceQuote, 0, len(resp.Result.Items))
	for _, item := range resp.Result.Items {
		quotes = append(quotes, channel.PriceQuote{
			ExternalID: strconv.FormatInt(item.ProductID, 10),
			Price:      parseDecimal(item.Price.Price),
			OldPrice:   parseDecimal(item.Price.OldPrice),
			Currency:   item.Price.CurrencyCode,
		})
	}
	return quotes, nil
}

// PushStock applies stock updates with per-item outcomes
func (a *OzonAdapter) PushStock(ctx context.Context, updates []channel.StockUpdate) (*channel.PushResult, error) {
	req := ozonStocksUpdateRequest{Stocks: make([]ozonStockUpdate, 0, len(updates))}
	for _, u := range updates {
		req.Stocks = append(req.Stocks, ozonStockUpdate{
			OfferID:     u.ExternalID,
			Stock:       u.Available.IntPart(),
			WarehouseID: u.WarehouseRef,
		})
	}

	var resp ozonUpdateResponse
	if err := a.client.doJSON(ctx, "POST", a.baseURL+"/v2/products/stocks", a.headers(), req, &resp); err != nil {
		return nil, err
	}
	return a.collectPushResult(resp.Result), nil
}

// PushPrices applies price updates with per-item outcomes
func (a *OzonAdapter) PushPrices(ctx context.Context, updates []channel.PriceUpdate) (*channel.PushResult, error) {
	req := ozonPricesUpdateRequest{Prices: make([]ozonPriceUpdate, 0, len(updates))}
	for _, u := range updates {
		currency := u.Currency
		if currency == "" {
			currency = "RUB"
		}
		price := ozonPriceUpdate{
			OfferID:      u.ExternalID,
			Price:        u.Price.StringFixed(2),
			CurrencyCode: currency,
		}
		if u.OldPrice.IsPositive() {
			price.OldPrice = u.OldPrice.StringFixed(2)
		}
		req.Prices = append(req.Prices, price)
	}

	var resp ozonUpdateResponse
	if err := a.client.doJSON(ctx, "POST", a.baseURL+"/v1/product/import/prices", a.headers(), req, &resp); err != nil {
		return nil, err
	}
	return a.collectPushResult(resp.Result), nil
}

func (a *OzonAdapter) collectPushResult(results []ozonUpdateResult) *channel.PushResult {
	out := &channel.PushResult{Items: make([]channel.PushItemResult, 0, len(results))}
	for _, r := range results {
		item := channel.PushItemResult{ExternalID: r.OfferID, OK: r.Updated}
		if !r.Updated {
			code, detail := "REJECTED", "update rejected"
			if len(r.Errors) > 0 {
				code, detail = r.Errors[0].Code, r.Errors[0].Message
			}
			item.Err = &channel.ValidationError{
				System: channel.SystemCodeOzon, ItemID: r.OfferID,
				Code: code, Detail: detail,
			}
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// FetchOrders returns FBS postings created inside the window
func (a *OzonAdapter) FetchOrders(ctx context.Context, window channel.OrderWindow) ([]channel.OrderRecord, error) {
	req := ozonOrderListRequest{
		Filter: ozonOrderFilter{
			Since: window.From.UTC().Format(time.RFC3339),
			To:    window.To.UTC().Format(time.RFC3339),
		},
		Limit: ozonPageSize,
	}
	var resp ozonOrderListResponse
	if err := a.client.doJSON(ctx, "POST", a.baseURL+"/v3/posting/fbs/list", a.headers(), req, &resp); err != nil {
		return nil, err
	}

	orders := make([]channel.OrderRecord, 0, len(resp.Result.Postings))
	for _, posting := range resp.Result.Postings {
		order := channel.OrderRecord{
			ExternalID: posting.PostingNumber,
			Status:     mapOzonOrderStatus(posting.Status),
			Total:      parseDecimal(posting.Price),
			Currency:   "RUB",
		}
		if t, err := time.Parse(time.RFC3339, posting.CreatedAt); err == nil {
			order.CreatedAt = t
		}
		for _, p := range posting.Products {
			order.Items = append(order.Items, channel.OrderItemRecord{
				ExternalProductID: strconv.FormatInt(p.SKU, 10),
				Article:           p.OfferID,
				Quantity:          decimal.NewFromInt(p.Quantity),
				UnitPrice:         parseDecimal(p.Price),
			})
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateOrderStatus pushes a status transition for one posting. Only
// cancellation is expressible through the seller API; other transitions
// happen implicitly on Ozon's side.
func (a *OzonAdapter) UpdateOrderStatus(ctx context.Context, externalOrderID string, status channel.OrderStatus) error {
	if status != channel.OrderStatusCancelled {
		return channel.ErrCapabilityNotSupported
	}
	req := map[string]interface{}{
		"posting_number":    externalOrderID,
		"cancel_reason_id":  352,
		"cancel_reason_msg": "Cancelled by seller",
	}
	return a.client.doJSON(ctx, "POST", a.baseURL+"/v2/posting/fbs/cancel", a.headers(), req, nil)
}

// TestConnection probes the API with a minimal listing request
func (a *OzonAdapter) TestConnection(ctx context.Context) (*channel.ConnectionProbe, error) {
	started := time.Now()
	err := a.Authenticate(ctx)
	probe := &channel.ConnectionProbe{OK: err == nil, Latency: time.Since(started)}
	if err != nil {
		probe.Detail = err.Error()
	}
	return probe, nil
}
