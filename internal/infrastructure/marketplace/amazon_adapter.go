package marketplace

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/channel"
)

const (
	// defaultAmazonBaseURL is the SP-API endpoint for the EU region
	defaultAmazonBaseURL = "https://sellingpartnerapi-eu.amazon.com"
	// amazonTokenURL is the Login-with-Amazon token endpoint
	amazonTokenURL = "https://api.amazon.com/auth/o2/token"
	// amazonPageSize is the listing page size requested from SP-API
	amazonPageSize = 100
	// tokenExpirySlack refreshes the token this long before it expires
	tokenExpirySlack = time.Minute
)

// AmazonAdapter talks to the Amazon Selling Partner API. Authentication is
// a Login-with-Amazon refresh-token exchange: ClientID/APISecret identify
// the app, APIKey holds the seller's refresh token. The short-lived access
// token is cached and refreshed ahead of expiry. Listing paginates with
// nextToken.
type AmazonAdapter struct {
	baseURL  string
	tokenURL string
	config   *channel.ExternalSystemConfig
	client   *apiClient

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ channel.MarketplaceAdapter = (*AmazonAdapter)(nil)

// NewAmazonAdapter creates an adapter bound to one tenant's seller account
func NewAmazonAdapter(config *channel.ExternalSystemConfig) (*AmazonAdapter, error) {
	if config.ClientID == "" || config.APIKey == "" || config.APISecret == "" {
		return nil, channel.ErrNotConfigured
	}
	baseURL := config.Endpoint
	if baseURL == "" {
		baseURL = defaultAmazonBaseURL
	}
	return &AmazonAdapter{
		baseURL:  baseURL,
		tokenURL: amazonTokenURL,
		config:   config,
		client:   newAPIClient(channel.SystemCodeAmazon, config.RateLimit),
	}, nil
}

// SystemCode returns the external system this adapter handles
func (a *AmazonAdapter) SystemCode() channel.SystemCode {
	return channel.SystemCodeAmazon
}

type amazonTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges the refresh token for an access token. Idempotent:
// a still-valid cached token short-circuits the exchange.
func (a *AmazonAdapter) Authenticate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.tokenExpiry.Add(-tokenExpirySlack)) {
		return nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {a.config.APIKey},
		"client_id":     {a.config.ClientID},
		"client_secret": {a.config.APISecret},
	}
	var resp amazonTokenResponse
	err := a.client.doForm(ctx, a.tokenURL, form, &resp)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return &channel.AuthError{System: channel.SystemCodeAmazon, Detail: "token exchange returned no access token"}
	}
	a.accessToken = resp.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return nil
}

func (a *AmazonAdapter) headers(ctx context.Context) (map[string]string, error) {
	if err := a.Authenticate(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	token := a.accessToken
	a.mu.Unlock()
	return map[string]string{"x-amz-access-token": token}, nil
}

type amazonListingsResponse struct {
	Items     []amazonListingItem `json:"items"`
	NextToken string              `json:"nextToken"`
}

type amazonListingItem struct {
	ASIN       string `json:"asin"`
	SKU        string `json:"sku"`
	Title      string `json:"itemName"`
	Brand      string `json:"brand"`
	ProductTyp string `json:"productType"`
	Status     string `json:"status"`
	UpdatedAt  string `json:"lastUpdatedDate"`
}

// FetchCatalog returns one page of the seller's listings
func (a *AmazonAdapter) FetchCatalog(ctx context.Context, cursor string) (*channel.CatalogPage, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{"pageSize": {strconv.Itoa(amazonPageSize)}}
	if cursor != "" {
		query.Set("nextToken", cursor)
	}
	var resp amazonListingsResponse
	u := a.baseURL + "/listings/2021-08-01/items?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, headers, nil, &resp); err != nil {
		return nil, err
	}

	page := &channel.CatalogPage{
		Records:    make([]channel.ProductRecord, 0, len(resp.Items)),
		NextCursor: resp.NextToken,
		Done:       resp.NextToken == "",
	}
	for _, item := range resp.Items {
		record := channel.ProductRecord{
			ExternalID:    item.ASIN,
			Article:       item.SKU,
			Name:          item.Title,
			BrandToken:    item.Brand,
			CategoryToken: item.ProductTyp,
			Active:        item.Status == "ACTIVE",
		}
		if t, err := time.Parse(time.RFC3339, item.UpdatedAt); err == nil {
			record.UpdatedAt = t
		}
		page.Records = append(page.Records, record)
	}
	return page, nil
}

type amazonInventoryResponse struct {
	InventorySummaries []struct {
		ASIN           string `json:"asin"`
		FulfillableQty int64  `json:"fulfillableQuantity"`
		ReservedQty    int64  `json:"reservedQuantity"`
		FulfillmentCtr string `json:"fulfillmentCenterId"`
	} `json:"inventorySummaries"`
}

// FetchStock returns FBA inventory summaries for the given ASINs
func (a *AmazonAdapter) FetchStock(ctx context.Context, externalIDs []string, _ string) ([]channel.StockQuote, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		wanted[id] = struct{}{}
	}
	var resp amazonInventoryResponse
	u := a.baseURL + "/fba/inventory/v1/summaries?granularityType=Marketplace"
	if err := a.client.doJSON(ctx, "GET", u, headers, nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.StockQuote, 0, len(resp.InventorySummaries))
	for _, s := range resp.InventorySummaries {
		if _, ok := wanted[s.ASIN]; !ok {
			continue
		}
		quotes = append(quotes, channel.StockQuote{
			ExternalID:   s.ASIN,
			WarehouseRef: s.FulfillmentCtr,
			Quantity:     decimal.NewFromInt(s.FulfillableQty + s.ReservedQty),
			Reserved:     decimal.NewFromInt(s.ReservedQty),
		})
	}
	return quotes, nil
}

type amazonPricingResponse struct {
	Prices []struct {
		ASIN     string `json:"asin"`
		Amount   string `json:"listingPrice"`
		Currency string `json:"currencyCode"`
	} `json:"prices"`
}

// FetchPrices returns current listing prices for the given ASINs
func (a *AmazonAdapter) FetchPrices(ctx context.Context, externalIDs []string) ([]channel.PriceQuote, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{"asins": {joinIDs(externalIDs)}}
	var resp amazonPricingResponse
	u := a.baseURL + "/products/pricing/v0/price?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, headers, nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.PriceQuote, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		quotes = append(quotes, channel.PriceQuote{
			ExternalID: p.ASIN,
			Price:      parseDecimal(p.Amount),
			Currency:   p.Currency,
		})
	}
	return quotes, nil
}

type amazonPatchResponse struct {
	Status string `json:"status"`
	Issues []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"issues"`
}

// PushStock patches listing quantities one item at a time; SP-API has no
// batch endpoint, so per-item isolation is the natural shape here.
func (a *AmazonAdapter) PushStock(ctx context.Context, updates []channel.StockUpdate) (*channel.PushResult, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	out := &channel.PushResult{Items: make([]channel.PushItemResult, 0, len(updates))}
	for _, u := range updates {
		body := map[string]interface{}{
			"productType": "PRODUCT",
			"patches": []map[string]interface{}{{
				"op":    "replace",
				"path":  "/attributes/fulfillment_availability",
				"value": []map[string]interface{}{{"quantity": u.Available.IntPart()}},
			}},
		}
		var resp amazonPatchResponse
		endpoint := a.baseURL + "/listings/2021-08-01/items/" + url.PathEscape(u.ExternalID)
		err := a.client.doJSON(ctx, "PATCH", endpoint, headers, body, &resp)
		out.Items = append(out.Items, a.patchOutcome(u.ExternalID, resp, err))
		if err != nil && !channel.IsValidation(err) && !channel.IsTransient(err) {
			return nil, err
		}
	}
	return out, nil
}

// PushPrices patches listing prices with the same per-item semantics
func (a *AmazonAdapter) PushPrices(ctx context.Context, updates []channel.PriceUpdate) (*channel.PushResult, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	out := &channel.PushResult{Items: make([]channel.PushItemResult, 0, len(updates))}
	for _, u := range updates {
		body := map[string]interface{}{
			"productType": "PRODUCT",
			"patches": []map[string]interface{}{{
				"op":    "replace",
				"path":  "/attributes/purchasable_offer",
				"value": []map[string]interface{}{{"our_price": u.Price.StringFixed(2), "currency": u.Currency}},
			}},
		}
		var resp amazonPatchResponse
		endpoint := a.baseURL + "/listings/2021-08-01/items/" + url.PathEscape(u.ExternalID)
		err := a.client.doJSON(ctx, "PATCH", endpoint, headers, body, &resp)
		out.Items = append(out.Items, a.patchOutcome(u.ExternalID, resp, err))
		if err != nil && !channel.IsValidation(err) && !channel.IsTransient(err) {
			return nil, err
		}
	}
	return out, nil
}

func (a *AmazonAdapter) patchOutcome(id string, resp amazonPatchResponse, err error) channel.PushItemResult {
	if err != nil {
		return channel.PushItemResult{ExternalID: id, Err: err}
	}
	if resp.Status == "ACCEPTED" || len(resp.Issues) == 0 {
		return channel.PushItemResult{ExternalID: id, OK: true}
	}
	return channel.PushItemResult{
		ExternalID: id,
		Err: &channel.ValidationError{
			System: channel.SystemCodeAmazon, ItemID: id,
			Code: resp.Issues[0].Code, Detail: resp.Issues[0].Message,
		},
	}
}

type amazonOrdersResponse struct {
	Payload struct {
		Orders []struct {
			AmazonOrderID string `json:"amazonOrderId"`
			OrderStatus   string `json:"orderStatus"`
			PurchaseDate  string `json:"purchaseDate"`
			OrderTotal    struct {
				Amount       string `json:"amount"`
				CurrencyCode string `json:"currencyCode"`
			} `json:"orderTotal"`
		} `json:"orders"`
	} `json:"payload"`
}

// FetchOrders returns orders created inside the window
func (a *AmazonAdapter) FetchOrders(ctx context.Context, window channel.OrderWindow) ([]channel.OrderRecord, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"CreatedAfter":  {window.From.UTC().Format(time.RFC3339)},
		"CreatedBefore": {window.To.UTC().Format(time.RFC3339)},
	}
	var resp amazonOrdersResponse
	u := a.baseURL + "/orders/v0/orders?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, headers, nil, &resp); err != nil {
		return nil, err
	}

	orders := make([]channel.OrderRecord, 0, len(resp.Payload.Orders))
	for _, o := range resp.Payload.Orders {
		order := channel.OrderRecord{
			ExternalID: o.AmazonOrderID,
			Status:     mapAmazonOrderStatus(o.OrderStatus),
			Total:      parseDecimal(o.OrderTotal.Amount),
			Currency:   o.OrderTotal.CurrencyCode,
		}
		if t, err := time.Parse(time.RFC3339, o.PurchaseDate); err == nil {
			order.CreatedAt = t
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateOrderStatus is not expressible through SP-API for seller-fulfilled
// transitions other than shipment confirmation, which needs tracking data
// this engine does not own.
func (a *AmazonAdapter) UpdateOrderStatus(context.Context, string, channel.OrderStatus) error {
	return channel.ErrCapabilityNotSupported
}

// TestConnection probes the token endpoint and a minimal listing call
func (a *AmazonAdapter) TestConnection(ctx context.Context) (*channel.ConnectionProbe, error) {
	started := time.Now()
	err := a.Authenticate(ctx)
	probe := &channel.ConnectionProbe{OK: err == nil, Latency: time.Since(started)}
	if err != nil {
		probe.Detail = err.Error()
	}
	return probe, nil
}

// mapAmazonOrderStatus maps an SP-API order status onto the canonical set
func mapAmazonOrderStatus(status string) channel.OrderStatus {
	switch status {
	case "Pending", "PendingAvailability":
		return channel.OrderStatusNew
	case "Unshipped", "PartiallyShipped":
		return channel.OrderStatusAwaiting
	case "Shipped", "InvoiceUnconfirmed":
		return channel.OrderStatusShipped
	case "Delivered":
		return channel.OrderStatusDelivered
	case "Canceled":
		return channel.OrderStatusCancelled
	default:
		return channel.OrderStatusNew
	}
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
