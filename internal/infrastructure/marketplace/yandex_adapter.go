package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// defaultYandexBaseURL is the Yandex Market Partner API endpoint
const defaultYandexBaseURL = "https://api.partner.market.yandex.ru"

// yandexPageSize is the listing page size requested from the partner API
const yandexPageSize = 100

// YandexMarketAdapter talks to the Yandex Market Partner API. The APIKey
// holds the OAuth token sent as a bearer header; ClientID holds the campaign
// number all paths are scoped to. Listing paginates with page_token.
type YandexMarketAdapter struct {
	baseURL    string
	campaignID string
	config     *channel.ExternalSystemConfig
	client     *apiClient
}

var _ channel.MarketplaceAdapter = (*YandexMarketAdapter)(nil)

// NewYandexMarketAdapter creates an adapter bound to one tenant's campaign
func NewYandexMarketAdapter(config *channel.ExternalSystemConfig) (*YandexMarketAdapter, error) {
	if config.ClientID == "" || config.APIKey == "" {
		return nil, channel.ErrNotConfigured
	}
	baseURL := config.Endpoint
	if baseURL == "" {
		baseURL = defaultYandexBaseURL
	}
	return &YandexMarketAdapter{
		baseURL:    baseURL,
		campaignID: config.ClientID,
		config:     config,
		client:     newAPIClient(channel.SystemCodeYandexMarket, config.RateLimit),
	}, nil
}

// SystemCode returns the external system this adapter handles
func (a *YandexMarketAdapter) SystemCode() channel.SystemCode {
	return channel.SystemCodeYandexMarket
}

func (a *YandexMarketAdapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.config.APIKey,
	}
}

func (a *YandexMarketAdapter) campaignURL(path string) string {
	return fmt.Sprintf("%s/campaigns/%s%s", a.baseURL, a.campaignID, path)
}

// Authenticate verifies the bearer token against the campaign
func (a *YandexMarketAdapter) Authenticate(ctx context.Context) error {
	var resp yandexOfferMappingsResponse
	u := a.campaignURL("/offer-mappings") + "?limit=1"
	return a.client.doJSON(ctx, "POST", u, a.headers(), map[string]interface{}{}, &resp)
}

// FetchCatalog returns one page of the campaign's offer mappings
func (a *YandexMarketAdapter) FetchCatalog(ctx context.Context, cursor string) (*channel.CatalogPage, error) {
	query := url.Values{"limit": {strconv.Itoa(yandexPageSize)}}
	if cursor != "" {
		query.Set("page_token", cursor)
	}
	var resp yandexOfferMappingsResponse
	u := a.campaignURL("/offer-mappings") + "?" + query.Encode()
	if err := a.client.doJSON(ctx, "POST", u, a.headers(), map[string]interface{}{}, &resp); err != nil {
		return nil, err
	}

	page := &channel.CatalogPage{
		Records:    make([]channel.ProductRecord, 0, len(resp.Result.OfferMappings)),
		NextCursor: resp.Result.Paging.NextPageToken,
		Done:       resp.Result.Paging.NextPageToken == "",
	}
	for _, m := range resp.Result.OfferMappings {
		page.Records = append(page.Records, normalizeYandexOffer(m))
	}
	return page, nil
}

// FetchStock returns per-warehouse stock levels for the campaign
func (a *YandexMarketAdapter) FetchStock(ctx context.Context, externalIDs []string, _ string) ([]channel.StockQuote, error) {
	req := map[string]interface{}{"withTurnover": false, "offerIds": externalIDs}
	var resp yandexStocksResponse
	if err := a.client.doJSON(ctx, "POST", a.campaignURL("/offers/stocks"), a.headers(), req, &resp); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		wanted[id] = struct{}{}
	}
	quotes := make([]channel.StockQuote, 0)
	for _, wh := range resp.Result.Warehouses {
		for _, offer := range wh.Offers {
			if _, ok := wanted[offer.OfferID]; !ok {
				continue
			}
			var available, frozen int64
			for _, s := range offer.Stocks {
				switch s.Type {
				case "AVAILABLE":
					available = s.Count
				case "FREEZE":
					frozen = s.Count
				}
			}
			quotes = append(quotes, channel.StockQuote{
				ExternalID:   offer.OfferID,
				WarehouseRef: strconv.FormatInt(wh.WarehouseID, 10),
				Quantity:     yandexAvailable(available + frozen),
				Reserved:     yandexAvailable(frozen),
			})
		}
	}
	return quotes, nil
}

// FetchPrices returns current campaign prices
func (a *YandexMarketAdapter) FetchPrices(ctx context.Context, externalIDs []string) ([]channel.PriceQuote, error) {
	req := map[string]interface{}{"offerIds": externalIDs}
	var resp yandexPricesResponse
	if err := a.client.doJSON(ctx, "POST", a.campaignURL("/offer-prices"), a.headers(), req, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.PriceQuote, 0, len(resp.Result.Offers))
	for _, offer := range resp.Result.Offers {
		quotes = append(quotes, channel.PriceQuote{
			ExternalID: offer.OfferID,
			Price:      parseDecimal(offer.Price.Value),
			OldPrice:   parseDecimal(offer.Price.DiscountBase),
			Currency:   offer.Price.CurrencyID,
		})
	}
	return quotes, nil
}

// PushStock replaces campaign stock counts. The partner API acknowledges
// the batch as a whole; a rejected batch is reported per item so the caller
// sees uniform partial-failure semantics.
func (a *YandexMarketAdapter) PushStock(ctx context.Context, updates []channel.StockUpdate) (*channel.PushResult, error) {
	req := yandexStocksUpdateRequest{Skus: make([]yandexSkuStock, 0, len(updates))}
	for _, u := range updates {
		sku := yandexSkuStock{Sku: u.ExternalID}
		sku.Items = append(sku.Items, struct {
			Count int64 `json:"count"`
		}{Count: u.Available.IntPart()})
		req.Skus = append(req.Skus, sku)
	}

	var resp yandexUpdateResponse
	err := a.client.doJSON(ctx, "PUT", a.campaignURL("/offers/stocks"), a.headers(), req, &resp)
	return a.collectPushResult(updatesToIDs(updates), resp, err)
}

// PushPrices replaces campaign prices with the same batch semantics
func (a *YandexMarketAdapter) PushPrices(ctx context.Context, updates []channel.PriceUpdate) (*channel.PushResult, error) {
	req := yandexPricesUpdateRequest{Offers: make([]yandexOfferPrice, 0, len(updates))}
	for _, u := range updates {
		currency := u.Currency
		if currency == "" {
			currency = "RUR"
		}
		offer := yandexOfferPrice{OfferID: u.ExternalID}
		offer.Price.Value = u.Price.StringFixed(2)
		offer.Price.CurrencyID = currency
		if u.OldPrice.IsPositive() {
			offer.Price.DiscountBase = u.OldPrice.StringFixed(2)
		}
		req.Offers = append(req.Offers, offer)
	}

	var resp yandexUpdateResponse
	err := a.client.doJSON(ctx, "POST", a.campaignURL("/offer-prices/updates"), a.headers(), req, &resp)
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ExternalID)
	}
	return a.collectPushResult(ids, resp, err)
}

// collectPushResult spreads a batch-level acknowledgement over the items
func (a *YandexMarketAdapter) collectPushResult(ids []string, resp yandexUpdateResponse, err error) (*channel.PushResult, error) {
	if err != nil {
		if channel.IsValidation(err) {
			// remote rejected the payload; isolate every item with the cause
			out := &channel.PushResult{}
			for _, id := range ids {
				out.Items = append(out.Items, channel.PushItemResult{ExternalID: id, Err: err})
			}
			return out, nil
		}
		return nil, err
	}

	out := &channel.PushResult{Items: make([]channel.PushItemResult, 0, len(ids))}
	if resp.Status == "OK" || len(resp.Errors) == 0 {
		for _, id := range ids {
			out.Items = append(out.Items, channel.PushItemResult{ExternalID: id, OK: true})
		}
		return out, nil
	}
	for _, id := range ids {
		out.Items = append(out.Items, channel.PushItemResult{
			ExternalID: id,
			Err: &channel.ValidationError{
				System: channel.SystemCodeYandexMarket, ItemID: id,
				Code: resp.Errors[0].Code, Detail: resp.Errors[0].Message,
			},
		})
	}
	return out, nil
}

// FetchOrders returns campaign orders created inside the window
func (a *YandexMarketAdapter) FetchOrders(ctx context.Context, window channel.OrderWindow) ([]channel.OrderRecord, error) {
	query := url.Values{
		"fromDate": {window.From.Format("02-01-2006")},
		"toDate":   {window.To.Format("02-01-2006")},
	}
	var resp yandexOrdersResponse
	u := a.campaignURL("/orders") + "?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, a.headers(), nil, &resp); err != nil {
		return nil, err
	}

	orders := make([]channel.OrderRecord, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		order := channel.OrderRecord{
			ExternalID: strconv.FormatInt(o.ID, 10),
			Status:     mapYandexOrderStatus(o.Status),
			Total:      parseDecimal(o.ItemsTotal),
			Currency:   o.Currency,
		}
		if t, err := time.Parse(yandexTimeLayout, o.CreationDate); err == nil {
			order.CreatedAt = t
		}
		for _, item := range o.Items {
			order.Items = append(order.Items, channel.OrderItemRecord{
				ExternalProductID: item.OfferID,
				Article:           item.OfferID,
				Quantity:          decimal.NewFromInt(item.Count),
				UnitPrice:         parseDecimal(item.Price),
			})
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateOrderStatus pushes a status transition for one order
func (a *YandexMarketAdapter) UpdateOrderStatus(ctx context.Context, externalOrderID string, status channel.OrderStatus) error {
	remote := mapToYandexOrderStatus(status)
	if remote == "" {
		return channel.ErrCapabilityNotSupported
	}
	req := map[string]interface{}{
		"order": map[string]string{"status": remote},
	}
	u := a.campaignURL("/orders/" + externalOrderID + "/status")
	return a.client.doJSON(ctx, "PUT", u, a.headers(), req, nil)
}

// TestConnection probes the campaign with a minimal listing request
func (a *YandexMarketAdapter) TestConnection(ctx context.Context) (*channel.ConnectionProbe, error) {
	started := time.Now()
	err := a.Authenticate(ctx)
	probe := &channel.ConnectionProbe{OK: err == nil, Latency: time.Since(started)}
	if err != nil {
		probe.Detail = err.Error()
	}
	return probe, nil
}

func updatesToIDs(updates []channel.StockUpdate) []string {
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ExternalID)
	}
	return ids
}
