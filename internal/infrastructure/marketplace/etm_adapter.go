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
	// defaultETMBaseURL is the ETM iPro API endpoint
	defaultETMBaseURL = "https://ipro.etm.ru/api/ipro"
	// etmPageSize is the catalog page size requested from ETM
	etmPageSize = 200
	// etmSessionTTL is how long a session key stays valid server-side
	etmSessionTTL = 50 * time.Minute
)

// ETMAdapter talks to the ETM supplier feed. Authentication is a login call
// exchanging APIKey/APISecret for a session key appended to every request.
// The catalog paginates with a numeric offset carried as the cursor. ETM is
// a purchase-side feed: there is nothing to push and no orders to fetch.
type ETMAdapter struct {
	baseURL string
	config  *channel.ExternalSystemConfig
	client  *apiClient

	mu         sync.Mutex
	sessionKey string
	sessionExp time.Time
}

var _ channel.MarketplaceAdapter = (*ETMAdapter)(nil)

// NewETMAdapter creates an adapter bound to one tenant's supplier account
func NewETMAdapter(config *channel.ExternalSystemConfig) (*ETMAdapter, error) {
	if config.APIKey == "" || config.APISecret == "" {
		return nil, channel.ErrNotConfigured
	}
	baseURL := config.Endpoint
	if baseURL == "" {
		baseURL = defaultETMBaseURL
	}
	return &ETMAdapter{
		baseURL: baseURL,
		config:  config,
		client:  newAPIClient(channel.SystemCodeETM, config.RateLimit),
	}, nil
}

// SystemCode returns the external system this adapter handles
func (a *ETMAdapter) SystemCode() channel.SystemCode {
	return channel.SystemCodeETM
}

type etmLoginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Session string `json:"session"`
	} `json:"data"`
}

// Authenticate logs in and caches the session key until it nears expiry
func (a *ETMAdapter) Authenticate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessionKey != "" && time.Now().Before(a.sessionExp) {
		return nil
	}

	query := url.Values{
		"log": {a.config.APIKey},
		"pwd": {a.config.APISecret},
	}
	var resp etmLoginResponse
	u := a.baseURL + "/user/login?" + query.Encode()
	if err := a.client.doJSON(ctx, "POST", u, nil, nil, &resp); err != nil {
		return err
	}
	if resp.Data.Session == "" {
		return &channel.AuthError{System: channel.SystemCodeETM, Detail: "login returned no session key"}
	}
	a.sessionKey = resp.Data.Session
	a.sessionExp = time.Now().Add(etmSessionTTL)
	return nil
}

func (a *ETMAdapter) session(ctx context.Context) (string, error) {
	if err := a.Authenticate(ctx); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionKey, nil
}

type etmGoodsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Rows []etmGoodsRow `json:"rows"`
		// Total is the full matching row count, used to detect the last page
		Total int `json:"total"`
	} `json:"data"`
}

type etmGoodsRow struct {
	Code     string `json:"gdscode"`
	Article  string `json:"art"`
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
	Class    string `json:"class_name"`
	Barcode  string `json:"barcode"`
	Archived bool   `json:"archived"`
}

// FetchCatalog returns one page of the supplier goods listing. The cursor is
// the numeric offset of the next row.
func (a *ETMAdapter) FetchCatalog(ctx context.Context, cursor string) (*channel.CatalogPage, error) {
	session, err := a.session(ctx)
	if err != nil {
		return nil, err
	}

	offset := 0
	if cursor != "" {
		offset, err = strconv.Atoi(cursor)
		if err != nil || offset < 0 {
			return nil, channel.ErrInvalidCursor
		}
	}

	query := url.Values{
		"session-id": {session},
		"rows":       {strconv.Itoa(etmPageSize)},
		"offset":     {strconv.Itoa(offset)},
	}
	var resp etmGoodsResponse
	u := a.baseURL + "/catalog/goods?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, nil, nil, &resp); err != nil {
		return nil, err
	}

	next := offset + len(resp.Data.Rows)
	page := &channel.CatalogPage{
		Records:    make([]channel.ProductRecord, 0, len(resp.Data.Rows)),
		NextCursor: strconv.Itoa(next),
		Done:       next >= resp.Data.Total || len(resp.Data.Rows) == 0,
	}
	for _, row := range resp.Data.Rows {
		page.Records = append(page.Records, channel.ProductRecord{
			ExternalID:    row.Code,
			Article:       row.Article,
			Name:          row.Name,
			BrandToken:    row.Vendor,
			CategoryToken: row.Class,
			Barcode:       row.Barcode,
			Active:        !row.Archived,
		})
	}
	return page, nil
}

type etmRemainsResponse struct {
	Status string `json:"status"`
	Data   struct {
		Rows []struct {
			Code    string `json:"gdscode"`
			Store   string `json:"store"`
			Remains string `json:"rmd"`
		} `json:"rows"`
	} `json:"data"`
}

// FetchStock returns per-store remains for the given goods codes
func (a *ETMAdapter) FetchStock(ctx context.Context, externalIDs []string, warehouseRef string) ([]channel.StockQuote, error) {
	session, err := a.session(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"session-id": {session},
		"gdscode":    {joinIDs(externalIDs)},
	}
	if warehouseRef != "" {
		query.Set("store", warehouseRef)
	}
	var resp etmRemainsResponse
	u := a.baseURL + "/goods/remains?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, nil, nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.StockQuote, 0, len(resp.Data.Rows))
	for _, row := range resp.Data.Rows {
		quotes = append(quotes, channel.StockQuote{
			ExternalID:   row.Code,
			WarehouseRef: row.Store,
			Quantity:     parseDecimal(row.Remains),
			Reserved:     decimal.Zero,
		})
	}
	return quotes, nil
}

type etmPricesResponse struct {
	Status string `json:"status"`
	Data   struct {
		Rows []struct {
			Code      string `json:"gdscode"`
			Price     string `json:"price"`
			BasePrice string `json:"price_base"`
		} `json:"rows"`
	} `json:"data"`
}

// FetchPrices returns the tenant's contract prices for the given goods codes
func (a *ETMAdapter) FetchPrices(ctx context.Context, externalIDs []string) ([]channel.PriceQuote, error) {
	session, err := a.session(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"session-id": {session},
		"gdscode":    {joinIDs(externalIDs)},
	}
	var resp etmPricesResponse
	u := a.baseURL + "/goods/prices?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, nil, nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.PriceQuote, 0, len(resp.Data.Rows))
	for _, row := range resp.Data.Rows {
		quotes = append(quotes, channel.PriceQuote{
			ExternalID: row.Code,
			Price:      parseDecimal(row.Price),
			OldPrice:   parseDecimal(row.BasePrice),
			Currency:   "RUB",
		})
	}
	return quotes, nil
}

// PushStock is not available on a supplier feed
func (a *ETMAdapter) PushStock(context.Context, []channel.StockUpdate) (*channel.PushResult, error) {
	return nil, channel.ErrCapabilityNotSupported
}

// PushPrices is not available on a supplier feed
func (a *ETMAdapter) PushPrices(context.Context, []channel.PriceUpdate) (*channel.PushResult, error) {
	return nil, channel.ErrCapabilityNotSupported
}

// FetchOrders is not available on a supplier feed
func (a *ETMAdapter) FetchOrders(context.Context, channel.OrderWindow) ([]channel.OrderRecord, error) {
	return nil, channel.ErrCapabilityNotSupported
}

// UpdateOrderStatus is not available on a supplier feed
func (a *ETMAdapter) UpdateOrderStatus(context.Context, string, channel.OrderStatus) error {
	return channel.ErrCapabilityNotSupported
}

// TestConnection probes the login endpoint
func (a *ETMAdapter) TestConnection(ctx context.Context) (*channel.ConnectionProbe, error) {
	started := time.Now()
	err := a.Authenticate(ctx)
	probe := &channel.ConnectionProbe{OK: err == nil, Latency: time.Since(started)}
	if err != nil {
		probe.Detail = err.Error()
	}
	return probe, nil
}
