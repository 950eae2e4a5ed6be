package marketplace

import (
	"context"
	"encoding/base64"
	"net/url"
	"strconv"
	"time"

	"github.com/catalogsync/backend/internal/domain/channel"
)

const (
	// defaultRS24BaseURL is the Russvet (RS24) partner API endpoint
	defaultRS24BaseURL = "https://cdis.russvet.ru/rs"
	// rs24PageSize is the catalog page size requested from RS24
	rs24PageSize = 500
)

// RS24Adapter talks to the Russvet supplier feed. Authentication is HTTP
// basic auth built from ClientID and APIKey; the catalog paginates with a
// 1-based page number carried as the cursor. Like ETM this is a pull-only
// purchase-side feed.
type RS24Adapter struct {
	baseURL string
	config  *channel.ExternalSystemConfig
	client  *apiClient
}

var _ channel.MarketplaceAdapter = (*RS24Adapter)(nil)

// NewRS24Adapter creates an adapter bound to one tenant's supplier account
func NewRS24Adapter(config *channel.ExternalSystemConfig) (*RS24Adapter, error) {
	if config.ClientID == "" || config.APIKey == "" {
		return nil, channel.ErrNotConfigured
	}
	baseURL := config.Endpoint
	if baseURL == "" {
		baseURL = defaultRS24BaseURL
	}
	return &RS24Adapter{
		baseURL: baseURL,
		config:  config,
		client:  newAPIClient(channel.SystemCodeRS24, config.RateLimit),
	}, nil
}

// SystemCode returns the external system this adapter handles
func (a *RS24Adapter) SystemCode() channel.SystemCode {
	return channel.SystemCodeRS24
}

func (a *RS24Adapter) headers() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(a.config.ClientID + ":" + a.config.APIKey))
	return map[string]string{"Authorization": "Basic " + token}
}

// Authenticate verifies the basic auth pair with a minimal position request
func (a *RS24Adapter) Authenticate(ctx context.Context) error {
	var resp rs24PositionsResponse
	u := a.baseURL + "/position/page/1?rows=1"
	return a.client.doJSON(ctx, "GET", u, a.headers(), nil, &resp)
}

type rs24PositionsResponse struct {
	Positions []rs24Position `json:"items"`
	// Pages is the total page count at the requested page size
	Pages int `json:"pages"`
}

type rs24Position struct {
	Code        string `json:"RS_CODE"`
	VendorCode  string `json:"VENDOR_CODE"`
	Name        string `json:"NAME"`
	Brand       string `json:"BRAND"`
	Category    string `json:"CATEGORY"`
	Barcode     string `json:"BARCODE"`
	InStockFlag string `json:"IN_STOCK"`
}

// FetchCatalog returns one page of the supplier position listing. The cursor
// is the 1-based page number of the next page.
func (a *RS24Adapter) FetchCatalog(ctx context.Context, cursor string) (*channel.CatalogPage, error) {
	pageNum := 1
	if cursor != "" {
		var err error
		pageNum, err = strconv.Atoi(cursor)
		if err != nil || pageNum < 1 {
			return nil, channel.ErrInvalidCursor
		}
	}

	var resp rs24PositionsResponse
	u := a.baseURL + "/position/page/" + strconv.Itoa(pageNum) + "?rows=" + strconv.Itoa(rs24PageSize)
	if err := a.client.doJSON(ctx, "GET", u, a.headers(), nil, &resp); err != nil {
		return nil, err
	}

	page := &channel.CatalogPage{
		Records:    make([]channel.ProductRecord, 0, len(resp.Positions)),
		NextCursor: strconv.Itoa(pageNum + 1),
		Done:       pageNum >= resp.Pages || len(resp.Positions) == 0,
	}
	for _, pos := range resp.Positions {
		page.Records = append(page.Records, channel.ProductRecord{
			ExternalID:    pos.Code,
			Article:       pos.VendorCode,
			Name:          pos.Name,
			BrandToken:    pos.Brand,
			CategoryToken: pos.Category,
			Barcode:       pos.Barcode,
			Active:        pos.InStockFlag != "N",
		})
	}
	return page, nil
}

type rs24ResiduesResponse struct {
	Residues []struct {
		Code      string `json:"RS_CODE"`
		Warehouse string `json:"WAREHOUSE"`
		Residue   string `json:"RESIDUE"`
		Reserved  string `json:"RESERVED"`
	} `json:"items"`
}

// FetchStock returns warehouse residues for the given position codes
func (a *RS24Adapter) FetchStock(ctx context.Context, externalIDs []string, warehouseRef string) ([]channel.StockQuote, error) {
	query := url.Values{"codes": {joinIDs(externalIDs)}}
	if warehouseRef != "" {
		query.Set("warehouse", warehouseRef)
	}
	var resp rs24ResiduesResponse
	u := a.baseURL + "/residue?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, a.headers(), nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.StockQuote, 0, len(resp.Residues))
	for _, r := range resp.Residues {
		reserved := parseDecimal(r.Reserved)
		quotes = append(quotes, channel.StockQuote{
			ExternalID:   r.Code,
			WarehouseRef: r.Warehouse,
			Quantity:     parseDecimal(r.Residue).Add(reserved),
			Reserved:     reserved,
		})
	}
	return quotes, nil
}

type rs24PricesResponse struct {
	Prices []struct {
		Code     string `json:"RS_CODE"`
		Personal string `json:"PERSONAL_PRICE"`
		Retail   string `json:"RETAIL_PRICE"`
	} `json:"items"`
}

// FetchPrices returns the tenant's personal prices for the given codes
func (a *RS24Adapter) FetchPrices(ctx context.Context, externalIDs []string) ([]channel.PriceQuote, error) {
	query := url.Values{"codes": {joinIDs(externalIDs)}}
	var resp rs24PricesResponse
	u := a.baseURL + "/price?" + query.Encode()
	if err := a.client.doJSON(ctx, "GET", u, a.headers(), nil, &resp); err != nil {
		return nil, err
	}

	quotes := make([]channel.PriceQuote, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		quotes = append(quotes, channel.PriceQuote{
			ExternalID: p.Code,
			Price:      parseDecimal(p.Personal),
			OldPrice:   parseDecimal(p.Retail),
			Currency:   "RUB",
		})
	}
	return quotes, nil
}

// PushStock is not available on a supplier feed
func (a *RS24Adapter) PushStock(context.Context, []channel.StockUpdate) (*channel.PushResult, error) {
	return nil, channel.ErrCapabilityNotSupported
}

// PushPrices is not available on a supplier feed
func (a *RS24Adapter) PushPrices(context.Context, []channel.PriceUpdate) (*channel.PushResult, error) {
	return nil, channel.ErrCapabilityNotSupported
}

// FetchOrders is not available on a supplier feed
func (a *RS24Adapter) FetchOrders(context.Context, channel.OrderWindow) ([]channel.OrderRecord, error) {
	return nil, channel.ErrCapabilityNotSupported
}

// UpdateOrderStatus is not available on a supplier feed
func (a *RS24Adapter) UpdateOrderStatus(context.Context, string, channel.OrderStatus) error {
	return channel.ErrCapabilityNotSupported
}

// TestConnection probes the feed with a minimal authenticated request
func (a *RS24Adapter) TestConnection(ctx context.Context) (*channel.ConnectionProbe, error) {
	started := time.Now()
	err := a.Authenticate(ctx)
	probe := &channel.ConnectionProbe{OK: err == nil, Latency: time.Since(started)}
	if err != nil {
		probe.Detail = err.Error()
	}
	return probe, nil
}
