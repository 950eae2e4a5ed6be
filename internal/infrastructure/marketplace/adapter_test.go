package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

func testConfig(t *testing.T, code channel.SystemCode, endpoint string) *channel.ExternalSystemConfig {
	config, err := channel.NewExternalSystemConfig(uuid.New(), code)
	require.NoError(t, err)
	config.Endpoint = endpoint
	config.ClientID = "client-1"
	config.APIKey = "key-1"
	config.APISecret = "secret-1"
	config.RateLimit = channel.RateLimitPolicy{
		RequestsPerMinute: 6000,
		Burst:             100,
		CallTimeout:       5 * time.Second,
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
	}
	return config
}

func newOzonTestAdapter(t *testing.T, serverURL string) *OzonAdapter {
	adapter, err := NewOzonAdapter(testConfig(t, channel.SystemCodeOzon, serverURL))
	require.NoError(t, err)
	return adapter
}

// ---------------------------------------------------------------------------
// Registry Tests
// ---------------------------------------------------------------------------

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	t.Run("every system has a factory", func(t *testing.T) {
		assert.ElementsMatch(t, channel.AllSystemCodes(), registry.SupportedSystems())
		for _, code := range channel.AllSystemCodes() {
			factory, err := registry.Factory(code)
			require.NoError(t, err)
			assert.NotNil(t, factory)
		}
	})

	t.Run("unknown system", func(t *testing.T) {
		_, err := registry.Factory(channel.SystemCode("EBAY"))
		assert.ErrorIs(t, err, channel.ErrNotConfigured)
	})

	t.Run("factories build the matching adapter", func(t *testing.T) {
		for _, code := range channel.AllSystemCodes() {
			factory, err := registry.Factory(code)
			require.NoError(t, err)
			adapter, err := factory.NewAdapter(testConfig(t, code, "http://localhost:1"))
			require.NoError(t, err)
			assert.Equal(t, code, adapter.SystemCode())
		}
	})

	t.Run("missing credentials rejected at construction", func(t *testing.T) {
		config, err := channel.NewExternalSystemConfig(uuid.New(), channel.SystemCodeOzon)
		require.NoError(t, err)
		factory, err := registry.Factory(channel.SystemCodeOzon)
		require.NoError(t, err)
		_, err = factory.NewAdapter(config)
		assert.ErrorIs(t, err, channel.ErrNotConfigured)
	})
}

// ---------------------------------------------------------------------------
// Ozon Adapter Tests
// ---------------------------------------------------------------------------

func TestOzonAdapter_FetchCatalog(t *testing.T) {
	var gotLastID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "client-1", r.Header.Get("Client-Id"))
		assert.Equal(t, "key-1", r.Header.Get("Api-Key"))

		var req ozonProductListRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotLastID = req.LastID

		resp := ozonProductListResponse{}
		resp.Result.Items = []ozonProductItem{
			{
				ProductID: 101,
				OfferID:   "ART-101",
				Name:      "Перфоратор GBH 2-26",
				Brand:     "Bosch",
				Category:  "Перфораторы",
				Barcode:   "4006381333931",
				UpdatedAt: "2026-08-30T10:00:00Z",
			},
			{ProductID: 102, OfferID: "ART-102", Name: "Шуруповерт", Archived: true},
		}
		resp.Result.LastID = "cursor-after-102"
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newOzonTestAdapter(t, server.URL)
	page, err := adapter.FetchCatalog(context.Background(), "cursor-start")
	require.NoError(t, err)

	assert.Equal(t, "cursor-start", gotLastID)
	assert.Equal(t, "cursor-after-102", page.NextCursor)
	assert.True(t, page.Done) // fewer items than the page size
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	assert.Equal(t, "101", first.ExternalID)
	assert.Equal(t, "ART-101", first.Article)
	assert.Equal(t, "Перфоратор GBH 2-26", first.Name)
	assert.Equal(t, "Bosch", first.BrandToken)
	assert.Equal(t, "Перфораторы", first.CategoryToken)
	assert.True(t, first.Active)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), first.UpdatedAt)
	assert.False(t, page.Records[1].Active)
}

func TestOzonAdapter_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":16,"message":"Client-Id and Api-Key headers are required"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := newOzonTestAdapter(t, server.URL)
	err := adapter.Authenticate(context.Background())
	assert.True(t, channel.IsAuth(err))

	var authErr *channel.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, channel.SystemCodeOzon, authErr.System)
}

func TestOzonAdapter_TransientRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ozonProductListResponse{})
	}))
	defer server.Close()

	adapter := newOzonTestAdapter(t, server.URL)
	_, err := adapter.FetchCatalog(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestOzonAdapter_TransientExhaustion(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := newOzonTestAdapter(t, server.URL)
	_, err := adapter.FetchCatalog(context.Background(), "")
	assert.True(t, channel.IsTransient(err))
	assert.Equal(t, 3, calls) // MaxAttempts
}

func TestOzonAdapter_PushStockPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ozonStocksUpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Stocks, 2)

		resp := ozonUpdateResponse{Result: []ozonUpdateResult{
			{OfferID: req.Stocks[0].OfferID, Updated: true},
			{OfferID: req.Stocks[1].OfferID, Updated: false},
		}}
		resp.Result[1].Errors = append(resp.Result[1].Errors, struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}{Code: "TOO_MANY_REQUESTS", Message: "stock update limit reached"})
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newOzonTestAdapter(t, server.URL)
	result, err := adapter.PushStock(context.Background(), []channel.StockUpdate{
		{ExternalID: "ART-1", Available: decimal.NewFromInt(10)},
		{ExternalID: "ART-2", Available: decimal.NewFromInt(5)},
	})
	require.NoError(t, err)

	require.Len(t, result.Items, 2)
	assert.True(t, result.Items[0].OK)
	assert.False(t, result.Items[1].OK)
	assert.True(t, channel.IsValidation(result.Items[1].Err))

	var valErr *channel.ValidationError
	require.ErrorAs(t, result.Items[1].Err, &valErr)
	assert.Equal(t, "TOO_MANY_REQUESTS", valErr.Code)
	assert.Equal(t, "ART-2", valErr.ItemID)
}

func TestOzonAdapter_FetchOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ozonOrderListResponse{}
		resp.Result.Postings = []ozonPosting{{
			PostingNumber: "0089-0001-1",
			Status:        "awaiting_deliver",
			CreatedAt:     "2026-08-30T08:00:00Z",
			Price:         "2590.00",
		}}
		resp.Result.Postings[0].Products = append(resp.Result.Postings[0].Products, struct {
			SKU      int64  `json:"sku"`
			OfferID  string `json:"offer_id"`
			Quantity int64  `json:"quantity"`
			Price    string `json:"price"`
		}{SKU: 101, OfferID: "ART-101", Quantity: 2, Price: "1295.00"})
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := newOzonTestAdapter(t, server.URL)
	window := channel.OrderWindow{From: time.Now().Add(-24 * time.Hour), To: time.Now()}
	orders, err := adapter.FetchOrders(context.Background(), window)
	require.NoError(t, err)

	require.Len(t, orders, 1)
	assert.Equal(t, "0089-0001-1", orders[0].ExternalID)
	assert.Equal(t, channel.OrderStatusAwaiting, orders[0].Status)
	assert.True(t, orders[0].Total.Equal(decimal.NewFromFloat(2590.00)))
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, "101", orders[0].Items[0].ExternalProductID)
	assert.True(t, orders[0].Items[0].Quantity.Equal(decimal.NewFromInt(2)))
}

func TestOzonAdapter_UpdateOrderStatus(t *testing.T) {
	adapter := newOzonTestAdapter(t, "http://localhost:1")
	err := adapter.UpdateOrderStatus(context.Background(), "0089-0001-1", channel.OrderStatusShipped)
	assert.ErrorIs(t, err, channel.ErrCapabilityNotSupported)
}

func TestMapOzonOrderStatus(t *testing.T) {
	tests := []struct {
		remote   string
		expected channel.OrderStatus
	}{
		{"awaiting_packaging", channel.OrderStatusNew},
		{"awaiting_deliver", channel.OrderStatusAwaiting},
		{"delivering", channel.OrderStatusShipped},
		{"delivered", channel.OrderStatusDelivered},
		{"cancelled", channel.OrderStatusCancelled},
		{"something_else", channel.OrderStatusNew},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapOzonOrderStatus(tt.remote))
		})
	}
}

// ---------------------------------------------------------------------------
// Yandex Market Adapter Tests
// ---------------------------------------------------------------------------

func TestYandexAdapter_FetchCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Path, "/campaigns/client-1/offer-mappings")

		resp := yandexOfferMappingsResponse{Status: "OK"}
		var mapping yandexOfferMapping
		mapping.Offer.OfferID = "ART-201"
		mapping.Offer.Name = "Дрель ударная"
		mapping.Offer.Vendor = "Makita"
		mapping.Offer.Category = "Дрели"
		mapping.Offer.Barcodes = []string{"8887549780004"}
		mapping.Offer.Params = []yandexParam{{Name: "Мощность", Value: "710 Вт"}}
		resp.Result.OfferMappings = []yandexOfferMapping{mapping}
		if r.URL.Query().Get("page_token") == "" {
			resp.Result.Paging.NextPageToken = "tok-2"
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter, err := NewYandexMarketAdapter(testConfig(t, channel.SystemCodeYandexMarket, server.URL))
	require.NoError(t, err)

	first, err := adapter.FetchCatalog(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, first.Done)
	assert.Equal(t, "tok-2", first.NextCursor)
	require.Len(t, first.Records, 1)
	assert.Equal(t, "ART-201", first.Records[0].ExternalID)
	assert.Equal(t, "Makita", first.Records[0].BrandToken)
	assert.Equal(t, "8887549780004", first.Records[0].Barcode)
	assert.Equal(t, "710 Вт", first.Records[0].Attributes["Мощность"])

	second, err := adapter.FetchCatalog(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.True(t, second.Done)
}

func TestYandexAdapter_PushPricesBatchRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := yandexUpdateResponse{Status: "ERROR"}
		resp.Errors = append(resp.Errors, struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}{Code: "INVALID_PRICE", Message: "price below minimum"})
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter, err := NewYandexMarketAdapter(testConfig(t, channel.SystemCodeYandexMarket, server.URL))
	require.NoError(t, err)

	result, err := adapter.PushPrices(context.Background(), []channel.PriceUpdate{
		{ExternalID: "ART-201", Price: decimal.NewFromInt(1)},
		{ExternalID: "ART-202", Price: decimal.NewFromInt(2)},
	})
	require.NoError(t, err)

	// the batch rejection is spread over every item
	require.Len(t, result.Items, 2)
	for _, item := range result.Items {
		assert.False(t, item.OK)
		assert.True(t, channel.IsValidation(item.Err))
	}
}

func TestYandexAdapter_FetchStock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := `{"status":"OK","result":{"warehouses":[{"warehouseId":777,"offers":[
			{"offerId":"ART-201","stocks":[{"type":"AVAILABLE","count":12},{"type":"FREEZE","count":3}]},
			{"offerId":"ART-999","stocks":[{"type":"AVAILABLE","count":1}]}
		]}]}}`
		w.Write([]byte(body))
	}))
	defer server.Close()

	adapter, err := NewYandexMarketAdapter(testConfig(t, channel.SystemCodeYandexMarket, server.URL))
	require.NoError(t, err)

	quotes, err := adapter.FetchStock(context.Background(), []string{"ART-201"}, "")
	require.NoError(t, err)

	// ART-999 was not requested and is filtered out
	require.Len(t, quotes, 1)
	assert.Equal(t, "ART-201", quotes[0].ExternalID)
	assert.Equal(t, "777", quotes[0].WarehouseRef)
	assert.True(t, quotes[0].Quantity.Equal(decimal.NewFromInt(15)))
	assert.True(t, quotes[0].Reserved.Equal(decimal.NewFromInt(3)))
}

func TestMapYandexOrderStatus(t *testing.T) {
	assert.Equal(t, channel.OrderStatusNew, mapYandexOrderStatus("PROCESSING"))
	assert.Equal(t, channel.OrderStatusShipped, mapYandexOrderStatus("DELIVERY"))
	assert.Equal(t, channel.OrderStatusCancelled, mapYandexOrderStatus("CANCELLED"))
	assert.Equal(t, "DELIVERY", mapToYandexOrderStatus(channel.OrderStatusShipped))
	assert.Equal(t, "", mapToYandexOrderStatus(channel.OrderStatusDelivered))
}

// ---------------------------------------------------------------------------
// Supplier Adapter Tests
// ---------------------------------------------------------------------------

func TestETMAdapter_SessionAndCatalog(t *testing.T) {
	logins := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/user/login":
			logins++
			assert.Equal(t, "key-1", r.URL.Query().Get("log"))
			assert.Equal(t, "secret-1", r.URL.Query().Get("pwd"))
			w.Write([]byte(`{"status":"ok","data":{"session":"sess-abc"}}`))
		case r.URL.Path == "/catalog/goods":
			assert.Equal(t, "sess-abc", r.URL.Query().Get("session-id"))
			offset := r.URL.Query().Get("offset")
			if offset == "0" {
				w.Write([]byte(`{"status":"ok","data":{"total":3,"rows":[
					{"gdscode":"9706015","art":"GBH2-26","name":"Перфоратор","vendor":"Bosch","class_name":"Перфораторы"},
					{"gdscode":"9706016","art":"HR2470","name":"Перфоратор","vendor":"Makita","class_name":"Перфораторы"}
				]}}`))
			} else {
				w.Write([]byte(`{"status":"ok","data":{"total":3,"rows":[
					{"gdscode":"9706017","art":"D25133K","name":"Перфоратор","vendor":"DeWalt","class_name":"Перфораторы"}
				]}}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	adapter, err := NewETMAdapter(testConfig(t, channel.SystemCodeETM, server.URL))
	require.NoError(t, err)

	first, err := adapter.FetchCatalog(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, first.Done)
	assert.Equal(t, "2", first.NextCursor)
	require.Len(t, first.Records, 2)
	assert.Equal(t, "9706015", first.Records[0].ExternalID)
	assert.Equal(t, "GBH2-26", first.Records[0].Article)

	second, err := adapter.FetchCatalog(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.True(t, second.Done)
	assert.Equal(t, 1, logins) // session is cached across pages
}

func TestETMAdapter_InvalidCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","data":{"session":"sess-abc"}}`))
	}))
	defer server.Close()

	adapter, err := NewETMAdapter(testConfig(t, channel.SystemCodeETM, server.URL))
	require.NoError(t, err)

	_, err = adapter.FetchCatalog(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, channel.ErrInvalidCursor)
}

func TestETMAdapter_UnsupportedCapabilities(t *testing.T) {
	adapter, err := NewETMAdapter(testConfig(t, channel.SystemCodeETM, "http://localhost:1"))
	require.NoError(t, err)

	_, err = adapter.FetchOrders(context.Background(), channel.OrderWindow{})
	assert.ErrorIs(t, err, channel.ErrCapabilityNotSupported)
	_, err = adapter.PushStock(context.Background(), nil)
	assert.ErrorIs(t, err, channel.ErrCapabilityNotSupported)
	_, err = adapter.PushPrices(context.Background(), nil)
	assert.ErrorIs(t, err, channel.ErrCapabilityNotSupported)
	err = adapter.UpdateOrderStatus(context.Background(), "1", channel.OrderStatusCancelled)
	assert.ErrorIs(t, err, channel.ErrCapabilityNotSupported)
}

func TestRS24Adapter_CatalogPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// client-1:key-1 in base64
		assert.Equal(t, "Basic Y2xpZW50LTE6a2V5LTE=", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/position/page/1":
			w.Write([]byte(`{"pages":2,"items":[{"RS_CODE":"143034","VENDOR_CODE":"GBH2-26","NAME":"Перфоратор Bosch","BRAND":"BOSCH","CATEGORY":"Инструмент","IN_STOCK":"Y"}]}`))
		case "/position/page/2":
			w.Write([]byte(`{"pages":2,"items":[{"RS_CODE":"143035","VENDOR_CODE":"HR2470","NAME":"Перфоратор Makita","BRAND":"MAKITA","CATEGORY":"Инструмент","IN_STOCK":"N"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	adapter, err := NewRS24Adapter(testConfig(t, channel.SystemCodeRS24, server.URL))
	require.NoError(t, err)

	first, err := adapter.FetchCatalog(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, first.Done)
	assert.Equal(t, "2", first.NextCursor)
	require.Len(t, first.Records, 1)
	assert.True(t, first.Records[0].Active)

	second, err := adapter.FetchCatalog(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.True(t, second.Done)
	assert.False(t, second.Records[0].Active)
}

func TestRS24Adapter_FetchStock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "143034", r.URL.Query().Get("codes"))
		w.Write([]byte(`{"items":[{"RS_CODE":"143034","WAREHOUSE":"msk","RESIDUE":"17","RESERVED":"3"}]}`))
	}))
	defer server.Close()

	adapter, err := NewRS24Adapter(testConfig(t, channel.SystemCodeRS24, server.URL))
	require.NoError(t, err)

	quotes, err := adapter.FetchStock(context.Background(), []string{"143034"}, "")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].Quantity.Equal(decimal.NewFromInt(20)))
	assert.True(t, quotes[0].Reserved.Equal(decimal.NewFromInt(3)))
}

// ---------------------------------------------------------------------------
// Amazon Adapter Tests
// ---------------------------------------------------------------------------

func TestAmazonAdapter_TokenRefresh(t *testing.T) {
	exchanges := 0
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "key-1", r.Form.Get("refresh_token"))
		w.Write([]byte(`{"access_token":"at-1","expires_in":3600}`))
	}))
	defer token.Close()

	adapter, err := NewAmazonAdapter(testConfig(t, channel.SystemCodeAmazon, "http://localhost:1"))
	require.NoError(t, err)
	adapter.tokenURL = token.URL

	require.NoError(t, adapter.Authenticate(context.Background()))
	require.NoError(t, adapter.Authenticate(context.Background()))
	assert.Equal(t, 1, exchanges) // cached until expiry
}

func TestAmazonAdapter_BadRefreshToken(t *testing.T) {
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer token.Close()

	adapter, err := NewAmazonAdapter(testConfig(t, channel.SystemCodeAmazon, "http://localhost:1"))
	require.NoError(t, err)
	adapter.tokenURL = token.URL

	err = adapter.Authenticate(context.Background())
	assert.True(t, channel.IsAuth(err))
}

func TestAmazonAdapter_FetchCatalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/o2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at-1","expires_in":3600}`))
	})
	mux.HandleFunc("/listings/2021-08-01/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "at-1", r.Header.Get("x-amz-access-token"))
		if r.URL.Query().Get("nextToken") == "" {
			w.Write([]byte(`{"nextToken":"nt-2","items":[{"asin":"B00X4WHP5E","sku":"SKU-1","itemName":"Echo Dot","brand":"Amazon","status":"ACTIVE"}]}`))
			return
		}
		w.Write([]byte(`{"items":[{"asin":"B00X4WHP6F","sku":"SKU-2","itemName":"Kindle","brand":"Amazon","status":"INACTIVE"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter, err := NewAmazonAdapter(testConfig(t, channel.SystemCodeAmazon, server.URL))
	require.NoError(t, err)
	adapter.tokenURL = server.URL + "/auth/o2/token"

	first, err := adapter.FetchCatalog(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, first.Done)
	assert.Equal(t, "nt-2", first.NextCursor)
	require.Len(t, first.Records, 1)
	assert.Equal(t, "B00X4WHP5E", first.Records[0].ExternalID)
	assert.True(t, first.Records[0].Active)

	second, err := adapter.FetchCatalog(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.True(t, second.Done)
	assert.False(t, second.Records[0].Active)
}

// ---------------------------------------------------------------------------
// Type Conversion Tests
// ---------------------------------------------------------------------------

func TestParseDecimal(t *testing.T) {
	assert.True(t, parseDecimal("199.90").Equal(decimal.NewFromFloat(199.90)))
	assert.True(t, parseDecimal("").Equal(decimal.Zero))
	assert.True(t, parseDecimal("garbage").Equal(decimal.Zero))
}
