package marketplace

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// Raw Ozon Seller API shapes. These never cross the adapter boundary;
// every response is normalized into canonical channel records.

type ozonProductListRequest struct {
	Filter ozonProductFilter `json:"filter"`
	LastID string            `json:"last_id,omitempty"`
	Limit  int               `json:"limit"`
}

type ozonProductFilter struct {
	Visibility string `json:"visibility"`
}

type ozonProductListResponse struct {
	Result struct {
		Items []ozonProductItem `json:"items"`
		// LastID resumes the listing after the returned items
		LastID string `json:"last_id"`
		Total  int    `json:"total"`
	} `json:"result"`
}

type ozonProductItem struct {
	ProductID int64             `json:"product_id"`
	OfferID   string            `json:"offer_id"`
	Name      string            `json:"name"`
	Barcode   string            `json:"barcode"`
	Brand     string            `json:"brand"`
	Category  string            `json:"category_name"`
	Archived  bool              `json:"archived"`
	Attrs     map[string]string `json:"attributes"`
	UpdatedAt string            `json:"updated_at"`
}

type ozonStocksRequest struct {
	ProductIDs []string `json:"product_id"`
}

type ozonStocksResponse struct {
	Result struct {
		Items []ozonStockItem `json:"items"`
	} `json:"result"`
}

type ozonStockItem struct {
	ProductID int64 `json:"product_id"`
	Stocks    []struct {
		WarehouseID int64 `json:"warehouse_id"`
		Present     int64 `json:"present"`
		Reserved    int64 `json:"reserved"`
	} `json:"stocks"`
}

type ozonPricesRequest struct {
	ProductIDs []string `json:"product_id"`
}

type ozonPricesResponse struct {
	Result struct {
		Items []ozonPriceItem `json:"items"`
	} `json:"result"`
}

type ozonPriceItem struct {
	ProductID int64 `json:"product_id"`
	Price     struct {
		Price        string `json:"price"`
		OldPrice     string `json:"old_price"`
		CurrencyCode string `json:"currency_code"`
	} `json:"price"`
}

type ozonStocksUpdateRequest struct {
	Stocks []ozonStockUpdate `json:"stocks"`
}

type ozonStockUpdate struct {
	OfferID     string `json:"offer_id"`
	Stock       int64  `json:"stock"`
	WarehouseID string `json:"warehouse_id,omitempty"`
}

type ozonPricesUpdateRequest struct {
	Prices []ozonPriceUpdate `json:"prices"`
}

type ozonPriceUpdate struct {
	OfferID      string `json:"offer_id"`
	Price        string `json:"price"`
	OldPrice     string `json:"old_price,omitempty"`
	CurrencyCode string `json:"currency_code"`
}

type ozonUpdateResponse struct {
	Result []ozonUpdateResult `json:"result"`
}

type ozonUpdateResult struct {
	OfferID string `json:"offer_id"`
	Updated bool   `json:"updated"`
	Errors  []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type ozonOrderListRequest struct {
	Filter ozonOrderFilter `json:"filter"`
	Limit  int             `json:"limit"`
}

type ozonOrderFilter struct {
	Since string `json:"since"`
	To    string `json:"to"`
}

type ozonOrderListResponse struct {
	Result struct {
		Postings []ozonPosting `json:"postings"`
	} `json:"result"`
}

type ozonPosting struct {
	PostingNumber string `json:"posting_number"`
	Status        string `json:"status"`
	CreatedAt     string `json:"in_process_at"`
	Products      []struct {
		SKU      int64  `json:"sku"`
		OfferID  string `json:"offer_id"`
		Quantity int64  `json:"quantity"`
		Price    string `json:"price"`
	} `json:"products"`
	Price string `json:"total_price"`
}

// normalizeOzonProduct converts a raw listing item into a canonical record
func normalizeOzonProduct(item ozonProductItem) channel.ProductRecord {
	record := channel.ProductRecord{
		ExternalID:    strconv.FormatInt(item.ProductID, 10),
		Article:       item.OfferID,
		Name:          item.Name,
		BrandToken:    item.Brand,
		CategoryToken: item.Category,
		Barcode:       item.Barcode,
		Active:        !item.Archived,
		Attributes:    item.Attrs,
	}
	if t, err := time.Parse(time.RFC3339, item.UpdatedAt); err == nil {
		record.UpdatedAt = t
	}
	return record
}

// mapOzonOrderStatus maps an Ozon posting status onto the canonical set
func mapOzonOrderStatus(status string) channel.OrderStatus {
	switch status {
	case "awaiting_packaging", "awaiting_registration":
		return channel.OrderStatusNew
	case "awaiting_deliver":
		return channel.OrderStatusAwaiting
	case "delivering", "driver_pickup":
		return channel.OrderStatusShipped
	case "delivered":
		return channel.OrderStatusDelivered
	case "cancelled":
		return channel.OrderStatusCancelled
	default:
		return channel.OrderStatusNew
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
