package marketplace

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/channel"
)

// Raw Yandex Market Partner API shapes.

type yandexOfferMappingsResponse struct {
	Status string `json:"status"`
	Result struct {
		OfferMappings []yandexOfferMapping `json:"offerMappings"`
		Paging        struct {
			NextPageToken string `json:"nextPageToken"`
		} `json:"paging"`
	} `json:"result"`
}

type yandexOfferMapping struct {
	Offer struct {
		OfferID     string            `json:"offerId"`
		Name        string            `json:"name"`
		Vendor      string            `json:"vendor"`
		Category    string            `json:"category"`
		Barcodes    []string          `json:"barcodes"`
		Params      []yandexParam     `json:"params"`
		Archived    bool              `json:"archived"`
		UpdatedAt   string            `json:"updatedAt"`
		ExtraFields map[string]string `json:"-"`
	} `json:"offer"`
	Mapping struct {
		MarketSku int64 `json:"marketSku"`
	} `json:"mapping"`
}

type yandexParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type yandexStocksResponse struct {
	Status string `json:"status"`
	Result struct {
		Warehouses []struct {
			WarehouseID int64 `json:"warehouseId"`
			Offers      []struct {
				OfferID string `json:"offerId"`
				Stocks  []struct {
					Type  string `json:"type"`
					Count int64  `json:"count"`
				} `json:"stocks"`
			} `json:"offers"`
		} `json:"warehouses"`
	} `json:"result"`
}

type yandexStocksUpdateRequest struct {
	Skus []yandexSkuStock `json:"skus"`
}

type yandexSkuStock struct {
	Sku   string `json:"sku"`
	Items []struct {
		Count int64 `json:"count"`
	} `json:"items"`
}

type yandexPricesResponse struct {
	Status string `json:"status"`
	Result struct {
		Offers []struct {
			OfferID string `json:"offerId"`
			Price   struct {
				Value        string `json:"value"`
				DiscountBase string `json:"discountBase"`
				CurrencyID   string `json:"currencyId"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"result"`
}

type yandexPricesUpdateRequest struct {
	Offers []yandexOfferPrice `json:"offers"`
}

type yandexOfferPrice struct {
	OfferID string `json:"offerId"`
	Price   struct {
		Value        string `json:"value"`
		DiscountBase string `json:"discountBase,omitempty"`
		CurrencyID   string `json:"currencyId"`
	} `json:"price"`
}

type yandexUpdateResponse struct {
	Status string `json:"status"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type yandexOrdersResponse struct {
	Orders []yandexOrder `json:"orders"`
	Pager  struct {
		PagesCount  int `json:"pagesCount"`
		CurrentPage int `json:"currentPage"`
	} `json:"pager"`
}

type yandexOrder struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	CreationDate string `json:"creationDate"`
	ItemsTotal   string `json:"itemsTotal"`
	Currency     string `json:"currency"`
	Items        []struct {
		OfferID string `json:"offerId"`
		Count   int64  `json:"count"`
		Price   string `json:"price"`
	} `json:"items"`
}

// yandexTimeLayout is the timestamp format the partner API emits
const yandexTimeLayout = "02-01-2006 15:04:05"

// normalizeYandexOffer converts a raw offer mapping into a canonical record
func normalizeYandexOffer(m yandexOfferMapping) channel.ProductRecord {
	offer := m.Offer
	record := channel.ProductRecord{
		ExternalID:    offer.OfferID,
		Article:       offer.OfferID,
		Name:          offer.Name,
		BrandToken:    offer.Vendor,
		CategoryToken: offer.Category,
		Active:        !offer.Archived,
		Attributes:    make(map[string]string, len(offer.Params)),
	}
	if len(offer.Barcodes) > 0 {
		record.Barcode = offer.Barcodes[0]
	}
	for _, p := range offer.Params {
		record.Attributes[p.Name] = p.Value
	}
	if t, err := time.Parse(time.RFC3339, offer.UpdatedAt); err == nil {
		record.UpdatedAt = t
	}
	return record
}

// mapYandexOrderStatus maps a partner API order status onto the canonical set
func mapYandexOrderStatus(status string) channel.OrderStatus {
	switch status {
	case "PROCESSING", "UNPAID":
		return channel.OrderStatusNew
	case "PENDING":
		return channel.OrderStatusAwaiting
	case "DELIVERY", "PICKUP":
		return channel.OrderStatusShipped
	case "DELIVERED":
		return channel.OrderStatusDelivered
	case "CANCELLED":
		return channel.OrderStatusCancelled
	default:
		return channel.OrderStatusNew
	}
}

// mapToYandexOrderStatus maps a canonical status onto the partner API set
func mapToYandexOrderStatus(status channel.OrderStatus) string {
	switch status {
	case channel.OrderStatusShipped:
		return "DELIVERY"
	case channel.OrderStatusCancelled:
		return "CANCELLED"
	default:
		return ""
	}
}

func yandexAvailable(count int64) decimal.Decimal {
	return decimal.NewFromInt(count)
}
