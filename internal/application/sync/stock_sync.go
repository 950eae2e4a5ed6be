package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/stock"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

// warehouseNamespace derives stable warehouse IDs from remote refs
var warehouseNamespace = uuid.MustParse("5f3c6a52-9e37-4f83-9c3e-7d2a1b64e9aa")

// warehouseID maps a remote warehouse reference onto a deterministic UUID
// so repeated pulls hit the same stock row.
func warehouseID(system channel.SystemCode, ref string) uuid.UUID {
	return uuid.NewSHA1(warehouseNamespace, []byte(system.String()+"/"+ref))
}

// syncStock moves stock levels through the system. Supplier feeds are
// pulled into per-warehouse stock records; marketplaces receive the
// aggregated availability as a push with per-item failure isolation.
func (o *Orchestrator) syncStock(ctx context.Context, adapter channel.MarketplaceAdapter, config *channel.ExternalSystemConfig, run *syncrun.SyncJobRun) error {
	products, err := o.products.FindActiveForSystem(ctx, run.TenantID, run.System)
	if err != nil {
		return fmt.Errorf("load linked products: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	if run.System.IsSupplier() {
		return o.pullStock(ctx, adapter, config, run, products)
	}
	return o.pushStock(ctx, adapter, config, run, products)
}

// pullStock writes remote quotes into canonical stock records. Levels are
// replaced wholesale with the fresh remote values, never accumulated.
func (o *Orchestrator) pullStock(ctx context.Context, adapter channel.MarketplaceAdapter, config *channel.ExternalSystemConfig, run *syncrun.SyncJobRun, products []catalog.Product) error {
	byExternalID := make(map[string]*catalog.Product, len(products))
	externalIDs := make([]string, 0, len(products))
	for i := range products {
		if id, ok := products[i].ExternalIDFor(run.System); ok {
			byExternalID[id] = &products[i]
			externalIDs = append(externalIDs, id)
		}
	}

	quotes, err := adapter.FetchStock(ctx, externalIDs, config.WarehouseRef)
	if err != nil {
		return err
	}

	for _, quote := range quotes {
		if err := ctx.Err(); err != nil {
			return err
		}
		product, ok := byExternalID[quote.ExternalID]
		if !ok {
			run.RecordItem(syncrun.ItemFailed)
			run.AddError(quote.ExternalID, "UNKNOWN_PRODUCT", "quote for unlinked external ID")
			continue
		}
		if err := o.upsertStock(ctx, run.TenantID, product.ID, run.System, quote); err != nil {
			run.RecordItem(syncrun.ItemFailed)
			run.AddError(quote.ExternalID, "STOCK_WRITE_FAILED", err.Error())
			continue
		}
		run.RecordItem(syncrun.ItemUpdated)
	}
	return nil
}

func (o *Orchestrator) upsertStock(ctx context.Context, tenantID, productID uuid.UUID, system channel.SystemCode, quote channel.StockQuote) error {
	record, err := stock.NewRecord(tenantID, productID, warehouseID(system, quote.WarehouseRef))
	if err != nil {
		return err
	}
	if err := record.SetLevels(quote.Quantity, quote.Reserved); err != nil {
		return err
	}
	return o.stocks.Upsert(ctx, record)
}

// pushStock sends aggregated availability to a marketplace. The aggregate
// is a fresh clamped sum across warehouses computed this run; one rejected
// item never aborts the batch.
func (o *Orchestrator) pushStock(ctx context.Context, adapter channel.MarketplaceAdapter, config *channel.ExternalSystemConfig, run *syncrun.SyncJobRun, products []catalog.Product) error {
	productIDs := make([]uuid.UUID, 0, len(products))
	for i := range products {
		productIDs = append(productIDs, products[i].ID)
	}
	levels, err := o.stocks.FindByProducts(ctx, run.TenantID, productIDs)
	if err != nil {
		return fmt.Errorf("load stock levels: %w", err)
	}

	updates := make([]channel.StockUpdate, 0, len(products))
	for i := range products {
		externalID, ok := products[i].ExternalIDFor(run.System)
		if !ok {
			continue
		}
		updates = append(updates, channel.StockUpdate{
			ExternalID:   externalID,
			WarehouseRef: config.WarehouseRef,
			Available:    stock.AggregateAvailable(levels[products[i].ID]),
		})
	}
	if len(updates) == 0 {
		return nil
	}

	result, err := adapter.PushStock(ctx, updates)
	if err != nil {
		return err
	}
	o.recordPushResult(run, result)
	return nil
}

// syncPrices pulls supplier price lists into canonical price records, or
// pushes the stored marketplace prices out, with the same partial-failure
// semantics as stock.
func (o *Orchestrator) syncPrices(ctx context.Context, adapter channel.MarketplaceAdapter, run *syncrun.SyncJobRun) error {
	products, err := o.products.FindActiveForSystem(ctx, run.TenantID, run.System)
	if err != nil {
		return fmt.Errorf("load linked products: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	if run.System.IsSupplier() {
		return o.pullPrices(ctx, adapter, run, products)
	}
	return o.pushPrices(ctx, adapter, run, products)
}

func (o *Orchestrator) pullPrices(ctx context.Context, adapter channel.MarketplaceAdapter, run *syncrun.SyncJobRun, products []catalog.Product) error {
	byExternalID := make(map[string]*catalog.Product, len(products))
	externalIDs := make([]string, 0, len(products))
	for i := range products {
		if id, ok := products[i].ExternalIDFor(run.System); ok {
			byExternalID[id] = &products[i]
			externalIDs = append(externalIDs, id)
		}
	}

	quotes, err := adapter.FetchPrices(ctx, externalIDs)
	if err != nil {
		return err
	}

	for _, quote := range quotes {
		if err := ctx.Err(); err != nil {
			return err
		}
		product, ok := byExternalID[quote.ExternalID]
		if !ok {
			run.RecordItem(syncrun.ItemFailed)
			run.AddError(quote.ExternalID, "UNKNOWN_PRODUCT", "price for unlinked external ID")
			continue
		}
		record, err := catalog.NewPriceRecord(run.TenantID, product.ID, run.System, quote.Price, quote.Currency)
		if err != nil {
			run.RecordItem(syncrun.ItemFailed)
			run.AddError(quote.ExternalID, "INVALID_PRICE", err.Error())
			continue
		}
		if err := record.SetPrice(quote.Price, quote.OldPrice); err != nil {
			run.RecordItem(syncrun.ItemFailed)
			run.AddError(quote.ExternalID, "INVALID_PRICE", err.Error())
			continue
		}
		if err := o.prices.Upsert(ctx, record); err != nil {
			run.RecordItem(syncrun.ItemFailed)
			run.AddError(quote.ExternalID, "PRICE_WRITE_FAILED", err.Error())
			continue
		}
		run.RecordItem(syncrun.ItemUpdated)
	}
	return nil
}

func (o *Orchestrator) pushPrices(ctx context.Context, adapter channel.MarketplaceAdapter, run *syncrun.SyncJobRun, products []catalog.Product) error {
	records, err := o.prices.FindBySystem(ctx, run.TenantID, run.System)
	if err != nil {
		return fmt.Errorf("load price records: %w", err)
	}
	byProduct := make(map[uuid.UUID]*catalog.PriceRecord, len(records))
	for i := range records {
		byProduct[records[i].ProductID] = &records[i]
	}

	updates := make([]channel.PriceUpdate, 0, len(products))
	for i := range products {
		externalID, ok := products[i].ExternalIDFor(run.System)
		if !ok {
			continue
		}
		record, ok := byProduct[products[i].ID]
		if !ok {
			continue
		}
		updates = append(updates, channel.PriceUpdate{
			ExternalID: externalID,
			Price:      record.Price,
			OldPrice:   record.OldPrice,
			Currency:   record.Currency,
		})
	}
	if len(updates) == 0 {
		return nil
	}

	result, err := adapter.PushPrices(ctx, updates)
	if err != nil {
		return err
	}
	o.recordPushResult(run, result)
	return nil
}

// recordPushResult folds per-item push outcomes into the run report
func (o *Orchestrator) recordPushResult(run *syncrun.SyncJobRun, result *channel.PushResult) {
	for _, item := range result.Items {
		if item.OK {
			run.RecordItem(syncrun.ItemUpdated)
			continue
		}
		run.RecordItem(syncrun.ItemFailed)
		detail := "push rejected"
		code := "PUSH_FAILED"
		if item.Err != nil {
			detail = item.Err.Error()
			var validationErr *channel.ValidationError
			if errors.As(item.Err, &validationErr) {
				code = validationErr.Code
			}
		}
		run.AddError(item.ExternalID, code, detail)
		o.logger.Warn("push item rejected",
			zap.String("run_id", run.ID.String()),
			zap.String("external_id", item.ExternalID),
			zap.String("code", code))
	}
}
