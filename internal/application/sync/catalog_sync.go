package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/application/mapping"
	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/domain/syncrun"
	"github.com/catalogsync/backend/internal/domain/taxonomy"
)

// syncCatalog drains the remote catalog page by page, resolves taxonomy
// tokens, diffs against canonical state and applies the changes in batches.
// Cancellation is honored between pages; an item failure isolates that item
// only. A transient page fetch is retried a bounded number of times before
// the run fails; pages already applied stay applied.
func (o *Orchestrator) syncCatalog(ctx context.Context, adapter channel.MarketplaceAdapter, run *syncrun.SyncJobRun) error {
	cache := newResolutionCache(o.resolver)
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := o.fetchCatalogPage(ctx, adapter, cursor)
		if err != nil {
			return err
		}

		batch := make([]*catalog.Product, 0, len(page.Records))
		now := time.Now()
		for i := range page.Records {
			record := page.Records[i]
			product, outcome, err := o.reconcileRecord(ctx, run, adapter.SystemCode(), cache, record, now)
			if err != nil {
				run.RecordItem(syncrun.ItemFailed)
				run.AddError(record.ExternalID, "RECONCILE_FAILED", err.Error())
				o.logger.Warn("reconcile item failed",
					zap.String("run_id", run.ID.String()),
					zap.String("external_id", record.ExternalID),
					zap.Error(err))
				continue
			}
			run.RecordItem(outcome)
			if product != nil && outcome != syncrun.ItemUnchanged {
				batch = append(batch, product)
			}
		}

		if len(batch) > 0 {
			if err := o.products.SaveBatch(ctx, batch); err != nil {
				return fmt.Errorf("apply catalog batch: %w", err)
			}
		}

		run.SaveCursor(page.NextCursor)
		if page.Done {
			return nil
		}
		cursor = page.NextCursor
	}
}

// fetchCatalogPage pulls one page, retrying transient failures with
// exponential backoff up to the attempt bound. Auth and validation errors
// surface immediately.
func (o *Orchestrator) fetchCatalogPage(ctx context.Context, adapter channel.MarketplaceAdapter, cursor string) (*channel.CatalogPage, error) {
	backoff := o.pageRetryBackoff
	var lastErr error
	for attempt := 1; attempt <= o.pageRetryAttempts; attempt++ {
		page, err := adapter.FetchCatalog(ctx, cursor)
		if err == nil {
			return page, nil
		}
		if !channel.IsTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt == o.pageRetryAttempts {
			break
		}
		o.logger.Warn("catalog page fetch retrying",
			zap.String("cursor", cursor),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("fetch catalog page after %d attempts: %w", o.pageRetryAttempts, lastErr)
}

// reconcileRecord maps one remote record onto canonical state and reports
// what changed. The returned product is nil when nothing needs persisting.
func (o *Orchestrator) reconcileRecord(
	ctx context.Context,
	run *syncrun.SyncJobRun,
	system channel.SystemCode,
	cache *resolutionCache,
	record channel.ProductRecord,
	now time.Time,
) (*catalog.Product, syncrun.ItemOutcome, error) {
	if record.ExternalID == "" || record.Article == "" {
		return nil, syncrun.ItemFailed, &channel.ValidationError{
			System: system, ItemID: record.ExternalID, Code: "MISSING_IDENTITY",
			Detail: "record lacks external ID or article",
		}
	}

	existing, err := o.findExisting(ctx, run.TenantID, system, record)
	if err != nil {
		return nil, syncrun.ItemFailed, err
	}

	brandID := cache.resolveBrand(ctx, run.TenantID, system, record.BrandToken)
	categoryID := cache.resolveCategory(ctx, run.TenantID, system, record.CategoryToken)

	if existing == nil {
		product, err := catalog.NewProduct(run.TenantID, record.Article, record.Name)
		if err != nil {
			return nil, syncrun.ItemFailed, err
		}
		if err := product.LinkExternal(system, record.ExternalID); err != nil {
			return nil, syncrun.ItemFailed, err
		}
		if brandID != nil {
			product.SetBrand(*brandID)
		}
		if categoryID != nil {
			product.SetCategory(*categoryID)
		}
		for name, value := range record.Attributes {
			product.SetAttribute(name, value)
		}
		product.Barcode = record.Barcode
		product.Active = record.Active
		product.RecordSync(now)
		return product, syncrun.ItemCreated, nil
	}

	if err := existing.LinkExternal(system, record.ExternalID); err != nil {
		return nil, syncrun.ItemFailed, err
	}

	changed := diffRecord(existing, record, brandID, categoryID)
	conflict := hasLocalConflict(existing)

	if !changed {
		return nil, syncrun.ItemUnchanged, nil
	}

	if conflict {
		// most-recent-write wins; the losing side is logged, never silently dropped
		if !remoteWins(existing, record) {
			o.logger.Warn("sync conflict, local edit wins",
				zap.String("run_id", run.ID.String()),
				zap.String("article", existing.Article),
				zap.Time("local_updated", existing.UpdatedAt),
				zap.Time("remote_updated", record.UpdatedAt))
			existing.RecordSync(now)
			return existing, syncrun.ItemConflict, nil
		}
		o.logger.Warn("sync conflict, remote write wins",
			zap.String("run_id", run.ID.String()),
			zap.String("article", existing.Article),
			zap.Time("local_updated", existing.UpdatedAt),
			zap.Time("remote_updated", record.UpdatedAt))
		applyRecord(existing, record, brandID, categoryID, now)
		return existing, syncrun.ItemConflict, nil
	}

	applyRecord(existing, record, brandID, categoryID, now)
	return existing, syncrun.ItemUpdated, nil
}

// findExisting locates the canonical product for a remote record, first by
// linked external identity, then by article.
func (o *Orchestrator) findExisting(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, record channel.ProductRecord) (*catalog.Product, error) {
	product, err := o.products.FindByExternalID(ctx, tenantID, system, record.ExternalID)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	product, err = o.products.FindByArticle(ctx, tenantID, record.Article)
	if err == nil {
		return product, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

// ---------------------------------------------------------------------------
// Per-run resolution cache
// ---------------------------------------------------------------------------

// resolutionCache memoizes resolver calls within one run so a token seen on
// every page resolves exactly once.
type resolutionCache struct {
	resolver *mapping.Resolver
	entries  map[string]*uuid.UUID
}

func newResolutionCache(resolver *mapping.Resolver) *resolutionCache {
	return &resolutionCache{
		resolver: resolver,
		entries:  make(map[string]*uuid.UUID),
	}
}

func (c *resolutionCache) resolveBrand(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, token string) *uuid.UUID {
	return c.resolve(ctx, tenantID, system, taxonomy.MappingKindBrand, token)
}

func (c *resolutionCache) resolveCategory(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, token string) *uuid.UUID {
	return c.resolve(ctx, tenantID, system, taxonomy.MappingKindCategory, token)
}

// resolve returns the canonical ID for a token, nil when the token is
// empty, queued for manual mapping, or the resolver errored. A nil result
// leaves the product with an unmapped placeholder; it never blocks the item.
func (c *resolutionCache) resolve(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, kind taxonomy.MappingKind, token string) *uuid.UUID {
	if token == "" || c.resolver == nil {
		return nil
	}
	cacheKey := kind.String() + "|" + token
	if id, ok := c.entries[cacheKey]; ok {
		return id
	}

	var id *uuid.UUID
	resolution, err := c.resolver.Resolve(ctx, tenantID, system, kind, token)
	if err == nil && resolution.Matched {
		matched := resolution.CanonicalID
		id = &matched
	}
	c.entries[cacheKey] = id
	return id
}
