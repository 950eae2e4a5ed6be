package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/domain/stock"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*catalog.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*catalog.Product)}
}

func (r *fakeProductRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) FindByArticle(_ context.Context, tenantID uuid.UUID, article string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.TenantID == tenantID && p.Article == article {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProductRepo) FindByExternalID(_ context.Context, tenantID uuid.UUID, system channel.SystemCode, externalID string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.TenantID != tenantID {
			continue
		}
		if id, ok := p.ExternalIDFor(system); ok && id == externalID {
			return p, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeProductRepo) FindActiveForSystem(_ context.Context, tenantID uuid.UUID, system channel.SystemCode) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]catalog.Product, 0)
	for _, p := range r.products {
		if p.TenantID != tenantID || !p.Active {
			continue
		}
		if _, ok := p.ExternalIDFor(system); ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Save(_ context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) SaveBatch(ctx context.Context, products []*catalog.Product) error {
	for _, p := range products {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

type fakePriceRepo struct {
	mu      sync.Mutex
	records map[string]*catalog.PriceRecord
}

func newFakePriceRepo() *fakePriceRepo {
	return &fakePriceRepo{records: make(map[string]*catalog.PriceRecord)}
}

func priceKey(tenantID, productID uuid.UUID, system channel.SystemCode) string {
	return tenantID.String() + "|" + productID.String() + "|" + system.String()
}

func (r *fakePriceRepo) FindByProductAndSystem(_ context.Context, tenantID, productID uuid.UUID, system channel.SystemCode) (*catalog.PriceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[priceKey(tenantID, productID, system)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return rec, nil
}

func (r *fakePriceRepo) FindBySystem(_ context.Context, tenantID uuid.UUID, system channel.SystemCode) ([]catalog.PriceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]catalog.PriceRecord, 0)
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.SystemCode == system {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakePriceRepo) Upsert(_ context.Context, record *catalog.PriceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[priceKey(record.TenantID, record.ProductID, record.SystemCode)] = record
	return nil
}

type fakeStockRepo struct {
	mu      sync.Mutex
	records map[string]*stock.Record
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{records: make(map[string]*stock.Record)}
}

func stockKey(tenantID, productID, warehouseID uuid.UUID) string {
	return tenantID.String() + "|" + productID.String() + "|" + warehouseID.String()
}

func (r *fakeStockRepo) FindByProduct(_ context.Context, tenantID, productID uuid.UUID) ([]stock.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stock.Record, 0)
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.ProductID == productID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeStockRepo) FindByProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID][]stock.Record, error) {
	out := make(map[uuid.UUID][]stock.Record)
	for _, id := range productIDs {
		records, err := r.FindByProduct(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		out[id] = records
	}
	return out, nil
}

func (r *fakeStockRepo) Upsert(_ context.Context, record *stock.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[stockKey(record.TenantID, record.ProductID, record.WarehouseID)] = record
	return nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*syncrun.SyncJobRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uuid.UUID]*syncrun.SyncJobRun)}
}

func (r *fakeRunRepo) FindByID(_ context.Context, id uuid.UUID) (*syncrun.SyncJobRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return run, nil
}

func (r *fakeRunRepo) FindRecent(_ context.Context, tenantID uuid.UUID, limit int) ([]syncrun.SyncJobRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]syncrun.SyncJobRun, 0)
	for _, run := range r.runs {
		if run.TenantID == tenantID {
			out = append(out, *run)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRunRepo) FindLastCompleted(_ context.Context, tenantID uuid.UUID, system channel.SystemCode, jobType syncrun.JobType) (*syncrun.SyncJobRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *syncrun.SyncJobRun
	for _, run := range r.runs {
		if run.TenantID != tenantID || run.System != system || run.JobType != jobType || !run.Status.IsTerminal() {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, shared.ErrNotFound
	}
	return latest, nil
}

func (r *fakeRunRepo) Save(_ context.Context, run *syncrun.SyncJobRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

type fakeConfigRepo struct {
	configs map[string]*channel.ExternalSystemConfig
}

func newFakeConfigRepo(configs ...*channel.ExternalSystemConfig) *fakeConfigRepo {
	repo := &fakeConfigRepo{configs: make(map[string]*channel.ExternalSystemConfig)}
	for _, c := range configs {
		repo.configs[c.TenantID.String()+"|"+c.SystemCode.String()] = c
	}
	return repo
}

func (r *fakeConfigRepo) FindByTenantAndSystem(_ context.Context, tenantID uuid.UUID, code channel.SystemCode) (*channel.ExternalSystemConfig, error) {
	c, ok := r.configs[tenantID.String()+"|"+code.String()]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

func (r *fakeConfigRepo) FindEnabledForTenant(_ context.Context, tenantID uuid.UUID) ([]channel.ExternalSystemConfig, error) {
	out := make([]channel.ExternalSystemConfig, 0)
	for _, c := range r.configs {
		if c.TenantID == tenantID && c.Enabled {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConfigRepo) Save(_ context.Context, config *channel.ExternalSystemConfig) error {
	r.configs[config.TenantID.String()+"|"+config.SystemCode.String()] = config
	return nil
}

// fakeAdapter scripts remote behavior per test
type fakeAdapter struct {
	system       channel.SystemCode
	pages        []*channel.CatalogPage
	pageFailures map[int]int // page index -> remaining transient failures
	fetchCalls   int
	stockQuotes  []channel.StockQuote
	priceQuotes  []channel.PriceQuote
	pushStock    func(updates []channel.StockUpdate) (*channel.PushResult, error)
	pushPrices   func(updates []channel.PriceUpdate) (*channel.PushResult, error)
	orders       []channel.OrderRecord
	authErr      error
}

func (a *fakeAdapter) SystemCode() channel.SystemCode { return a.system }

func (a *fakeAdapter) Authenticate(context.Context) error { return a.authErr }

func (a *fakeAdapter) FetchCatalog(_ context.Context, cursor string) (*channel.CatalogPage, error) {
	a.fetchCalls++
	index := 0
	if cursor != "" {
		if _, err := fmt.Sscanf(cursor, "page-%d", &index); err != nil {
			return nil, channel.ErrInvalidCursor
		}
	}
	if remaining := a.pageFailures[index]; remaining > 0 {
		a.pageFailures[index] = remaining - 1
		return nil, &channel.TransientError{System: a.system, StatusCode: 503, Detail: "flaky page"}
	}
	if index >= len(a.pages) {
		return &channel.CatalogPage{Done: true}, nil
	}
	page := *a.pages[index]
	page.NextCursor = fmt.Sprintf("page-%d", index+1)
	page.Done = index == len(a.pages)-1
	return &page, nil
}

func (a *fakeAdapter) FetchStock(_ context.Context, _ []string, _ string) ([]channel.StockQuote, error) {
	return a.stockQuotes, nil
}

func (a *fakeAdapter) FetchPrices(_ context.Context, _ []string) ([]channel.PriceQuote, error) {
	return a.priceQuotes, nil
}

func (a *fakeAdapter) PushStock(_ context.Context, updates []channel.StockUpdate) (*channel.PushResult, error) {
	if a.pushStock != nil {
		return a.pushStock(updates)
	}
	result := &channel.PushResult{}
	for _, u := range updates {
		result.Items = append(result.Items, channel.PushItemResult{ExternalID: u.ExternalID, OK: true})
	}
	return result, nil
}

func (a *fakeAdapter) PushPrices(_ context.Context, updates []channel.PriceUpdate) (*channel.PushResult, error) {
	if a.pushPrices != nil {
		return a.pushPrices(updates)
	}
	result := &channel.PushResult{}
	for _, u := range updates {
		result.Items = append(result.Items, channel.PushItemResult{ExternalID: u.ExternalID, OK: true})
	}
	return result, nil
}

func (a *fakeAdapter) FetchOrders(context.Context, channel.OrderWindow) ([]channel.OrderRecord, error) {
	if !a.system.Supports(channel.CapabilityOrders) {
		return nil, channel.ErrCapabilityNotSupported
	}
	return a.orders, nil
}

func (a *fakeAdapter) UpdateOrderStatus(context.Context, string, channel.OrderStatus) error {
	return nil
}

func (a *fakeAdapter) TestConnection(context.Context) (*channel.ConnectionProbe, error) {
	return &channel.ConnectionProbe{OK: true}, nil
}

type fakeFactory struct{ adapter channel.MarketplaceAdapter }

func (f *fakeFactory) NewAdapter(*channel.ExternalSystemConfig) (channel.MarketplaceAdapter, error) {
	return f.adapter, nil
}

type fakeRegistry struct{ factories map[channel.SystemCode]channel.AdapterFactory }

func (r *fakeRegistry) Factory(code channel.SystemCode) (channel.AdapterFactory, error) {
	f, ok := r.factories[code]
	if !ok {
		return nil, channel.ErrNotConfigured
	}
	return f, nil
}

func (r *fakeRegistry) SupportedSystems() []channel.SystemCode {
	out := make([]channel.SystemCode, 0, len(r.factories))
	for code := range r.factories {
		out = append(out, code)
	}
	return out
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	orchestrator *Orchestrator
	adapter      *fakeAdapter
	products     *fakeProductRepo
	stocks       *fakeStockRepo
	prices       *fakePriceRepo
	runs         *fakeRunRepo
	locker       *fakeLocker
	tenantID     uuid.UUID
}

func newHarness(t *testing.T, system channel.SystemCode) *harness {
	t.Helper()
	tenantID := uuid.New()
	config, err := channel.NewExternalSystemConfig(tenantID, system)
	require.NoError(t, err)
	config.APIKey = "test-key"
	config.WarehouseRef = "wh-main"

	adapter := &fakeAdapter{system: system, pageFailures: make(map[int]int)}
	products := newFakeProductRepo()
	stocks := newFakeStockRepo()
	prices := newFakePriceRepo()
	runs := newFakeRunRepo()
	locker := newFakeLocker()

	orchestrator := NewOrchestrator(
		&fakeRegistry{factories: map[channel.SystemCode]channel.AdapterFactory{system: &fakeFactory{adapter: adapter}}},
		newFakeConfigRepo(config),
		products,
		prices,
		stocks,
		runs,
		nil,
		locker,
		nil,
		nil,
		zap.NewNop(),
	)
	orchestrator.pageRetryBackoff = time.Millisecond

	return &harness{
		orchestrator: orchestrator,
		adapter:      adapter,
		products:     products,
		stocks:       stocks,
		prices:       prices,
		runs:         runs,
		locker:       locker,
		tenantID:     tenantID,
	}
}

func catalogPage(records ...channel.ProductRecord) *channel.CatalogPage {
	return &channel.CatalogPage{Records: records}
}

func productRecord(n int) channel.ProductRecord {
	return channel.ProductRecord{
		ExternalID: fmt.Sprintf("ext-%d", n),
		Article:    fmt.Sprintf("ART-%d", n),
		Name:       fmt.Sprintf("Product %d", n),
		Active:     true,
		UpdatedAt:  time.Now(),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestTriggerSync_CatalogCreatesProducts(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	h.adapter.pages = []*channel.CatalogPage{
		catalogPage(productRecord(1), productRecord(2)),
		catalogPage(productRecord(3)),
	}

	run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusSuccess, run.Status)
	assert.Equal(t, 3, run.Counters.Created)
	assert.Len(t, h.products.products, 3)

	saved, err := h.products.FindByExternalID(context.Background(), h.tenantID, channel.SystemCodeOzon, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "ART-1", saved.Article)
	assert.NotNil(t, saved.LastSyncAt)
}

func TestTriggerSync_SecondRunIsUnchanged(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	record := productRecord(1)
	h.adapter.pages = []*channel.CatalogPage{catalogPage(record)}

	run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)
	require.Equal(t, 1, run.Counters.Created)

	saved, err := h.products.FindByExternalID(context.Background(), h.tenantID, channel.SystemCodeOzon, "ext-1")
	require.NoError(t, err)
	require.NotNil(t, saved.LastSyncAt)
	firstStamp := *saved.LastSyncAt
	firstUpdated := saved.UpdatedAt

	run, err = h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusSuccess, run.Status)
	assert.Equal(t, 0, run.Counters.Created)
	assert.Equal(t, 1, run.Counters.Unchanged)

	// an unchanged item is left exactly as stored
	saved, err = h.products.FindByExternalID(context.Background(), h.tenantID, channel.SystemCodeOzon, "ext-1")
	require.NoError(t, err)
	require.NotNil(t, saved.LastSyncAt)
	assert.Equal(t, firstStamp, *saved.LastSyncAt)
	assert.Equal(t, firstUpdated, saved.UpdatedAt)
}

func TestTriggerSync_RemoteUpdateApplied(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	ctx := context.Background()
	record := productRecord(1)
	h.adapter.pages = []*channel.CatalogPage{catalogPage(record)}

	run, err := h.orchestrator.TriggerSync(ctx, h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)
	require.Equal(t, 1, run.Counters.Created)

	// the record is renamed remotely; nothing was edited locally since
	renamed := record
	renamed.Name = "Product 1 rev B"
	renamed.UpdatedAt = time.Now().Add(time.Minute)
	h.adapter.pages = []*channel.CatalogPage{catalogPage(renamed)}

	run, err = h.orchestrator.TriggerSync(ctx, h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusSuccess, run.Status)
	assert.Equal(t, 1, run.Counters.Updated)
	assert.Equal(t, 0, run.Counters.Conflicts)

	saved, err := h.products.FindByExternalID(ctx, h.tenantID, channel.SystemCodeOzon, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "Product 1 rev B", saved.Name)
}

func TestTriggerSync_ConflictNewerRemoteWins(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	ctx := context.Background()
	record := productRecord(1)
	h.adapter.pages = []*channel.CatalogPage{catalogPage(record)}

	run, err := h.orchestrator.TriggerSync(ctx, h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)
	require.Equal(t, 1, run.Counters.Created)

	// a local edit after the sync, then an even newer remote write
	saved, err := h.products.FindByExternalID(ctx, h.tenantID, channel.SystemCodeOzon, "ext-1")
	require.NoError(t, err)
	saved.SetAttribute("color", "red")
	require.NoError(t, h.products.Save(ctx, saved))

	renamed := record
	renamed.Name = "Product 1 rev B"
	renamed.UpdatedAt = time.Now().Add(time.Minute)
	h.adapter.pages = []*channel.CatalogPage{catalogPage(renamed)}

	run, err = h.orchestrator.TriggerSync(ctx, h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Counters.Conflicts)
	saved, err = h.products.FindByExternalID(ctx, h.tenantID, channel.SystemCodeOzon, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "Product 1 rev B", saved.Name)
}

func TestTriggerSync_TransientPageIsRetried(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	h.adapter.pages = []*channel.CatalogPage{
		catalogPage(productRecord(1)),
		catalogPage(productRecord(2)),
		catalogPage(productRecord(3)),
		catalogPage(productRecord(4)),
		catalogPage(productRecord(5)),
	}
	// page index 2 fails once with a 503, then succeeds
	h.adapter.pageFailures[2] = 1

	run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusSuccess, run.Status)
	assert.Equal(t, 5, run.Counters.Created)
	assert.Empty(t, run.Errors)
}

func TestTriggerSync_TransientExhaustionFailsRun(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	h.adapter.pages = []*channel.CatalogPage{
		catalogPage(productRecord(1)),
		catalogPage(productRecord(2)),
	}
	// page index 1 never recovers
	h.adapter.pageFailures[1] = 100

	run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusFailed, run.Status)
	// the first page's progress is kept
	assert.Len(t, h.products.products, 1)
	require.NotEmpty(t, run.Errors)
	assert.Equal(t, "TRANSIENT_EXHAUSTED", run.Errors[0].Code)
}

func TestTriggerSync_LockContentionRecordsSkippedRun(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	key := syncrun.RunKey(h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	acquired, err := h.locker.TryAcquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusSkipped, run.Status)
	assert.Equal(t, syncrun.SkipReasonAlreadyRunning, run.SkipReason)
	// the skipped run is persisted like any other
	saved, err := h.orchestrator.GetRunStatus(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, syncrun.RunStatusSkipped, saved.Status)

	// a different job type on the same tenant+system is not blocked
	h.adapter.pages = []*channel.CatalogPage{catalogPage(productRecord(1))}
	other, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeStockSync)
	require.NoError(t, err)
	assert.NotEqual(t, syncrun.RunStatusSkipped, other.Status)
}

func TestTriggerSync_AuthFailure(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	h.adapter.authErr = &channel.AuthError{System: channel.SystemCodeOzon, Detail: "invalid api key"}

	run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusFailed, run.Status)
	require.NotEmpty(t, run.Errors)
	assert.Equal(t, "AUTH_FAILED", run.Errors[0].Code)
}

func TestTriggerSync_NotConfigured(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)

	run, err := h.orchestrator.TriggerSync(context.Background(), uuid.New(), channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusFailed, run.Status)
	require.NotEmpty(t, run.Errors)
	assert.Equal(t, "NOT_CONFIGURED", run.Errors[0].Code)
	assert.Equal(t, 0, run.Counters.Total())
}

func TestTriggerSync_StockPushPartialFailure(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	ctx := context.Background()

	// seed 100 linked products with stock
	for i := 1; i <= 100; i++ {
		product, err := catalog.NewProduct(h.tenantID, fmt.Sprintf("ART-%d", i), fmt.Sprintf("Product %d", i))
		require.NoError(t, err)
		require.NoError(t, product.LinkExternal(channel.SystemCodeOzon, fmt.Sprintf("ext-%d", i)))
		require.NoError(t, h.products.Save(ctx, product))

		record, err := stock.NewRecord(h.tenantID, product.ID, uuid.New())
		require.NoError(t, err)
		require.NoError(t, record.SetLevels(decimal.NewFromInt(10), decimal.Zero))
		require.NoError(t, h.stocks.Upsert(ctx, record))
	}

	// item 47 violates a remote validation rule, the rest succeed
	h.adapter.pushStock = func(updates []channel.StockUpdate) (*channel.PushResult, error) {
		result := &channel.PushResult{}
		for _, u := range updates {
			if u.ExternalID == "ext-47" {
				result.Items = append(result.Items, channel.PushItemResult{
					ExternalID: u.ExternalID,
					Err: &channel.ValidationError{
						System: channel.SystemCodeOzon, ItemID: u.ExternalID,
						Code: "STOCK_REJECTED", Detail: "warehouse not accepting this SKU",
					},
				})
				continue
			}
			result.Items = append(result.Items, channel.PushItemResult{ExternalID: u.ExternalID, OK: true})
		}
		return result, nil
	}

	run, err := h.orchestrator.TriggerSync(ctx, h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeStockSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusPartial, run.Status)
	assert.Equal(t, 99, run.Counters.Updated)
	assert.Equal(t, 1, run.Counters.Failed)
	require.Len(t, run.Errors, 1)
	assert.Equal(t, "ext-47", run.Errors[0].ItemID)
	assert.Equal(t, "STOCK_REJECTED", run.Errors[0].Code)
}

func TestTriggerSync_SupplierStockPull(t *testing.T) {
	h := newHarness(t, channel.SystemCodeETM)
	ctx := context.Background()

	product, err := catalog.NewProduct(h.tenantID, "ART-1", "Cable drum")
	require.NoError(t, err)
	require.NoError(t, product.LinkExternal(channel.SystemCodeETM, "etm-1"))
	require.NoError(t, h.products.Save(ctx, product))

	h.adapter.stockQuotes = []channel.StockQuote{
		{ExternalID: "etm-1", WarehouseRef: "msk", Quantity: decimal.NewFromInt(25), Reserved: decimal.NewFromInt(5)},
		{ExternalID: "etm-1", WarehouseRef: "spb", Quantity: decimal.NewFromInt(3), Reserved: decimal.NewFromInt(8)},
		{ExternalID: "unknown", WarehouseRef: "msk", Quantity: decimal.NewFromInt(1)},
	}

	run, err := h.orchestrator.TriggerSync(ctx, h.tenantID, channel.SystemCodeETM, syncrun.JobTypeStockSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusPartial, run.Status)
	assert.Equal(t, 2, run.Counters.Updated)
	assert.Equal(t, 1, run.Counters.Failed)

	levels, err := h.stocks.FindByProduct(ctx, h.tenantID, product.ID)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	// 20 available in msk, spb over-reserved clamps to zero
	assert.True(t, stock.AggregateAvailable(levels).Equal(decimal.NewFromInt(20)))
}

func TestTriggerSync_OrderPullOnSupplierFails(t *testing.T) {
	h := newHarness(t, channel.SystemCodeRS24)

	run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeRS24, syncrun.JobTypeOrderSync)
	require.NoError(t, err)

	assert.Equal(t, syncrun.RunStatusFailed, run.Status)
}

func TestTriggerSync_ConcurrentSameKey(t *testing.T) {
	h := newHarness(t, channel.SystemCodeOzon)
	h.adapter.pages = []*channel.CatalogPage{catalogPage(productRecord(1))}

	const workers = 8
	results := make(chan syncrun.RunStatus, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := h.orchestrator.TriggerSync(context.Background(), h.tenantID, channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
			if err != nil {
				return
			}
			results <- run.Status
		}()
	}
	wg.Wait()
	close(results)

	skipped := 0
	for status := range results {
		if status == syncrun.RunStatusSkipped {
			skipped++
		}
	}
	// at least one run executed; any overlap was excluded, not queued
	assert.Less(t, skipped, workers)
	assert.GreaterOrEqual(t, skipped, 0)
}
