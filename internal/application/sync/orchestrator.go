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
	"github.com/catalogsync/backend/internal/domain/stock"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

const (
	// DefaultLockTTL bounds how long a crashed run can hold its key
	DefaultLockTTL = 30 * time.Minute
	// DefaultPageRetryAttempts bounds transient retries of one catalog page
	DefaultPageRetryAttempts = 3
	// DefaultPageRetryBackoff is the initial retry delay, doubled per attempt
	DefaultPageRetryBackoff = time.Second
)

// Orchestrator drives the pull -> map -> diff -> apply cycle for one
// (tenant, system, job type) key at a time. Overlap on the same key is
// excluded by an advisory lock; different keys run fully in parallel.
// Partial progress is never rolled back.
type Orchestrator struct {
	registry  channel.AdapterRegistry
	configs   channel.ExternalSystemConfigRepository
	products  catalog.ProductRepository
	prices    catalog.PriceRepository
	stocks    stock.Repository
	runs      syncrun.SyncJobRunRepository
	schedules syncrun.ScheduleRepository
	locker    syncrun.RunLocker
	resolver  *mapping.Resolver
	publisher shared.EventPublisher
	lockTTL   time.Duration
	logger    *zap.Logger

	pageRetryAttempts int
	pageRetryBackoff  time.Duration
}

// NewOrchestrator wires the sync cycle dependencies
func NewOrchestrator(
	registry channel.AdapterRegistry,
	configs channel.ExternalSystemConfigRepository,
	products catalog.ProductRepository,
	prices catalog.PriceRepository,
	stocks stock.Repository,
	runs syncrun.SyncJobRunRepository,
	schedules syncrun.ScheduleRepository,
	locker syncrun.RunLocker,
	resolver *mapping.Resolver,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:  registry,
		configs:   configs,
		products:  products,
		prices:    prices,
		stocks:    stocks,
		runs:      runs,
		schedules: schedules,
		locker:    locker,
		resolver:  resolver,
		publisher: publisher,
		lockTTL:   DefaultLockTTL,
		logger:    logger,

		pageRetryAttempts: DefaultPageRetryAttempts,
		pageRetryBackoff:  DefaultPageRetryBackoff,
	}
}

// Configure overrides the lock TTL and page retry policy. Zero values
// keep the current setting.
func (o *Orchestrator) Configure(lockTTL time.Duration, pageRetryAttempts int, pageRetryBackoff time.Duration) {
	if lockTTL > 0 {
		o.lockTTL = lockTTL
	}
	if pageRetryAttempts > 0 {
		o.pageRetryAttempts = pageRetryAttempts
	}
	if pageRetryBackoff > 0 {
		o.pageRetryBackoff = pageRetryBackoff
	}
}

// TriggerSync executes one sync cycle and returns its run record. Every
// trigger produces a run record: lock contention yields a SKIPPED run,
// fatal configuration problems a FAILED one.
func (o *Orchestrator) TriggerSync(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode, jobType syncrun.JobType) (*syncrun.SyncJobRun, error) {
	key := syncrun.RunKey(tenantID, system, jobType)

	acquired, err := o.locker.TryAcquire(ctx, key, o.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", key, err)
	}
	if !acquired {
		run, err := syncrun.NewSkippedRun(tenantID, system, jobType)
		if err != nil {
			return nil, err
		}
		if err := o.saveAndPublish(ctx, run); err != nil {
			return nil, err
		}
		o.logger.Info("sync run skipped, lock contended",
			zap.String("key", key),
			zap.String("run_id", run.ID.String()))
		return run, nil
	}
	defer func() {
		if err := o.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			o.logger.Warn("release run lock failed", zap.String("key", key), zap.Error(err))
		}
	}()

	run, err := syncrun.NewSyncJobRun(tenantID, system, jobType)
	if err != nil {
		return nil, err
	}
	if err := o.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	o.execute(ctx, run)

	if err := o.saveAndPublish(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

// GetRunStatus returns the run record for a run ID
func (o *Orchestrator) GetRunStatus(ctx context.Context, runID uuid.UUID) (*syncrun.SyncJobRun, error) {
	return o.runs.FindByID(ctx, runID)
}

// TestConnection probes the external system without side effects. The
// scheduler calls it before firing a job; the settings surface calls it
// when credentials are saved.
func (o *Orchestrator) TestConnection(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode) (*channel.ConnectionProbe, error) {
	adapter, _, err := o.openAdapter(ctx, tenantID, system)
	if err != nil {
		return nil, err
	}
	return adapter.TestConnection(ctx)
}

// execute performs the cycle body and drives the run record to a terminal
// status. It never returns an error: every failure mode ends up in the run
// report instead.
func (o *Orchestrator) execute(ctx context.Context, run *syncrun.SyncJobRun) {
	started := time.Now()
	o.logger.Info("sync run started",
		zap.String("run_id", run.ID.String()),
		zap.String("tenant_id", run.TenantID.String()),
		zap.String("system", run.System.String()),
		zap.String("job_type", run.JobType.String()))

	adapter, config, err := o.openAdapter(ctx, run.TenantID, run.System)
	if err != nil {
		o.failRun(run, err)
		return
	}

	if err := adapter.Authenticate(ctx); err != nil {
		o.failRun(run, err)
		return
	}

	switch run.JobType {
	case syncrun.JobTypeCatalogSync:
		err = o.syncCatalog(ctx, adapter, run)
	case syncrun.JobTypeStockSync:
		err = o.syncStock(ctx, adapter, config, run)
	case syncrun.JobTypePriceSync:
		err = o.syncPrices(ctx, adapter, run)
	case syncrun.JobTypeOrderSync:
		err = o.syncOrders(ctx, adapter, run)
	case syncrun.JobTypeFullSync:
		err = o.syncFull(ctx, adapter, config, run)
	default:
		err = shared.NewDomainError("INVALID_JOB_TYPE", fmt.Sprintf("Unknown job type: %s", run.JobType))
	}

	if err != nil {
		o.failRun(run, err)
		return
	}

	config.RecordSync(time.Now())
	if err := o.configs.Save(ctx, config); err != nil {
		o.logger.Warn("record last sync time failed", zap.Error(err))
	}

	if err := run.Complete(); err != nil {
		o.logger.Error("complete run failed", zap.Error(err))
		return
	}
	o.logger.Info("sync run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("created", run.Counters.Created),
		zap.Int("updated", run.Counters.Updated),
		zap.Int("unchanged", run.Counters.Unchanged),
		zap.Int("conflicts", run.Counters.Conflicts),
		zap.Int("failed", run.Counters.Failed),
		zap.Duration("took", time.Since(started)))
}

// syncFull chains the phases a full reconciliation needs. Orders are pulled
// only from systems that carry them.
func (o *Orchestrator) syncFull(ctx context.Context, adapter channel.MarketplaceAdapter, config *channel.ExternalSystemConfig, run *syncrun.SyncJobRun) error {
	if err := o.syncCatalog(ctx, adapter, run); err != nil {
		return err
	}
	if err := o.syncStock(ctx, adapter, config, run); err != nil {
		return err
	}
	if err := o.syncPrices(ctx, adapter, run); err != nil {
		return err
	}
	if run.System.Supports(channel.CapabilityOrders) {
		return o.syncOrders(ctx, adapter, run)
	}
	return nil
}

// openAdapter loads and validates the tenant config and builds the adapter
func (o *Orchestrator) openAdapter(ctx context.Context, tenantID uuid.UUID, system channel.SystemCode) (channel.MarketplaceAdapter, *channel.ExternalSystemConfig, error) {
	config, err := o.configs.FindByTenantAndSystem(ctx, tenantID, system)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil, channel.ErrNotConfigured
		}
		return nil, nil, err
	}
	if !config.Enabled {
		return nil, nil, channel.ErrNotEnabled
	}
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	factory, err := o.registry.Factory(system)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := factory.NewAdapter(config)
	if err != nil {
		return nil, nil, err
	}
	return adapter, config, nil
}

// failRun drives the run to FAILED, classifying the cause for the report
func (o *Orchestrator) failRun(run *syncrun.SyncJobRun, cause error) {
	code := "SYNC_FAILED"
	switch {
	case channel.IsAuth(cause):
		code = "AUTH_FAILED"
	case channel.IsTransient(cause):
		code = "TRANSIENT_EXHAUSTED"
	case errors.Is(cause, channel.ErrNotConfigured):
		code = "NOT_CONFIGURED"
	case errors.Is(cause, channel.ErrNotEnabled):
		code = "NOT_ENABLED"
	case errors.Is(cause, context.Canceled):
		code = "CANCELLED"
	}
	if err := run.Fail(code, cause.Error()); err != nil {
		o.logger.Error("fail run", zap.Error(err))
		return
	}
	o.logger.Warn("sync run failed",
		zap.String("run_id", run.ID.String()),
		zap.String("code", code),
		zap.Error(cause))
}

// saveAndPublish persists the run and flushes its outcome events
func (o *Orchestrator) saveAndPublish(ctx context.Context, run *syncrun.SyncJobRun) error {
	if err := o.runs.Save(ctx, run); err != nil {
		return err
	}
	if o.publisher != nil {
		for _, event := range run.GetDomainEvents() {
			if err := o.publisher.Publish(ctx, event); err != nil {
				o.logger.Warn("publish run event failed", zap.Error(err))
			}
		}
	}
	run.ClearDomainEvents()
	return nil
}
