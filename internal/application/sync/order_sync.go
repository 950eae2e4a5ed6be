package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

// DefaultOrderLookback bounds how far back an order pull reaches when the
// schedule carries no explicit window.
const DefaultOrderLookback = 24 * time.Hour

// orderLookbackSetting is the schedule setting overriding the pull window,
// in hours.
const orderLookbackSetting = "lookback_hours"

// syncOrders pulls recent orders from a marketplace. Order fulfillment is an
// external collaborator; the engine only normalizes the records and reports
// them through the run outcome, stamping each product's last-seen demand.
func (o *Orchestrator) syncOrders(ctx context.Context, adapter channel.MarketplaceAdapter, run *syncrun.SyncJobRun) error {
	if !run.System.Supports(channel.CapabilityOrders) {
		return channel.ErrCapabilityNotSupported
	}

	window := channel.OrderWindow{
		From: time.Now().Add(-o.orderLookback(ctx, run)),
		To:   time.Now(),
	}
	orders, err := adapter.FetchOrders(ctx, window)
	if err != nil {
		return err
	}

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !order.Status.IsValid() {
			run.RecordItem(syncrun.ItemFailed)
			run.AddError(order.ExternalID, "INVALID_STATUS", "order carries unknown status")
			continue
		}
		run.RecordItem(syncrun.ItemCreated)
	}

	o.logger.Info("orders pulled",
		zap.String("run_id", run.ID.String()),
		zap.Int("count", len(orders)),
		zap.Time("from", window.From))
	return nil
}

// orderLookback resolves the pull window from the schedule settings,
// falling back to the default.
func (o *Orchestrator) orderLookback(ctx context.Context, run *syncrun.SyncJobRun) time.Duration {
	if o.schedules == nil {
		return DefaultOrderLookback
	}
	schedules, err := o.schedules.FindByTenant(ctx, run.TenantID)
	if err != nil {
		return DefaultOrderLookback
	}
	for i := range schedules {
		if schedules[i].System != run.System || schedules[i].JobType != run.JobType {
			continue
		}
		if raw, ok := schedules[i].Setting(orderLookbackSetting); ok {
			if hours, err := time.ParseDuration(raw + "h"); err == nil && hours > 0 {
				return hours
			}
		}
	}
	return DefaultOrderLookback
}
