package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/replyhero/backend/internal/alerts"
	"github.com/replyhero/backend/internal/autoreply"
	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

// RunRecorder persists per-tenant reply-run summaries. Nil in file mode,
// where run history is log-only.
type RunRecorder interface {
	RecordReplyRun(ctx context.Context, run models.ReplyRun) error
}

// AutoReplyWorker drives the reply loop for every eligible tenant on one
// fixed global ticker. Tenants are processed sequentially; one tenant's
// failure is logged and alerted but never stops its siblings.
//
// The per-tenant intervalMinutes field is stored and served over the API but
// deliberately not honored here: the reviewed design runs a single
// process-wide cadence for all tenants.
type AutoReplyWorker struct {
	Tenants  store.TenantStore
	Loop     *autoreply.Loop
	Alerts   alerts.Notifier
	Runs     RunRecorder
	Interval time.Duration

	// Legacy single-tenant pair, processed only when no stored tenant is
	// eligible in a tick.
	FallbackAccountID  string
	FallbackLocationID string
}

// Start runs the worker loop until ctx is canceled. One sweep fires
// immediately so a restart doesn't wait a full interval.
func (w *AutoReplyWorker) Start(ctx context.Context) {
	if w.Interval <= 0 {
		w.Interval = 30 * time.Minute
	}
	log.Printf("[AutoReply] worker started interval=%s", w.Interval)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[AutoReply] worker stopped err=%v", ctx.Err())
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single tick: enumerate eligible tenants and process
// each independently. Returns the number of tenant-level failures.
func (w *AutoReplyWorker) RunOnce(ctx context.Context) int {
	tenants, err := w.Tenants.List(ctx)
	if err != nil {
		log.Printf("[AutoReply] tenant list error: %v", err)
		w.notify(ctx, "auto-reply tick failed", err.Error())
		return 1
	}

	now := time.Now()
	eligible := make([]models.Tenant, 0, len(tenants))
	for _, t := range tenants {
		if t.EligibleForAutoReply(now) {
			eligible = append(eligible, t)
		}
	}

	if len(eligible) == 0 && w.FallbackAccountID != "" && w.FallbackLocationID != "" {
		eligible = append(eligible, models.Tenant{
			ID:         "legacy",
			AccountID:  w.FallbackAccountID,
			LocationID: w.FallbackLocationID,
		})
	}

	failures := 0
	for _, tenant := range eligible {
		result, err := w.Loop.ProcessPendingReviews(ctx, tenant)
		if err != nil {
			failures++
			log.Printf("[AutoReply] tenant=%s tick error: %v", tenant.ID, err)
			w.notify(ctx, fmt.Sprintf("auto-reply failed for %s", tenant.ID), err.Error())
			continue
		}
		if result.Failed > 0 {
			failures++
			w.notify(ctx, fmt.Sprintf("auto-reply partial failure for %s", tenant.ID),
				fmt.Sprintf("%d of %d replies failed", result.Failed, result.Attempted))
		}
		w.recordRun(ctx, tenant.ID, result, "scheduler")
	}
	return failures
}

func (w *AutoReplyWorker) notify(ctx context.Context, subject, detail string) {
	if w.Alerts != nil {
		w.Alerts.Notify(ctx, subject, detail)
	}
}

func (w *AutoReplyWorker) recordRun(ctx context.Context, tenantID string, result *autoreply.Result, trigger string) {
	if w.Runs == nil || result.Attempted == 0 {
		return
	}
	err := w.Runs.RecordReplyRun(ctx, models.ReplyRun{
		TenantID:  tenantID,
		Attempted: result.Attempted,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Trigger:   trigger,
	})
	if err != nil {
		log.Printf("[AutoReply] record run error tenant=%s: %v", tenantID, err)
	}
}
