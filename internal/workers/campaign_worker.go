package workers

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/replyhero/backend/internal/campaigns"
	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

// CampaignWorker finds and dispatches every campaign due "today" once per
// hourly tick. It requires the relational store; in file mode it is simply
// never constructed.
type CampaignWorker struct {
	Tenants store.TenantStore
	Store   *store.Campaigns
	Sender  *campaigns.Sender
	Now     func() time.Time // test hook; defaults to time.Now

	cron    *cron.Cron
	running atomic.Bool
}

func (w *CampaignWorker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Start schedules the hourly tick. Due-ness is day-granular for every step:
// events and one-offs transition status when sent and the birthday pass
// records the day it ran, so tick frequency only affects send latency within
// the day, never how often a contact is emailed.
func (w *CampaignWorker) Start(ctx context.Context) error {
	w.cron = cron.New()
	if _, err := w.cron.AddFunc("0 * * * *", func() { w.Tick(ctx) }); err != nil {
		return err
	}
	w.cron.Start()
	log.Printf("[Campaigns] worker started (hourly)")

	go func() {
		<-ctx.Done()
		w.cron.Stop()
		log.Printf("[Campaigns] worker stopped err=%v", ctx.Err())
	}()
	return nil
}

// Tick runs the three scheduler steps. Overlapping ticks are skipped rather
// than queued.
func (w *CampaignWorker) Tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		log.Printf("[Campaigns] tick skipped: previous tick still running")
		return
	}
	defer w.running.Store(false)

	today := w.now()
	tenants, err := w.Tenants.List(ctx)
	if err != nil {
		log.Printf("[Campaigns] tenant list error: %v", err)
		return
	}
	byID := make(map[string]models.Tenant, len(tenants))
	for _, t := range tenants {
		byID[t.ID] = t
	}

	w.stepBirthdays(ctx, tenants, today)
	w.stepEvents(ctx, byID, today)
	w.stepOneOffs(ctx, byID, today)
}

// Step A: birthday campaigns, once per Pro tenant, failures isolated.
func (w *CampaignWorker) stepBirthdays(ctx context.Context, tenants []models.Tenant, today time.Time) {
	for _, tenant := range tenants {
		if !tenant.IsPro {
			continue
		}
		if _, err := w.Sender.SendBirthdays(ctx, tenant, today); err != nil {
			log.Printf("[Campaigns] birthday step tenant=%s error: %v", tenant.ID, err)
		}
	}
}

// Step B: event campaigns fire only when the computed send date equals
// today. A missed day is not made up: an event with a multi-day lead time
// sent late would land too close to (or after) the event itself.
func (w *CampaignWorker) stepEvents(ctx context.Context, tenants map[string]models.Tenant, today time.Time) {
	due, err := w.Store.ConfirmedUnsentEventCampaigns(ctx)
	if err != nil {
		log.Printf("[Campaigns] event query error: %v", err)
		return
	}
	for _, campaign := range due {
		sendDate, ok := campaigns.SendDate(campaign.EventKey, campaign.EventYear, campaign.SendDaysBefore)
		if !ok {
			log.Printf("[Campaigns] event tenant=%s unknown key=%q", campaign.TenantID, campaign.EventKey)
			continue
		}
		if !campaigns.SameDay(sendDate, today) {
			continue
		}
		tenant, ok := tenants[campaign.TenantID]
		if !ok {
			log.Printf("[Campaigns] event id=%s orphaned tenant=%s", campaign.ID, campaign.TenantID)
			continue
		}
		if _, err := w.Sender.SendEventCampaign(ctx, tenant, campaign.ID); err != nil {
			log.Printf("[Campaigns] event step tenant=%s key=%s error: %v", campaign.TenantID, campaign.EventKey, err)
		}
	}
}

// Step C: one-offs use an inclusive send_date <= today match, so a fire date
// missed by downtime still sends on the next tick.
func (w *CampaignWorker) stepOneOffs(ctx context.Context, tenants map[string]models.Tenant, today time.Time) {
	due, err := w.Store.DueOneOffs(ctx, today.UTC().Format("2006-01-02"))
	if err != nil {
		log.Printf("[Campaigns] oneoff query error: %v", err)
		return
	}
	for _, campaign := range due {
		tenant, ok := tenants[campaign.TenantID]
		if !ok {
			log.Printf("[Campaigns] oneoff id=%s orphaned tenant=%s", campaign.ID, campaign.TenantID)
			continue
		}
		if _, err := w.Sender.SendOneOff(ctx, tenant, campaign); err != nil {
			log.Printf("[Campaigns] oneoff step tenant=%s id=%s error: %v", campaign.TenantID, campaign.ID, err)
		}
	}
}
