package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/replyhero/backend/internal/autoreply"
	"github.com/replyhero/backend/internal/gbp"
	"github.com/replyhero/backend/internal/models"
)

type fakeTenants struct {
	tenants []models.Tenant
	listErr error
}

func (f *fakeTenants) Get(ctx context.Context, id string) (*models.Tenant, error) {
	for i := range f.tenants {
		if f.tenants[i].ID == id {
			return &f.tenants[i], nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeTenants) List(ctx context.Context) ([]models.Tenant, error) {
	return f.tenants, f.listErr
}

func (f *fakeTenants) Upsert(ctx context.Context, patch models.TenantPatch) (*models.Tenant, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTenants) SetAutoReply(ctx context.Context, id string, enabled bool) error { return nil }

func (f *fakeTenants) SetTrialEndsAt(ctx context.Context, id string, endsAt time.Time) error {
	return nil
}

func (f *fakeTenants) SetSubscription(ctx context.Context, id string, subscribedAt *time.Time, stripeCustomerID *string, isPro bool) error {
	return nil
}

func (f *fakeTenants) MarkFreeReplyUsed(ctx context.Context, id string) error { return nil }

type fakeReviews struct {
	perAccount map[string][]gbp.Review // accountID -> reviews
	listErr    map[string]error
	replied    map[string][]string // accountID -> review IDs
}

func (f *fakeReviews) ListReviews(ctx context.Context, accountID, locationID string) ([]gbp.Review, error) {
	if err := f.listErr[accountID]; err != nil {
		return nil, err
	}
	return f.perAccount[accountID], nil
}

func (f *fakeReviews) PostReply(ctx context.Context, accountID, locationID, reviewID, text string) error {
	if f.replied == nil {
		f.replied = map[string][]string{}
	}
	f.replied[accountID] = append(f.replied[accountID], reviewID)
	return nil
}

type fakeComposer struct{}

func (fakeComposer) GenerateReply(ctx context.Context, review gbp.Review, tenantName, contact string) (string, error) {
	return "thanks", nil
}

type memStates struct {
	states map[string]models.ReplyState
}

func (m *memStates) Get(ctx context.Context, tenantID, locationID string) (*models.ReplyState, error) {
	if s, ok := m.states[tenantID+"|"+locationID]; ok {
		return &s, nil
	}
	return &models.ReplyState{TenantID: tenantID, LocationID: locationID}, nil
}

func (m *memStates) Save(ctx context.Context, state models.ReplyState) error {
	if m.states == nil {
		m.states = map[string]models.ReplyState{}
	}
	m.states[state.TenantID+"|"+state.LocationID] = state
	return nil
}

type capturedAlert struct{ subject, detail string }

type fakeAlerts struct {
	alerts []capturedAlert
}

func (f *fakeAlerts) Notify(ctx context.Context, subject, detail string) {
	f.alerts = append(f.alerts, capturedAlert{subject, detail})
}

type fakeRuns struct {
	runs []models.ReplyRun
}

func (f *fakeRuns) RecordReplyRun(ctx context.Context, run models.ReplyRun) error {
	f.runs = append(f.runs, run)
	return nil
}

func allRatings() map[int]bool {
	return map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}
}

func newWorker(tenants *fakeTenants, reviews autoreply.ReviewService) (*AutoReplyWorker, *fakeAlerts, *fakeRuns) {
	alerts := &fakeAlerts{}
	runs := &fakeRuns{}
	w := &AutoReplyWorker{
		Tenants: tenants,
		Loop: &autoreply.Loop{
			Reviews:        reviews,
			Composer:       fakeComposer{},
			States:         &memStates{},
			AllowedRatings: allRatings(),
		},
		Alerts: alerts,
		Runs:   runs,
	}
	return w, alerts, runs
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestRunOnce_SkipsExpiredTrialAndDisabled(t *testing.T) {
	past := ptrTime(time.Now().Add(-24 * time.Hour))
	future := ptrTime(time.Now().Add(24 * time.Hour))
	tenants := &fakeTenants{tenants: []models.Tenant{
		{ID: "expired", AccountID: "a1", LocationID: "l1", AutoReplyEnabled: true, TrialEndsAt: past},
		{ID: "disabled", AccountID: "a2", LocationID: "l2", AutoReplyEnabled: false, TrialEndsAt: future},
		{ID: "active", AccountID: "a3", LocationID: "l3", AutoReplyEnabled: true, TrialEndsAt: future},
		{ID: "subscribed", AccountID: "a4", LocationID: "l4", AutoReplyEnabled: true, TrialEndsAt: past, SubscribedAt: ptrTime(time.Now())},
	}}
	reviews := &fakeReviews{perAccount: map[string][]gbp.Review{
		"a1": {{ID: "x1", Rating: 5}},
		"a2": {{ID: "x2", Rating: 5}},
		"a3": {{ID: "x3", Rating: 5}},
		"a4": {{ID: "x4", Rating: 5}},
	}}
	w, _, _ := newWorker(tenants, reviews)

	if failures := w.RunOnce(context.Background()); failures != 0 {
		t.Fatalf("expected no failures got %d", failures)
	}
	if len(reviews.replied["a1"]) != 0 || len(reviews.replied["a2"]) != 0 {
		t.Fatalf("ineligible tenants must not be processed: %v", reviews.replied)
	}
	if len(reviews.replied["a3"]) != 1 || len(reviews.replied["a4"]) != 1 {
		t.Fatalf("eligible tenants must be processed: %v", reviews.replied)
	}
}

func TestRunOnce_TenantFailureDoesNotStopSiblings(t *testing.T) {
	future := ptrTime(time.Now().Add(24 * time.Hour))
	tenants := &fakeTenants{tenants: []models.Tenant{
		{ID: "bad", AccountID: "a1", LocationID: "l1", AutoReplyEnabled: true, TrialEndsAt: future},
		{ID: "good", AccountID: "a2", LocationID: "l2", AutoReplyEnabled: true, TrialEndsAt: future},
	}}
	reviews := &fakeReviews{
		perAccount: map[string][]gbp.Review{"a2": {{ID: "x", Rating: 5}}},
		listErr:    map[string]error{"a1": errors.New("429 rate limited")},
	}
	w, alerts, _ := newWorker(tenants, reviews)

	failures := w.RunOnce(context.Background())
	if failures != 1 {
		t.Fatalf("expected 1 failure got %d", failures)
	}
	if len(reviews.replied["a2"]) != 1 {
		t.Fatalf("second tenant must still be processed: %v", reviews.replied)
	}
	if len(alerts.alerts) != 1 {
		t.Fatalf("expected one alert got %d", len(alerts.alerts))
	}
}

func TestRunOnce_FallbackTenantWhenNoneEligible(t *testing.T) {
	tenants := &fakeTenants{}
	reviews := &fakeReviews{perAccount: map[string][]gbp.Review{
		"legacy-acc": {{ID: "r1", Rating: 5}},
	}}
	w, _, runs := newWorker(tenants, reviews)
	w.FallbackAccountID = "legacy-acc"
	w.FallbackLocationID = "legacy-loc"

	if failures := w.RunOnce(context.Background()); failures != 0 {
		t.Fatalf("expected no failures got %d", failures)
	}
	if len(reviews.replied["legacy-acc"]) != 1 {
		t.Fatalf("expected fallback pair processed: %v", reviews.replied)
	}
	if len(runs.runs) != 1 || runs.runs[0].TenantID != "legacy" {
		t.Fatalf("expected run recorded for legacy tenant got %+v", runs.runs)
	}
}

func TestRunOnce_NoFallbackWhenTenantsEligible(t *testing.T) {
	future := ptrTime(time.Now().Add(24 * time.Hour))
	tenants := &fakeTenants{tenants: []models.Tenant{
		{ID: "t1", AccountID: "a1", LocationID: "l1", AutoReplyEnabled: true, TrialEndsAt: future},
	}}
	reviews := &fakeReviews{perAccount: map[string][]gbp.Review{}}
	w, _, _ := newWorker(tenants, reviews)
	w.FallbackAccountID = "legacy-acc"
	w.FallbackLocationID = "legacy-loc"

	w.RunOnce(context.Background())
	if len(reviews.replied["legacy-acc"]) != 0 {
		t.Fatalf("fallback must not run alongside stored tenants")
	}
}

func TestRunOnce_PartialFailureAlertsAndRecords(t *testing.T) {
	future := ptrTime(time.Now().Add(24 * time.Hour))
	tenants := &fakeTenants{tenants: []models.Tenant{
		{ID: "t1", AccountID: "a1", LocationID: "l1", AutoReplyEnabled: true, TrialEndsAt: future},
	}}
	reviews := &failingSecondReview{}
	w, alerts, runs := newWorker(tenants, reviews)

	failures := w.RunOnce(context.Background())
	if failures != 1 {
		t.Fatalf("expected 1 failure got %d", failures)
	}
	if len(alerts.alerts) != 1 {
		t.Fatalf("expected partial-failure alert got %d", len(alerts.alerts))
	}
	if len(runs.runs) != 1 || runs.runs[0].Failed != 1 || runs.runs[0].Succeeded != 1 {
		t.Fatalf("expected run 1/1 recorded got %+v", runs.runs)
	}
}

type failingSecondReview struct{}

func (failingSecondReview) ListReviews(ctx context.Context, accountID, locationID string) ([]gbp.Review, error) {
	return []gbp.Review{{ID: "ok", Rating: 5}, {ID: "bad", Rating: 5}}, nil
}

func (failingSecondReview) PostReply(ctx context.Context, accountID, locationID, reviewID, text string) error {
	if reviewID == "bad" {
		return errors.New("500 internal")
	}
	return nil
}
