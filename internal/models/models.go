package models

import (
	"strings"
	"time"
)

// TrialDays is how long a newly connected business can use auto-reply before
// subscribing.
const TrialDays = 30

// Tenant is one connected business. AccountID/LocationID come from the
// review-platform OAuth flow and identify the business profile we act on.
type Tenant struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"accountId"`
	LocationID       string     `json:"locationId"`
	Name             string     `json:"name"`
	Contact          string     `json:"contact"`
	AutoReplyEnabled bool       `json:"autoReplyEnabled"`
	IntervalMinutes  *int       `json:"intervalMinutes,omitempty"`
	FreeReplyUsed    bool       `json:"freeReplyUsed"`
	TrialEndsAt      *time.Time `json:"trialEndsAt,omitempty"`
	SubscribedAt     *time.Time `json:"subscribedAt,omitempty"`
	StripeCustomerID *string    `json:"stripeCustomerId,omitempty"`
	IsPro            bool       `json:"isPro"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TrialExpired reports whether the tenant's trial is over and no subscription
// exists. Tenants with no trialEndsAt yet (not backfilled) are not expired.
func (t Tenant) TrialExpired(now time.Time) bool {
	if t.SubscribedAt != nil {
		return false
	}
	return t.TrialEndsAt != nil && t.TrialEndsAt.Before(now)
}

// EligibleForAutoReply is the scheduler's per-tenant gate: auto-reply must be
// on and the tenant must be in trial or subscribed.
func (t Tenant) EligibleForAutoReply(now time.Time) bool {
	return t.AutoReplyEnabled && !t.TrialExpired(now)
}

// ContactLooksLikeEmail reports whether the free-text contact field can be
// used as a campaign reply-to address.
func (t Tenant) ContactLooksLikeEmail() bool {
	c := strings.TrimSpace(t.Contact)
	at := strings.Index(c, "@")
	return at > 0 && strings.Contains(c[at:], ".") && !strings.ContainsAny(c, " \t")
}

// TenantPatch is a partial tenant update. Nil fields preserve the prior
// record's value; non-nil fields win. Billing fields are written through
// dedicated store methods, not through patches.
type TenantPatch struct {
	ID               string     `json:"id"`
	AccountID        *string    `json:"accountId,omitempty"`
	LocationID       *string    `json:"locationId,omitempty"`
	Name             *string    `json:"name,omitempty"`
	Contact          *string    `json:"contact,omitempty"`
	AutoReplyEnabled *bool      `json:"autoReplyEnabled,omitempty"`
	IntervalMinutes  *int       `json:"intervalMinutes,omitempty"`
	FreeReplyUsed    *bool      `json:"freeReplyUsed,omitempty"`
	TrialEndsAt      *time.Time `json:"trialEndsAt,omitempty"`
}

// MergeTenant applies patch on top of prior. Precedence: incoming non-nil
// field wins, else the prior value, else the type's zero value.
func MergeTenant(prior Tenant, patch TenantPatch) Tenant {
	out := prior
	out.ID = patch.ID
	if patch.AccountID != nil {
		out.AccountID = *patch.AccountID
	}
	if patch.LocationID != nil {
		out.LocationID = *patch.LocationID
	}
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Contact != nil {
		out.Contact = *patch.Contact
	}
	if patch.AutoReplyEnabled != nil {
		out.AutoReplyEnabled = *patch.AutoReplyEnabled
	}
	if patch.IntervalMinutes != nil {
		out.IntervalMinutes = patch.IntervalMinutes
	}
	if patch.FreeReplyUsed != nil {
		out.FreeReplyUsed = *patch.FreeReplyUsed
	}
	if patch.TrialEndsAt != nil {
		out.TrialEndsAt = patch.TrialEndsAt
	}
	return out
}

// ReplyState is the durable set of review IDs already answered for one
// tenant×location. IDs are only ever added, never removed.
type ReplyState struct {
	TenantID         string   `json:"tenantId"`
	LocationID       string   `json:"locationId"`
	RepliedReviewIDs []string `json:"repliedReviewIds"`
}

// Contains reports whether reviewID already received a reply.
func (s ReplyState) Contains(reviewID string) bool {
	for _, id := range s.RepliedReviewIDs {
		if id == reviewID {
			return true
		}
	}
	return false
}

// Add records reviewID as replied (no-op when already present).
func (s *ReplyState) Add(reviewID string) {
	if !s.Contains(reviewID) {
		s.RepliedReviewIDs = append(s.RepliedReviewIDs, reviewID)
	}
}

// Contact is one row of a tenant's uploaded customer list. Rows without an
// email are retained but never sendable.
type Contact struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	Email          *string    `json:"email,omitempty"`
	FirstName      *string    `json:"firstName,omitempty"`
	Birthday       *string    `json:"birthday,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ContactUpload is one already-parsed row from a list upload (CSV column
// mapping happens upstream).
type ContactUpload struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	Birthday  *string `json:"birthday,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// BirthdaySettings is a tenant's birthday-campaign configuration (at most one
// row per tenant).
type BirthdaySettings struct {
	TenantID    string     `json:"tenantId"`
	Enabled     bool       `json:"enabled"`
	MessageText string     `json:"messageText"`
	OfferText   string     `json:"offerText"`
	LastSentAt  *time.Time `json:"lastSentAt,omitempty"` // date of the last birthday pass
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Event campaign statuses.
const (
	EventPending   = "pending"
	EventConfirmed = "confirmed"
	EventSkipped   = "skipped"
	EventSent      = "sent"
)

// EventCampaign is one tenant's campaign for one calendar event in one year.
type EventCampaign struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	EventKey       string     `json:"eventKey"`
	EventYear      int        `json:"eventYear"`
	Status         string     `json:"status"`
	MessageText    string     `json:"messageText"`
	OfferText      string     `json:"offerText"`
	SendDaysBefore int        `json:"sendDaysBefore"`
	ConfirmedAt    *time.Time `json:"confirmedAt,omitempty"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// One-off campaign statuses.
const (
	OneOffScheduled = "scheduled"
	OneOffSent      = "sent"
)

// OneOffCampaign is a single-fire campaign a tenant scheduled for a date.
// SendDate is a calendar date in YYYY-MM-DD form (no time component).
type OneOffCampaign struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	SendDate  string     `json:"sendDate"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ReplyRun is the persisted summary of one per-tenant reply-loop run, the
// operator's only synchronous visibility into the background loops.
type ReplyRun struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Trigger   string    `json:"trigger"` // "scheduler" or "manual"
	CreatedAt time.Time `json:"createdAt"`
}
