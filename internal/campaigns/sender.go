package campaigns

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/replyhero/backend/internal/mailer"
	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

// Sender dispatches birthday, event and one-off campaign email for one
// tenant at a time. Per-contact failures are logged and skipped; they never
// stop the rest of a batch.
type Sender struct {
	Store        *store.Campaigns
	Mailer       mailer.Sender
	PublicOrigin string
	SigningKey   string
	Logger       *log.Logger
}

func (s *Sender) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// UnsubscribeToken signs a (tenant, email) pair for the one-click
// unsubscribe link embedded in every campaign email.
func UnsubscribeToken(key, tenantID, email string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(tenantID + "|" + strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Sender) unsubscribeURL(tenantID, email string) string {
	q := url.Values{}
	q.Set("tenant", tenantID)
	q.Set("email", email)
	q.Set("token", UnsubscribeToken(s.SigningKey, tenantID, email))
	return s.PublicOrigin + "/api/unsubscribe?" + q.Encode()
}

// renderBody wraps personalized text in the minimal HTML shell with the
// compliance footer and unsubscribe link.
func (s *Sender) renderBody(text string, tenant models.Tenant, email string) string {
	var b strings.Builder
	b.WriteString("<div>")
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	b.WriteString("</div><hr>")
	b.WriteString(fmt.Sprintf(
		`<p style="font-size:12px;color:#888">You received this because you are a customer of %s. <a href="%s">Unsubscribe</a></p>`,
		html.EscapeString(tenant.Name), s.unsubscribeURL(tenant.ID, email)))
	return b.String()
}

func (s *Sender) sendOne(ctx context.Context, tenant models.Tenant, contact models.Contact, subject, text string) error {
	msg := mailer.Message{
		To:         *contact.Email,
		Subject:    subject,
		Body:       s.renderBody(text, tenant, *contact.Email),
		TenantName: tenant.Name,
	}
	if tenant.ContactLooksLikeEmail() {
		msg.ReplyTo = strings.TrimSpace(tenant.Contact)
	}
	return s.Mailer.Send(ctx, msg)
}

// SendBirthdays emails every sendable contact whose birthday matches today,
// at most once per tenant per calendar day. The scheduler ticks hourly, so
// the pass records the day it ran and later ticks of the same day are noops.
func (s *Sender) SendBirthdays(ctx context.Context, tenant models.Tenant, today time.Time) (int, error) {
	if !tenant.IsPro {
		return 0, nil
	}
	settings, err := s.Store.BirthdaySettings(ctx, tenant.ID)
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !settings.Enabled || strings.TrimSpace(settings.MessageText) == "" {
		return 0, nil
	}
	if settings.LastSentAt != nil && SameDay(*settings.LastSentAt, today) {
		return 0, nil
	}

	contacts, err := s.Store.SendableContacts(ctx, tenant.ID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, contact := range contacts {
		if contact.Birthday == nil || !BirthdayMatches(*contact.Birthday, today) {
			continue
		}
		firstName := ""
		if contact.FirstName != nil {
			firstName = *contact.FirstName
		}
		text := Personalize(settings.MessageText, firstName, settings.OfferText)
		subject := fmt.Sprintf("Happy Birthday from %s!", tenant.Name)
		if err := s.sendOne(ctx, tenant, contact, subject, text); err != nil {
			s.logger().Printf("[Campaigns] birthday tenant=%s to=%s error: %v", tenant.ID, *contact.Email, err)
			continue
		}
		sent++
	}

	if err := s.Store.MarkBirthdayRun(ctx, tenant.ID, today); err != nil {
		return sent, fmt.Errorf("mark birthday run: %w", err)
	}
	if sent > 0 {
		s.logger().Printf("[Campaigns] birthday tenant=%s sent=%d", tenant.ID, sent)
	}
	return sent, nil
}

// SendEventCampaign dispatches one confirmed event campaign to the tenant's
// whole audience, then marks it sent regardless of per-contact outcomes.
// One pass, no retry: a duplicate blast to a full list is worse than a
// silently incomplete one.
func (s *Sender) SendEventCampaign(ctx context.Context, tenant models.Tenant, campaignID string) (int, error) {
	campaign, err := s.Store.EventCampaignByID(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if campaign.Status != models.EventConfirmed || campaign.SentAt != nil {
		return 0, nil
	}
	if !tenant.IsPro {
		return 0, nil
	}

	contacts, err := s.Store.SendableContacts(ctx, tenant.ID)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		// A campaign with no audience is still completed, not retried forever.
		if err := s.Store.MarkEventSent(ctx, campaign.ID); err != nil {
			return 0, err
		}
		s.logger().Printf("[Campaigns] event tenant=%s key=%s sent=0 (no audience)", tenant.ID, campaign.EventKey)
		return 0, nil
	}

	eventName := campaign.EventKey
	for _, ev := range Catalog {
		if ev.Key == campaign.EventKey {
			eventName = ev.Name
		}
	}
	subject := fmt.Sprintf("%s: a note from %s", eventName, tenant.Name)

	sent := 0
	for _, contact := range contacts {
		firstName := ""
		if contact.FirstName != nil {
			firstName = *contact.FirstName
		}
		text := Personalize(campaign.MessageText, firstName, campaign.OfferText)
		if err := s.sendOne(ctx, tenant, contact, subject, text); err != nil {
			s.logger().Printf("[Campaigns] event tenant=%s key=%s to=%s error: %v", tenant.ID, campaign.EventKey, *contact.Email, err)
			continue
		}
		sent++
	}

	if err := s.Store.MarkEventSent(ctx, campaign.ID); err != nil {
		return sent, fmt.Errorf("mark event campaign sent: %w", err)
	}
	s.logger().Printf("[Campaigns] event tenant=%s key=%s sent=%d/%d", tenant.ID, campaign.EventKey, sent, len(contacts))
	return sent, nil
}

// SendOneOff dispatches one scheduled one-off campaign, same one-pass
// semantics as events but with no confirmation gate.
func (s *Sender) SendOneOff(ctx context.Context, tenant models.Tenant, campaign models.OneOffCampaign) (int, error) {
	if campaign.Status != models.OneOffScheduled {
		return 0, nil
	}
	if !tenant.IsPro {
		return 0, nil
	}

	contacts, err := s.Store.SendableContacts(ctx, tenant.ID)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		if err := s.Store.MarkOneOffSent(ctx, campaign.ID); err != nil {
			return 0, err
		}
		s.logger().Printf("[Campaigns] oneoff tenant=%s id=%s sent=0 (no audience)", tenant.ID, campaign.ID)
		return 0, nil
	}

	sent := 0
	for _, contact := range contacts {
		firstName := ""
		if contact.FirstName != nil {
			firstName = *contact.FirstName
		}
		text := Personalize(campaign.Body, firstName, "")
		if err := s.sendOne(ctx, tenant, contact, campaign.Subject, text); err != nil {
			s.logger().Printf("[Campaigns] oneoff tenant=%s id=%s to=%s error: %v", tenant.ID, campaign.ID, *contact.Email, err)
			continue
		}
		sent++
	}

	if err := s.Store.MarkOneOffSent(ctx, campaign.ID); err != nil {
		return sent, fmt.Errorf("mark one-off campaign sent: %w", err)
	}
	s.logger().Printf("[Campaigns] oneoff tenant=%s id=%s sent=%d/%d", tenant.ID, campaign.ID, sent, len(contacts))
	return sent, nil
}
