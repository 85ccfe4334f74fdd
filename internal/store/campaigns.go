package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/replyhero/backend/internal/models"
)

// Campaigns is the Postgres-backed campaign store: contacts, birthday
// settings, event campaigns and one-off campaigns. It has no file-backed
// counterpart; campaign features require a provisioned database.
type Campaigns struct {
	db *sql.DB
}

func NewCampaigns(db *sql.DB) *Campaigns {
	return &Campaigns{db: db}
}

// ReplaceContacts swaps a tenant's entire contact list for the uploaded rows.
// Unsubscribe state carries forward by email: an address that opted out stays
// opted out even when the new upload has no such marker. Rows without an
// email are stored as-is (never sendable, never deduped).
func (c *Campaigns) ReplaceContacts(ctx context.Context, tenantID string, rows []models.ContactUpload) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Snapshot opt-outs before the wipe so they survive the re-import.
	unsubs := map[string]time.Time{}
	prior, err := tx.QueryContext(ctx, `
		SELECT lower(email), unsubscribed_at FROM public.contacts
		 WHERE tenant_id = $1 AND email IS NOT NULL AND unsubscribed_at IS NOT NULL`, tenantID)
	if err != nil {
		return 0, err
	}
	for prior.Next() {
		var email string
		var at time.Time
		if err := prior.Scan(&email, &at); err != nil {
			prior.Close()
			return 0, err
		}
		unsubs[email] = at
	}
	if err := prior.Close(); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM public.contacts WHERE tenant_id = $1`, tenantID); err != nil {
		return 0, err
	}

	inserted := 0
	seen := map[string]bool{}
	for _, row := range rows {
		var unsubscribedAt *time.Time
		if row.Email != nil {
			key := strings.ToLower(strings.TrimSpace(*row.Email))
			if key == "" {
				row.Email = nil
			} else {
				if seen[key] {
					continue
				}
				seen[key] = true
				if at, ok := unsubs[key]; ok {
					unsubscribedAt = &at
				}
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO public.contacts (id, tenant_id, email, first_name, birthday, phone, unsubscribed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
			"ct_"+randHex(12), tenantID, row.Email, row.FirstName, row.Birthday, row.Phone, unsubscribedAt)
		if err != nil {
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

const contactColumns = `id, tenant_id, email, first_name, birthday, phone, unsubscribed_at, created_at`

func scanContact(rows *sql.Rows) (models.Contact, error) {
	var ct models.Contact
	var email, firstName, birthday, phone sql.NullString
	var unsub sql.NullTime
	err := rows.Scan(&ct.ID, &ct.TenantID, &email, &firstName, &birthday, &phone, &unsub, &ct.CreatedAt)
	if err != nil {
		return ct, err
	}
	if email.Valid {
		ct.Email = &email.String
	}
	if firstName.Valid {
		ct.FirstName = &firstName.String
	}
	if birthday.Valid {
		ct.Birthday = &birthday.String
	}
	if phone.Valid {
		ct.Phone = &phone.String
	}
	if unsub.Valid {
		ct.UnsubscribedAt = &unsub.Time
	}
	return ct, nil
}

func (c *Campaigns) listContacts(ctx context.Context, query string, args ...any) ([]models.Contact, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var contacts []models.Contact
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, ct)
	}
	return contacts, rows.Err()
}

func (c *Campaigns) ListContacts(ctx context.Context, tenantID string) ([]models.Contact, error) {
	return c.listContacts(ctx, `
		SELECT `+contactColumns+` FROM public.contacts
		 WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
}

// SendableContacts returns contacts with an email and no opt-out.
func (c *Campaigns) SendableContacts(ctx context.Context, tenantID string) ([]models.Contact, error) {
	return c.listContacts(ctx, `
		SELECT `+contactColumns+` FROM public.contacts
		 WHERE tenant_id = $1 AND email IS NOT NULL AND unsubscribed_at IS NULL
		 ORDER BY created_at ASC`, tenantID)
}

// Unsubscribe sets the opt-out timestamp for every row matching the email.
func (c *Campaigns) Unsubscribe(ctx context.Context, tenantID, email string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE public.contacts SET unsubscribed_at = NOW()
		 WHERE tenant_id = $1 AND lower(email) = lower($2) AND unsubscribed_at IS NULL`,
		tenantID, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBirthdaySettings(row interface{ Scan(...any) error }) (*models.BirthdaySettings, error) {
	var s models.BirthdaySettings
	var lastSent sql.NullTime
	err := row.Scan(&s.TenantID, &s.Enabled, &s.MessageText, &s.OfferText, &lastSent, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastSent.Valid {
		s.LastSentAt = &lastSent.Time
	}
	return &s, nil
}

func (c *Campaigns) BirthdaySettings(ctx context.Context, tenantID string) (*models.BirthdaySettings, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT tenant_id, enabled, message_text, offer_text, last_sent_date, updated_at
		  FROM public.birthday_settings WHERE tenant_id = $1`, tenantID)
	s, err := scanBirthdaySettings(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

func (c *Campaigns) UpsertBirthdaySettings(ctx context.Context, s models.BirthdaySettings) (*models.BirthdaySettings, error) {
	row := c.db.QueryRowContext(ctx, `
		INSERT INTO public.birthday_settings (tenant_id, enabled, message_text, offer_text, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			message_text = EXCLUDED.message_text,
			offer_text = EXCLUDED.offer_text,
			updated_at = NOW()
		RETURNING tenant_id, enabled, message_text, offer_text, last_sent_date, updated_at`,
		s.TenantID, s.Enabled, s.MessageText, s.OfferText)
	return scanBirthdaySettings(row)
}

// MarkBirthdayRun records that the birthday pass ran for the tenant on the
// given day, keeping later ticks of the same day from re-emailing the list.
func (c *Campaigns) MarkBirthdayRun(ctx context.Context, tenantID string, day time.Time) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE public.birthday_settings SET last_sent_date = $2 WHERE tenant_id = $1`,
		tenantID, day.UTC().Format("2006-01-02"))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const eventColumns = `id, tenant_id, event_key, event_year, status, message_text, offer_text,
	       send_days_before, confirmed_at, sent_at, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*models.EventCampaign, error) {
	var ev models.EventCampaign
	var confirmed, sent sql.NullTime
	err := row.Scan(&ev.ID, &ev.TenantID, &ev.EventKey, &ev.EventYear, &ev.Status,
		&ev.MessageText, &ev.OfferText, &ev.SendDaysBefore, &confirmed, &sent,
		&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if confirmed.Valid {
		ev.ConfirmedAt = &confirmed.Time
	}
	if sent.Valid {
		ev.SentAt = &sent.Time
	}
	return &ev, nil
}

func (c *Campaigns) EventCampaign(ctx context.Context, tenantID, eventKey string, year int) (*models.EventCampaign, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM public.event_campaigns
		 WHERE tenant_id = $1 AND event_key = $2 AND event_year = $3`,
		tenantID, eventKey, year)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ev, err
}

func (c *Campaigns) EventCampaignByID(ctx context.Context, id string) (*models.EventCampaign, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM public.event_campaigns WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return ev, err
}

func (c *Campaigns) ListEventCampaigns(ctx context.Context, tenantID string, year int) ([]models.EventCampaign, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM public.event_campaigns
		 WHERE tenant_id = $1 AND event_year = $2
		 ORDER BY event_key ASC`, tenantID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var campaigns []models.EventCampaign
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *ev)
	}
	return campaigns, rows.Err()
}

// UpsertEventCampaign writes one tenant×event×year row. Transitions are
// validated by the caller; a row already marked sent is never overwritten.
func (c *Campaigns) UpsertEventCampaign(ctx context.Context, ev models.EventCampaign) (*models.EventCampaign, error) {
	if ev.ID == "" {
		ev.ID = "ev_" + randHex(12)
	}
	row := c.db.QueryRowContext(ctx, `
		INSERT INTO public.event_campaigns
		  (id, tenant_id, event_key, event_year, status, message_text, offer_text,
		   send_days_before, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (tenant_id, event_key, event_year) DO UPDATE SET
			status = EXCLUDED.status,
			message_text = EXCLUDED.message_text,
			offer_text = EXCLUDED.offer_text,
			send_days_before = EXCLUDED.send_days_before,
			confirmed_at = EXCLUDED.confirmed_at,
			updated_at = NOW()
		WHERE public.event_campaigns.status <> 'sent'
		RETURNING `+eventColumns,
		ev.ID, ev.TenantID, ev.EventKey, ev.EventYear, ev.Status, ev.MessageText,
		ev.OfferText, ev.SendDaysBefore, ev.ConfirmedAt)
	out, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event campaign %s/%s/%d already sent", ev.TenantID, ev.EventKey, ev.EventYear)
	}
	return out, err
}

// ConfirmedUnsentEventCampaigns feeds the campaign scheduler's event step:
// every confirmed, not-yet-sent campaign across all tenants.
func (c *Campaigns) ConfirmedUnsentEventCampaigns(ctx context.Context) ([]models.EventCampaign, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM public.event_campaigns
		 WHERE status = 'confirmed' AND sent_at IS NULL
		 ORDER BY tenant_id, event_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var campaigns []models.EventCampaign
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *ev)
	}
	return campaigns, rows.Err()
}

func (c *Campaigns) MarkEventSent(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE public.event_campaigns
		   SET status = 'sent', sent_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const oneOffColumns = `id, tenant_id, send_date, subject, body, status, sent_at, created_at`

func scanOneOff(row interface{ Scan(...any) error }) (*models.OneOffCampaign, error) {
	var oc models.OneOffCampaign
	var sendDate time.Time
	var sent sql.NullTime
	err := row.Scan(&oc.ID, &oc.TenantID, &sendDate, &oc.Subject, &oc.Body, &oc.Status, &sent, &oc.CreatedAt)
	if err != nil {
		return nil, err
	}
	oc.SendDate = sendDate.Format("2006-01-02")
	if sent.Valid {
		oc.SentAt = &sent.Time
	}
	return &oc, nil
}

func (c *Campaigns) CreateOneOff(ctx context.Context, oc models.OneOffCampaign) (*models.OneOffCampaign, error) {
	if oc.ID == "" {
		oc.ID = "oo_" + randHex(12)
	}
	row := c.db.QueryRowContext(ctx, `
		INSERT INTO public.oneoff_campaigns (id, tenant_id, send_date, subject, body, status, created_at)
		VALUES ($1, $2, $3::date, $4, $5, 'scheduled', NOW())
		RETURNING `+oneOffColumns,
		oc.ID, oc.TenantID, oc.SendDate, oc.Subject, oc.Body)
	return scanOneOff(row)
}

func (c *Campaigns) ListOneOffs(ctx context.Context, tenantID string) ([]models.OneOffCampaign, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+oneOffColumns+` FROM public.oneoff_campaigns
		 WHERE tenant_id = $1 ORDER BY send_date ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var campaigns []models.OneOffCampaign
	for rows.Next() {
		oc, err := scanOneOff(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *oc)
	}
	return campaigns, rows.Err()
}

// DueOneOffs uses an inclusive comparison on purpose: a one-off whose day was
// missed (downtime, deploy) should still fire late, unlike event campaigns
// which match their computed date exactly.
func (c *Campaigns) DueOneOffs(ctx context.Context, today string) ([]models.OneOffCampaign, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+oneOffColumns+` FROM public.oneoff_campaigns
		 WHERE status = 'scheduled' AND send_date <= $1::date
		 ORDER BY send_date ASC`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var campaigns []models.OneOffCampaign
	for rows.Next() {
		oc, err := scanOneOff(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *oc)
	}
	return campaigns, rows.Err()
}

func (c *Campaigns) MarkOneOffSent(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE public.oneoff_campaigns
		   SET status = 'sent', sent_at = NOW()
		 WHERE id = $1 AND status = 'scheduled'`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
