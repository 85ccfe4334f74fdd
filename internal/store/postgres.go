package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/replyhero/backend/internal/models"
)

// PostgresTenants implements TenantStore and ReplyStateStore on Postgres.
type PostgresTenants struct {
	db *sql.DB
}

func NewPostgresTenants(db *sql.DB) *PostgresTenants {
	return &PostgresTenants{db: db}
}

const tenantColumns = `id, account_id, location_id, name, contact, auto_reply_enabled,
	       interval_minutes, free_reply_used, trial_ends_at, subscribed_at,
	       stripe_customer_id, is_pro, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*models.Tenant, error) {
	var t models.Tenant
	var interval sql.NullInt64
	var trialEnds, subscribed sql.NullTime
	var stripeCust sql.NullString
	err := row.Scan(&t.ID, &t.AccountID, &t.LocationID, &t.Name, &t.Contact,
		&t.AutoReplyEnabled, &interval, &t.FreeReplyUsed, &trialEnds,
		&subscribed, &stripeCust, &t.IsPro, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if interval.Valid {
		n := int(interval.Int64)
		t.IntervalMinutes = &n
	}
	if trialEnds.Valid {
		t.TrialEndsAt = &trialEnds.Time
	}
	if subscribed.Valid {
		t.SubscribedAt = &subscribed.Time
	}
	if stripeCust.Valid {
		t.StripeCustomerID = &stripeCust.String
	}
	return &t, nil
}

func (s *PostgresTenants) Get(ctx context.Context, id string) (*models.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM public.tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func (s *PostgresTenants) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM public.tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// Upsert inserts or merge-updates a tenant. NULL patch fields keep the stored
// value, mirroring how the whole record is treated as one last-write-wins unit.
func (s *PostgresTenants) Upsert(ctx context.Context, patch models.TenantPatch) (*models.Tenant, error) {
	query := `
		INSERT INTO public.tenants
		  (id, account_id, location_id, name, contact, auto_reply_enabled,
		   interval_minutes, free_reply_used, trial_ends_at, created_at, updated_at)
		VALUES
		  ($1, COALESCE($2, ''), COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''),
		   COALESCE($6, false), $7, COALESCE($8, false), $9, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			account_id = COALESCE($2, public.tenants.account_id),
			location_id = COALESCE($3, public.tenants.location_id),
			name = COALESCE($4, public.tenants.name),
			contact = COALESCE($5, public.tenants.contact),
			auto_reply_enabled = COALESCE($6, public.tenants.auto_reply_enabled),
			interval_minutes = COALESCE($7, public.tenants.interval_minutes),
			free_reply_used = COALESCE($8, public.tenants.free_reply_used),
			trial_ends_at = COALESCE($9, public.tenants.trial_ends_at),
			updated_at = NOW()
		RETURNING ` + tenantColumns
	row := s.db.QueryRowContext(ctx, query, patch.ID, patch.AccountID, patch.LocationID,
		patch.Name, patch.Contact, patch.AutoReplyEnabled, patch.IntervalMinutes,
		patch.FreeReplyUsed, patch.TrialEndsAt)
	return scanTenant(row)
}

func (s *PostgresTenants) SetAutoReply(ctx context.Context, id string, enabled bool) error {
	return s.exec(ctx, `UPDATE public.tenants SET auto_reply_enabled = $2, updated_at = NOW() WHERE id = $1`, id, enabled)
}

func (s *PostgresTenants) SetTrialEndsAt(ctx context.Context, id string, endsAt time.Time) error {
	return s.exec(ctx, `UPDATE public.tenants SET trial_ends_at = $2, updated_at = NOW() WHERE id = $1`, id, endsAt)
}

// SetSubscription overwrites the billing fields wholesale; webhook handlers
// own these three columns.
func (s *PostgresTenants) SetSubscription(ctx context.Context, id string, subscribedAt *time.Time, stripeCustomerID *string, isPro bool) error {
	return s.exec(ctx, `
		UPDATE public.tenants
		   SET subscribed_at = $2, stripe_customer_id = $3, is_pro = $4, updated_at = NOW()
		 WHERE id = $1`, id, subscribedAt, stripeCustomerID, isPro)
}

func (s *PostgresTenants) MarkFreeReplyUsed(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE public.tenants SET free_reply_used = true, updated_at = NOW() WHERE id = $1`, id)
}

func (s *PostgresTenants) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the replied-ID set for one tenant×location, empty when no row
// exists yet.
func (s *PostgresTenants) GetReplyState(ctx context.Context, tenantID, locationID string) (*models.ReplyState, error) {
	state := models.ReplyState{TenantID: tenantID, LocationID: locationID}
	var ids pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT replied_review_ids FROM public.reply_state
		 WHERE tenant_id = $1 AND location_id = $2`, tenantID, locationID).Scan(&ids)
	if err == sql.ErrNoRows {
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	state.RepliedReviewIDs = []string(ids)
	return &state, nil
}

func (s *PostgresTenants) SaveReplyState(ctx context.Context, state models.ReplyState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO public.reply_state (tenant_id, location_id, replied_review_ids, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, location_id) DO UPDATE SET
			replied_review_ids = EXCLUDED.replied_review_ids,
			updated_at = NOW()`,
		state.TenantID, state.LocationID, pq.Array(state.RepliedReviewIDs))
	return err
}

// PostgresReplyStates adapts PostgresTenants to the ReplyStateStore interface.
type PostgresReplyStates struct {
	*PostgresTenants
}

func (s PostgresReplyStates) Get(ctx context.Context, tenantID, locationID string) (*models.ReplyState, error) {
	return s.GetReplyState(ctx, tenantID, locationID)
}

func (s PostgresReplyStates) Save(ctx context.Context, state models.ReplyState) error {
	return s.SaveReplyState(ctx, state)
}

// RecordReplyRun persists one reply-loop summary row for operator visibility.
func (s *PostgresTenants) RecordReplyRun(ctx context.Context, run models.ReplyRun) error {
	if run.ID == "" {
		run.ID = "run_" + randHex(12)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO public.reply_runs (id, tenant_id, attempted, succeeded, failed, triggered_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		run.ID, run.TenantID, run.Attempted, run.Succeeded, run.Failed, run.Trigger)
	return err
}

func (s *PostgresTenants) ListReplyRuns(ctx context.Context, tenantID string, limit int) ([]models.ReplyRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, attempted, succeeded, failed, triggered_by, created_at
		  FROM public.reply_runs
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ReplyRun
	for rows.Next() {
		var r models.ReplyRun
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Attempted, &r.Succeeded, &r.Failed, &r.Trigger, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
