package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/replyhero/backend/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TenantStore is the backend-agnostic tenant persistence contract. Both the
// Postgres and the JSON-file implementation expose identical merge-upsert
// semantics: fields absent from a patch keep the prior record's value.
type TenantStore interface {
	Get(ctx context.Context, id string) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Upsert(ctx context.Context, patch models.TenantPatch) (*models.Tenant, error)
	SetAutoReply(ctx context.Context, id string, enabled bool) error
	SetTrialEndsAt(ctx context.Context, id string, endsAt time.Time) error
	SetSubscription(ctx context.Context, id string, subscribedAt *time.Time, stripeCustomerID *string, isPro bool) error
	MarkFreeReplyUsed(ctx context.Context, id string) error
}

// ReplyStateStore persists the replied-review-ID set per tenant×location.
// Get returns an empty set (not ErrNotFound) when no record exists yet.
type ReplyStateStore interface {
	Get(ctx context.Context, tenantID, locationID string) (*models.ReplyState, error)
	Save(ctx context.Context, state models.ReplyState) error
}

func randHex(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
