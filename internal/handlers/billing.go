package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/replyhero/backend/internal/models"
)

// StripeWebhook consumes billing events and writes the three tenant billing
// fields (subscribedAt, stripeCustomerId, isPro). Checkout sessions carry the
// tenant ID in client_reference_id; subscription events carry it in metadata
// or resolve through the stored customer ID.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Billing][Webhook] read error: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	webhookSecret := h.cfg.StripeWebhookSecret
	var event stripe.Event
	if webhookSecret == "" {
		log.Printf("[Billing][Webhook] STRIPE_WEBHOOK_SECRET not set, skipping signature verification")
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("[Billing][Webhook] unmarshal error: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	} else {
		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			writeError(w, http.StatusBadRequest, "Missing signature")
			return
		}
		event, err = webhook.ConstructEvent(payload, sig, webhookSecret)
		if err != nil {
			log.Printf("[Billing][Webhook] signature verification error: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
	}

	h.processStripeEvent(r.Context(), event)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) processStripeEvent(ctx context.Context, event stripe.Event) {
	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionEvent(ctx, event)
	case "customer.subscription.deleted":
		h.handleSubscriptionCancellation(ctx, event)
	default:
		log.Printf("[Billing][Webhook] ignoring event type=%s", event.Type)
	}
}

func (h *Handler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Printf("[Billing][Webhook] checkout parse error: %v", err)
		return
	}
	tenantID := session.ClientReferenceID
	if tenantID == "" {
		log.Printf("[Billing][Webhook] checkout session %s has no client_reference_id", session.ID)
		return
	}

	var customerID *string
	if session.Customer != nil && session.Customer.ID != "" {
		customerID = &session.Customer.ID
	}
	now := time.Now().UTC()
	// isPro is settled by the subscription event that follows; checkout only
	// records that a subscription exists.
	tenant, err := h.tenants.Get(ctx, tenantID)
	if err != nil {
		log.Printf("[Billing][Webhook] checkout: tenant %s lookup error: %v", tenantID, err)
		return
	}
	if err := h.tenants.SetSubscription(ctx, tenantID, &now, customerID, tenant.IsPro); err != nil {
		log.Printf("[Billing][Webhook] checkout: tenant %s update error: %v", tenantID, err)
		return
	}
	log.Printf("[Billing][Webhook] tenant=%s subscribed via checkout session %s", tenantID, session.ID)
}

func (h *Handler) handleSubscriptionEvent(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Printf("[Billing][Webhook] subscription parse error: %v", err)
		return
	}

	tenant := h.resolveTenant(ctx, sub.Metadata["tenant_id"], sub.Customer)
	if tenant == nil {
		log.Printf("[Billing][Webhook] subscription %s: no matching tenant", sub.ID)
		return
	}

	active := sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing
	isPro := active && h.subscriptionIsPro(sub)

	var subscribedAt *time.Time
	if active {
		at := time.Unix(sub.Created, 0).UTC()
		if tenant.SubscribedAt != nil {
			at = *tenant.SubscribedAt
		}
		subscribedAt = &at
	}
	var customerID *string
	if sub.Customer != nil && sub.Customer.ID != "" {
		customerID = &sub.Customer.ID
	} else {
		customerID = tenant.StripeCustomerID
	}

	if err := h.tenants.SetSubscription(ctx, tenant.ID, subscribedAt, customerID, isPro); err != nil {
		log.Printf("[Billing][Webhook] subscription: tenant %s update error: %v", tenant.ID, err)
		return
	}
	log.Printf("[Billing][Webhook] tenant=%s subscription=%s status=%s isPro=%t", tenant.ID, sub.ID, sub.Status, isPro)
}

func (h *Handler) handleSubscriptionCancellation(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Printf("[Billing][Webhook] cancellation parse error: %v", err)
		return
	}
	tenant := h.resolveTenant(ctx, sub.Metadata["tenant_id"], sub.Customer)
	if tenant == nil {
		log.Printf("[Billing][Webhook] cancellation %s: no matching tenant", sub.ID)
		return
	}
	// Keep the customer ID so a resubscribe reuses it.
	if err := h.tenants.SetSubscription(ctx, tenant.ID, nil, tenant.StripeCustomerID, false); err != nil {
		log.Printf("[Billing][Webhook] cancellation: tenant %s update error: %v", tenant.ID, err)
		return
	}
	log.Printf("[Billing][Webhook] tenant=%s subscription canceled", tenant.ID)
}

// subscriptionIsPro checks the subscription items against the configured Pro
// price; with no price configured, any active subscription counts as Pro.
func (h *Handler) subscriptionIsPro(sub stripe.Subscription) bool {
	if h.cfg.StripeProPriceID == "" {
		return true
	}
	if sub.Items == nil {
		return false
	}
	for _, item := range sub.Items.Data {
		if item.Price != nil && item.Price.ID == h.cfg.StripeProPriceID {
			return true
		}
	}
	return false
}

// resolveTenant finds the tenant by metadata ID first, then by scanning for
// the stored Stripe customer ID.
func (h *Handler) resolveTenant(ctx context.Context, metadataID string, customer *stripe.Customer) *models.Tenant {
	if metadataID != "" {
		if t, err := h.tenants.Get(ctx, metadataID); err == nil {
			return t
		}
	}
	if customer == nil || customer.ID == "" {
		return nil
	}
	tenants, err := h.tenants.List(ctx)
	if err != nil {
		log.Printf("[Billing][Webhook] tenant scan error: %v", err)
		return nil
	}
	for i := range tenants {
		if tenants[i].StripeCustomerID != nil && *tenants[i].StripeCustomerID == customer.ID {
			return &tenants[i]
		}
	}
	return nil
}
