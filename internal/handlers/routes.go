package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes. Campaign and contact routes go
// through requirePro so Free tenants get a 402 instead of a partial feature.
func RegisterRoutes(h *Handler, r *mux.Router, requirePro func(http.HandlerFunc) http.HandlerFunc) {
	r.HandleFunc("/api/health", h.Health).Methods("GET")

	// Tenant settings and auto-reply
	r.HandleFunc("/api/tenants/{id}", h.GetTenant).Methods("GET")
	r.HandleFunc("/api/tenants/{id}", h.UpsertTenant).Methods("PUT")
	r.HandleFunc("/api/tenants/{id}/auto-reply", h.ToggleAutoReply).Methods("POST")
	r.HandleFunc("/api/tenants/{id}/run-replies", h.RunReplies).Methods("POST")
	r.HandleFunc("/api/tenants/{id}/runs", h.ListReplyRuns).Methods("GET")

	// Contacts and campaigns (Pro only)
	r.HandleFunc("/api/tenants/{id}/contacts", requirePro(h.UploadContacts)).Methods("POST")
	r.HandleFunc("/api/tenants/{id}/contacts", requirePro(h.ListContacts)).Methods("GET")
	r.HandleFunc("/api/tenants/{id}/campaigns/birthday", requirePro(h.GetBirthdaySettings)).Methods("GET")
	r.HandleFunc("/api/tenants/{id}/campaigns/birthday", requirePro(h.PutBirthdaySettings)).Methods("PUT")
	r.HandleFunc("/api/tenants/{id}/campaigns/events", requirePro(h.ListEventCampaigns)).Methods("GET")
	r.HandleFunc("/api/tenants/{id}/campaigns/events/{key}", requirePro(h.PutEventCampaign)).Methods("PUT")
	r.HandleFunc("/api/tenants/{id}/campaigns/oneoff", requirePro(h.ListOneOffCampaigns)).Methods("GET")
	r.HandleFunc("/api/tenants/{id}/campaigns/oneoff", requirePro(h.CreateOneOffCampaign)).Methods("POST")

	// Unsubscribe link target, reachable without auth from campaign email
	r.HandleFunc("/api/unsubscribe", h.Unsubscribe).Methods("GET")

	// Stripe webhook endpoint
	r.HandleFunc("/webhook/stripe", h.StripeWebhook).Methods("POST")
}
