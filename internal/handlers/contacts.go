package handlers

import (
	"crypto/hmac"
	"net/http"

	"github.com/replyhero/backend/internal/campaigns"
	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

type uploadContactsRequest struct {
	Contacts []models.ContactUpload `json:"contacts"`
}

// UploadContacts replaces a tenant's full contact list with the uploaded
// rows (CSV column mapping happens client-side). Unsubscribe state carries
// forward by email across uploads.
func (h *Handler) UploadContacts(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	tenantID := pathVar(r, "id")

	var req uploadContactsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Contacts) == 0 {
		writeError(w, http.StatusBadRequest, "contacts list is empty")
		return
	}

	inserted, err := h.campaigns.ReplaceContacts(r.Context(), tenantID, req.Contacts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": inserted})
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	contacts, err := h.campaigns.ListContacts(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

// Unsubscribe handles the one-click link embedded in campaign email. The
// token is an HMAC over (tenant, email) so the link cannot be forged to opt
// out someone else.
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	tenantID := r.URL.Query().Get("tenant")
	email := r.URL.Query().Get("email")
	token := r.URL.Query().Get("token")
	if tenantID == "" || email == "" || token == "" {
		writeError(w, http.StatusBadRequest, "tenant, email and token are required")
		return
	}

	want := campaigns.UnsubscribeToken(h.cfg.UnsubscribeKey, tenantID, email)
	if !hmac.Equal([]byte(want), []byte(token)) {
		writeError(w, http.StatusForbidden, "invalid unsubscribe token")
		return
	}

	err := h.campaigns.Unsubscribe(r.Context(), tenantID, email)
	if err == store.ErrNotFound {
		// Already unsubscribed or unknown: either way the outcome the
		// clicker wants is true.
		writeJSON(w, http.StatusOK, map[string]bool{"unsubscribed": true})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unsubscribed": true})
}
