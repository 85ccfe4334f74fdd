package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/replyhero/backend/internal/campaigns"
	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

// GetBirthdaySettings returns the tenant's birthday-campaign settings, or a
// disabled default when none are stored yet.
func (h *Handler) GetBirthdaySettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	tenantID := pathVar(r, "id")
	settings, err := h.campaigns.BirthdaySettings(r.Context(), tenantID)
	if err == store.ErrNotFound {
		writeJSON(w, http.StatusOK, models.BirthdaySettings{TenantID: tenantID})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type birthdaySettingsRequest struct {
	Enabled     bool   `json:"enabled"`
	MessageText string `json:"messageText"`
	OfferText   string `json:"offerText"`
}

func (h *Handler) PutBirthdaySettings(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	var req birthdaySettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled && strings.TrimSpace(req.MessageText) == "" {
		writeError(w, http.StatusBadRequest, "messageText is required when enabled")
		return
	}

	settings, err := h.campaigns.UpsertBirthdaySettings(r.Context(), models.BirthdaySettings{
		TenantID:    pathVar(r, "id"),
		Enabled:     req.Enabled,
		MessageText: req.MessageText,
		OfferText:   req.OfferText,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type eventCatalogEntry struct {
	Key      string                `json:"key"`
	Name     string                `json:"name"`
	Date     string                `json:"date"`
	Campaign *models.EventCampaign `json:"campaign,omitempty"`
}

// ListEventCampaigns merges the marketing calendar with the tenant's stored
// campaign rows for the requested year (default: current year).
func (h *Handler) ListEventCampaigns(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	tenantID := pathVar(r, "id")
	year := time.Now().UTC().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2000 || n > 2200 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = n
	}

	stored, err := h.campaigns.ListEventCampaigns(r.Context(), tenantID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byKey := map[string]models.EventCampaign{}
	for _, c := range stored {
		byKey[c.EventKey] = c
	}

	out := make([]eventCatalogEntry, 0, len(campaigns.Catalog))
	for _, ev := range campaigns.Catalog {
		entry := eventCatalogEntry{
			Key:  ev.Key,
			Name: ev.Name,
			Date: ev.Date(year).Format("2006-01-02"),
		}
		if c, ok := byKey[ev.Key]; ok {
			campaign := c
			entry.Campaign = &campaign
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

type eventCampaignRequest struct {
	Status         string `json:"status"` // "confirmed" or "skipped"
	Year           int    `json:"year"`
	MessageText    string `json:"messageText"`
	OfferText      string `json:"offerText"`
	SendDaysBefore int    `json:"sendDaysBefore"`
}

// PutEventCampaign confirms, edits or skips one tenant×event×year campaign.
// Skipped and sent are terminal; confirmed stays editable until sent.
func (h *Handler) PutEventCampaign(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	tenantID := pathVar(r, "id")
	eventKey := pathVar(r, "key")

	var req eventCampaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Year == 0 {
		req.Year = time.Now().UTC().Year()
	}
	if _, ok := campaigns.EventDate(eventKey, req.Year); !ok {
		writeError(w, http.StatusNotFound, "unknown event key")
		return
	}
	if req.Status != models.EventConfirmed && req.Status != models.EventSkipped {
		writeError(w, http.StatusBadRequest, "status must be confirmed or skipped")
		return
	}
	if req.Status == models.EventConfirmed && strings.TrimSpace(req.MessageText) == "" {
		writeError(w, http.StatusBadRequest, "messageText is required to confirm")
		return
	}
	if req.SendDaysBefore < 0 || req.SendDaysBefore > 60 {
		writeError(w, http.StatusBadRequest, "sendDaysBefore must be between 0 and 60")
		return
	}

	existing, err := h.campaigns.EventCampaign(r.Context(), tenantID, eventKey, req.Year)
	if err != nil && err != store.ErrNotFound {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing != nil {
		switch existing.Status {
		case models.EventSent:
			writeError(w, http.StatusConflict, "campaign already sent")
			return
		case models.EventSkipped:
			writeError(w, http.StatusConflict, "campaign was skipped")
			return
		}
	}

	campaign := models.EventCampaign{
		TenantID:       tenantID,
		EventKey:       eventKey,
		EventYear:      req.Year,
		Status:         req.Status,
		MessageText:    req.MessageText,
		OfferText:      req.OfferText,
		SendDaysBefore: req.SendDaysBefore,
	}
	if existing != nil {
		campaign.ID = existing.ID
	}
	if req.Status == models.EventConfirmed {
		now := time.Now().UTC()
		campaign.ConfirmedAt = &now
	}

	saved, err := h.campaigns.UpsertEventCampaign(r.Context(), campaign)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) ListOneOffCampaigns(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	list, err := h.campaigns.ListOneOffs(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.OneOffCampaign{}
	}
	writeJSON(w, http.StatusOK, list)
}

type oneOffRequest struct {
	SendDate string `json:"sendDate"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

func (h *Handler) CreateOneOffCampaign(w http.ResponseWriter, r *http.Request) {
	if !h.requireCampaignStore(w) {
		return
	}
	var req oneOffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := time.Parse("2006-01-02", req.SendDate); err != nil {
		writeError(w, http.StatusBadRequest, "sendDate must be YYYY-MM-DD")
		return
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "subject and body are required")
		return
	}

	campaign, err := h.campaigns.CreateOneOff(r.Context(), models.OneOffCampaign{
		TenantID: pathVar(r, "id"),
		SendDate: req.SendDate,
		Subject:  req.Subject,
		Body:     req.Body,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}
