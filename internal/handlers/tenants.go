package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/replyhero/backend/internal/models"
	"github.com/replyhero/backend/internal/store"
)

// GetTenant returns one tenant record. Page load doubles as enforcement
// point: a missing trialEndsAt is backfilled, and auto-reply is force-
// disabled when the trial has lapsed without a subscription.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")

	tenant, err := h.tenants.Get(r.Context(), id)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	if tenant.TrialEndsAt == nil {
		endsAt := tenant.CreatedAt.AddDate(0, 0, models.TrialDays)
		if tenant.CreatedAt.IsZero() {
			endsAt = now.AddDate(0, 0, models.TrialDays)
		}
		if err := h.tenants.SetTrialEndsAt(r.Context(), id, endsAt); err != nil {
			log.Printf("[Tenants] trial backfill error id=%s: %v", id, err)
		} else {
			tenant.TrialEndsAt = &endsAt
		}
	}

	if tenant.AutoReplyEnabled && tenant.TrialExpired(now) {
		if err := h.tenants.SetAutoReply(r.Context(), id, false); err != nil {
			log.Printf("[Tenants] trial enforcement error id=%s: %v", id, err)
		} else {
			tenant.AutoReplyEnabled = false
			log.Printf("[Tenants] auto-reply disabled id=%s: trial expired without subscription", id)
		}
	}

	writeJSON(w, http.StatusOK, tenant)
}

// UpsertTenant merge-updates a tenant record; fields absent from the body
// keep their stored values.
func (h *Handler) UpsertTenant(w http.ResponseWriter, r *http.Request) {
	var patch models.TenantPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch.ID = pathVar(r, "id")
	if patch.ID == "" {
		writeError(w, http.StatusBadRequest, "tenant id is required")
		return
	}

	tenant, err := h.tenants.Upsert(r.Context(), patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

type toggleAutoReplyRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleAutoReply flips the auto-reply switch. Turning it on is rejected for
// tenants whose trial lapsed without a subscription; turning it off is
// always allowed.
func (h *Handler) ToggleAutoReply(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")

	var req toggleAutoReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.tenants.Get(r.Context(), id)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Enabled && tenant.TrialExpired(time.Now()) {
		writeError(w, http.StatusPaymentRequired, "trial expired: subscribe to enable auto-reply")
		return
	}

	if err := h.tenants.SetAutoReply(r.Context(), id, req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"autoReplyEnabled": req.Enabled})
}

// RunReplies triggers the reply loop for one tenant synchronously and
// returns the per-review summary. With ?free=1 it consumes the one-time
// free-trial reply allowance.
func (h *Handler) RunReplies(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")

	tenant, err := h.tenants.Get(r.Context(), id)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	free := r.URL.Query().Get("free") == "1"
	if free {
		if tenant.FreeReplyUsed {
			writeError(w, http.StatusConflict, "free reply already used")
			return
		}
	} else if !tenant.EligibleForAutoReply(time.Now()) && tenant.TrialExpired(time.Now()) {
		writeError(w, http.StatusPaymentRequired, "trial expired: subscribe to run replies")
		return
	}

	result, err := h.loop.ProcessPendingReviews(r.Context(), *tenant)
	if err != nil {
		writeError(w, http.StatusBadGateway, truncate(err.Error(), 500))
		return
	}

	if free && result.Succeeded > 0 {
		if err := h.tenants.MarkFreeReplyUsed(r.Context(), id); err != nil {
			log.Printf("[Tenants] mark free reply error id=%s: %v", id, err)
		}
	}
	if h.pg != nil && result.Attempted > 0 {
		err := h.pg.RecordReplyRun(r.Context(), models.ReplyRun{
			TenantID:  id,
			Attempted: result.Attempted,
			Succeeded: result.Succeeded,
			Failed:    result.Failed,
			Trigger:   "manual",
		})
		if err != nil {
			log.Printf("[Tenants] record run error id=%s: %v", id, err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// ListReplyRuns returns recent reply-run summaries for one tenant.
func (h *Handler) ListReplyRuns(w http.ResponseWriter, r *http.Request) {
	if h.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "run history requires a database")
		return
	}
	runs, err := h.pg.ListReplyRuns(r.Context(), pathVar(r, "id"), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []models.ReplyRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
