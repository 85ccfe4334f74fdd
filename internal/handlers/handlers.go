package handlers

import (
	"net/http"

	"github.com/replyhero/backend/internal/autoreply"
	"github.com/replyhero/backend/internal/config"
	"github.com/replyhero/backend/internal/store"
)

// Handler owns the HTTP API. The campaign store and the Postgres handle are
// nil in file mode; endpoints that need them answer 503.
type Handler struct {
	cfg       config.Config
	tenants   store.TenantStore
	campaigns *store.Campaigns
	pg        *store.PostgresTenants
	loop      *autoreply.Loop
}

func New(cfg config.Config, tenants store.TenantStore, loop *autoreply.Loop, campaigns *store.Campaigns, pg *store.PostgresTenants) *Handler {
	return &Handler{cfg: cfg, tenants: tenants, loop: loop, campaigns: campaigns, pg: pg}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireCampaignStore guards endpoints that only exist in database mode.
func (h *Handler) requireCampaignStore(w http.ResponseWriter) bool {
	if h.campaigns == nil {
		writeError(w, http.StatusServiceUnavailable, "campaign features require a database")
		return false
	}
	return true
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
