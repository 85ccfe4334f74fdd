package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/replyhero/backend/internal/store"
)

// PlanEnforcer gates campaign features behind the Pro plan. The tenant ID is
// taken from the route's {id} variable.
type PlanEnforcer struct {
	Tenants store.TenantStore
}

func NewPlanEnforcer(tenants store.TenantStore) *PlanEnforcer {
	return &PlanEnforcer{Tenants: tenants}
}

// RequirePro wraps a handler and rejects requests for tenants that are not on
// the Pro plan with 402 Payment Required.
func (pe *PlanEnforcer) RequirePro(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["id"]
		if tenantID == "" {
			next(w, r)
			return
		}

		tenant, err := pe.Tenants.Get(r.Context(), tenantID)
		if err == store.ErrNotFound {
			pe.respondUpgradeRequired(w)
			return
		}
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		if !tenant.IsPro {
			pe.respondUpgradeRequired(w)
			return
		}

		next(w, r)
	}
}

func (pe *PlanEnforcer) respondUpgradeRequired(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)

	response := map[string]interface{}{
		"error":       "pro_plan_required",
		"message":     "Email campaigns are available on the Pro plan",
		"upgrade_url": "/account/billing",
	}
	json.NewEncoder(w).Encode(response)
}
