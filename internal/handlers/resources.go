package handlers

import (
	"net/http"

	"github.com/zerotrust-lab/pep-go/internal/httpx"
	"github.com/zerotrust-lab/pep-go/internal/identity"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
	"github.com/zerotrust-lab/pep-go/internal/pdp"
	"github.com/zerotrust-lab/pep-go/internal/store"
)

// ResourceHandler gates every read behind a PDP decision and forwards
// approved queries to the data store. Order per request is fixed:
// policy consult first, data access only on an exact allow.
type ResourceHandler struct {
	PDP   *pdp.Client
	DB    store.Querier
	Zones *netzone.Classifier
}

func NewResourceHandler(p *pdp.Client, db store.Querier, zones *netzone.Classifier) *ResourceHandler {
	return &ResourceHandler{PDP: p, DB: db, Zones: zones}
}

// evaluate runs the policy consult for one resource/action pair and
// writes the denial envelope when the decision is anything but allow.
func (h *ResourceHandler) evaluate(w http.ResponseWriter, r *http.Request, resourceType, action string) (pdp.Decision, bool) {
	sub := identity.From(r.Context())
	ip := netzone.ClientIP(r)
	zone := h.Zones.Classify(ip)

	decision := h.PDP.Evaluate(r.Context(), sub, ip, zone, resourceType, action)
	if !decision.Allowed() {
		httpx.WriteJSON(w, http.StatusForbidden, httpx.Denial{
			Error:      "Access denied",
			Reason:     decision.Reason,
			TrustScore: decision.TrustScore,
		})
		return decision, false
	}
	return decision, true
}

// List serves one list-style resource.
func (h *ResourceHandler) List(res store.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, ok := h.evaluate(w, r, res.Type, "read")
		if !ok {
			return
		}

		rows, err := h.DB.Query(r.Context(), res.SQL)
		if err != nil {
			// Store internals stay in the logs; the client gets the
			// message string only, and the policy verdict stands.
			httpx.WriteError(w, http.StatusInternalServerError, httpx.SafeErrMsg(err))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{
			Success:    true,
			Count:      len(rows),
			Data:       rows,
			TrustScore: decision.TrustScore,
		})
	}
}

type statsEnvelope struct {
	Success    bool             `json:"success"`
	Data       map[string]int64 `json:"data"`
	TrustScore *float64         `json:"trust_score,omitempty"`
}

// Stats serves the aggregate counts resource.
func (h *ResourceHandler) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, ok := h.evaluate(w, r, "stats", "read")
		if !ok {
			return
		}

		counts := make(map[string]int64, len(store.StatQueries))
		for name, q := range store.StatQueries {
			n, err := h.DB.Count(r.Context(), q)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, httpx.SafeErrMsg(err))
				return
			}
			counts[name] = n
		}
		httpx.WriteJSON(w, http.StatusOK, statsEnvelope{
			Success:    true,
			Data:       counts,
			TrustScore: decision.TrustScore,
		})
	}
}
