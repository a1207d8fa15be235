package handlers

import (
	"net/http"

	"github.com/zerotrust-lab/pep-go/internal/httpx"
	"github.com/zerotrust-lab/pep-go/internal/identity"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
	"github.com/zerotrust-lab/pep-go/internal/pdp"
)

// TrustScoreHandler proxies the PDP's trust-score-only endpoint for
// the calling subject. Informational: failure degrades to a neutral
// score, never to a denial.
type TrustScoreHandler struct {
	PDP *pdp.Client
}

func NewTrustScoreHandler(p *pdp.Client) *TrustScoreHandler {
	return &TrustScoreHandler{PDP: p}
}

func (h *TrustScoreHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub := identity.From(r.Context())
	ip := netzone.ClientIP(r)
	result := h.PDP.TrustScore(r.Context(), sub.Username, ip, sub.Roles)
	httpx.WriteJSON(w, http.StatusOK, result)
}
