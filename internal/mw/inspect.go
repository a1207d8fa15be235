package mw

import (
	"bytes"
	"io"
	"net/http"

	"github.com/zerotrust-lab/pep-go/internal/httpx"
	"github.com/zerotrust-lab/pep-go/internal/ids"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
)

type blockedAlert struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Category string `json:"category"`
}

type blockedBody struct {
	Error     string         `json:"error"`
	Alerts    []blockedAlert `json:"alerts"`
	BlockedBy string         `json:"blocked_by"`
}

// Inspect runs the intrusion-detection stage. A blocked verdict
// terminates the request before any policy consult or data access;
// everything else, including detector failure, continues.
func Inspect(c *ids.Client, destIP string, destPort int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			d := ids.DescriptorFromRequest(r, netzone.ClientIP(r), destIP, destPort, body)
			result := c.Inspect(r.Context(), d)
			if !result.Blocked {
				next.ServeHTTP(w, r)
				return
			}

			alerts := make([]blockedAlert, 0, len(result.Alerts))
			for _, a := range result.Alerts {
				alerts = append(alerts, blockedAlert{
					Rule:     a.RuleName,
					Severity: a.Severity,
					Category: a.Category,
				})
			}
			httpx.WriteJSON(w, http.StatusForbidden, blockedBody{
				Error:     "Request blocked by Intrusion Detection System",
				Alerts:    alerts,
				BlockedBy: "ids",
			})
		})
	}
}
