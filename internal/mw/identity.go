package mw

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/zerotrust-lab/pep-go/internal/httpx"
	"github.com/zerotrust-lab/pep-go/internal/identity"
)

type invalidToken struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Identity attaches the request subject to the context. No credential
// yields the anonymous subject and the request continues; a presented
// but invalid credential terminates with 401. There is no downgrade
// path from invalid to anonymous.
func Identity(v *identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := httpx.ExtractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r.WithContext(identity.With(r.Context(), identity.Anonymous())))
				return
			}

			sub, err := v.Verify(r.Context(), raw)
			if err != nil {
				slog.Warn("token verification failed", "err", err)
				httpx.WriteJSON(w, http.StatusUnauthorized, invalidToken{
					Error:   "Invalid or expired token",
					Details: err.Error(),
					Hint:    "Please obtain a valid token from the identity provider",
				})
				return
			}

			slog.Info("token verified",
				"user", sub.Username, "roles", strings.Join(sub.Roles, ","))
			next.ServeHTTP(w, r.WithContext(identity.With(r.Context(), sub)))
		})
	}
}
