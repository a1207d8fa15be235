package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/zerotrust-lab/pep-go/internal/keys"
)

// Verifier checks bearer credentials against the issuer's published
// keys. A presented-but-invalid credential is an error, never a
// downgrade to anonymous.
type Verifier struct {
	keys    *keys.Source
	issuers []string
}

func NewVerifier(ks *keys.Source, allowedIssuers []string) *Verifier {
	return &Verifier{keys: ks, issuers: allowedIssuers}
}

type joseHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Verify validates the raw compact credential and returns the subject
// it describes. Every failure returns a human-readable cause; the
// caller must reject the request with an authentication failure.
func (v *Verifier) Verify(ctx context.Context, raw string) (Subject, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Subject{}, fmt.Errorf("malformed token: expected 3 segments, got %d", len(parts))
	}

	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Subject{}, fmt.Errorf("malformed token header: %w", err)
	}
	var hdr joseHeader
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return Subject{}, fmt.Errorf("malformed token header: %w", err)
	}

	// Only the expected asymmetric scheme is acceptable. Rejecting
	// everything else up front blocks "none" and algorithm-confusion
	// tokens before any key material is touched.
	if hdr.Alg != "RS256" {
		return Subject{}, fmt.Errorf("unexpected signing algorithm %q", hdr.Alg)
	}
	if hdr.Kid == "" {
		return Subject{}, fmt.Errorf("token header missing kid")
	}

	key, err := v.keys.Lookup(ctx, hdr.Kid)
	if err != nil {
		return Subject{}, fmt.Errorf("resolve signing key: %w", err)
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.RS256(), key),
		jwt.WithValidate(true),
	)
	if err != nil {
		return Subject{}, fmt.Errorf("token verification failed: %w", err)
	}

	iss, ok := tok.Issuer()
	if !ok {
		return Subject{}, fmt.Errorf("token missing issuer")
	}
	if !v.allowedIssuer(iss) {
		return Subject{}, fmt.Errorf("untrusted issuer %q", iss)
	}

	return subjectFromClaims(tok), nil
}

func (v *Verifier) allowedIssuer(iss string) bool {
	for _, a := range v.issuers {
		if iss == a {
			return true
		}
	}
	return false
}

func subjectFromClaims(tok jwt.Token) Subject {
	s := Subject{Verified: true, Roles: []string{}}

	if err := tok.Get("preferred_username", &s.Username); err != nil || s.Username == "" {
		if sub, ok := tok.Subject(); ok && sub != "" {
			s.Username = sub
		} else {
			s.Username = "unknown"
		}
	}
	_ = tok.Get("email", &s.Email)

	var given, family string
	_ = tok.Get("given_name", &given)
	_ = tok.Get("family_name", &family)
	s.Name = strings.TrimSpace(given + " " + family)

	var realmAccess map[string]any
	if err := tok.Get("realm_access", &realmAccess); err == nil {
		if raw, ok := realmAccess["roles"].([]any); ok {
			for _, r := range raw {
				if role, ok := r.(string); ok {
					s.Roles = append(s.Roles, role)
				}
			}
		}
	}
	return s
}
