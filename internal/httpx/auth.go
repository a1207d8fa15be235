package httpx

import "strings"

// ExtractBearerToken pulls the credential out of an Authorization header.
// The second return is false when no bearer credential was presented.
func ExtractBearerToken(authz string) (string, bool) {
	const prefix = "Bearer "
	if authz == "" || !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(authz[len(prefix):])
	return tok, tok != ""
}
