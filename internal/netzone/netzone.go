package netzone

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Zone is the coarse network-origin classification fed to the PDP as
// device context. It is advisory input, never an access gate by itself.
type Zone string

const (
	ZoneProduction  Zone = "production"
	ZoneDevelopment Zone = "development"
	ZoneInternal    Zone = "internal"
	ZoneDMZ         Zone = "dmz"
	ZoneExternal    Zone = "external"
	ZoneUnknown     Zone = "unknown"
)

// Rule assigns a zone to any address beginning with Prefix.
type Rule struct {
	Prefix string
	Zone   Zone
}

// Classifier maps client addresses to zones over an ordered rule list.
// First match wins; rule order is the only precedence.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify is a pure function of the address: no side effects, no
// memory across calls. Unmatched addresses classify as unknown.
func (c *Classifier) Classify(addr string) Zone {
	for _, r := range c.rules {
		if strings.HasPrefix(addr, r.Prefix) {
			return r.Zone
		}
	}
	return ZoneUnknown
}

// ClientIP resolves the originating address of a request. Precedence:
// X-Real-IP, then the first X-Forwarded-For entry, then the transport
// peer address. IPv4-mapped IPv6 notation is normalized to plain IPv4
// before any prefix matching happens.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return normalize(ip)
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return normalize(first)
		}
	}
	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return normalize(host)
	}
	return "unknown"
}

func normalize(ip string) string {
	if a, err := netip.ParseAddr(ip); err == nil {
		return a.Unmap().String()
	}
	// Not a literal address; strip the mapped prefix textually.
	return strings.TrimPrefix(ip, "::ffff:")
}
