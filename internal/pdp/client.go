package pdp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/zerotrust-lab/pep-go/internal/identity"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
)

// Decision is the PDP verdict, passed through verbatim. Anything other
// than exactly "allow" is a denial.
type Decision struct {
	Decision   string   `json:"decision"`
	Reason     string   `json:"reason,omitempty"`
	TrustScore *float64 `json:"trust_score,omitempty"`
}

func (d Decision) Allowed() bool { return d.Decision == "allow" }

// TrustScoreResult is the trust-score-only endpoint response.
type TrustScoreResult struct {
	TrustScore float64        `json:"trust_score"`
	Components map[string]any `json:"components,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type querySubject struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Token    string   `json:"token"`
}

type queryDevice struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Network  string `json:"network"`
}

type queryResource struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Path   string `json:"path"`
}

type queryContext struct {
	Timestamp string `json:"timestamp"`
	UserAgent string `json:"user_agent"`
}

type authorizationQuery struct {
	Subject  querySubject  `json:"subject"`
	Device   queryDevice   `json:"device"`
	Resource queryResource `json:"resource"`
	Context  queryContext  `json:"context"`
}

// Client consults the policy decision point. Policy is fail-closed:
// this is the primary access gate, so unavailability is never an
// implicit allow.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Evaluate submits an authorization query and returns the decision.
// Collaborator failure maps to deny with the cause as the reason; the
// decision itself is never reinterpreted locally.
func (c *Client) Evaluate(ctx context.Context, sub identity.Subject, sourceIP string, zone netzone.Zone, resourceType, action string) Decision {
	token := "absent"
	if sub.Verified {
		token = "present"
	}
	q := authorizationQuery{
		Subject: querySubject{
			Username: sub.Username,
			Roles:    sub.Roles,
			Token:    token,
		},
		Device: queryDevice{
			IP:       sourceIP,
			Hostname: "unknown",
			Network:  string(zone),
		},
		Resource: queryResource{
			Type:   resourceType,
			Action: action,
			Path:   "/" + resourceType,
		},
		Context: queryContext{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			UserAgent: "PEP-Client",
		},
	}

	body, err := json.Marshal(q)
	if err != nil {
		return Decision{Decision: "deny", Reason: "PDP error: " + err.Error()}
	}

	slog.Info("consulting pdp",
		"user", sub.Username, "ip", sourceIP, "network", zone,
		"resource", resourceType, "action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return Decision{Decision: "deny", Reason: "PDP error: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("pdp unavailable, failing closed", "err", err)
		return Decision{Decision: "deny", Reason: "PDP error: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Error("pdp returned non-success, failing closed", "status", resp.StatusCode)
		return Decision{Decision: "deny", Reason: "PDP unavailable"}
	}

	var d Decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return Decision{Decision: "deny", Reason: "PDP error: " + err.Error()}
	}
	return d
}

// TrustScore queries the trust-score-only endpoint. This is
// informational, not an access gate, so failure degrades to a neutral
// score rather than a denial.
func (c *Client) TrustScore(ctx context.Context, username, sourceIP string, roles []string) TrustScoreResult {
	body, _ := json.Marshal(map[string]any{
		"username":  username,
		"source_ip": sourceIP,
		"roles":     roles,
	})

	neutral := TrustScoreResult{TrustScore: 50, Components: map[string]any{}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trust-score", bytes.NewReader(body))
	if err != nil {
		return neutral
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		neutral.Error = err.Error()
		return neutral
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return neutral
	}
	var result TrustScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		neutral.Error = err.Error()
		return neutral
	}
	return result
}
