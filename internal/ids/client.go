package ids

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Alert is one detection hit reported by the intrusion detector.
type Alert struct {
	RuleName string `json:"rule_name"`
	Severity string `json:"severity"`
	Category string `json:"category"`
}

// DetectionResult is the detector's verdict for one request.
type DetectionResult struct {
	Blocked     bool    `json:"blocked"`
	AlertsCount int     `json:"alerts_count"`
	Alerts      []Alert `json:"alerts"`
}

// Descriptor is the traffic summary submitted for analysis.
type Descriptor struct {
	SourceIP   string            `json:"source_ip"`
	DestIP     string            `json:"dest_ip"`
	SourcePort int               `json:"source_port"`
	DestPort   int               `json:"dest_port"`
	Protocol   string            `json:"protocol"`
	Payload    string            `json:"payload"`
	Headers    map[string]string `json:"headers"`
	Method     string            `json:"method"`
	URI        string            `json:"uri"`
	UserAgent  string            `json:"user_agent"`
}

// Client talks to the intrusion-detection collaborator. Policy is
// fail-open: the detector is a defense-in-depth layer, so if it is
// unreachable the request proceeds rather than the gateway going dark.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

var passThrough = DetectionResult{Blocked: false, Alerts: []Alert{}}

// Inspect submits the descriptor and returns the detector's verdict.
// Transport errors, timeouts, and non-success statuses all map to a
// non-blocking result.
func (c *Client) Inspect(ctx context.Context, d Descriptor) DetectionResult {
	body, err := json.Marshal(d)
	if err != nil {
		slog.Error("ids descriptor marshal failed", "err", err)
		return passThrough
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return passThrough
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("ids unavailable, failing open", "err", err)
		return passThrough
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("ids returned non-success, failing open", "status", resp.StatusCode)
		return passThrough
	}

	var result DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("ids response decode failed, failing open", "err", err)
		return passThrough
	}
	if result.Blocked {
		slog.Info("ids blocked request",
			"source_ip", d.SourceIP, "alerts", result.AlertsCount)
	}
	return result
}

// DescriptorFromRequest builds the traffic summary for an inbound
// request. destIP/destPort describe the protected store behind the
// gateway.
func DescriptorFromRequest(r *http.Request, sourceIP, destIP string, destPort int, body []byte) Descriptor {
	headers := make(map[string]string, len(r.Header))
	for k, vv := range r.Header {
		if len(vv) > 0 {
			headers[k] = vv[0]
		}
	}
	payload := "{}"
	if len(body) > 0 {
		payload = string(body)
	}
	return Descriptor{
		SourceIP:  sourceIP,
		DestIP:    destIP,
		DestPort:  destPort,
		Protocol:  "HTTP",
		Payload:   payload,
		Headers:   headers,
		Method:    r.Method,
		URI:       requestURI(r),
		UserAgent: r.UserAgent(),
	}
}

func requestURI(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.String()
}
