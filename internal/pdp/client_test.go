package pdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zerotrust-lab/pep-go/internal/identity"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
)

func score(v float64) *float64 { return &v }

func TestEvaluateAllowPassthrough(t *testing.T) {
	var got authorizationQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/evaluate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode query: %v", err)
		}
		json.NewEncoder(w).Encode(Decision{Decision: "allow", TrustScore: score(85)})
	}))
	defer srv.Close()

	sub := identity.Subject{Username: "alice", Roles: []string{"admin"}, Verified: true}
	c := NewClient(srv.URL, time.Second)
	d := c.Evaluate(context.Background(), sub, "172.28.2.15", netzone.ZoneInternal, "audit", "read")

	if !d.Allowed() {
		t.Fatalf("decision = %+v, want allow", d)
	}
	if d.TrustScore == nil || *d.TrustScore != 85 {
		t.Fatalf("trust score = %v, want 85", d.TrustScore)
	}
	if got.Subject.Username != "alice" || got.Subject.Token != "present" {
		t.Fatalf("subject = %+v", got.Subject)
	}
	if got.Device.IP != "172.28.2.15" || got.Device.Network != "internal" {
		t.Fatalf("device = %+v", got.Device)
	}
	if got.Resource.Type != "audit" || got.Resource.Action != "read" || got.Resource.Path != "/audit" {
		t.Fatalf("resource = %+v", got.Resource)
	}
	if got.Context.Timestamp == "" {
		t.Fatal("context timestamp missing")
	}
}

func TestEvaluateDenyPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Decision{Decision: "deny", Reason: "unauthenticated", TrustScore: score(10)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	d := c.Evaluate(context.Background(), identity.Anonymous(), "10.0.0.1", netzone.ZoneUnknown, "employees", "read")
	if d.Allowed() {
		t.Fatal("expected deny")
	}
	if d.Reason != "unauthenticated" {
		t.Fatalf("reason = %q", d.Reason)
	}
}

func TestEvaluateAnonymousTokenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q authorizationQuery
		json.NewDecoder(r.Body).Decode(&q)
		if q.Subject.Token != "absent" {
			t.Fatalf("token = %q, want absent", q.Subject.Token)
		}
		json.NewEncoder(w).Encode(Decision{Decision: "deny"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.Evaluate(context.Background(), identity.Anonymous(), "1.2.3.4", netzone.ZoneUnknown, "employees", "read")
}

func TestEvaluateFailsClosedWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, 200*time.Millisecond)
	d := c.Evaluate(context.Background(), identity.Anonymous(), "1.2.3.4", netzone.ZoneUnknown, "employees", "read")
	if d.Allowed() {
		t.Fatal("PDP unavailability must never allow")
	}
	if !strings.HasPrefix(d.Reason, "PDP error:") {
		t.Fatalf("reason = %q, want PDP error prefix", d.Reason)
	}
}

func TestEvaluateFailsClosedOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond)
	d := c.Evaluate(context.Background(), identity.Anonymous(), "1.2.3.4", netzone.ZoneUnknown, "orders", "read")
	if d.Allowed() {
		t.Fatal("PDP timeout must never allow")
	}
	if !strings.HasPrefix(d.Reason, "PDP error:") {
		t.Fatalf("reason = %q", d.Reason)
	}
}

func TestEvaluateFailsClosedOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	d := c.Evaluate(context.Background(), identity.Anonymous(), "1.2.3.4", netzone.ZoneUnknown, "orders", "read")
	if d.Allowed() || d.Reason != "PDP unavailable" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestTrustScorePassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trust-score" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["username"] != "alice" || req["source_ip"] != "172.28.4.2" {
			t.Fatalf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(TrustScoreResult{TrustScore: 72, Components: map[string]any{"identity": 30.0}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res := c.TrustScore(context.Background(), "alice", "172.28.4.2", []string{"admin"})
	if res.TrustScore != 72 {
		t.Fatalf("trust score = %v", res.TrustScore)
	}
}

func TestTrustScoreNeutralOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, 200*time.Millisecond)
	res := c.TrustScore(context.Background(), "bob", "1.2.3.4", nil)
	if res.TrustScore != 50 {
		t.Fatalf("trust score = %v, want neutral 50", res.TrustScore)
	}
	if res.Error == "" {
		t.Fatal("expected error detail for operators")
	}
}
