package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zerotrust-lab/pep-go/internal/config"
	"github.com/zerotrust-lab/pep-go/internal/netzone"
	"github.com/zerotrust-lab/pep-go/internal/pdp"
	"github.com/zerotrust-lab/pep-go/internal/store"
)

type fakeDB struct {
	rows     []map[string]any
	queryErr error
	count    int64
	countErr error
	queries  []string
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	f.queries = append(f.queries, sql)
	return f.rows, f.queryErr
}

func (f *fakeDB) Count(ctx context.Context, sql string) (int64, error) {
	f.queries = append(f.queries, sql)
	return f.count, f.countErr
}

func testZones() *netzone.Classifier {
	rules := config.DefaultZoneRules()
	out := make([]netzone.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, netzone.Rule{Prefix: r.Prefix, Zone: netzone.Zone(r.Zone)})
	}
	return netzone.NewClassifier(out)
}

func stubPDP(t *testing.T, decision pdp.Decision) *pdp.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(decision)
	}))
	t.Cleanup(srv.Close)
	return pdp.NewClient(srv.URL, time.Second)
}

func employeesResource() store.Resource {
	return store.Resources[0]
}

func TestListDeniedByPolicy(t *testing.T) {
	ts := 20.0
	db := &fakeDB{rows: []map[string]any{{"id": 1}}}
	h := NewResourceHandler(stubPDP(t, pdp.Decision{Decision: "deny", Reason: "low trust", TrustScore: &ts}), db, testZones())

	rec := httptest.NewRecorder()
	h.List(employeesResource())(rec, httptest.NewRequest(http.MethodGet, "/api/db/employees", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Access denied" || body["reason"] != "low trust" || body["trust_score"] != 20.0 {
		t.Fatalf("body = %+v", body)
	}
	if len(db.queries) != 0 {
		t.Fatal("denied request must not touch the data store")
	}
}

func TestListNonAllowDecisionIsDenied(t *testing.T) {
	// anything other than exactly "allow" denies
	for _, d := range []string{"Allow", "ALLOW", "permit", "yes", ""} {
		db := &fakeDB{}
		h := NewResourceHandler(stubPDP(t, pdp.Decision{Decision: d}), db, testZones())
		rec := httptest.NewRecorder()
		h.List(employeesResource())(rec, httptest.NewRequest(http.MethodGet, "/api/db/employees", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("decision %q: status = %d, want 403", d, rec.Code)
		}
		if len(db.queries) != 0 {
			t.Fatalf("decision %q reached the store", d)
		}
	}
}

func TestListAllowedReturnsEnvelope(t *testing.T) {
	ts := 85.0
	db := &fakeDB{rows: []map[string]any{
		{"id": 1, "last_name": "Adams"},
		{"id": 2, "last_name": "Baker"},
	}}
	h := NewResourceHandler(stubPDP(t, pdp.Decision{Decision: "allow", TrustScore: &ts}), db, testZones())

	rec := httptest.NewRecorder()
	h.List(employeesResource())(rec, httptest.NewRequest(http.MethodGet, "/api/db/employees", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Success    bool             `json:"success"`
		Count      int              `json:"count"`
		Data       []map[string]any `json:"data"`
		TrustScore float64          `json:"trust_score"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Count != 2 || len(body.Data) != 2 || body.TrustScore != 85 {
		t.Fatalf("body = %+v", body)
	}
	if len(db.queries) != 1 || db.queries[0] != employeesResource().SQL {
		t.Fatalf("queries = %v", db.queries)
	}
}

func TestListIdempotentReads(t *testing.T) {
	db := &fakeDB{rows: []map[string]any{{"id": 1, "name": "n"}}}
	h := NewResourceHandler(stubPDP(t, pdp.Decision{Decision: "allow"}), db, testZones())

	read := func() string {
		rec := httptest.NewRecorder()
		h.List(employeesResource())(rec, httptest.NewRequest(http.MethodGet, "/api/db/employees", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		return rec.Body.String()
	}
	if first, second := read(), read(); first != second {
		t.Fatalf("same allowed read differed:\n%s\n%s", first, second)
	}
}

func TestListStoreFailure(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("connection reset")}
	h := NewResourceHandler(stubPDP(t, pdp.Decision{Decision: "allow"}), db, testZones())

	rec := httptest.NewRecorder()
	h.List(employeesResource())(rec, httptest.NewRequest(http.MethodGet, "/api/db/employees", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "connection reset" {
		t.Fatalf("body = %+v", body)
	}
}

func TestStatsAggregation(t *testing.T) {
	ts := 60.0
	db := &fakeDB{count: 7}
	h := NewResourceHandler(stubPDP(t, pdp.Decision{Decision: "allow", TrustScore: &ts}), db, testZones())

	rec := httptest.NewRecorder()
	h.Stats()(rec, httptest.NewRequest(http.MethodGet, "/api/db/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Success    bool             `json:"success"`
		Data       map[string]int64 `json:"data"`
		TrustScore float64          `json:"trust_score"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.TrustScore != 60 {
		t.Fatalf("body = %+v", body)
	}
	if len(body.Data) != len(store.StatQueries) {
		t.Fatalf("stats keys = %d, want %d", len(body.Data), len(store.StatQueries))
	}
	for name, n := range body.Data {
		if n != 7 {
			t.Fatalf("stat %s = %d, want 7", name, n)
		}
	}
}

func TestStatsCountFailure(t *testing.T) {
	db := &fakeDB{countErr: errors.New("relation missing")}
	h := NewResourceHandler(stubPDP(t, pdp.Decision{Decision: "allow"}), db, testZones())

	rec := httptest.NewRecorder()
	h.Stats()(rec, httptest.NewRequest(http.MethodGet, "/api/db/stats", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestResourceRegistryCoversDeclaredSet(t *testing.T) {
	want := map[string]bool{
		"employees": true, "customers": true, "orders": true, "projects": true,
		"departments": true, "products": true, "audit": true,
	}
	if len(store.Resources) != len(want) {
		t.Fatalf("registry size = %d, want %d", len(store.Resources), len(want))
	}
	for _, r := range store.Resources {
		if !want[r.Type] {
			t.Fatalf("unexpected resource %q", r.Type)
		}
		if r.SQL == "" {
			t.Fatalf("resource %q missing bound query", r.Type)
		}
	}
}
