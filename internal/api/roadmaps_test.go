package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/mentor/internal/claude"
	"github.com/kalambet/mentor/internal/metrics"
	"github.com/kalambet/mentor/internal/pipeline"
	"github.com/kalambet/mentor/internal/storage"
)

const goRoadmapReply = `{"title":"Go Roadmap","content":"## Phase 1...","visual_data":{"phases":[{"id":1,"title":"Basics","description":"d","duration":"2 weeks","milestones":["m1"]}],"total_duration":"2 months"}}`

// --- mocks ---

type mockModel struct {
	reply string
	err   error
	calls int
}

func (m *mockModel) Complete(_ context.Context, _, _ string) (string, error) {
	m.calls++
	return m.reply, m.err
}

// --- helpers ---

type testEnv struct {
	handler http.Handler
	store   *storage.Store
	model   *mockModel
	deps    Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	model := &mockModel{reply: goRoadmapReply}
	rec := metrics.New()
	deps := Deps{
		Generator: pipeline.NewGenerator(model, store, rec),
		Store:     store,
		Metrics:   rec,
	}
	return &testEnv{handler: NewHandler(deps), store: store, model: model, deps: deps}
}

func (e *testEnv) do(t *testing.T, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, httptest.NewRequest(method, url, reader))
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding body %q: %v", rr.Body.String(), err)
	}
	return v
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, rr)["detail"]
}

func (e *testEnv) seed(t *testing.T, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range n {
		r, err := e.store.CreateRoadmap(storage.NewRoadmap{
			UserQuery: fmt.Sprintf("query %d", i),
			Title:     fmt.Sprintf("title %d", i),
			Content:   "c",
		})
		if err != nil {
			t.Fatalf("CreateRoadmap: %v", err)
		}
		ids[i] = r.ID
	}
	return ids
}

// --- tests ---

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/", "/health"} {
		rr := e.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rr.Code)
		}
		got := decodeBody[map[string]string](t, rr)
		if got["status"] != "healthy" || got["service"] != ServiceName {
			t.Errorf("%s body = %v", path, got)
		}
	}
}

func TestCreateRoadmap(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/api/roadmaps", `{"query":"I want to learn Go"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rr.Code, rr.Body.String())
	}

	got := decodeBody[storage.Roadmap](t, rr)
	if got.ID == 0 {
		t.Error("response has no id")
	}
	if got.Title != "Go Roadmap" {
		t.Errorf("title = %q, want Go Roadmap", got.Title)
	}
	if got.VisualData == nil || got.VisualData.Phases[0].Title != "Basics" {
		t.Errorf("visual_data = %+v", got.VisualData)
	}
	if got.UserQuery != "I want to learn Go" {
		t.Errorf("user_query = %q", got.UserQuery)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at is zero")
	}
}

func TestCreateRoadmap_FallbackReply(t *testing.T) {
	e := newTestEnv(t)
	e.model.reply = "Start with the Go tour, then build a CLI."

	rr := e.do(t, http.MethodPost, "/api/roadmaps", `{"query":"I want to learn Go"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	got := decodeBody[storage.Roadmap](t, rr)
	if got.Title != "Learning Roadmap: I want to learn Go" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Content != "Start with the Go tour, then build a CLI." {
		t.Errorf("content = %q", got.Content)
	}
	if got.VisualData == nil || got.VisualData.TotalDuration != "Varies based on dedication" {
		t.Errorf("visual_data = %+v, want placeholder", got.VisualData)
	}
}

func TestCreateRoadmap_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed json", `{"query":`, http.StatusBadRequest},
		{"wrong type", `{"query":42}`, http.StatusBadRequest},
		{"missing query", `{}`, http.StatusUnprocessableEntity},
		{"too short", `{"query":"Go"}`, http.StatusUnprocessableEntity},
		{"too long", `{"query":"` + strings.Repeat("a", 501) + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			rr := e.do(t, http.MethodPost, "/api/roadmaps", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if detail(t, rr) == "" {
				t.Error("error body has no detail")
			}
			if e.model.calls != 0 {
				t.Errorf("model called %d times", e.model.calls)
			}
		})
	}
}

func TestCreateRoadmap_ModelFailure(t *testing.T) {
	e := newTestEnv(t)
	e.model.err = &claude.UpstreamError{StatusCode: 401, Type: "authentication_error", Message: "invalid x-api-key"}

	rr := e.do(t, http.MethodPost, "/api/roadmaps", `{"query":"I want to learn Go"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if d := detail(t, rr); !strings.HasPrefix(d, "Failed to generate roadmap: ") {
		t.Errorf("detail = %q", d)
	}

	n, err := e.store.CountRoadmaps()
	if err != nil {
		t.Fatalf("CountRoadmaps: %v", err)
	}
	if n != 0 {
		t.Errorf("stored %d roadmaps after failure, want 0", n)
	}
}

func TestGetRoadmap(t *testing.T) {
	e := newTestEnv(t)
	created := decodeBody[storage.Roadmap](t, e.do(t, http.MethodPost, "/api/roadmaps", `{"query":"I want to learn Go"}`))

	rr := e.do(t, http.MethodGet, fmt.Sprintf("/api/roadmaps/%d", created.ID), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	got := decodeBody[storage.Roadmap](t, rr)
	if got.ID != created.ID || got.Content != "## Phase 1..." {
		t.Errorf("got %+v", got)
	}
}

func TestGetRoadmap_NotFound(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/api/roadmaps/999", "/api/roadmaps/abc", "/api/roadmaps/-1"} {
		rr := e.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rr.Code)
			continue
		}
		if d := detail(t, rr); d != "Roadmap not found" {
			t.Errorf("%s detail = %q", path, d)
		}
	}
}

func TestDeleteRoadmap(t *testing.T) {
	e := newTestEnv(t)
	ids := e.seed(t, 1)
	path := fmt.Sprintf("/api/roadmaps/%d", ids[0])

	rr := e.do(t, http.MethodDelete, path, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("204 response has body %q", rr.Body.String())
	}

	if rr := e.do(t, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
	if rr := e.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestListRoadmaps(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, 5)

	tests := []struct {
		query     string
		wantCount int
	}{
		{"", 5},
		{"?limit=2", 2},
		{"?skip=4&limit=2", 1},
		{"?skip=10", 0},
		{"?limit=0", 5},
		{"?limit=-3&skip=x", 5},
		{"?limit=1000", 5},
		{"?skip=3&limit=1000", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := e.do(t, http.MethodGet, "/api/roadmaps"+tt.query, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			got := decodeBody[roadmapList](t, rr)
			if got.Total != 5 {
				t.Errorf("total = %d, want 5", got.Total)
			}
			if len(got.Roadmaps) != tt.wantCount {
				t.Errorf("got %d roadmaps, want %d", len(got.Roadmaps), tt.wantCount)
			}
		})
	}
}

func TestListRoadmaps_LargeLimitNotCapped(t *testing.T) {
	e := newTestEnv(t)
	e.seed(t, 150)

	rr := e.do(t, http.MethodGet, "/api/roadmaps?limit=150", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	got := decodeBody[roadmapList](t, rr)
	if got.Total != 150 {
		t.Errorf("total = %d, want 150", got.Total)
	}
	if len(got.Roadmaps) != 150 {
		t.Errorf("got %d roadmaps, want 150", len(got.Roadmaps))
	}
}

func TestListRoadmaps_EmptyIsArray(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/api/roadmaps", "")
	if !strings.Contains(rr.Body.String(), `"roadmaps":[]`) {
		t.Errorf("body = %s, want empty array", rr.Body.String())
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 50},
		{"10", 10},
		{"0", 50},
		{"-5", 50},
		{"nope", 50},
		{"250", 250},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/?limit="+tt.raw, nil)
		if got := parseIntParam(r, "limit", 50, 1, 0); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/?skip=250", nil)
	if got := parseIntParam(r, "skip", 0, 0, 100); got != 100 {
		t.Errorf("parseIntParam with maxVal = %d, want 100", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPost, "/api/roadmaps", `{"query":"I want to learn Go"}`)

	rr := e.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `mentor_roadmaps_generated_total{outcome="structured"} 1`) {
		t.Errorf("metrics missing structured counter:\n%s", rr.Body.String())
	}
}

type failingStore struct{}

func (failingStore) GetRoadmap(int64) (storage.Roadmap, error) {
	return storage.Roadmap{}, errors.New("db closed")
}
func (failingStore) ListRoadmaps(int, int) ([]storage.RoadmapSummary, int, error) {
	return nil, 0, errors.New("db closed")
}
func (failingStore) DeleteRoadmap(int64) error { return errors.New("db closed") }

func TestStoreFailures(t *testing.T) {
	h := NewHandler(Deps{Store: failingStore{}})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/roadmaps"},
		{http.MethodGet, "/api/roadmaps/1"},
		{http.MethodDelete, "/api/roadmaps/1"},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s %s status = %d, want 500", tc.method, tc.path, rr.Code)
		}
	}
}
