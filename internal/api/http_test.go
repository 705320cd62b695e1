package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bidit/skillsage/internal/advisor"
	"github.com/bidit/skillsage/internal/gap"
	"github.com/bidit/skillsage/internal/ingest"
	"github.com/bidit/skillsage/internal/matching"
	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/recommend"
	"github.com/bidit/skillsage/internal/storage"
)

const testToken = "test-token-12345"

type mockAdvisor struct {
	queryFn func(ctx context.Context, email, query string, history []advisor.Turn) (string, error)
}

func (m *mockAdvisor) Query(ctx context.Context, email, query string, history []advisor.Turn) (string, error) {
	return m.queryFn(ctx, email, query, history)
}

type mockGap struct {
	analyzeFn func(email string) (gap.Document, error)
}

func (m *mockGap) Analyze(email string) (gap.Document, error) {
	return m.analyzeFn(email)
}

type mockRecommender struct {
	recommendFn func(ctx context.Context, email string, k int) ([]recommend.Entry, error)
}

func (m *mockRecommender) Recommend(ctx context.Context, email string, k int) ([]recommend.Entry, error) {
	return m.recommendFn(ctx, email, k)
}

type mockProfiles struct {
	getFn    func(email string) (profile.UserProfile, error)
	updateFn func(email string, fields map[string]json.RawMessage) error
}

func (m *mockProfiles) Get(email string) (profile.UserProfile, error) {
	return m.getFn(email)
}

func (m *mockProfiles) Update(email string, fields map[string]json.RawMessage) error {
	return m.updateFn(email, fields)
}

type mockSeeder struct {
	seedFn func(ctx context.Context, docType ingest.DocType, data []byte) (ingest.Report, error)
}

func (m *mockSeeder) SeedJSON(ctx context.Context, docType ingest.DocType, data []byte) (ingest.Report, error) {
	return m.seedFn(ctx, docType, data)
}

func testDeps() AppDeps {
	return AppDeps{
		Advisor: &mockAdvisor{queryFn: func(context.Context, string, string, []advisor.Turn) (string, error) {
			return "an answer", nil
		}},
		Gap: &mockGap{analyzeFn: func(email string) (gap.Document, error) {
			return gap.Document{Email: email, Policy: matching.PolicyStrict}, nil
		}},
		Recommend: &mockRecommender{recommendFn: func(context.Context, string, int) ([]recommend.Entry, error) {
			return []recommend.Entry{{Title: "Data Analyst", MatchScore: 67}}, nil
		}},
		Profiles: &mockProfiles{
			getFn: func(email string) (profile.UserProfile, error) {
				return profile.UserProfile{Email: email, Name: "Ada"}, nil
			},
			updateFn: func(string, map[string]json.RawMessage) error { return nil },
		},
		Ingestor: &mockSeeder{seedFn: func(context.Context, ingest.DocType, []byte) (ingest.Report, error) {
			return ingest.Report{Ingested: 2}, nil
		}},
		Token: testToken,
	}
}

func authReq(method, url, body, token string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, url, nil)
	} else {
		r = httptest.NewRequest(method, url, strings.NewReader(body))
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAdvisorQuery(t *testing.T) {
	h := NewHandler(testDeps())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodPost, "/v1/advisor/query",
		`{"email": "ada@example.com", "query": "What is SQL?"}`, testToken))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["answer"] != "an answer" {
		t.Errorf("answer = %q", resp["answer"])
	}
}

func TestAdvisorQuery_MissingFields(t *testing.T) {
	h := NewHandler(testDeps())

	for _, body := range []string{
		`{"query": "no email"}`,
		`{"email": "ada@example.com"}`,
		`not json`,
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, authReq(http.MethodPost, "/v1/advisor/query", body, testToken))
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	h := NewHandler(testDeps())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuth_Rejected(t *testing.T) {
	h := NewHandler(testDeps())

	for _, token := range []string{"", "wrong-token"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, authReq(http.MethodGet, "/v1/users/ada@example.com/profile", "", token))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, w.Code)
		}
	}
}

func TestGapAnalysis(t *testing.T) {
	h := NewHandler(testDeps())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodGet, "/v1/users/ada@example.com/gap-analysis", "", testToken))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc gap.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding document: %v", err)
	}
	if doc.Email != "ada@example.com" {
		t.Errorf("email = %q", doc.Email)
	}
}

func TestGapAnalysis_UnknownUser(t *testing.T) {
	deps := testDeps()
	deps.Gap = &mockGap{analyzeFn: func(string) (gap.Document, error) {
		return gap.Document{}, storage.ErrNotFound
	}}

	h := NewHandler(deps)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodGet, "/v1/users/ghost@example.com/gap-analysis", "", testToken))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRecommendations_LimitParam(t *testing.T) {
	deps := testDeps()
	var gotK int
	deps.Recommend = &mockRecommender{recommendFn: func(_ context.Context, _ string, k int) ([]recommend.Entry, error) {
		gotK = k
		return nil, nil
	}}

	h := NewHandler(deps)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodGet, "/v1/users/ada@example.com/recommendations?k=5", "", testToken))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotK != 5 {
		t.Errorf("k = %d, want 5", gotK)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodGet, "/v1/users/ada@example.com/recommendations?k=999", "", testToken))
	if gotK != 20 {
		t.Errorf("k = %d, want clamp to 20", gotK)
	}
}

func TestPatchProfile(t *testing.T) {
	deps := testDeps()
	var gotFields map[string]json.RawMessage
	deps.Profiles = &mockProfiles{
		getFn: func(email string) (profile.UserProfile, error) {
			return profile.UserProfile{Email: email, Skills: []string{"Go"}}, nil
		},
		updateFn: func(_ string, fields map[string]json.RawMessage) error {
			gotFields = fields
			return nil
		},
	}

	h := NewHandler(deps)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodPatch, "/v1/users/ada@example.com/profile",
		`{"skills": ["Go"]}`, testToken))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, ok := gotFields["skills"]; !ok {
		t.Errorf("fields = %v", gotFields)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodPatch, "/v1/users/ada@example.com/profile", `{}`, testToken))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty patch: status = %d, want 400", w.Code)
	}
}

func TestSeed(t *testing.T) {
	deps := testDeps()
	var gotType ingest.DocType
	deps.Ingestor = &mockSeeder{seedFn: func(_ context.Context, docType ingest.DocType, data []byte) (ingest.Report, error) {
		gotType = docType
		if !strings.Contains(string(data), "skill_name") {
			t.Errorf("items payload = %s", data)
		}
		return ingest.Report{Ingested: 1}, nil
	}}

	h := NewHandler(deps)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodPost, "/v1/ingest",
		`{"type": "skill", "items": [{"skill_name": "Python"}]}`, testToken))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotType != ingest.DocSkill {
		t.Errorf("type = %q", gotType)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, authReq(http.MethodPost, "/v1/ingest", `{"items": []}`, testToken))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing type: status = %d, want 400", w.Code)
	}
}
