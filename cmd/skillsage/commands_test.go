package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func TestAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/advisor/query": `{"answer":"Learn SQL first."}`,
	})

	client := ts.client()
	resp, err := client.post("/v1/advisor/query", map[string]string{
		"email": "ada@example.com",
		"query": "Where do I start?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Answer != "Learn SQL first." {
		t.Errorf("answer = %q", result.Answer)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["email"] != "ada@example.com" {
		t.Errorf("body.email = %q", body["email"])
	}
}

func TestAskCommand_MissingEmail(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask", "where do I start?"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing --email")
	}
	if !strings.Contains(err.Error(), "--email") {
		t.Errorf("error = %q, want it to mention --email", err.Error())
	}
}

func TestSeedCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"seed"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestGapsRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/users/ada@example.com/gap-analysis": `{
			"email": "ada@example.com",
			"policy": "strict",
			"goals": [{"goal": "Data Scientist", "coverage": 67}],
			"missing_skills": [
				{"skill": "Excel", "goal": "Data Scientist", "priority": "Low", "learning_time": "2-3 weeks"}
			]
		}`,
	})

	client := ts.client()
	resp, err := client.get("/v1/users/" + url.PathEscape("ada@example.com") + "/gap-analysis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		Policy string `json:"policy"`
		Goals  []struct {
			Goal     string `json:"goal"`
			Coverage int    `json:"coverage"`
		} `json:"goals"`
	}
	if err := decodeJSON(resp, &doc); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if doc.Policy != "strict" {
		t.Errorf("policy = %q, want strict", doc.Policy)
	}
	if len(doc.Goals) != 1 || doc.Goals[0].Coverage != 67 {
		t.Errorf("goals = %+v", doc.Goals)
	}
}

func TestRecommendRequest_PathEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	client := ts.client()
	path := fmt.Sprintf("/v1/users/%s/recommendations?k=%d", url.PathEscape("a b@example.com"), 3)
	resp, err := client.get(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	reqPath := ts.requests[0].Path
	if strings.Contains(reqPath, "a b") {
		t.Errorf("email not path-escaped: %q", reqPath)
	}
	if !strings.Contains(reqPath, "k=3") {
		t.Errorf("unexpected path: %q", reqPath)
	}
}

func TestProfileSet_JSONValueParsing(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PATCH /v1/users/ada@example.com/profile": `{"email":"ada@example.com"}`,
	})

	client := ts.client()

	// Lists survive as JSON, plain strings stay strings.
	var parsed any
	if err := json.Unmarshal([]byte(`["Data Scientist"]`), &parsed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.patch("/v1/users/ada@example.com/profile", map[string]any{"goals": parsed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	var sent map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	goals, ok := sent["goals"].([]any)
	if !ok || len(goals) != 1 || goals[0] != "Data Scientist" {
		t.Errorf("goals = %v", sent["goals"])
	}
}

func TestDecodeJSON_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	client := ts.client()
	resp, err := client.get("/v1/users/nobody@example.com/profile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out any
	err = decodeJSON(resp, &out)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want envelope message", err.Error())
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want status code", err.Error())
	}
}

func TestColorize_NoColor(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()

	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize = %q, want plain text", got)
	}

	noColor = false
	if got := colorize(colorGreen, "ok"); !strings.Contains(got, colorGreen) {
		t.Errorf("colorize = %q, want color codes", got)
	}
}
