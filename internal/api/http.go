// Package api exposes the advisor over HTTP (chi, bearer-token protected)
// and over MCP for agent integrations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bidit/skillsage/internal/advisor"
	"github.com/bidit/skillsage/internal/gap"
	"github.com/bidit/skillsage/internal/ingest"
	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/recommend"
	"github.com/bidit/skillsage/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Advisor runs one grounded conversational turn.
type Advisor interface {
	Query(ctx context.Context, email, query string, history []advisor.Turn) (string, error)
}

// GapAnalyzer produces the per-user gap document.
type GapAnalyzer interface {
	Analyze(email string) (gap.Document, error)
}

// Recommender produces ranked career recommendations.
type Recommender interface {
	Recommend(ctx context.Context, email string, k int) ([]recommend.Entry, error)
}

// ProfileAdapter reads and updates user profiles.
type ProfileAdapter interface {
	Get(email string) (profile.UserProfile, error)
	Update(email string, fields map[string]json.RawMessage) error
}

// Seeder ingests a knowledge dataset.
type Seeder interface {
	SeedJSON(ctx context.Context, docType ingest.DocType, data []byte) (ingest.Report, error)
}

// AppDeps holds the wired services the HTTP surface dispatches to.
type AppDeps struct {
	Advisor   Advisor
	Gap       GapAnalyzer
	Recommend Recommender
	Profiles  ProfileAdapter
	Ingestor  Seeder
	Token     string
}

// NewHandler builds the /v1 router.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/advisor/query", handleAdvisorQuery(deps))
		r.Get("/v1/users/{key}/gap-analysis", handleGapAnalysis(deps))
		r.Get("/v1/users/{key}/recommendations", handleRecommendations(deps))
		r.Get("/v1/users/{key}/profile", handleGetProfile(deps))
		r.Patch("/v1/users/{key}/profile", handlePatchProfile(deps))
		r.Post("/v1/ingest", handleSeed(deps))
	})

	return r
}

type advisorQueryRequest struct {
	Email   string         `json:"email"`
	Query   string         `json:"query"`
	History []advisor.Turn `json:"history,omitempty"`
}

func handleAdvisorQuery(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req advisorQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Email == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "email is required")
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		answer, err := deps.Advisor.Query(r.Context(), req.Email, req.Query, req.History)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "advisor turn failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"answer": answer})
	}
}

func handleGapAnalysis(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "key")
		doc, err := deps.Gap.Analyze(email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "user %q not found", email)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "gap analysis failed: %v", err)
			return
		}
		writeJSON(w, doc)
	}
}

func handleRecommendations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "key")
		k := parseIntParam(r, "k", 0, 20)

		entries, err := deps.Recommend.Recommend(r.Context(), email, k)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "user %q not found", email)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "recommendations failed: %v", err)
			return
		}
		writeJSON(w, map[string]any{"recommendations": entries})
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "key")
		prof, err := deps.Profiles.Get(email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "user %q not found", email)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile failed: %v", err)
			return
		}
		writeJSON(w, prof)
	}
}

func handlePatchProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "key")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var fields map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(fields) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no fields to update")
			return
		}

		if err := deps.Profiles.Update(email, fields); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "user %q not found", email)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "updating profile failed: %v", err)
			return
		}

		prof, err := deps.Profiles.Get(email)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reloading profile failed: %v", err)
			return
		}
		writeJSON(w, prof)
	}
}

type seedRequest struct {
	Type  ingest.DocType  `json:"type"`
	Items json.RawMessage `json:"items"`
}

func handleSeed(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize*10)
		defer r.Body.Close()

		var req seedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Type == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type is required")
			return
		}
		if len(req.Items) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "items are required")
			return
		}

		report, err := deps.Ingestor.SeedJSON(r.Context(), req.Type, req.Items)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ingestion failed: %v", err)
			return
		}
		writeJSON(w, report)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil || v < 0 {
		return defaultVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
