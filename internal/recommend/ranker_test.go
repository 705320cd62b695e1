package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/bidit/skillsage/internal/career"
	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/retrieval"
)

type mockProfiles struct {
	getFn func(email string) (profile.UserProfile, error)
}

func (m *mockProfiles) Get(email string) (profile.UserProfile, error) {
	return m.getFn(email)
}

type mockRetriever struct {
	retrieveFn func(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error) {
	return m.retrieveFn(ctx, collection, query, topK)
}

type mockCareers struct {
	reqs map[string]*career.Requirements
}

func (m *mockCareers) Find(title string) *career.Requirements {
	if r, ok := m.reqs[title]; ok {
		return r
	}
	return career.Fallback(title)
}

func reqMap(title string, pairs ...any) *career.Requirements {
	r := &career.Requirements{Title: title}
	for i := 0; i < len(pairs); i += 2 {
		r.Skills = append(r.Skills, career.RequiredSkill{
			Name:  pairs[i].(string),
			Level: pairs[i+1].(int),
		})
	}
	return r
}

func chunk(title, text string, score float32) retrieval.ContextChunk {
	return retrieval.ContextChunk{ID: title, Title: title, Text: text, Score: score}
}

func TestRecommend_OrderedByCoverageNotSimilarity(t *testing.T) {
	profiles := &mockProfiles{getFn: func(string) (profile.UserProfile, error) {
		return profile.UserProfile{
			Email:  "ada@example.com",
			Skills: []string{"python", "sql"},
			Goals:  []string{"Data Analyst"},
		}, nil
	}}
	// ML Engineer wins the vector stage but shares no skills; Data
	// Analyst must outrank it on coverage.
	ret := &mockRetriever{retrieveFn: func(_ context.Context, collection, _ string, _ int) ([]retrieval.ContextChunk, error) {
		if collection != retrieval.CollectionCareers {
			t.Errorf("collection = %q", collection)
		}
		return []retrieval.ContextChunk{
			chunk("ML Engineer", "builds models", 0.95),
			chunk("Data Analyst", "analyzes data", 0.60),
		}, nil
	}}
	careers := &mockCareers{reqs: map[string]*career.Requirements{
		"ML Engineer":  reqMap("ML Engineer", "TensorFlow", 8, "PyTorch", 8),
		"Data Analyst": reqMap("Data Analyst", "Python", 9, "SQL", 7),
	}}

	r := NewRanker(profiles, ret, careers, 3)
	entries, err := r.Recommend(context.Background(), "ada@example.com", 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if entries[0].Title != "Data Analyst" || entries[0].MatchScore != 100 {
		t.Errorf("first = %+v, want Data Analyst at 100", entries[0])
	}
	if entries[1].Title != "ML Engineer" || entries[1].MatchScore != 0 {
		t.Errorf("second = %+v, want ML Engineer at 0", entries[1])
	}
	if entries[1].MatchingSkills != noMatchText {
		t.Errorf("zero-match text = %q", entries[1].MatchingSkills)
	}
}

func TestRecommend_RetrievalFailureDegradesToEmpty(t *testing.T) {
	profiles := &mockProfiles{getFn: func(string) (profile.UserProfile, error) {
		return profile.UserProfile{Email: "ada@example.com"}, nil
	}}
	ret := &mockRetriever{retrieveFn: func(context.Context, string, string, int) ([]retrieval.ContextChunk, error) {
		return nil, errors.New("embedding backend down")
	}}

	r := NewRanker(profiles, ret, &mockCareers{}, 3)
	entries, err := r.Recommend(context.Background(), "ada@example.com", 3)
	if err != nil {
		t.Fatalf("recommend must not fail on retrieval errors: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %+v, want empty", entries)
	}
}

func TestRecommend_ProfileErrorPropagates(t *testing.T) {
	wantErr := errors.New("no such user")
	profiles := &mockProfiles{getFn: func(string) (profile.UserProfile, error) {
		return profile.UserProfile{}, wantErr
	}}
	ret := &mockRetriever{retrieveFn: func(context.Context, string, string, int) ([]retrieval.ContextChunk, error) {
		t.Fatal("retrieval must not run without a profile")
		return nil, nil
	}}

	r := NewRanker(profiles, ret, &mockCareers{}, 3)
	if _, err := r.Recommend(context.Background(), "ghost@example.com", 3); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want profile error", err)
	}
}

func TestRecommend_DefaultKWhenUnset(t *testing.T) {
	profiles := &mockProfiles{getFn: func(string) (profile.UserProfile, error) {
		return profile.UserProfile{Email: "ada@example.com"}, nil
	}}
	var gotK int
	ret := &mockRetriever{retrieveFn: func(_ context.Context, _, _ string, topK int) ([]retrieval.ContextChunk, error) {
		gotK = topK
		return nil, nil
	}}

	r := NewRanker(profiles, ret, &mockCareers{}, 3)
	if _, err := r.Recommend(context.Background(), "ada@example.com", 0); err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if gotK != 3 {
		t.Errorf("topK = %d, want default 3", gotK)
	}
}

func TestSyntheticQuery(t *testing.T) {
	got := syntheticQuery(profile.UserProfile{
		Goals:  []string{"Data Analyst"},
		Skills: []string{"Python", "SQL"},
	})
	want := "Career goals: Data Analyst. Skills: Python, SQL."
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}

	if got := syntheticQuery(profile.UserProfile{}); got != "career recommendations" {
		t.Errorf("empty-profile query = %q", got)
	}
}

func TestMatchingSkillsText(t *testing.T) {
	cases := []struct {
		name    string
		matched []string
		want    string
	}{
		{"worked example", []string{"python", "communication"}, "Python, Communication"},
		{"zero matches", nil, noMatchText},
		{"exactly three", []string{"go", "sql", "git"}, "Go, Sql, Git"},
		{"more suffix", []string{"go", "sql", "git", "docker", "linux"}, "Go, Sql, Git +2 more"},
		{"multi word", []string{"problem solving"}, "Problem Solving"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchingSkillsText(tc.matched); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
