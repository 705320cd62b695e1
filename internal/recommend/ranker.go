// Package recommend produces top-K career recommendations with a two-stage
// design: vector search over the careers collection supplies topical
// candidates, then presence-only skill matching supplies the displayed
// confidence score. The vector order is discarded after stage one so that a
// topically similar career with zero skill overlap shows 0%, never a
// smoothed blend.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/bidit/skillsage/internal/career"
	"github.com/bidit/skillsage/internal/matching"
	"github.com/bidit/skillsage/internal/profile"
	"github.com/bidit/skillsage/internal/retrieval"
)

// noMatchText is shown when a recommended career shares no skills with the
// user's list.
const noMatchText = "No direct skill matches yet"

// ProfileSource resolves a user key to a typed profile.
type ProfileSource interface {
	Get(email string) (profile.UserProfile, error)
}

// CandidateRetriever supplies topical career candidates by semantic search.
type CandidateRetriever interface {
	Retrieve(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error)
}

// RequirementSource resolves a career title to its requirement map.
type RequirementSource interface {
	Find(title string) *career.Requirements
}

// Entry is one recommended career as rendered to the user.
type Entry struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	MatchScore     int      `json:"match_score"`
	MatchingSkills string   `json:"matching_skills"`
	Matched        []string `json:"matched"`
}

// Ranker orchestrates retrieval and skill matching for recommendations.
type Ranker struct {
	profiles  ProfileSource
	retriever CandidateRetriever
	careers   RequirementSource
	topK      int
	logger    *slog.Logger
}

// NewRanker builds a Ranker. topK is the default candidate count when the
// caller passes k <= 0.
func NewRanker(profiles ProfileSource, retriever CandidateRetriever, careers RequirementSource, topK int) *Ranker {
	return &Ranker{
		profiles:  profiles,
		retriever: retriever,
		careers:   careers,
		topK:      topK,
		logger:    slog.Default(),
	}
}

// Recommend returns up to k careers sorted by descending skill coverage.
// Retrieval failure degrades to an empty list rather than an error, so a
// knowledge-base outage renders an empty dashboard instead of a crash.
func (r *Ranker) Recommend(ctx context.Context, email string, k int) ([]Entry, error) {
	prof, err := r.profiles.Get(email)
	if err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", email, err)
	}
	if k <= 0 {
		k = r.topK
	}

	query := syntheticQuery(prof)
	chunks, err := r.retriever.Retrieve(ctx, retrieval.CollectionCareers, query, k)
	if err != nil {
		r.logger.Warn("career retrieval failed, recommending nothing",
			slog.String("user", email), slog.Any("error", err))
		return []Entry{}, nil
	}

	user := matching.NewUserSkills(prof.Skills, prof.SkillRatings)
	entries := make([]Entry, 0, len(chunks))
	for _, c := range chunks {
		req := r.careers.Find(c.Title)
		res := matching.PresenceMatch(req, user)
		entries = append(entries, Entry{
			Title:          c.Title,
			Description:    c.Text,
			MatchScore:     res.Coverage,
			MatchingSkills: MatchingSkillsText(res.Matched),
			Matched:        res.Matched,
		})
	}

	// Re-sort by coverage. SliceStable keeps the retrieval order among
	// equal scores.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MatchScore > entries[j].MatchScore
	})
	return entries, nil
}

// syntheticQuery builds the single embedding query from the user's goals
// and skill list.
func syntheticQuery(prof profile.UserProfile) string {
	var b strings.Builder
	if len(prof.Goals) > 0 {
		b.WriteString("Career goals: ")
		b.WriteString(strings.Join(prof.Goals, ", "))
		b.WriteString(". ")
	}
	if len(prof.Skills) > 0 {
		b.WriteString("Skills: ")
		b.WriteString(strings.Join(prof.Skills, ", "))
		b.WriteString(".")
	}
	if b.Len() == 0 {
		return "career recommendations"
	}
	return strings.TrimSpace(b.String())
}

// MatchingSkillsText formats the matched-skill display string: up to three
// title-cased names, a "+N more" suffix past three, and a fixed fallback on
// zero matches.
func MatchingSkillsText(matched []string) string {
	if len(matched) == 0 {
		return noMatchText
	}
	shown := matched
	if len(shown) > 3 {
		shown = shown[:3]
	}
	parts := make([]string, len(shown))
	for i, s := range shown {
		parts[i] = titleCase(s)
	}
	text := strings.Join(parts, ", ")
	if extra := len(matched) - 3; extra > 0 {
		text += fmt.Sprintf(" +%d more", extra)
	}
	return text
}

// titleCase upper-cases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
