// Package gap runs the skill matcher across every career goal a user has
// stated and assembles the result into one chart-ready document: per-goal
// level series, a flattened prioritized missing-skill list, and the user's
// raw skills and ratings for the presentation layer.
package gap

import (
	"fmt"

	"github.com/bidit/skillsage/internal/career"
	"github.com/bidit/skillsage/internal/matching"
	"github.com/bidit/skillsage/internal/profile"
)

// ProfileSource resolves a user key to a typed profile.
type ProfileSource interface {
	Get(email string) (profile.UserProfile, error)
}

// RequirementSource resolves a goal label to a requirement map. It never
// returns an empty map: unknown goals get the generic fallback.
type RequirementSource interface {
	Find(title string) *career.Requirements
}

// GoalSeries is the chart data for one career goal: parallel label, user
// level and target level sequences, truncated to the chart cap in the
// requirement map's insertion order.
type GoalSeries struct {
	Goal         string   `json:"goal"`
	Labels       []string `json:"labels"`
	UserLevels   []int    `json:"user_levels"`
	TargetLevels []int    `json:"target_levels"`
	// Coverage is computed over the full requirement map, not the
	// truncated chart labels.
	Coverage int `json:"coverage"`
}

// MissingSkill is one entry of the flattened gap list. Goal is "custom" for
// user-entered override skills, which carry no target level or rating.
type MissingSkill struct {
	Skill        string `json:"skill"`
	Goal         string `json:"goal"`
	TargetLevel  int    `json:"target_level,omitempty"`
	Rating       int    `json:"rating,omitempty"`
	Priority     string `json:"priority"`
	LearningTime string `json:"learning_time"`
}

// Document is the full gap-analysis output consumed by dashboards.
type Document struct {
	Email             string          `json:"email"`
	Policy            matching.Policy `json:"policy"`
	Goals             []GoalSeries    `json:"goals"`
	MissingSkills     []MissingSkill  `json:"missing_skills"`
	CurrentlyLearning []string        `json:"currently_learning"`
	Skills            []string        `json:"skills"`
	SkillRatings      map[string]int  `json:"skill_ratings"`
}

// Analyzer orchestrates the matcher across a user's goals.
type Analyzer struct {
	profiles ProfileSource
	careers  RequirementSource
	policy   matching.Policy
	chartCap int
}

// NewAnalyzer builds an Analyzer. policy must be PolicyLenient or
// PolicyStrict. chartCap bounds the per-goal chart width; zero or negative
// disables truncation.
func NewAnalyzer(profiles ProfileSource, careers RequirementSource, policy matching.Policy, chartCap int) *Analyzer {
	return &Analyzer{
		profiles: profiles,
		careers:  careers,
		policy:   policy,
		chartCap: chartCap,
	}
}

// Analyze produces the gap document for one user. The only error it returns
// is a profile-store failure; every goal always yields a non-empty chart
// because unknown careers resolve to the fallback requirement map.
func (a *Analyzer) Analyze(email string) (Document, error) {
	prof, err := a.profiles.Get(email)
	if err != nil {
		return Document{}, fmt.Errorf("loading profile %q: %w", email, err)
	}
	user := matching.NewUserSkills(prof.Skills, prof.SkillRatings)

	doc := Document{
		Email:             prof.Email,
		Policy:            a.policy,
		Goals:             []GoalSeries{},
		MissingSkills:     []MissingSkill{},
		CurrentlyLearning: prof.CurrentlyLearning,
		Skills:            prof.Skills,
		SkillRatings:      prof.SkillRatings,
	}

	seen := make(map[string]bool)
	for _, goal := range prof.Goals {
		req := a.careers.Find(goal)
		res := matching.TokenRatingMatch(req, user, a.policy)
		doc.Goals = append(doc.Goals, a.chartSeries(goal, req, user, res.Coverage))

		for _, g := range res.Missing {
			key := matching.Normalize(g.Skill) + "|" + matching.Normalize(goal)
			if seen[key] {
				continue
			}
			seen[key] = true
			doc.MissingSkills = append(doc.MissingSkills, MissingSkill{
				Skill:        g.Skill,
				Goal:         goal,
				TargetLevel:  g.TargetLevel,
				Rating:       g.Rating,
				Priority:     g.Priority,
				LearningTime: g.LearningTime,
			})
		}
	}

	// User-entered override skills are concatenated verbatim, never
	// deduplicated against the computed list.
	for _, skill := range prof.CustomMissing {
		priority, learningTime := matching.Grade(skill)
		doc.MissingSkills = append(doc.MissingSkills, MissingSkill{
			Skill:        skill,
			Goal:         "custom",
			Priority:     priority,
			LearningTime: learningTime,
		})
	}

	return doc, nil
}

// chartSeries truncates the requirement map to the chart cap in insertion
// order. Scoring has already run over the full map.
func (a *Analyzer) chartSeries(goal string, req *career.Requirements, user matching.UserSkills, coverage int) GoalSeries {
	series := GoalSeries{Goal: goal, Coverage: coverage}
	for i, rs := range req.Skills {
		if a.chartCap > 0 && i >= a.chartCap {
			break
		}
		series.Labels = append(series.Labels, rs.Name)
		series.UserLevels = append(series.UserLevels, user.Rating(rs.Name))
		series.TargetLevels = append(series.TargetLevels, rs.Level)
	}
	return series
}
