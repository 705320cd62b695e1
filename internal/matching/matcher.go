// Package matching reconciles a user's free-text skill list and ratings
// against a career's structured requirement map. Two decision rules exist:
// presence-only whole-string matching (used for recommendation scoring) and
// token+rating matching with a lenient or strict missing-skill policy (used
// for gap analysis).
package matching

import (
	"math"
	"strings"

	"github.com/bidit/skillsage/internal/career"
)

// Policy names a missing-skill decision rule.
type Policy string

const (
	// PolicyPresence matches a required label as a whole string against the
	// user's skill list. No tokenization, no ratings.
	PolicyPresence Policy = "presence"
	// PolicyLenient treats a label as present if any of its tokens appears
	// in the user's skill list, regardless of rating.
	PolicyLenient Policy = "lenient"
	// PolicyStrict additionally requires a non-zero rating within
	// ratingMargin of the target level.
	PolicyStrict Policy = "strict"
)

// ratingMargin is the fixed allowance below the target level before a rated
// skill counts as missing under the strict policy.
const ratingMargin = 2

// Gap is one missing required skill with learning guidance attached.
type Gap struct {
	Skill        string
	TargetLevel  int
	Rating       int
	Priority     string
	LearningTime string
}

// Result is the outcome of matching one requirement map against one user.
type Result struct {
	// Matched holds the normalized forms of required labels the user has.
	Matched []string
	Missing []Gap
	// Coverage is round(100 * matched / max(1, required)).
	Coverage int
	Policy   Policy
}

// Normalize returns the comparable form of a skill label: lower-cased,
// whitespace-trimmed.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenDelims is the delimiter class for splitting multi-token requirement
// labels such as "C++ / C#".
func tokenDelims(r rune) bool {
	return r == ' ' || r == '/' || r == '&' || r == ','
}

// Tokens splits a requirement label into normalized tokens.
func Tokens(label string) []string {
	fields := strings.FieldsFunc(label, tokenDelims)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := Normalize(f)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// UserSkills is a user's skill list and rating map in normalized form.
type UserSkills struct {
	set     map[string]struct{}
	ratings map[string]int
}

// NewUserSkills builds a UserSkills from raw profile data. Skill names and
// rating keys are normalized; ratings for skills absent from the list are
// kept (the profile invariant is enforced defensively, not assumed).
func NewUserSkills(skills []string, ratings map[string]int) UserSkills {
	u := UserSkills{
		set:     make(map[string]struct{}, len(skills)),
		ratings: make(map[string]int, len(ratings)),
	}
	for _, s := range skills {
		if n := Normalize(s); n != "" {
			u.set[n] = struct{}{}
		}
	}
	for k, v := range ratings {
		if n := Normalize(k); n != "" {
			u.ratings[n] = v
		}
	}
	return u
}

// Has reports whether the label, compared as a whole normalized string,
// appears in the user's skill list.
func (u UserSkills) Has(label string) bool {
	_, ok := u.set[Normalize(label)]
	return ok
}

// HasAnyToken reports whether any token of the label appears in the user's
// skill list.
func (u UserSkills) HasAnyToken(label string) bool {
	for _, t := range Tokens(label) {
		if _, ok := u.set[t]; ok {
			return true
		}
	}
	return false
}

// Rating derives the user's proficiency for a requirement label: the maximum
// of any token's rating and the rating keyed by the full normalized label.
// Unrated labels yield 0.
func (u UserSkills) Rating(label string) int {
	rating := 0
	for _, t := range Tokens(label) {
		if r, ok := u.ratings[t]; ok && r > rating {
			rating = r
		}
	}
	if r, ok := u.ratings[Normalize(label)]; ok && r > rating {
		rating = r
	}
	return rating
}

// Coverage computes the match percentage with a denominator floor of 1, so a
// career with no listed requirements scores 0 rather than dividing by zero.
func Coverage(matched, required int) int {
	if required < 1 {
		required = 1
	}
	return int(math.Round(100 * float64(matched) / float64(required)))
}

// PresenceMatch applies the presence-only policy: a required label is
// matched iff its normalized form appears verbatim in the user's skill list.
func PresenceMatch(req *career.Requirements, user UserSkills) Result {
	res := Result{Policy: PolicyPresence}
	for _, rs := range req.Skills {
		if user.Has(rs.Name) {
			res.Matched = append(res.Matched, Normalize(rs.Name))
			continue
		}
		res.Missing = append(res.Missing, Gap{
			Skill:        rs.Name,
			TargetLevel:  rs.Level,
			Priority:     lenientPriority(rs.Level),
			LearningTime: learningTime(rs.Name),
		})
	}
	res.Coverage = Coverage(len(res.Matched), len(req.Skills))
	return res
}

// TokenRatingMatch applies token+rating matching under the given policy
// (lenient or strict).
func TokenRatingMatch(req *career.Requirements, user UserSkills, policy Policy) Result {
	res := Result{Policy: policy}
	for _, rs := range req.Skills {
		rating := user.Rating(rs.Name)
		present := user.HasAnyToken(rs.Name)

		missing := !present
		if policy == PolicyStrict {
			missing = missing || rating == 0 || rating < rs.Level-ratingMargin
		}

		if !missing {
			res.Matched = append(res.Matched, Normalize(rs.Name))
			continue
		}

		gap := Gap{
			Skill:       rs.Name,
			TargetLevel: rs.Level,
			Rating:      rating,
		}
		if policy == PolicyStrict {
			gap.Priority, gap.LearningTime = strictPriority(rs.Name)
		} else {
			gap.Priority = lenientPriority(rs.Level)
			gap.LearningTime = learningTime(rs.Name)
		}
		res.Missing = append(res.Missing, gap)
	}
	res.Coverage = Coverage(len(res.Matched), len(req.Skills))
	return res
}

// lenientPriority grades a missing skill by its target level alone.
func lenientPriority(target int) string {
	if target >= 9 {
		return "High"
	}
	return "Medium"
}

// Keyword buckets for the strict three-tier priority heuristic. Membership
// is substring-based over the normalized label.
var (
	foundationalTerms = []string{
		"programming", "python", "sql", "statistics", "mathematics",
		"data analysis", "communication", "algorithms", "problem solving",
	}
	toolTerms = []string{
		"excel", "tableau", "power bi", "git", "docker", "jira",
		"spreadsheet", "linux", "aws", "figma",
	}
	conceptTerms = []string{
		"machine learning", "deep learning", "neural", "nlp",
		"natural language", "computer vision", "artificial intelligence",
		"tensorflow", "pytorch",
	}
)

// strictPriority grades a missing skill by curated keyword buckets and
// returns (priority, estimated learning time).
func strictPriority(label string) (string, string) {
	n := Normalize(label)
	for _, term := range foundationalTerms {
		if strings.Contains(n, term) {
			return "High", "8-12 weeks"
		}
	}
	for _, term := range toolTerms {
		if strings.Contains(n, term) {
			return "Medium", "2-4 weeks"
		}
	}
	for _, term := range conceptTerms {
		if strings.Contains(n, term) {
			return "High", "12+ weeks"
		}
	}
	return "Low", "2-3 weeks"
}

// Grade returns the keyword-bucket priority and estimated learning time for
// a skill label that has no target level attached, such as a user-entered
// custom missing skill.
func Grade(label string) (priority, learningTime string) {
	return strictPriority(label)
}

// learningTime estimates time-to-learn from the same keyword buckets,
// independent of priority.
func learningTime(label string) string {
	_, t := strictPriority(label)
	return t
}
