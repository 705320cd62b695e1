package profile

// UserProfile is the structured view of a user consumed by the matching,
// gap-analysis, and advisor components. The adapter guarantees every
// collection field is non-nil.
type UserProfile struct {
	Email             string         `json:"email"`
	Name              string         `json:"name"`
	Skills            []string       `json:"skills"`
	SkillRatings      map[string]int `json:"skill_ratings"` // skill name (lowercased) → 0–10
	CurrentlyLearning []string       `json:"currently_learning"`
	Goals             []string       `json:"goals"`
	CustomMissing     []string       `json:"custom_missing"` // user-entered missing skills, kept verbatim
	Qualification     string         `json:"qualification"`
	Location          string         `json:"location"`
}
