package profile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bidit/skillsage/internal/storage"
)

// UserStore defines the storage operations the Adapter needs.
// Implemented by storage.Store.
type UserStore interface {
	GetUser(email string) (storage.UserRecord, error)
	UpsertUser(u storage.UserRecord) error
	UpdateUserDoc(email, doc string) error
}

// Field-name synonyms accepted in stored profile documents. Earlier entries
// win. Documents ingested from older revisions of the system used several
// spellings for the same field; they are resolved here, once, so the core
// never sees the variance.
var (
	skillsKeys   = []string{"skills"}
	ratingsKeys  = []string{"skill_ratings", "ratings"}
	learningKeys = []string{"currently_learning", "learning"}
	goalsKeys    = []string{"career_goals", "career_goal", "goals"}
	customKeys   = []string{"custom_missing_skills", "custom_skills"}
	qualKeys     = []string{"qualification", "qualifications", "education"}
	locationKeys = []string{"location"}
)

// Adapter reads and writes user profiles, validating the loosely-shaped
// stored documents into UserProfile at this boundary.
type Adapter struct {
	store UserStore
}

// NewAdapter creates an Adapter over the given store.
func NewAdapter(store UserStore) *Adapter {
	return &Adapter{store: store}
}

// Get returns the profile for the given user key. Missing or malformed
// document fields default to empty values; a missing user returns
// storage.ErrNotFound.
func (a *Adapter) Get(email string) (UserProfile, error) {
	rec, err := a.store.GetUser(email)
	if err != nil {
		return UserProfile{}, err
	}
	return fromRecord(rec), nil
}

// Create registers a new user with empty collections.
func (a *Adapter) Create(email, name string) error {
	if err := a.store.UpsertUser(storage.UserRecord{
		Email: email,
		Name:  name,
		Doc:   "{}",
	}); err != nil {
		return fmt.Errorf("creating user %s: %w", email, err)
	}
	return nil
}

// Update merges partial fields into the stored profile document. Field names
// in the input may use any accepted synonym; they are stored under the
// canonical name.
func (a *Adapter) Update(email string, fields map[string]json.RawMessage) error {
	rec, err := a.store.GetUser(email)
	if err != nil {
		return err
	}

	doc := map[string]json.RawMessage{}
	if rec.Doc != "" {
		// A corrupt stored document is replaced rather than failing the update.
		_ = json.Unmarshal([]byte(rec.Doc), &doc)
	}

	for key, value := range fields {
		doc[canonicalKey(key)] = value
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshalling profile doc for %s: %w", email, err)
	}
	return a.store.UpdateUserDoc(email, string(merged))
}

// canonicalKey maps any accepted synonym to the canonical document field name.
func canonicalKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	for canonical, synonyms := range map[string][]string{
		"skills":                skillsKeys,
		"skill_ratings":         ratingsKeys,
		"currently_learning":    learningKeys,
		"career_goals":          goalsKeys,
		"custom_missing_skills": customKeys,
		"qualification":         qualKeys,
		"location":              locationKeys,
	} {
		for _, syn := range synonyms {
			if k == syn {
				return canonical
			}
		}
	}
	return k
}

func fromRecord(rec storage.UserRecord) UserProfile {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rec.Doc), &doc); err != nil {
		doc = nil
	}

	p := UserProfile{
		Email:             rec.Email,
		Name:              rec.Name,
		Skills:            stringList(doc, skillsKeys),
		SkillRatings:      ratingMap(doc, ratingsKeys),
		CurrentlyLearning: stringList(doc, learningKeys),
		Goals:             stringList(doc, goalsKeys),
		CustomMissing:     stringList(doc, customKeys),
		Qualification:     stringField(doc, qualKeys),
		Location:          stringField(doc, locationKeys),
	}
	return p
}

// stringList resolves the first present synonym to a string slice. A single
// string value is treated as a one-element list (the goal field appears both
// ways in legacy documents).
func stringList(doc map[string]json.RawMessage, keys []string) []string {
	raw, ok := firstPresent(doc, keys)
	if !ok {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{single}
	}
	return []string{}
}

// ratingMap resolves the rating field, lowercasing keys and coercing
// numeric values. Non-numeric entries are dropped.
func ratingMap(doc map[string]json.RawMessage, keys []string) map[string]int {
	out := map[string]int{}
	raw, ok := firstPresent(doc, keys)
	if !ok {
		return out
	}

	var m map[string]json.Number
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	for k, v := range m {
		f, err := v.Float64()
		if err != nil {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = int(f)
	}
	return out
}

func stringField(doc map[string]json.RawMessage, keys []string) string {
	raw, ok := firstPresent(doc, keys)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func firstPresent(doc map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := doc[k]; ok {
			return raw, true
		}
	}
	return nil, false
}
