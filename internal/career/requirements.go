package career

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bidit/skillsage/internal/storage"
)

// RequiredSkill is one entry of a career's requirement map.
type RequiredSkill struct {
	Name  string
	Level int
}

// Requirements is a career's ordered required-skill map. Order matches the
// source document so chart truncation stays stable.
type Requirements struct {
	Title  string
	Skills []RequiredSkill
}

// Level returns the target level for a skill name, matched case-insensitively.
func (r *Requirements) Level(name string) (int, bool) {
	k := strings.ToLower(strings.TrimSpace(name))
	for _, s := range r.Skills {
		if strings.ToLower(strings.TrimSpace(s.Name)) == k {
			return s.Level, true
		}
	}
	return 0, false
}

// CareerStore defines the storage operations the Source needs.
// Implemented by storage.Store.
type CareerStore interface {
	GetCareer(title string) (storage.CareerRecord, error)
}

// Source resolves career titles to requirement maps.
type Source struct {
	store  CareerStore
	logger *slog.Logger
}

// NewSource creates a Source over the given store.
func NewSource(store CareerStore) *Source {
	return &Source{store: store, logger: slog.Default()}
}

// Find returns the requirements for a career title (case-insensitive exact
// match). A goal absent from the store, or one whose document yields no
// skills, resolves to the generic fallback map: every goal produces a
// non-empty requirement map.
func (s *Source) Find(title string) *Requirements {
	rec, err := s.store.GetCareer(title)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("career lookup failed", "title", title, "error", err)
		}
		return Fallback(title)
	}

	req, err := ParseRequirements(rec.Title, []byte(rec.Doc))
	if err != nil || len(req.Skills) == 0 {
		if err != nil {
			s.logger.Warn("career document malformed", "title", title, "error", err)
		}
		return Fallback(title)
	}
	return req
}

// Fallback is the fixed generic requirement map substituted when a goal has
// no structured career document.
func Fallback(title string) *Requirements {
	return &Requirements{
		Title: title,
		Skills: []RequiredSkill{
			{Name: "Communication", Level: 5},
			{Name: "Problem Solving", Level: 5},
			{Name: "Computer Literacy", Level: 5},
		},
	}
}

// Requirement document field synonyms, in priority order.
var requirementKeys = []string{"required_skills", "skills", "skill_requirements"}

// ParseRequirements extracts the ordered requirement map from a career
// document. Two shapes are accepted: an object {skill: level} (key order
// preserved) and an array [{"skill": ..., "level": ...}]. Non-numeric
// levels default to 5.
func ParseRequirements(title string, doc []byte) (*Requirements, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, fmt.Errorf("parsing career document: %w", err)
	}

	var raw json.RawMessage
	for _, key := range requirementKeys {
		if v, ok := top[key]; ok {
			raw = v
			break
		}
	}
	if raw == nil {
		return &Requirements{Title: title}, nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &Requirements{Title: title}, nil
	}

	switch trimmed[0] {
	case '{':
		skills, err := parseOrderedObject(trimmed)
		if err != nil {
			return nil, err
		}
		return &Requirements{Title: title, Skills: skills}, nil
	case '[':
		skills, err := parsePairArray(trimmed)
		if err != nil {
			return nil, err
		}
		return &Requirements{Title: title, Skills: skills}, nil
	default:
		return nil, fmt.Errorf("unsupported requirement shape in career %q", title)
	}
}

// parseOrderedObject walks the JSON object token stream so source key order
// survives (a plain map would lose it).
func parseOrderedObject(raw []byte) ([]RequiredSkill, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var skills []RequiredSkill
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		skills = append(skills, RequiredSkill{Name: key, Level: coerceLevel(valTok)})
	}
	return skills, nil
}

// parsePairArray accepts two element shapes: {"skill"|"name": ..., "level":
// ...} objects and bare skill-name strings, which get the default level.
// Seed datasets use the bare-string form.
func parsePairArray(raw []byte) ([]RequiredSkill, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("parsing requirement array: %w", err)
	}

	var skills []RequiredSkill
	for _, elem := range elems {
		var name string
		if err := json.Unmarshal(elem, &name); err == nil {
			if strings.TrimSpace(name) != "" {
				skills = append(skills, RequiredSkill{Name: name, Level: defaultLevel})
			}
			continue
		}

		var entry struct {
			Skill string      `json:"skill"`
			Name  string      `json:"name"`
			Level json.Number `json:"level"`
		}
		if err := json.Unmarshal(elem, &entry); err != nil {
			return nil, fmt.Errorf("parsing requirement entry: %w", err)
		}
		if entry.Skill == "" {
			entry.Skill = entry.Name
		}
		if strings.TrimSpace(entry.Skill) == "" {
			continue
		}
		level := defaultLevel
		if f, err := entry.Level.Float64(); err == nil {
			level = int(f)
		}
		skills = append(skills, RequiredSkill{Name: entry.Skill, Level: level})
	}
	return skills, nil
}

const defaultLevel = 5

// coerceLevel converts a decoded JSON value into an integer level,
// defaulting non-numeric values.
func coerceLevel(tok json.Token) int {
	switch v := tok.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(v)
	}
	return defaultLevel
}
