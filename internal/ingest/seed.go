// Package ingest loads the knowledge base: seed JSON datasets for the
// careers, skills and FAQs collections, plus one-off PDF and web-page
// documents. Each item is rendered into a semantic text block, embedded,
// and inserted into the vector store; career items additionally persist
// their structured document for requirement lookups.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bidit/skillsage/internal/retrieval"
	"github.com/bidit/skillsage/internal/storage"
)

// ContentEmbedder generates embeddings for text.
type ContentEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorInserter inserts records into the vector store.
type VectorInserter interface {
	Insert(collection string, records []retrieval.Record) error
}

// CareerSaver persists structured career documents for requirement lookups.
type CareerSaver interface {
	SaveCareer(c storage.CareerRecord) error
}

// Ingestor loads knowledge documents into the vector store.
type Ingestor struct {
	embedder ContentEmbedder
	vectors  VectorInserter
	careers  CareerSaver
	logger   *slog.Logger
}

// NewIngestor builds an Ingestor. careers may be nil, in which case career
// items are embedded but their structured documents are not persisted.
func NewIngestor(embedder ContentEmbedder, vectors VectorInserter, careers CareerSaver) *Ingestor {
	return &Ingestor{
		embedder: embedder,
		vectors:  vectors,
		careers:  careers,
		logger:   slog.Default(),
	}
}

// Report summarizes one seed batch.
type Report struct {
	Ingested   int `json:"ingested"`
	Duplicates int `json:"duplicates"`
	NoID       int `json:"no_id"`
}

// DocType names a seed item kind and determines both the target collection
// and the semantic text layout.
type DocType string

const (
	DocCareer DocType = "career"
	DocSkill  DocType = "skill"
	DocFAQ    DocType = "faq"
)

// CollectionFor maps a document type to its vector collection.
func CollectionFor(docType DocType) (string, error) {
	switch docType {
	case DocCareer:
		return retrieval.CollectionCareers, nil
	case DocSkill:
		return retrieval.CollectionSkills, nil
	case DocFAQ:
		return retrieval.CollectionFAQs, nil
	default:
		return "", fmt.Errorf("unknown document type %q", docType)
	}
}

// SeedJSON ingests one dataset. data is either a bare array of items or an
// object wrapping the array under some key (the first array-valued key
// wins). Items without a recognizable identifier are skipped, as are
// duplicate identifiers within the batch.
func (in *Ingestor) SeedJSON(ctx context.Context, docType DocType, data []byte) (Report, error) {
	collection, err := CollectionFor(docType)
	if err != nil {
		return Report{}, err
	}

	items, err := unwrapItems(data)
	if err != nil {
		return Report{}, fmt.Errorf("parsing %s dataset: %w", docType, err)
	}

	var (
		report  Report
		records []retrieval.Record
		texts   []string
		seen    = make(map[string]bool)
	)
	for _, item := range items {
		id, title, ok := resolveID(item)
		if !ok {
			in.logger.Warn("skipping item with no identifiable id", slog.String("type", string(docType)))
			report.NoID++
			continue
		}
		if seen[id] {
			in.logger.Warn("skipping duplicate id", slog.String("id", id))
			report.Duplicates++
			continue
		}
		seen[id] = true

		text := semanticText(docType, title, item)
		records = append(records, retrieval.Record{
			ID:        id,
			DocType:   string(docType),
			Title:     title,
			Text:      text,
			Metadata:  metadataJSON(docType, item),
			CreatedAt: time.Now().UTC(),
		})
		texts = append(texts, text)

		if docType == DocCareer && in.careers != nil {
			in.saveCareerDoc(title, item)
		}
	}

	if len(records) == 0 {
		return report, nil
	}

	vecs, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return report, fmt.Errorf("embedding %s batch: %w", docType, err)
	}
	for i := range records {
		records[i].Embedding = vecs[i]
	}

	if err := in.vectors.Insert(collection, records); err != nil {
		return report, fmt.Errorf("inserting into %s: %w", collection, err)
	}
	report.Ingested = len(records)
	return report, nil
}

// Document ingests one free-form text unit, such as an extracted PDF or a
// fetched web page, into the given collection.
func (in *Ingestor) Document(ctx context.Context, collection, title, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("document %q has no text", title)
	}

	vec, err := in.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embedding document %q: %w", title, err)
	}

	rec := retrieval.Record{
		ID:        uuid.NewString(),
		DocType:   "document",
		Title:     title,
		Text:      text,
		Embedding: vec,
		CreatedAt: time.Now().UTC(),
	}
	if err := in.vectors.Insert(collection, []retrieval.Record{rec}); err != nil {
		return "", fmt.Errorf("inserting document %q: %w", title, err)
	}
	return rec.ID, nil
}

// unwrapItems accepts a bare array or an object whose first array-valued
// key holds the items.
func unwrapItems(data []byte) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("expected an array or a wrapping object: %w", err)
	}
	for _, raw := range wrapper {
		var items []map[string]any
		if err := json.Unmarshal(raw, &items); err == nil {
			return items, nil
		}
	}
	return nil, fmt.Errorf("no item array found in wrapping object")
}

// The accepted identifier fields, in priority order, with the title field
// each implies. A bare skill_name generates a derived seed id.
func resolveID(item map[string]any) (id, title string, ok bool) {
	if v, found := stringValue(item, "career_id"); found {
		title, _ = stringValue(item, "career_title")
		if title == "" {
			title = "Unknown Career"
		}
		return v, title, true
	}
	if v, found := stringValue(item, "skill_id"); found {
		title, _ = stringValue(item, "skill_name")
		if title == "" {
			title = "Unknown Skill"
		}
		return v, title, true
	}
	if v, found := stringValue(item, "faq_id"); found {
		title, _ = stringValue(item, "question")
		if title == "" {
			title = "Unknown Question"
		}
		return v, title, true
	}
	if v, found := stringValue(item, "skill_name"); found {
		derived := "seed_" + strings.ReplaceAll(strings.ToLower(v), " ", "_")
		return derived, v, true
	}
	return "", "", false
}

func stringValue(item map[string]any, key string) (string, bool) {
	v, ok := item[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// semanticText renders the block of prose the embedding model reads. The
// layout differs per type so retrieval surfaces the fields users ask about.
func semanticText(docType DocType, title string, item map[string]any) string {
	switch docType {
	case DocCareer:
		return fmt.Sprintf(
			"Career: %s. Category: %s. Description: %s Salary: %s. Demand: %s. Skills Needed: %s. Education: %s.",
			title,
			str(item, "category"),
			str(item, "description"),
			nestedStr(item, "salary_range", "mid_level"),
			nestedStr(item, "job_market", "demand"),
			joined(item, "required_skills"),
			nestedStr(item, "education_requirements", "minimum"),
		)
	case DocSkill:
		careers := joined(item, "career_applications")
		if careers == "" {
			careers = joined(item, "careers_using_this")
		}
		return fmt.Sprintf(
			"Skill: %s. Category: %s. Description: %s Difficulty: %s. Time to learn: %s. Use Cases: %s. Related Careers: %s.",
			title,
			str(item, "category"),
			str(item, "description"),
			str(item, "difficulty_level"),
			learningTime(item),
			joined(item, "use_cases"),
			careers,
		)
	case DocFAQ:
		return fmt.Sprintf(
			"Question: %s Answer: %s Category: %s.",
			title,
			str(item, "answer"),
			str(item, "category"),
		)
	default:
		return title
	}
}

// learningTime tolerates both the flat string and the nested object form
// seen across dataset revisions.
func learningTime(item map[string]any) string {
	switch v := item["learning_time"].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["proficiency"].(string); ok {
			return s
		}
		return "Variable"
	default:
		return "Variable"
	}
}

func metadataJSON(docType DocType, item map[string]any) string {
	meta := map[string]string{
		"category": str(item, "category"),
	}
	if docType == DocSkill {
		meta["difficulty"] = str(item, "difficulty_level")
		meta["demand"] = str(item, "industry_demand")
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func str(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return s
}

func nestedStr(item map[string]any, key, nestedKey string) string {
	m, ok := item[key].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[nestedKey].(string)
	return s
}

func joined(item map[string]any, key string) string {
	list, ok := item[key].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// saveCareerDoc persists the raw item so requirement lookups can parse its
// skill map later. Failures are logged; the vector insert still proceeds.
func (in *Ingestor) saveCareerDoc(title string, item map[string]any) {
	doc, err := json.Marshal(item)
	if err != nil {
		in.logger.Warn("marshaling career document failed", slog.String("title", title), slog.Any("error", err))
		return
	}
	err = in.careers.SaveCareer(storage.CareerRecord{
		Title:     title,
		Doc:       string(doc),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		in.logger.Warn("saving career document failed", slog.String("title", title), slog.Any("error", err))
	}
}
