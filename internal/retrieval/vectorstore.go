package retrieval

import "time"

// Knowledge-base collection names. Each is queried independently; results
// are never merged across collections inside this package.
const (
	CollectionCareers = "careers"
	CollectionSkills  = "skills"
	CollectionFAQs    = "faqs"
)

// Collections lists all knowledge-base collections in query order.
func Collections() []string {
	return []string{CollectionCareers, CollectionSkills, CollectionFAQs}
}

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity over normalized embeddings; cosine space is mandated for all
// collections.
type VectorStore interface {
	// Insert adds records to the given collection.
	Insert(collection string, records []Record) error

	// Search returns the top-K most similar records in one collection,
	// ordered by descending cosine similarity, ties broken by insertion
	// order.
	Search(collection string, vector []float32, topK int) ([]ScoredRecord, error)

	// Count returns the number of records in the given collection.
	Count(collection string) (int, error)

	// Delete removes a record by ID from the given collection.
	Delete(collection, id string) error
}

// Record is an embedded knowledge document. Immutable after ingestion.
type Record struct {
	ID        string
	DocType   string // "career", "skill", or "faq"
	Title     string
	Text      string
	Embedding []float32
	Metadata  string // JSON object stored as text
	CreatedAt time.Time
}

// ScoredRecord is a Record with a cosine similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
