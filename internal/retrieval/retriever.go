package retrieval

import (
	"context"
	"log/slog"
	"time"
)

// ContextChunk is a retrieved knowledge fragment with its similarity score.
type ContextChunk struct {
	ID        string
	DocType   string
	Title     string
	Text      string
	Score     float32
	Metadata  string
	CreatedAt time.Time
}

// Retriever combines embedding and per-collection vector search. An
// unreachable index degrades to an empty result (logged), so a knowledge
// base outage reduces answers to "no KB evidence" instead of failing the
// request.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
	// threshold is a distance floor: entries with 1-similarity >= threshold
	// are excluded, not merely scored low. Zero disables it.
	threshold float64
	logger    *slog.Logger
}

// NewRetriever creates a Retriever backed by the given Embedder and
// VectorStore, with an optional distance threshold.
func NewRetriever(embedder *Embedder, store VectorStore, threshold float64) *Retriever {
	return &Retriever{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
		logger:    slog.Default(),
	}
}

// Embedder exposes the underlying embedder so orchestrators can embed a
// query once and fan out across collections.
func (r *Retriever) Embedder() *Embedder {
	return r.embedder
}

// Retrieve embeds the query and returns the top-K chunks from one
// collection. The returned error is non-nil only for embedding failures;
// index failures degrade to an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, collection, query string, topK int) ([]ContextChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.RetrieveVector(ctx, collection, vec, topK), nil
}

// RetrieveVector searches one collection with a precomputed query vector.
// Store failures are logged and degrade to an empty result.
func (r *Retriever) RetrieveVector(_ context.Context, collection string, vector []float32, topK int) []ContextChunk {
	scored, err := r.store.Search(collection, vector, topK)
	if err != nil {
		r.logger.Warn("vector search failed, degrading to empty evidence",
			"collection", collection, "error", err)
		return nil
	}

	chunks := make([]ContextChunk, 0, len(scored))
	for _, s := range scored {
		if r.threshold > 0 && 1-float64(s.Score) >= r.threshold {
			continue
		}
		chunks = append(chunks, ContextChunk{
			ID:        s.ID,
			DocType:   s.DocType,
			Title:     s.Title,
			Text:      s.Text,
			Score:     s.Score,
			Metadata:  s.Metadata,
			CreatedAt: s.CreatedAt,
		})
	}
	return chunks
}
