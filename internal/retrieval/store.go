package retrieval

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage and brute-force cosine similarity
// search backed by SQLite. Collections are rows in one table filtered by a
// collection column; the knowledge base is small enough (hundreds of
// documents) that a linear scan per query is fine.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
// The knowledge_vectors table must already exist (created via migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert adds records to the given collection.
func (s *SQLiteStore) Insert(collection string, records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO knowledge_vectors (id, collection, doc_type, title, text_chunk, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		blob := encodeFloat32s(r.Embedding)
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata := r.Metadata
		if metadata == "" {
			metadata = "{}"
		}
		if _, err := stmt.Exec(r.ID, collection, r.DocType, r.Title, r.Text, blob, metadata, createdAt.Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// rowScore holds only the rowid, id, and score during the scan phase.
// Full record details are fetched only for top-K winners.
type rowScore struct {
	RowID int64
	ID    string
	Score float32
}

// Search performs brute-force cosine similarity search over one collection,
// returning the top-K most similar records. Ties are broken by insertion
// order (ascending rowid).
func (s *SQLiteStore) Search(collection string, vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT rowid, id, embedding FROM knowledge_vectors WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	h := &rowScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var rowid int64
		var id string
		var blob []byte
		if err := rows.Scan(&rowid, &id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		cand := rowScore{RowID: rowid, ID: id, Score: score}
		if h.Len() < topK {
			heap.Push(h, cand)
		} else if worse((*h)[0], cand) {
			(*h)[0] = cand
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full records only for the winners.
	winners := make([]rowScore, h.Len())
	for i := len(winners) - 1; i >= 0; i-- {
		winners[i] = heap.Pop(h).(rowScore)
	}

	byID := make(map[string]rowScore, len(winners))
	args := make([]interface{}, 0, len(winners)+1)
	args = append(args, collection)
	for _, w := range winners {
		byID[w.ID] = w
		args = append(args, w.ID)
	}

	fullQuery := `SELECT id, doc_type, title, text_chunk, embedding, metadata, created_at
		FROM knowledge_vectors WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(winners)-1) + `)`

	fullRows, err := s.db.Query(fullQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K records: %w", err)
	}
	defer fullRows.Close()

	type scoredWithRow struct {
		ScoredRecord
		rowid int64
	}
	var results []scoredWithRow
	for fullRows.Next() {
		var r Record
		var blob []byte
		var createdAt string
		if err := fullRows.Scan(&r.ID, &r.DocType, &r.Title, &r.Text, &blob, &r.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning full record: %w", err)
		}
		embedding, err := decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		r.Embedding = embedding
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t

		w := byID[r.ID]
		results = append(results, scoredWithRow{
			ScoredRecord: ScoredRecord{Record: r, Score: w.Score},
			rowid:        w.RowID,
		})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full records: %w", err)
	}

	// Score descending, insertion order on ties (IN query doesn't preserve order).
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].rowid < results[j].rowid
	})

	out := make([]ScoredRecord, len(results))
	for i, r := range results {
		out[i] = r.ScoredRecord
	}
	return out, nil
}

// worse reports whether a is a worse candidate than b: lower score, or on
// equal scores, later insertion.
func worse(a, b rowScore) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.RowID > b.RowID
}

// Count returns the number of records in the given collection.
func (s *SQLiteStore) Count(collection string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM knowledge_vectors WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// Delete removes a record by ID from the given collection.
func (s *SQLiteStore) Delete(collection, id string) error {
	res, err := s.db.Exec(`DELETE FROM knowledge_vectors WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s not found in %s", id, collection)
	}
	return nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// rowScoreHeap is a min-heap of rowScore: the worst candidate sits at the
// root so it can be evicted cheaply during the scan phase.
type rowScoreHeap []rowScore

func (h rowScoreHeap) Len() int            { return len(h) }
func (h rowScoreHeap) Less(i, j int) bool  { return worse(h[i], h[j]) }
func (h rowScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rowScoreHeap) Push(x interface{}) { *h = append(*h, x.(rowScore)) }
func (h *rowScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
