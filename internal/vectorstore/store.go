// Package vectorstore persists (content, embedding, metadata) triples in
// SQLite and serves top-k cosine similarity queries from an in-memory index
// that is rebuilt, not incrementally updated.
package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

// ErrIndexNotBuilt is returned by Search when BuildIndex has never completed.
// Initialize-then-query ordering is a caller precondition, even on an empty store.
var ErrIndexNotBuilt = errors.New("vector index not built")

// SearchResult is one similarity hit. Derived, never persisted.
type SearchResult struct {
	ID          int64   `json:"id"`
	Content     string  `json:"content"`
	ContentType string  `json:"content_type"`
	Metadata    string  `json:"metadata,omitempty"`
	Similarity  float32 `json:"similarity"`
}

// indexSnapshot is one complete, immutable build of the search index.
// BuildIndex publishes a fresh snapshot atomically; readers never observe
// a partially constructed one.
type indexSnapshot struct {
	collection *chromem.Collection
	size       int
}

// Store owns the knowledge_vectors table and the swappable index snapshot.
type Store struct {
	db    *sql.DB
	index atomic.Pointer[indexSnapshot]
}

// New wraps an existing *sql.DB for vector operations.
// The knowledge_vectors table must already exist (created via migrations).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends one vector record and returns its assigned id.
// The live index is not updated; the record is invisible to Search until
// the next BuildIndex.
func (s *Store) Insert(ctx context.Context, contentType, content string, embedding []float32, metadata string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_vectors (content_type, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		contentType, content, encodeFloat32s(embedding), metadata, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting vector: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading insert id: %w", err)
	}
	return id, nil
}

// noEmbed rejects any attempt to embed through the index. All documents
// carry precomputed embeddings; the index never generates its own.
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("index does not embed; embeddings are precomputed")
}

// BuildIndex reads every persisted vector and constructs a fresh in-memory
// index, replacing any previous one atomically. Inserts and deletes since
// the last build become visible only now.
func (s *Store) BuildIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_type, content, embedding, metadata FROM knowledge_vectors`)
	if err != nil {
		return fmt.Errorf("reading vectors: %w", err)
	}
	defer rows.Close()

	var docs []chromem.Document
	for rows.Next() {
		var id int64
		var contentType, content string
		var metadata sql.NullString
		var blob []byte
		if err := rows.Scan(&id, &contentType, &content, &blob, &metadata); err != nil {
			return fmt.Errorf("scanning vector row: %w", err)
		}
		embedding, err := decodeFloat32s(blob)
		if err != nil {
			return fmt.Errorf("decoding embedding for %d: %w", id, err)
		}
		docs = append(docs, chromem.Document{
			ID:        strconv.FormatInt(id, 10),
			Content:   content,
			Embedding: embedding,
			Metadata: map[string]string{
				"content_type": contentType,
				"metadata":     metadata.String,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating vectors: %w", err)
	}

	collection, err := chromem.NewDB().CreateCollection("knowledge", nil, noEmbed)
	if err != nil {
		return fmt.Errorf("creating index collection: %w", err)
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("indexing %d vectors: %w", len(docs), err)
		}
	}

	s.index.Store(&indexSnapshot{collection: collection, size: len(docs)})
	slog.Info("vector index built", "vectors", len(docs))
	return nil
}

// Search returns up to k results ranked by descending cosine similarity,
// optionally restricted to one content type. It over-fetches max(2k, 50)
// candidates to absorb filtering losses before truncating to k.
func (s *Store) Search(ctx context.Context, embedding []float32, k int, contentType string) ([]SearchResult, error) {
	snap := s.index.Load()
	if snap == nil {
		return nil, ErrIndexNotBuilt
	}
	if snap.size == 0 || k <= 0 {
		return nil, nil
	}

	fetch := max(2*k, 50)
	if fetch > snap.size {
		fetch = snap.size
	}

	hits, err := snap.collection.QueryEmbedding(ctx, embedding, fetch, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]SearchResult, 0, k)
	for _, hit := range hits {
		if contentType != "" && hit.Metadata["content_type"] != contentType {
			continue
		}
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing index id %q: %w", hit.ID, err)
		}
		results = append(results, SearchResult{
			ID:          id,
			Content:     hit.Content,
			ContentType: hit.Metadata["content_type"],
			Metadata:    hit.Metadata["metadata"],
			Similarity:  hit.Similarity,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// RebuildPending is returned by Delete to make the caller's rebuild
// obligation explicit: the live index still contains the deleted record
// until Rebuild is called.
type RebuildPending struct {
	store *Store
}

// Rebuild reconstructs the index so it no longer reflects deleted records.
func (p RebuildPending) Rebuild(ctx context.Context) error {
	return p.store.BuildIndex(ctx)
}

// Delete removes a record from the backing store. The live index is left
// untouched and keeps serving the stale record until the returned
// RebuildPending is acted on.
func (s *Store) Delete(ctx context.Context, id int64) (RebuildPending, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_vectors WHERE id = ?", id)
	if err != nil {
		return RebuildPending{}, fmt.Errorf("deleting record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return RebuildPending{}, err
	}
	if n == 0 {
		return RebuildPending{}, fmt.Errorf("record %d not found", id)
	}
	return RebuildPending{store: s}, nil
}

// Count returns the number of persisted vectors.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_vectors").Scan(&count)
	return count, err
}

// CountByType returns the number of persisted vectors of one content type.
func (s *Store) CountByType(ctx context.Context, contentType string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_vectors WHERE content_type = ?", contentType).Scan(&count)
	return count, err
}
