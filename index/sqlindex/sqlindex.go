// Package sqlindex implements the vector-similarity index behind
// semantic tool selection using pure-Go SQLite with in-process
// brute-force cosine search. Zero CGO required.
package sqlindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	luna "github.com/lunasparkai/luna"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Embedder turns texts into embedding vectors. The openaicompat Client
// satisfies this.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a structured logger. When set, the index emits debug
// logs for every operation including timing and row counts.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// Index implements luna.VectorIndex backed by a local SQLite file.
// Embeddings are stored as JSON text and search scans every stored
// vector; the catalog it serves holds tens of documents, not millions.
type Index struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger
}

var _ luna.VectorIndex = (*Index)(nil)

// New creates an Index using a local SQLite file at dbPath.
// A single shared connection (SetMaxOpenConns(1)) serializes all
// goroutines through one writer, eliminating SQLITE_BUSY errors.
func New(dbPath string, embedder Embedder, opts ...Option) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlindex: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ix := &Index{db: db, embedder: embedder, logger: slog.Default()}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Init creates the documents table.
func (ix *Index) Init(ctx context.Context) error {
	_, err := ix.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		embedding TEXT NOT NULL,
		metadata TEXT,
		updated_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("sqlindex: create table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (ix *Index) Close() error { return ix.db.Close() }

// Upsert embeds document and stores it under id, replacing any prior
// version.
func (ix *Index) Upsert(ctx context.Context, id, document string, metadata map[string]string) error {
	start := time.Now()
	vecs, err := ix.embedder.Embed(ctx, []string{document})
	if err != nil {
		return fmt.Errorf("sqlindex: embed document: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("sqlindex: embed document: got %d vectors", len(vecs))
	}

	var metaJSON *string
	if len(metadata) > 0 {
		data, _ := json.Marshal(metadata)
		v := string(data)
		metaJSON = &v
	}

	_, err = ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, content, embedding, metadata, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, document, serializeEmbedding(vecs[0]), metaJSON, luna.NowUnix(),
	)
	if err != nil {
		return fmt.Errorf("sqlindex: upsert: %w", err)
	}
	ix.logger.Debug("sqlindex: upsert ok", "id", id, "duration", time.Since(start))
	return nil
}

// Query embeds text and returns the k nearest documents by cosine
// distance, optionally restricted to documents whose metadata contains
// every key/value pair in filter.
func (ix *Index) Query(ctx context.Context, text string, k int, filter map[string]string) ([]luna.Match, error) {
	start := time.Now()
	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("sqlindex: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("sqlindex: embed query: got %d vectors", len(vecs))
	}
	query := vecs[0]

	rows, err := ix.db.QueryContext(ctx, `SELECT id, embedding, metadata FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("sqlindex: query: %w", err)
	}
	defer rows.Close()

	var matches []luna.Match
	scanned := 0
	for rows.Next() {
		var id, embJSON string
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &embJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("sqlindex: scan: %w", err)
		}
		scanned++

		var metadata map[string]string
		if metaJSON.Valid {
			if err := json.Unmarshal([]byte(metaJSON.String), &metadata); err != nil {
				continue
			}
		}
		if !matchesFilter(metadata, filter) {
			continue
		}
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		matches = append(matches, luna.Match{
			ID:       id,
			Distance: 1 - cosineSimilarity(query, stored),
			Metadata: metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlindex: iterate: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	ix.logger.Debug("sqlindex: query ok",
		"scanned", scanned, "returned", len(matches), "duration", time.Since(start))
	return matches, nil
}

// Delete removes a document by id. Unknown ids are a no-op.
func (ix *Index) Delete(ctx context.Context, id string) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlindex: delete: %w", err)
	}
	return nil
}

// Len returns the number of stored documents.
func (ix *Index) Len(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlindex: count: %w", err)
	}
	return n, nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
