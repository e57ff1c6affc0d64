// Package vector provides the persistent vector index: idempotent upserts and
// cosine-similarity top-k queries over embedded chunks.
package vector

import (
	"context"
	"errors"

	"github.com/verseware/studyrag/internal/models"
)

// ErrCorrupt is returned when the persisted index cannot be trusted: the
// database fails to load, stored vectors do not match the configured
// dimensionality, or a previous rebuild never completed. The index must be
// rebuilt; it is never silently presented as an empty, ready index.
var ErrCorrupt = errors.New("vector index corrupt")

// Index stores embedded chunks and answers nearest-neighbor queries.
type Index interface {
	// Upsert writes a document and its chunk records in one transaction.
	// Writing the same chunk ID twice with identical content is a no-op to
	// readers; different content replaces the record.
	Upsert(ctx context.Context, doc models.Document, records []models.IndexRecord) error
	// Query returns up to k records nearest to embedding by cosine
	// similarity, descending; ties break by ascending (sequence index,
	// source ID). An empty index yields an empty result, not an error.
	Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error)
	// Exists reports whether a document with the given source ID is indexed.
	Exists(ctx context.Context, sourceID string) (bool, error)
	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int64, error)
	// CountDocuments returns the number of indexed documents.
	CountDocuments(ctx context.Context) (int64, error)
	// BeginRebuild clears all records and marks the index incomplete until
	// CompleteRebuild is called.
	BeginRebuild(ctx context.Context) error
	// CompleteRebuild marks the index ready again.
	CompleteRebuild(ctx context.Context) error
	Close() error
}
