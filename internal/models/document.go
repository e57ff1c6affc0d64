// Package models defines core data structures for documents, chunks, and answers.
package models

import (
	"fmt"
	"time"
)

// Document is a logical source unit: one extracted study PDF (or text file).
// SourceID is the stable key (the filename); the document is immutable once
// extracted and re-extraction replaces it wholesale.
type Document struct {
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	OriginURL   string    `json:"origin_url,omitempty"`
	Text        string    `json:"text"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Chunk is a contiguous span of a document's text, the atomic retrieval unit.
type Chunk struct {
	ID            string `json:"id"`
	SourceID      string `json:"source_id"`
	SequenceIndex int    `json:"sequence_index"`
	Text          string `json:"text"`
}

// ChunkID derives a chunk identity from its parent document and position.
// Re-ingesting the same document with unchanged chunking parameters yields
// identical IDs, which is what makes index upserts idempotent.
func ChunkID(sourceID string, sequenceIndex int) string {
	return fmt.Sprintf("%s_%d", sourceID, sequenceIndex)
}

// IndexRecord is the persisted unit of the vector index: a chunk plus its
// embedding. Embeddings are L2-normalized before storage.
type IndexRecord struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// ScoredChunk is a retrieval hit: a chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}
