// Package chunker splits document text into overlapping fixed-size chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/verseware/studyrag/internal/models"
)

// ErrEmptyDocument is returned when a document has no text to chunk.
// Callers decide whether to skip the document or abort.
var ErrEmptyDocument = errors.New("document has no text")

// boundaryTolerance is how far back from the nominal window end the chunker
// looks for whitespace before falling back to a hard character cut. The
// effective lookback is capped at the configured overlap.
const boundaryTolerance = 64

// Chunker produces overlapping character-window chunks. Chunk i always starts
// at i*(size-overlap); only the window end may be pulled back to whitespace,
// so chunk offsets are a pure function of (text, size, overlap).
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. overlap must satisfy 0 < overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be between 1 and size-1, got %d", overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits the document text into chunks carrying provenance metadata.
// A document no longer than the chunk size yields exactly one chunk; for
// longer text the window advances by size-overlap until it reaches the end,
// so consecutive chunks share the trailing overlap region. Deterministic and
// side-effect free.
func (c *Chunker) Chunk(doc models.Document) ([]models.Chunk, error) {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, doc.SourceID)
	}
	stride := c.size - c.overlap
	var chunks []models.Chunk
	for seq, start := 0, 0; ; seq, start = seq+1, start+stride {
		end := start + c.size
		last := end >= len(text)
		if last {
			end = len(text)
		}
		cut := end
		if !last {
			cut = c.alignEnd(text, start, end)
		}
		chunks = append(chunks, models.Chunk{
			ID:            models.ChunkID(doc.SourceID, seq),
			SourceID:      doc.SourceID,
			SequenceIndex: seq,
			Text:          text[start:cut],
		})
		if last {
			return chunks, nil
		}
	}
}

// alignEnd pulls the window end back to the last whitespace within the
// tolerance so that chunks avoid splitting mid-word. Best effort: when no
// whitespace is close enough (or the window is tiny), the hard cut stands.
// The tolerance never exceeds the overlap: the dropped tail must stay inside
// the region the next chunk (starting at start+stride) re-covers, otherwise
// text between the cut and the next start would appear in no chunk.
func (c *Chunker) alignEnd(text string, start, end int) int {
	tolerance := boundaryTolerance
	if c.overlap < tolerance {
		tolerance = c.overlap
	}
	lo := end - tolerance
	if lo <= start {
		lo = start + 1
	}
	for i := end; i > lo; i-- {
		if isSpace(text[i-1]) {
			return i - 1
		}
	}
	return end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
