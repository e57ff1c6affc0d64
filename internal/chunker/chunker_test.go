package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/verseware/studyrag/internal/models"
)

func doc(text string) models.Document {
	return models.Document{SourceID: "study.pdf", Text: text}
}

func TestChunk_CountAndOffsets(t *testing.T) {
	// 2500 chars, size 1000, overlap 200: stride 800, chunks at 0, 800, 1600.
	c, err := New(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("a", 2500)
	chunks, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantLens := []int{1000, 1000, 900}
	for i, ch := range chunks {
		if ch.SequenceIndex != i {
			t.Errorf("chunk %d SequenceIndex = %d", i, ch.SequenceIndex)
		}
		if len(ch.Text) != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, len(ch.Text), wantLens[i])
		}
		if ch.Text != text[i*800:i*800+wantLens[i]] {
			t.Errorf("chunk %d does not start at offset %d", i, i*800)
		}
		if ch.SourceID != "study.pdf" {
			t.Errorf("chunk %d SourceID = %q", i, ch.SourceID)
		}
		if ch.ID != models.ChunkID("study.pdf", i) {
			t.Errorf("chunk %d ID = %q", i, ch.ID)
		}
	}
}

func TestChunk_ShortDocumentSingleChunk(t *testing.T) {
	c, _ := New(1000, 200)
	chunks, err := c.Chunk(doc("a short study note"))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "a short study note" {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}

func TestChunk_ExactSizeSingleChunk(t *testing.T) {
	c, _ := New(100, 20)
	chunks, err := c.Chunk(doc(strings.Repeat("x", 100)))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestChunk_EmptyDocument(t *testing.T) {
	c, _ := New(1000, 200)
	for _, text := range []string{"", "   \n\t  "} {
		if _, err := c.Chunk(doc(text)); !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("text %q: got %v, want ErrEmptyDocument", text, err)
		}
	}
}

func TestChunk_WhitespaceAlignment(t *testing.T) {
	// Words of 9 chars + space; every window end lands mid-word, so each
	// non-final chunk should be pulled back to the preceding space.
	c, _ := New(100, 20)
	word := strings.Repeat("w", 9) + " "
	text := strings.Repeat(word, 40) // 400 chars
	chunks, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	for i, ch := range chunks[:len(chunks)-1] {
		if strings.HasSuffix(ch.Text, "w") && len(ch.Text) == 100 {
			t.Errorf("chunk %d was hard-cut mid-word despite nearby whitespace", i)
		}
		if len(ch.Text) > 100 {
			t.Errorf("chunk %d length %d exceeds configured size", i, len(ch.Text))
		}
	}
}

func TestChunk_SmallOverlapFullCoverage(t *testing.T) {
	// Overlap smaller than the alignment tolerance: whitespace lookback
	// must not pull a cut back past the next chunk's start, or the text
	// in between would be lost. A space just before the first window end
	// is the worst case.
	c, _ := New(100, 10)
	text := strings.Repeat("a", 50) + " " + strings.Repeat("b", 99)
	chunks, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatal(err)
	}
	covered := make([]bool, len(text))
	for _, ch := range chunks {
		start := ch.SequenceIndex * (c.size - c.overlap)
		if text[start:start+len(ch.Text)] != ch.Text {
			t.Fatalf("chunk %d does not start at offset %d", ch.SequenceIndex, start)
		}
		for i := start; i < start+len(ch.Text); i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("character at offset %d appears in no chunk", i)
		}
	}
	// The cut may move within the overlap, never past the next start.
	for i, ch := range chunks[:len(chunks)-1] {
		if len(ch.Text) < c.size-c.overlap {
			t.Errorf("chunk %d length %d is shorter than the stride", i, len(ch.Text))
		}
	}
}

func TestChunk_Overlap(t *testing.T) {
	c, _ := New(100, 20)
	text := strings.Repeat("b", 260)
	chunks, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatal(err)
	}
	// Without whitespace, each chunk is the raw window; consecutive chunks
	// share the trailing 20 characters.
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		if !strings.HasPrefix(cur.Text, prev.Text[len(prev.Text)-20:]) {
			t.Errorf("chunk %d does not begin with chunk %d's trailing overlap", i, i-1)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c, _ := New(120, 30)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 30)
	a, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, 0); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := New(100, 0); err == nil {
		t.Error("expected error for zero overlap")
	}
	if _, err := New(100, 100); err == nil {
		t.Error("expected error for overlap == size")
	}
	if _, err := New(100, 150); err == nil {
		t.Error("expected error for overlap > size")
	}
}
