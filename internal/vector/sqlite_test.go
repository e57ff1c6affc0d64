package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verseware/studyrag/internal/models"
)

func testDoc(sourceID string) models.Document {
	return models.Document{
		SourceID:    sourceID,
		Title:       sourceID,
		ExtractedAt: time.Now(),
	}
}

func record(sourceID string, seq int, text string, vec []float32) models.IndexRecord {
	return models.IndexRecord{
		Chunk: models.Chunk{
			ID:            models.ChunkID(sourceID, seq),
			SourceID:      sourceID,
			SequenceIndex: seq,
			Text:          text,
		},
		Embedding: vec,
	}
}

func TestUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	err = idx.Upsert(ctx, testDoc("a.pdf"), []models.IndexRecord{
		record("a.pdf", 0, "alpha", []float32{1, 0, 0}),
		record("a.pdf", 1, "beta", []float32{0, 1, 0}),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Text != "alpha" || results[0].Score < 0.99 {
		t.Errorf("nearest = %q score %f", results[0].Text, results[0].Score)
	}
	if results[1].Text != "beta" {
		t.Errorf("second = %q", results[1].Text)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	recs := []models.IndexRecord{record("a.pdf", 0, "alpha", []float32{1, 0, 0})}
	for i := 0; i < 2; i++ {
		if err := idx.Upsert(ctx, testDoc("a.pdf"), recs); err != nil {
			t.Fatal(err)
		}
	}
	n, err := idx.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("chunk count after double upsert = %d, want 1", n)
	}
	docs, err := idx.CountDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if docs != 1 {
		t.Errorf("document count = %d, want 1", docs)
	}
}

func TestUpsert_ReplacesChangedContent(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if err := idx.Upsert(ctx, testDoc("a.pdf"), []models.IndexRecord{record("a.pdf", 0, "old text", []float32{1, 0, 0})}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, testDoc("a.pdf"), []models.IndexRecord{record("a.pdf", 0, "new text", []float32{0, 1, 0})}); err != nil {
		t.Fatal(err)
	}
	n, _ := idx.Count(ctx)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	results, err := idx.Query(ctx, []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Text != "new text" {
		t.Errorf("got %q, want replaced content", results[0].Text)
	}
}

func TestQuery_EmptyIndex(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	results, err := idx.Query(context.Background(), []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("empty index should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results", len(results))
	}
}

func TestQuery_KZero(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if err := idx.Upsert(ctx, testDoc("a.pdf"), []models.IndexRecord{record("a.pdf", 0, "x", []float32{1, 0, 0})}); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Query(ctx, []float32{1, 0, 0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("k=0 should return empty, got %d", len(results))
	}
}

func TestQuery_TieBreak(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	// Identical vectors give identical scores; order must be by
	// (sequence index, source ID) ascending.
	same := []float32{1, 0, 0}
	if err := idx.Upsert(ctx, testDoc("b.pdf"), []models.IndexRecord{
		record("b.pdf", 2, "b2", same),
		record("b.pdf", 1, "b1", same),
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, testDoc("a.pdf"), []models.IndexRecord{
		record("a.pdf", 1, "a1", same),
	}); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Query(ctx, same, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a1", "b1", "b2"}
	for i, w := range want {
		if results[i].Text != w {
			t.Errorf("results[%d] = %q, want %q", i, results[i].Text, w)
		}
	}
}

func TestPersistence_AcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, testDoc("a.pdf"), []models.IndexRecord{record("a.pdf", 0, "persisted", []float32{0, 0, 1})}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx2, err := Open(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx2.Close()
	results, err := idx2.Query(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Text != "persisted" {
		t.Fatalf("got %+v", results)
	}
	ok, err := idx2.Exists(ctx, "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("document should exist after reopen")
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ok, err := idx.Exists(ctx, "missing.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("missing document reported as existing")
	}
}

func TestRebuild_IncompleteMarker(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Upsert(ctx, testDoc("a.pdf"), []models.IndexRecord{record("a.pdf", 0, "x", []float32{1, 0, 0})}); err != nil {
		t.Fatal(err)
	}
	if err := idx.BeginRebuild(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := idx.Count(ctx)
	if n != 0 {
		t.Errorf("count after BeginRebuild = %d, want 0", n)
	}
	// Simulate a crash before CompleteRebuild.
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path, 3); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("open after incomplete rebuild: got %v, want ErrCorrupt", err)
	}

	// WithRepair lets a rebuilding run take over.
	idx2, err := Open(path, 3, WithRepair())
	if err != nil {
		t.Fatal(err)
	}
	defer idx2.Close()
	if err := idx2.CompleteRebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if err := idx2.Close(); err != nil {
		t.Fatal(err)
	}
	idx3, err := Open(path, 3)
	if err != nil {
		t.Fatalf("open after completed rebuild: %v", err)
	}
	idx3.Close()
}

func TestOpen_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, 5); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("got %v, want ErrCorrupt for dimension change", err)
	}
}

func TestQuery_DimensionMismatch(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if _, err := idx.Query(context.Background(), []float32{1, 0}, 4); err == nil {
		t.Fatal("expected error for wrong query dimension")
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"), 3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	err = idx.Upsert(context.Background(), testDoc("a.pdf"), []models.IndexRecord{record("a.pdf", 0, "x", []float32{1, 0})})
	if err == nil {
		t.Fatal("expected error for wrong record dimension")
	}
}
