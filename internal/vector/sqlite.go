package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/verseware/studyrag/internal/models"
)

const (
	metaKeyState      = "state"
	metaKeyDimensions = "dimensions"

	stateReady      = "ready"
	stateRebuilding = "rebuilding"
)

// SQLiteIndex implements Index on a SQLite database, mirroring all vectors in
// memory for brute-force similarity search. The mirror is loaded once at open;
// every write goes to the database first, then to the mirror.
type SQLiteIndex struct {
	db         *sql.DB
	dimensions int

	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
}

type entry struct {
	id       string
	sourceID string
	seq      int
	text     string
	vector   []float32
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	allowIncomplete bool
}

// WithRepair allows opening an index left in the rebuilding state, for
// callers that are about to rebuild it anyway.
func WithRepair() Option {
	return func(o *openOptions) { o.allowIncomplete = true }
}

// Open opens or creates the index database at dbPath. Parent directories are
// created if needed. Open fails with ErrCorrupt if the stored dimensionality
// differs from dimensions, if stored vectors are malformed, or if a previous
// rebuild never completed (unless WithRepair is given).
func Open(dbPath string, dimensions int, opts ...Option) (*SQLiteIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrCorrupt, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", ErrCorrupt, err)
	}

	idx := &SQLiteIndex{db: db, dimensions: dimensions, byID: make(map[string]int)}

	state, err := idx.getMeta(metaKeyState)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if state == stateRebuilding && !o.allowIncomplete {
		_ = db.Close()
		return nil, fmt.Errorf("%w: a rebuild did not complete; re-run ingestion with rebuild", ErrCorrupt)
	}
	if err := idx.checkDimensions(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := idx.loadMirror(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		source_id TEXT PRIMARY KEY,
		title TEXT,
		origin_url TEXT,
		extracted_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		FOREIGN KEY (source_id) REFERENCES documents(source_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteIndex) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read meta %s: %v", ErrCorrupt, key, err)
	}
	return value, nil
}

func (s *SQLiteIndex) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// checkDimensions validates the stored dimensionality against the configured
// one, recording it on first open.
func (s *SQLiteIndex) checkDimensions() error {
	stored, err := s.getMeta(metaKeyDimensions)
	if err != nil {
		return err
	}
	if stored == "" {
		return s.setMeta(context.Background(), metaKeyDimensions, strconv.Itoa(s.dimensions))
	}
	n, err := strconv.Atoi(stored)
	if err != nil || n != s.dimensions {
		return fmt.Errorf("%w: index built with %s dimensions, configured for %d", ErrCorrupt, stored, s.dimensions)
	}
	return nil
}

func (s *SQLiteIndex) loadMirror() error {
	rows, err := s.db.Query(`SELECT id, source_id, seq, content, embedding FROM chunks ORDER BY source_id, seq`)
	if err != nil {
		return fmt.Errorf("%w: load chunks: %v", ErrCorrupt, err)
	}
	defer rows.Close()
	for rows.Next() {
		var e entry
		var blob []byte
		if err := rows.Scan(&e.id, &e.sourceID, &e.seq, &e.text, &blob); err != nil {
			return fmt.Errorf("%w: scan chunk: %v", ErrCorrupt, err)
		}
		if len(blob) != s.dimensions*4 {
			return fmt.Errorf("%w: chunk %s has a %d-byte embedding, want %d", ErrCorrupt, e.id, len(blob), s.dimensions*4)
		}
		e.vector = bytesToFloat32Slice(blob)
		s.byID[e.id] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate chunks: %v", ErrCorrupt, err)
	}
	return nil
}

// Upsert writes the document and its records transactionally, then updates
// the in-memory mirror. Safe for concurrent use; writes to the same chunk ID
// serialize on the database transaction and the mirror lock.
func (s *SQLiteIndex) Upsert(ctx context.Context, doc models.Document, records []models.IndexRecord) error {
	for _, rec := range records {
		if len(rec.Embedding) != s.dimensions {
			return fmt.Errorf("record %s: embedding dimension %d, index expects %d", rec.ID, len(rec.Embedding), s.dimensions)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (source_id, title, origin_url, extracted_at) VALUES (?, ?, ?, ?)`,
		doc.SourceID, doc.Title, doc.OriginURL, doc.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.SourceID, err)
	}
	for _, rec := range records {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunks (id, source_id, seq, content, embedding) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.SourceID, rec.SequenceIndex, rec.Text, float32SliceToBytes(rec.Embedding),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		vec := make([]float32, s.dimensions)
		copy(vec, rec.Embedding)
		e := entry{id: rec.ID, sourceID: rec.SourceID, seq: rec.SequenceIndex, text: rec.Text, vector: vec}
		if i, ok := s.byID[rec.ID]; ok {
			s.entries[i] = e
		} else {
			s.byID[rec.ID] = len(s.entries)
			s.entries = append(s.entries, e)
		}
	}
	return nil
}

// Query scores every stored vector against embedding by inner product
// (vectors are normalized, so this is cosine similarity) and returns the top
// k. Deterministic: equal scores order by (sequence index, source ID).
func (s *SQLiteIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(embedding), s.dimensions)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	scored := make([]models.ScoredChunk, len(s.entries))
	for i, e := range s.entries {
		var dot float64
		for j := 0; j < s.dimensions; j++ {
			dot += float64(embedding[j]) * float64(e.vector[j])
		}
		scored[i] = models.ScoredChunk{
			Chunk: models.Chunk{ID: e.id, SourceID: e.sourceID, SequenceIndex: e.seq, Text: e.text},
			Score: dot,
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].SequenceIndex != scored[j].SequenceIndex {
			return scored[i].SequenceIndex < scored[j].SequenceIndex
		}
		return scored[i].SourceID < scored[j].SourceID
	})
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Exists reports whether the document is already indexed.
func (s *SQLiteIndex) Exists(ctx context.Context, sourceID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE source_id = ?`, sourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of indexed chunks.
func (s *SQLiteIndex) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// CountDocuments returns the number of indexed documents.
func (s *SQLiteIndex) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// BeginRebuild deletes all records and marks the index incomplete. If the
// process dies before CompleteRebuild, the next Open reports ErrCorrupt
// instead of presenting a half-built index as ready.
func (s *SQLiteIndex) BeginRebuild(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, metaKeyState, stateRebuilding); err != nil {
		return fmt.Errorf("mark rebuilding: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild clear: %w", err)
	}
	s.mu.Lock()
	s.entries = nil
	s.byID = make(map[string]int)
	s.mu.Unlock()
	return nil
}

// CompleteRebuild marks the index ready.
func (s *SQLiteIndex) CompleteRebuild(ctx context.Context) error {
	return s.setMeta(ctx, metaKeyState, stateReady)
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
