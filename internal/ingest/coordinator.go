// Package ingest coordinates the chunk-embed-index pipeline over a document
// source, producing a per-document report.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/chunker"
	"github.com/verseware/studyrag/internal/llm"
	"github.com/verseware/studyrag/internal/models"
	"github.com/verseware/studyrag/internal/vector"
)

// Source lists and loads documents to ingest. The library satisfies this;
// tests supply in-memory sources.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, sourceID string) (models.Document, error)
}

// Coordinator runs documents through chunking, embedding, and indexing.
// One document's failure never aborts the batch; it is recorded instead.
type Coordinator struct {
	source      Source
	chunker     *chunker.Chunker
	embedder    llm.Embedder
	index       vector.Index
	concurrency int
	logger      *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a logger for per-document progress events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a coordinator. concurrency bounds how many documents are
// processed at once; values below 1 are treated as 1.
func New(source Source, ch *chunker.Chunker, embedder llm.Embedder, index vector.Index, concurrency int, opts ...Option) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	c := &Coordinator{
		source:      source,
		chunker:     ch,
		embedder:    embedder,
		index:       index,
		concurrency: concurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IngestAll processes every document the source lists. When forceRebuild is
// set the index is cleared first and every document is re-ingested; the
// rebuild is marked complete only after the batch finishes, so a crash
// mid-rebuild is detectable on the next open. Report.Documents is in source
// list order regardless of worker scheduling.
func (c *Coordinator) IngestAll(ctx context.Context, forceRebuild bool) (models.Report, error) {
	report := models.Report{RunID: uuid.New().String()}

	sourceIDs, err := c.source.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}

	if forceRebuild {
		if err := c.index.BeginRebuild(ctx); err != nil {
			return report, fmt.Errorf("begin rebuild: %w", err)
		}
	}

	docs := make([]models.DocReport, len(sourceIDs))
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.concurrency)
	for i, sourceID := range sourceIDs {
		wg.Add(1)
		go func(i int, sourceID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			docs[i] = c.ingestOne(ctx, sourceID, forceRebuild)
		}(i, sourceID)
	}
	wg.Wait()

	report.Documents = docs
	for _, d := range docs {
		switch d.Status {
		case models.StatusIndexed:
			report.Indexed++
		case models.StatusSkipped:
			report.Skipped++
		case models.StatusFailed:
			report.Failed++
		}
	}

	if forceRebuild {
		if err := c.index.CompleteRebuild(ctx); err != nil {
			return report, fmt.Errorf("complete rebuild: %w", err)
		}
	}
	if c.logger != nil {
		c.logger.Info("ingestion run finished",
			zap.String("run_id", report.RunID),
			zap.Int("indexed", report.Indexed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// IngestOne processes a single document unconditionally (no skip rule), used
// when a file change is observed. Returns the per-document outcome.
func (c *Coordinator) IngestOne(ctx context.Context, sourceID string) models.DocReport {
	return c.ingestOne(ctx, sourceID, true)
}

func (c *Coordinator) ingestOne(ctx context.Context, sourceID string, force bool) models.DocReport {
	rep := models.DocReport{SourceID: sourceID}

	if !force {
		exists, err := c.index.Exists(ctx, sourceID)
		if err != nil {
			rep.Status = models.StatusFailed
			rep.Err = fmt.Sprintf("check existing: %v", err)
			return rep
		}
		if exists {
			rep.Status = models.StatusSkipped
			if c.logger != nil {
				c.logger.Debug("document already indexed", zap.String("source_id", sourceID))
			}
			return rep
		}
	}

	doc, err := c.source.Load(ctx, sourceID)
	if err != nil {
		rep.Status = models.StatusFailed
		rep.Err = fmt.Sprintf("load document: %v", err)
		return rep
	}

	chunks, err := c.chunker.Chunk(doc)
	if err != nil {
		rep.Status = models.StatusFailed
		if errors.Is(err, chunker.ErrEmptyDocument) {
			rep.Err = "document has no extractable text"
		} else {
			rep.Err = fmt.Sprintf("chunk document: %v", err)
		}
		return rep
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		rep.Status = models.StatusFailed
		rep.Err = fmt.Sprintf("embed chunks: %v", err)
		return rep
	}

	records := make([]models.IndexRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = models.IndexRecord{Chunk: ch, Embedding: embeddings[i]}
	}
	if err := c.index.Upsert(ctx, doc, records); err != nil {
		rep.Status = models.StatusFailed
		rep.Err = fmt.Sprintf("index chunks: %v", err)
		return rep
	}

	rep.Status = models.StatusIndexed
	rep.Chunks = len(records)
	if c.logger != nil {
		c.logger.Debug("document indexed",
			zap.String("source_id", sourceID),
			zap.Int("chunks", rep.Chunks),
		)
	}
	return rep
}
