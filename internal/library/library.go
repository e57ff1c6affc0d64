// Package library is the document source: a directory of downloaded study
// PDFs plus the manifest the scraper writes (filename -> origin URL).
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/config"
	"github.com/verseware/studyrag/internal/extract"
	"github.com/verseware/studyrag/internal/models"
)

// Library lists and loads documents from the PDF directory. The stable source
// key of a document is its filename; re-extraction of an unchanged file yields
// byte-identical text (extraction canonicalizes whitespace).
type Library struct {
	dir          string
	manifestPath string
	extensions   []string
	extractor    *extract.Extractor
	logger       *zap.Logger

	manifestOnce sync.Once
	manifest     map[string]string
	manifestErr  error
}

// New creates a library over cfg's directory. logger may be nil.
func New(cfg config.LibraryConfig, logger *zap.Logger) *Library {
	return &Library{
		dir:          cfg.PDFDir,
		manifestPath: cfg.ManifestPath,
		extensions:   cfg.Extensions,
		extractor:    extract.NewExtractor(),
		logger:       logger,
	}
}

// List returns the source IDs (filenames) of all documents in the library,
// sorted for deterministic ingestion order.
func (l *Library) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read library directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !l.allowed(e.Name()) {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Load extracts one document by source ID. The origin URL comes from the
// manifest when present.
func (l *Library) Load(ctx context.Context, sourceID string) (models.Document, error) {
	if sourceID != filepath.Base(sourceID) {
		return models.Document{}, fmt.Errorf("invalid source ID %q", sourceID)
	}
	path := filepath.Join(l.dir, sourceID)
	text, err := l.extractor.Extract(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("extract %s: %w", sourceID, err)
	}
	manifest, err := l.Manifest()
	if err != nil {
		// A broken manifest costs origin URLs, not ingestion.
		if l.logger != nil {
			l.logger.Warn("manifest unreadable", zap.Error(err))
		}
		manifest = nil
	}
	return models.Document{
		SourceID:    sourceID,
		Title:       titleOf(sourceID),
		OriginURL:   manifest[sourceID],
		Text:        text,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

// Allowed reports whether the filename has an ingestable extension. Used by
// the watcher to filter events.
func (l *Library) Allowed(name string) bool {
	return l.allowed(name)
}

func (l *Library) allowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range l.extensions {
		if strings.EqualFold(strings.TrimPrefix(a, "."), strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}

// titleOf turns a filename into a readable title: extension stripped,
// underscores as spaces.
func titleOf(sourceID string) string {
	base := strings.TrimSuffix(sourceID, filepath.Ext(sourceID))
	return strings.ReplaceAll(base, "_", " ")
}
