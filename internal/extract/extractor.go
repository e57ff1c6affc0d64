// Package extract provides best-effort plain-text extraction from study documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu4p/cat"

	"github.com/verseware/studyrag/pkg/utils"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// PDFs go through the primary reader first, falling back to a second
// extractor when the primary fails (extraction quality varies per producer).
// DOCX is handled by the fallback extractor; anything else is treated as
// plain UTF-8 text. The result has whitespace collapsed so that re-extracting
// an unchanged file yields byte-identical text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil || strings.TrimSpace(text) == "" {
			// Fallback reader handles PDFs the primary chokes on.
			fallback, fbErr := cat.File(path)
			if fbErr != nil {
				if err != nil {
					return "", fmt.Errorf("extract PDF: %w", err)
				}
				return "", fmt.Errorf("extract PDF fallback: %w", fbErr)
			}
			text = fallback
		}
		return clean(text), nil
	case ".docx", ".odt", ".rtf":
		text, err := cat.File(path)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return clean(text), nil
	default:
		text, err := extractPlain(content)
		if err != nil {
			return "", err
		}
		return clean(text), nil
	}
}

func clean(text string) string {
	return utils.CollapseWhitespace(text)
}
