package library

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest returns the scraper's manifest: a JSON object mapping filename to
// the URL the PDF was downloaded from. A missing manifest is not an error;
// documents simply carry no origin URL. The file is read once per Library, so
// a batch ingest of N documents parses it a single time.
func (l *Library) Manifest() (map[string]string, error) {
	l.manifestOnce.Do(func() {
		l.manifest, l.manifestErr = l.readManifest()
	})
	return l.manifest, l.manifestErr
}

func (l *Library) readManifest() (map[string]string, error) {
	data, err := os.ReadFile(l.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}
