package models

// DocStatus is the final state of one document in an ingestion run.
type DocStatus string

const (
	// StatusIndexed means the document was chunked, embedded, and upserted.
	StatusIndexed DocStatus = "indexed"
	// StatusSkipped means the document was already present and left untouched.
	StatusSkipped DocStatus = "skipped"
	// StatusFailed means the document failed at some stage; Err carries the reason.
	StatusFailed DocStatus = "failed"
)

// DocReport is the per-document outcome of an ingestion run.
type DocReport struct {
	SourceID string    `json:"source_id"`
	Status   DocStatus `json:"status"`
	Chunks   int       `json:"chunks"`
	Err      string    `json:"error,omitempty"`
}

// Report summarizes an ingestion run. One failed document never aborts the
// batch; it is recorded here instead. Documents is in input order.
type Report struct {
	RunID     string      `json:"run_id"`
	Indexed   int         `json:"indexed"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Documents []DocReport `json:"documents"`
}

// FailedSources returns the source IDs of documents that failed this run.
func (r *Report) FailedSources() []string {
	var failed []string
	for _, d := range r.Documents {
		if d.Status == StatusFailed {
			failed = append(failed, d.SourceID)
		}
	}
	return failed
}
