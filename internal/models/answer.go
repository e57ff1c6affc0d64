package models

// Answer is a generated response grounded in retrieved chunks. Sources holds
// the distinct source IDs of the chunks the answer was conditioned on, in
// order of first appearance in the retrieval result.
type Answer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// SourcesOf returns the distinct SourceIDs from retrieved chunks, preserving
// first-appearance order. Every returned ID corresponds to a retrieved chunk;
// nothing is fabricated.
func SourcesOf(retrieved []ScoredChunk) []string {
	seen := make(map[string]bool, len(retrieved))
	var sources []string
	for _, sc := range retrieved {
		if !seen[sc.SourceID] {
			seen[sc.SourceID] = true
			sources = append(sources, sc.SourceID)
		}
	}
	return sources
}
