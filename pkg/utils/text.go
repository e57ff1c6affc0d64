package utils

import "strings"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// CollapseWhitespace collapses all runs of whitespace in s to single spaces
// and trims the ends. Extracted text is canonicalized this way so that
// re-extracting an unchanged source yields byte-identical content.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
