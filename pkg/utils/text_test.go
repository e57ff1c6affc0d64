package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a \n\t b  c  "); got != "a b c" {
		t.Errorf("got %q", got)
	}
	if got := CollapseWhitespace("already clean"); got != "already clean" {
		t.Errorf("got %q", got)
	}
	if got := CollapseWhitespace(" \n "); got != "" {
		t.Errorf("got %q", got)
	}
}
