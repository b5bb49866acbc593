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

func TestNormalizeWhitespace(t *testing.T) {
	if NormalizeWhitespace("  a  b  ") != "a b" {
		t.Error("expected trimmed and collapsed spaces")
	}
	if NormalizeWhitespace("a\n\tb") != "a b" {
		t.Error("expected newlines and tabs collapsed")
	}
	if NormalizeWhitespace("") != "" {
		t.Error("empty stays empty")
	}
}
