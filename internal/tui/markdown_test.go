package tui

import (
	"strings"
	"testing"
)

func TestRendererPlainText(t *testing.T) {
	r := NewRenderer()
	got := r.Render("hello world", 80)
	if !strings.Contains(got, "hello world") {
		t.Fatalf("plain text lost: %q", got)
	}
}

func TestRendererInlineElements(t *testing.T) {
	r := NewRenderer()
	got := r.Render("use `go test` and **verify** it", 80)
	for _, want := range []string{"go test", "verify"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestRendererListAndCodeBlock(t *testing.T) {
	r := NewRenderer()
	input := "- first\n- second\n\n```go\npackage main\n```\n"
	got := r.Render(input, 80)
	if !strings.Contains(got, "• first") || !strings.Contains(got, "• second") {
		t.Fatalf("list items missing: %q", got)
	}
	// chroma may interleave color escapes between tokens; check per token.
	if !strings.Contains(got, "package") || !strings.Contains(got, "main") {
		t.Fatalf("code block missing: %q", got)
	}
}

func TestHighlightUnknownLanguageReturnsCode(t *testing.T) {
	r := NewRenderer()
	got := r.Highlight("just words", "")
	if !strings.Contains(got, "just") || !strings.Contains(got, "words") {
		t.Fatalf("code lost: %q", got)
	}
}
