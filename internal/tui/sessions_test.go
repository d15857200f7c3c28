package tui

import (
	"testing"
	"time"

	"agentos-cli/internal/app"
)

func TestSessionLabel(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	meta := app.SessionMeta{
		Title:        "写一个排序函数",
		MessageCount: 4,
		UpdatedAt:    now.Add(-2 * time.Hour),
	}
	want := "写一个排序函数 · 4 messages · 2 小时前"
	if got := sessionLabel(meta, now); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
