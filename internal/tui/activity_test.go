package tui

import (
	"strings"
	"testing"

	"agentos-cli/internal/app"
)

func TestFormatActivityLine(t *testing.T) {
	cases := []struct {
		ev   app.ActivityEvent
		want string
	}{
		{app.ActivityEvent{Type: "thinking", AgentName: "Researcher"}, "… Researcher is thinking"},
		{app.ActivityEvent{Type: "tool_call", AgentName: "Coder", ToolName: "read_file", Args: `{"path":"a.go"}`}, `→ Coder calls read_file {"path":"a.go"}`},
		{app.ActivityEvent{Type: "tool_result", AgentName: "Coder", ToolName: "read_file", Result: "ok"}, "← Coder · read_file: ok"},
		{app.ActivityEvent{Type: "done", AgentName: "Coder"}, "• Coder done"},
	}
	for _, tc := range cases {
		if got := formatActivityLine(tc.ev); got != tc.want {
			t.Fatalf("type %s: got %q want %q", tc.ev.Type, got, tc.want)
		}
	}
}

func TestTruncateLineFlattensAndCaps(t *testing.T) {
	got := truncateLine("line one\nline two", 60)
	if strings.Contains(got, "\n") {
		t.Fatalf("newline survived: %q", got)
	}
	long := strings.Repeat("x", 80)
	if got := truncateLine(long, 60); got != strings.Repeat("x", 60)+"..." {
		t.Fatalf("cap: got %q", got)
	}
}

func TestNextIDCyclesAndWraps(t *testing.T) {
	ids := []string{"a", "b", "c"}
	if got := nextID(ids, "a"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := nextID(ids, "c"); got != "a" {
		t.Fatalf("wrap: got %q", got)
	}
	if got := nextID(ids, ""); got != "a" {
		t.Fatalf("no selection: got %q", got)
	}
	if got := nextID(nil, "a"); got != "" {
		t.Fatalf("empty list: got %q", got)
	}
}
