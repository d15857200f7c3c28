package app

import "testing"

func TestPushActivityDeduplicatesByID(t *testing.T) {
	s := newTestStore("", nil)

	s.PushActivity(ActivityEvent{ID: "e1", Type: "thinking", AgentName: "A"})
	s.PushActivity(ActivityEvent{ID: "e1", Type: "thinking", AgentName: "A"})
	s.PushActivity(ActivityEvent{ID: "e2", Type: "tool_call", AgentName: "A", ToolName: "search"})

	snap := s.Snapshot()
	if len(snap.ActivityLog) != 2 {
		t.Fatalf("expected duplicate dropped, got %d events", len(snap.ActivityLog))
	}
	if snap.ActivityLog[0].ID != "e1" || snap.ActivityLog[1].ID != "e2" {
		t.Fatalf("insertion order lost: %v", snap.ActivityLog)
	}
	if len(snap.ActiveAgents) != 1 {
		t.Fatalf("active agents: %v", snap.ActiveAgents)
	}
}

func TestPushActivityTracksDistinctAgents(t *testing.T) {
	s := newTestStore("", nil)

	s.PushActivity(ActivityEvent{ID: "e1", AgentName: "Researcher"})
	s.PushActivity(ActivityEvent{ID: "e2", AgentName: "Coder"})
	s.PushActivity(ActivityEvent{ID: "e3", AgentName: "Researcher"})

	snap := s.Snapshot()
	if len(snap.ActiveAgents) != 2 {
		t.Fatalf("expected 2 active agents, got %v", snap.ActiveAgents)
	}
	if snap.ActiveAgents[0] != "Researcher" || snap.ActiveAgents[1] != "Coder" {
		t.Fatalf("wrong agent order: %v", snap.ActiveAgents)
	}
}

func TestClearActivityResetsBoth(t *testing.T) {
	s := newTestStore("", nil)
	s.PushActivity(ActivityEvent{ID: "e1", AgentName: "A"})

	s.ClearActivity()

	snap := s.Snapshot()
	if len(snap.ActivityLog) != 0 || len(snap.ActiveAgents) != 0 {
		t.Fatalf("activity not fully cleared: %v %v", snap.ActivityLog, snap.ActiveAgents)
	}
}
