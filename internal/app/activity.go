package app

// PushActivity appends a streamed orchestration event to the activity log.
// Pushing an id that is already present is a no-op, so replayed stream blocks
// cannot duplicate entries. The log keeps insertion order; it is never
// re-sorted by timestamp.
func (s *Store) PushActivity(event ActivityEvent) {
	s.commit(func(st *State) {
		for _, e := range st.ActivityLog {
			if e.ID == event.ID {
				return
			}
		}
		st.ActivityLog = append(st.ActivityLog, event)
		for _, name := range st.ActiveAgents {
			if name == event.AgentName {
				return
			}
		}
		st.ActiveAgents = append(st.ActiveAgents, event.AgentName)
	})
}

// ClearActivity resets the activity log and the active-agent set together.
// Called at the start of every orchestration step and on terminal events so
// stale per-turn activity never leaks into the next turn.
func (s *Store) ClearActivity() {
	s.commit(func(st *State) {
		st.ActivityLog = nil
		st.ActiveAgents = nil
	})
}
