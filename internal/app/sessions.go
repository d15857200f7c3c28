package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// SessionManager is the local per-context session cache. Each conversation
// context (agent id or group id) owns one storage entry holding its full
// session array, capped at the 50 most recently appended sessions.
type SessionManager struct {
	storage Storage
	logger  *Logger
	now     func() time.Time
}

const (
	sessionKeyPrefix  = "agentos_sessions__"
	maxSessionsPerCtx = 50
)

func NewSessionManager(storage Storage, logger *Logger) *SessionManager {
	return &SessionManager{storage: storage, logger: logger, now: time.Now}
}

func sessionStorageKey(contextID string) string {
	return sessionKeyPrefix + contextID
}

// SaveSession upserts one session inside the context's session array and
// writes the whole array back. Empty contexts and empty message lists are
// never persisted. Write failures are logged, never returned.
func (m *SessionManager) SaveSession(contextID, sessionID string, messages []Message) {
	if contextID == "" || len(messages) == 0 {
		return
	}

	sessions := m.loadAll(contextID)
	now := m.now()

	kept := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.IsPlan {
			continue
		}
		kept = append(kept, msg)
	}

	sess := Session{
		SessionMeta: SessionMeta{
			ID:           sessionID,
			ContextID:    contextID,
			Title:        buildSessionTitle(messages),
			Preview:      buildSessionPreview(messages),
			CreatedAt:    now,
			UpdatedAt:    now,
			MessageCount: len(messages),
		},
		Messages: kept,
	}

	existing := -1
	for i := range sessions {
		if sessions[i].ID == sessionID {
			existing = i
			break
		}
	}
	if existing >= 0 {
		sess.CreatedAt = sessions[existing].CreatedAt
		sessions[existing] = sess
	} else {
		sessions = append(sessions, sess)
	}

	m.saveAll(contextID, sessions)
}

// ListSessions returns session metadata (message bodies stripped) sorted by
// UpdatedAt descending. Storage failures degrade to an empty list.
func (m *SessionManager) ListSessions(contextID string) []SessionMeta {
	sessions := m.loadAll(contextID)
	metas := make([]SessionMeta, 0, len(sessions))
	for _, s := range sessions {
		metas = append(metas, s.SessionMeta)
	}
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas
}

// LoadSession returns the full session, or nil when absent or unreadable.
func (m *SessionManager) LoadSession(contextID, sessionID string) *Session {
	for _, s := range m.loadAll(contextID) {
		if s.ID == sessionID {
			out := s
			return &out
		}
	}
	return nil
}

func (m *SessionManager) DeleteSession(contextID, sessionID string) {
	sessions := m.loadAll(contextID)
	kept := sessions[:0]
	for _, s := range sessions {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	m.saveAll(contextID, kept)
}

// GenerateSessionID combines a millisecond timestamp with a short random
// suffix. Not cryptographic; just unique enough to avoid same-millisecond
// collisions.
func (m *SessionManager) GenerateSessionID() string {
	suffix := strings.ToLower(shortuuid.New())
	if len(suffix) > 5 {
		suffix = suffix[:5]
	}
	return fmt.Sprintf("session_%d_%s", m.now().UnixMilli(), suffix)
}

func (m *SessionManager) loadAll(contextID string) []Session {
	raw, err := m.storage.Get(sessionStorageKey(contextID))
	if err != nil {
		return nil
	}
	var sessions []Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil
	}
	return sessions
}

func (m *SessionManager) saveAll(contextID string, sessions []Session) {
	if len(sessions) > maxSessionsPerCtx {
		sessions = sessions[len(sessions)-maxSessionsPerCtx:]
	}
	raw, err := json.Marshal(sessions)
	if err == nil {
		err = m.storage.Set(sessionStorageKey(contextID), raw)
	}
	if err != nil {
		m.logger.Warn("failed to persist sessions", map[string]interface{}{
			"context": contextID,
			"error":   err.Error(),
		})
	}
}

func buildSessionTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role == "user" {
			return truncateRunes(msg.Content, 30)
		}
	}
	return "新对话"
}

func buildSessionPreview(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "system" {
			return truncateRunes(messages[i].Content, 50)
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}

// FormatRelativeTime renders a timestamp as a relative label against now:
// 刚刚 under a minute, then minutes, hours and days, falling back to a
// month-day date after a week.
func FormatRelativeTime(ts, now time.Time) string {
	diff := now.Sub(ts)
	switch {
	case diff < time.Minute:
		return "刚刚"
	case diff < time.Hour:
		return fmt.Sprintf("%d 分钟前", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d 小时前", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d 天前", int(diff/(24*time.Hour)))
	default:
		return fmt.Sprintf("%d月%d日", int(ts.Month()), ts.Day())
	}
}

// FormatTime is the convenience form of FormatRelativeTime against the
// current clock.
func (m *SessionManager) FormatTime(ts time.Time) string {
	return FormatRelativeTime(ts, m.now())
}
