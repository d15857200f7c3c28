package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type ChatMode string

const (
	ChatModeLegacy   ChatMode = "legacy"
	ChatModeWorkflow ChatMode = "workflow"
)

// maxAutoTurns caps autonomous continuation per user-initiated exchange so a
// server that keeps answering CONTINUE cannot loop forever.
const maxAutoTurns = 10

// continueDelay is the pause before an autonomous follow-up step.
const continueDelay = 2 * time.Second

// State is the full client-side application state. Exactly zero or one of
// CurrentAgentID/CurrentGroupID is non-empty at any time, and Messages is
// always the view of the current context's history map entry.
type State struct {
	User            *AuthUser
	Token           string
	IsAuthenticated bool
	ShowLoginModal  bool

	Workspaces         []Workspace
	CurrentWorkspaceID string
	Agents             []Agent
	CurrentAgentID     string
	Groups             []Group
	CurrentGroupID     string

	Messages      []Message
	ChatHistory   map[string][]Message
	GroupMessages map[string][]Message

	IsLoading bool

	ActivityLog  []ActivityEvent
	ActiveAgents []string

	PendingWorkflow   *Workflow
	ApprovedWorkflows []Workflow
	ChatMode          ChatMode

	CurrentSessionID string
}

// Store owns the State and is the only place it mutates. All mutations go
// through commit, which runs read-modify-write under the lock, so interleaved
// async operations cannot lose updates to stale copies.
type Store struct {
	mu    sync.Mutex
	state State

	client   *Client
	sessions *SessionManager
	storage  Storage
	logger   *Logger

	watchers []chan struct{}

	continueDelay time.Duration
	now           func() time.Time
}

func NewStore(client *Client, sessions *SessionManager, storage Storage, logger *Logger) *Store {
	s := &Store{
		state: State{
			ChatHistory:   make(map[string][]Message),
			GroupMessages: make(map[string][]Message),
			ChatMode:      ChatModeLegacy,
		},
		client:        client,
		sessions:      sessions,
		storage:       storage,
		logger:        logger,
		continueDelay: continueDelay,
		now:           time.Now,
	}
	client.TokenFunc = s.Token
	client.OnUnauthorized = s.handleUnauthorized
	return s
}

// Sessions exposes the local session cache to the UI layer.
func (s *Store) Sessions() *SessionManager { return s.sessions }

// Snapshot returns a copy of the current state. The history maps are copied;
// message slices are never mutated in place by commits, so sharing them with
// a snapshot is safe.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.ChatHistory = make(map[string][]Message, len(s.state.ChatHistory))
	for k, v := range s.state.ChatHistory {
		st.ChatHistory[k] = v
	}
	st.GroupMessages = make(map[string][]Message, len(s.state.GroupMessages))
	for k, v := range s.state.GroupMessages {
		st.GroupMessages[k] = v
	}
	return st
}

// Watch returns a channel that receives a tick after every commit.
func (s *Store) Watch() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.watchers = append(s.watchers, ch)
	return ch
}

func (s *Store) commit(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
}

// appendMessages builds a fresh slice so existing snapshots never observe an
// in-place append.
func appendMessages(list []Message, msgs ...Message) []Message {
	out := make([]Message, 0, len(list)+len(msgs))
	out = append(out, list...)
	out = append(out, msgs...)
	return out
}

// --- Workspace selection ---

// LoadWorkspaces fetches the workspace list and, when nothing is selected
// yet, selects the first workspace and loads its agents and groups.
func (s *Store) LoadWorkspaces(ctx context.Context) {
	workspaces, err := s.client.FetchWorkspaces(ctx)
	if err != nil {
		s.logger.Error("failed to load workspaces", map[string]interface{}{"error": err.Error()})
		return
	}
	var selected string
	s.commit(func(st *State) {
		st.Workspaces = workspaces
		if st.CurrentWorkspaceID == "" && len(workspaces) > 0 {
			st.CurrentWorkspaceID = workspaces[0].ID
			selected = workspaces[0].ID
		}
	})
	if selected != "" {
		s.LoadAgents(ctx, selected)
		s.LoadGroups(ctx, selected)
	}
}

// SetCurrentWorkspaceID switches the active workspace. Agents, groups and the
// message view are cleared immediately; the reloads that follow commit their
// results only if the workspace is still current when they land.
func (s *Store) SetCurrentWorkspaceID(ctx context.Context, id string) {
	s.commit(func(st *State) {
		st.CurrentWorkspaceID = id
		st.IsLoading = true
		st.Agents = nil
		st.Groups = nil
		st.CurrentAgentID = ""
		st.CurrentGroupID = ""
		st.Messages = nil
	})
	s.LoadAgents(ctx, id)
	s.LoadGroups(ctx, id)
	s.commit(func(st *State) { st.IsLoading = false })
}

// metaAgent is the built-in workspace supervisor prepended to every agent
// list.
func metaAgent() Agent {
	return Agent{
		ID:           "meta_agent",
		Name:         "超级助手",
		Workspace:    "workspace_default",
		SystemPrompt: "你是系统的超级助手 (Meta Agent)，负责监督和管理整个工作区。",
		ProviderID:   "builtin_glm4air_free",
		ModelName:    "z-ai/glm-4.5-air:free",
	}
}

// LoadAgents reloads the agent list for a workspace. A stale reload landing
// after the user already switched away commits nothing.
func (s *Store) LoadAgents(ctx context.Context, workspaceID string) {
	agents, err := s.client.FetchAgents(ctx, workspaceID)
	if err != nil {
		s.logger.Error("failed to load agents", map[string]interface{}{"error": err.Error()})
		s.commit(func(st *State) {
			if st.CurrentWorkspaceID != workspaceID {
				return
			}
			st.Agents = nil
			st.CurrentAgentID = ""
		})
		return
	}
	agents = append([]Agent{metaAgent()}, agents...)

	s.commit(func(st *State) {
		if st.CurrentWorkspaceID != workspaceID {
			return
		}
		st.Agents = agents
		stillExists := false
		for _, a := range agents {
			if a.ID == st.CurrentAgentID {
				stillExists = true
				break
			}
		}
		if !stillExists {
			st.CurrentAgentID = agents[0].ID
			st.CurrentGroupID = ""
			st.Messages = st.ChatHistory[agents[0].ID]
		}
	})
}

func (s *Store) LoadGroups(ctx context.Context, workspaceID string) {
	groups, err := s.client.FetchGroups(ctx, workspaceID)
	if err != nil {
		s.logger.Error("failed to load groups", map[string]interface{}{"error": err.Error()})
		return
	}
	s.commit(func(st *State) {
		if st.CurrentWorkspaceID != workspaceID {
			return
		}
		st.Groups = groups
	})
}

// --- Context selection ---

// saveOutgoingSessionLocked persists the visible transcript of the context
// being switched away from. Caller holds the store lock via commit.
func (s *Store) saveOutgoingSessionLocked(st *State) {
	prev := st.CurrentAgentID
	if prev == "" {
		prev = st.CurrentGroupID
	}
	if prev != "" && st.CurrentSessionID != "" && len(st.Messages) > 0 {
		s.sessions.SaveSession(prev, st.CurrentSessionID, st.Messages)
	}
}

// SetCurrentAgentID selects a single agent, clearing any group selection. The
// incoming agent's transcript is restored from the in-memory history map; a
// session id is generated only when none is active yet.
func (s *Store) SetCurrentAgentID(id string) {
	s.commit(func(st *State) {
		s.saveOutgoingSessionLocked(st)
		st.CurrentAgentID = id
		st.CurrentGroupID = ""
		st.Messages = st.ChatHistory[id]
		if st.CurrentSessionID == "" {
			st.CurrentSessionID = s.sessions.GenerateSessionID()
		}
	})
}

// SetCurrentGroupID selects a group (empty id deselects), clearing any agent
// selection, and refreshes the group transcript from the server since group
// history is server-authoritative.
func (s *Store) SetCurrentGroupID(ctx context.Context, id string) {
	s.commit(func(st *State) {
		s.saveOutgoingSessionLocked(st)
		st.CurrentGroupID = id
		st.CurrentAgentID = ""
		if id == "" {
			st.Messages = nil
			st.CurrentSessionID = ""
			return
		}
		st.Messages = st.GroupMessages[id]
		st.CurrentSessionID = s.sessions.GenerateSessionID()
	})
	if id != "" {
		s.LoadGroupMessages(ctx, id)
	}
}

// CurrentContextID returns the active agent or group id, or "".
func (s *Store) CurrentContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentAgentID != "" {
		return s.state.CurrentAgentID
	}
	return s.state.CurrentGroupID
}

// --- Messages ---

// AddMessage appends a message to the current context's history and the
// visible view, marks it for animation, and auto-saves the session.
func (s *Store) AddMessage(message Message) {
	var contextID, sessionID string
	var saved []Message
	s.commit(func(st *State) {
		key := st.CurrentAgentID
		isGroup := false
		if key == "" {
			key = st.CurrentGroupID
			isGroup = true
		}
		if key == "" {
			return
		}
		message.ShouldAnimate = true
		if st.CurrentSessionID == "" {
			st.CurrentSessionID = s.sessions.GenerateSessionID()
		}
		if isGroup {
			st.GroupMessages[key] = appendMessages(st.GroupMessages[key], message)
			st.Messages = st.GroupMessages[key]
		} else {
			st.ChatHistory[key] = appendMessages(st.ChatHistory[key], message)
			st.Messages = st.ChatHistory[key]
		}
		contextID = key
		sessionID = st.CurrentSessionID
		saved = st.Messages
	})
	if contextID != "" {
		s.sessions.SaveSession(contextID, sessionID, saved)
	}
}

// SetMessages replaces the current context's transcript.
func (s *Store) SetMessages(messages []Message) {
	s.commit(func(st *State) {
		st.Messages = messages
		if st.CurrentAgentID != "" {
			st.ChatHistory[st.CurrentAgentID] = messages
		} else if st.CurrentGroupID != "" {
			st.GroupMessages[st.CurrentGroupID] = messages
		}
	})
}

// AddGroupMessage appends to a group transcript, mirroring the visible view
// when that group is current.
func (s *Store) AddGroupMessage(groupID string, message Message) {
	s.commit(func(st *State) {
		st.GroupMessages[groupID] = appendMessages(st.GroupMessages[groupID], message)
		if st.CurrentGroupID == groupID {
			st.Messages = st.GroupMessages[groupID]
		}
	})
}

// LoadGroupMessages reloads a group transcript from the server, which owns
// finalized group content.
func (s *Store) LoadGroupMessages(ctx context.Context, groupID string) {
	workspaceID := s.Snapshot().CurrentWorkspaceID
	if workspaceID == "" {
		return
	}
	messages, err := s.client.FetchGroupMessages(ctx, workspaceID, groupID, 0)
	if err != nil {
		s.logger.Error("failed to load group messages", map[string]interface{}{
			"group": groupID,
			"error": err.Error(),
		})
		return
	}
	s.commit(func(st *State) {
		st.GroupMessages[groupID] = messages
		if st.CurrentGroupID == groupID {
			st.Messages = messages
		}
	})
}

func (s *Store) SetIsLoading(v bool) {
	s.commit(func(st *State) { st.IsLoading = v })
}

func (s *Store) SetChatMode(mode ChatMode) {
	s.commit(func(st *State) { st.ChatMode = mode })
}

// --- Sending ---

// SendChatMessage routes a user message to the current context: single-agent
// request/response, legacy group streaming, or workflow plan generation.
func (s *Store) SendChatMessage(ctx context.Context, text string) {
	snap := s.Snapshot()
	if snap.CurrentWorkspaceID == "" {
		return
	}

	if snap.CurrentGroupID != "" {
		if snap.ChatMode == ChatModeWorkflow {
			s.GenerateWorkflowPlan(ctx, text)
			return
		}
		s.AddGroupMessage(snap.CurrentGroupID, Message{Role: "user", Content: text})
		s.runGroupStep(ctx, snap.CurrentWorkspaceID, snap.CurrentGroupID, text, 1)
		return
	}

	if snap.CurrentAgentID == "" {
		return
	}
	agentID := snap.CurrentAgentID

	// Optimistic append: the user's message is visible before the request
	// leaves, and stays visible if the request fails.
	s.commit(func(st *State) {
		st.ChatHistory[agentID] = appendMessages(st.ChatHistory[agentID], Message{Role: "user", Content: text})
		st.Messages = st.ChatHistory[agentID]
		st.IsLoading = true
	})
	defer s.SetIsLoading(false)

	resp, err := s.client.Invoke(ctx, snap.CurrentWorkspaceID, agentID, text)
	if err != nil {
		s.logger.Error("chat invoke failed", map[string]interface{}{"error": err.Error()})
		return
	}

	s.commit(func(st *State) {
		reply := Message{Role: "assistant", Content: resp.Response, ShouldAnimate: true}
		st.ChatHistory[agentID] = appendMessages(st.ChatHistory[agentID], reply)
		if st.CurrentAgentID == agentID {
			st.Messages = st.ChatHistory[agentID]
		}
	})

	final := s.Snapshot()
	if final.CurrentSessionID != "" {
		s.sessions.SaveSession(agentID, final.CurrentSessionID, final.ChatHistory[agentID])
	}
}

// --- Legacy group streaming ---

type streamAgentPayload struct {
	Agent  string          `json:"agent"`
	Tool   string          `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Result json.RawMessage `json:"result"`
}

type streamFinishPayload struct {
	Status string `json:"status"`
}

type streamContentPayload struct {
	Content string `json:"content"`
	Name    string `json:"name"`
}

type streamPlanPayload struct {
	Data *Workflow `json:"data"`
}

// previewString renders a raw JSON payload field as a display string.
func previewString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// runGroupStep drives one SSE orchestration step and, when the server signals
// CONTINUE, schedules the next step with an empty message after a fixed
// delay. Turns are counted from 1; exceeding maxAutoTurns logs a warning and
// stops without surfacing an error.
func (s *Store) runGroupStep(ctx context.Context, workspaceID, groupID, message string, turn int) {
	if turn > maxAutoTurns {
		s.logger.Warn("max auto turns reached", map[string]interface{}{"group": groupID})
		return
	}

	s.ClearActivity()

	rc, err := s.client.StreamGroupChat(ctx, workspaceID, groupID, message)
	if err != nil {
		s.logger.Error("group stream request failed", map[string]interface{}{"error": err.Error()})
		s.ClearActivity()
		return
	}

	shouldContinue := false
	err = ReadStream(rc, func(ev StreamEvent) {
		if cont, isFinish := s.handleGroupStreamEvent(ctx, groupID, ev); isFinish {
			shouldContinue = cont
		}
	})
	rc.Close()
	if err != nil {
		s.logger.Error("group stream read failed", map[string]interface{}{"error": err.Error()})
	}

	if shouldContinue {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.continueDelay):
		}
		s.runGroupStep(ctx, workspaceID, groupID, "", turn+1)
	}
}

// handleGroupStreamEvent applies one parsed SSE event to the store. The
// second return reports whether this was a finish event; the first carries
// its CONTINUE decision.
func (s *Store) handleGroupStreamEvent(ctx context.Context, groupID string, ev StreamEvent) (bool, bool) {
	switch ev.Name {
	case "thinking":
		var p streamAgentPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false, false
		}
		s.PushActivity(ActivityEvent{
			ID:        fmt.Sprintf("%s-thinking-%d", p.Agent, s.now().UnixMilli()),
			Type:      "thinking",
			AgentName: p.Agent,
			Timestamp: s.now().UnixMilli(),
		})
	case "tool_call":
		var p streamAgentPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false, false
		}
		s.PushActivity(ActivityEvent{
			ID:        fmt.Sprintf("%s-tool-%s-%d", p.Agent, p.Tool, s.now().UnixMilli()),
			Type:      "tool_call",
			AgentName: p.Agent,
			ToolName:  p.Tool,
			Args:      previewString(p.Args),
			Timestamp: s.now().UnixMilli(),
		})
	case "tool_result":
		var p streamAgentPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false, false
		}
		s.PushActivity(ActivityEvent{
			ID:        fmt.Sprintf("%s-result-%s-%d", p.Agent, p.Tool, s.now().UnixMilli()),
			Type:      "tool_result",
			AgentName: p.Agent,
			ToolName:  p.Tool,
			Result:    previewString(p.Result),
			Timestamp: s.now().UnixMilli(),
		})
	case "agent_message":
		// The server persisted a finalized message; it is the source of truth
		// for finalized content, so reload instead of reconstructing locally.
		s.LoadGroupMessages(ctx, groupID)
	case "plan":
		var p streamPlanPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false, false
		}
		if p.Data != nil {
			s.SetPendingWorkflow(p.Data)
		}
	case "finish":
		var p streamFinishPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return false, true
		}
		s.ClearActivity()
		s.LoadGroupMessages(ctx, groupID)
		return p.Status == "CONTINUE", true
	case "error":
		var p streamContentPayload
		_ = json.Unmarshal(ev.Data, &p)
		s.logger.Error("group stream error event", map[string]interface{}{"content": p.Content})
		s.ClearActivity()
	}
	return false, false
}

// --- Workflow mode ---

// GenerateWorkflowPlan asks the server for a workflow plan and parks it for
// user approval. Outside workflow mode (or without a group) it degrades to a
// plain chat send.
func (s *Store) GenerateWorkflowPlan(ctx context.Context, userRequest string) {
	snap := s.Snapshot()
	if snap.ChatMode != ChatModeWorkflow || snap.CurrentGroupID == "" {
		s.SendChatMessage(ctx, userRequest)
		return
	}

	s.SetIsLoading(true)
	s.AddMessage(Message{Role: "user", Content: userRequest})

	plan, err := s.client.GeneratePlan(ctx, snap.CurrentWorkspaceID, snap.CurrentGroupID, userRequest)
	if err != nil {
		s.logger.Error("failed to generate workflow plan", map[string]interface{}{"error": err.Error()})
		s.commit(func(st *State) {
			st.PendingWorkflow = nil
			st.IsLoading = false
		})
		return
	}
	s.commit(func(st *State) {
		st.PendingWorkflow = plan
		st.IsLoading = false
	})
}

func (s *Store) SetPendingWorkflow(workflow *Workflow) {
	s.commit(func(st *State) { st.PendingWorkflow = workflow })
}

func (s *Store) CancelWorkflow() {
	s.commit(func(st *State) { st.PendingWorkflow = nil })
}

// ExecuteWorkflow streams execution of the pending plan. Each streamed agent
// message is appended with animation; transport failures surface as a
// synthetic "System" message in the transcript rather than disappearing.
func (s *Store) ExecuteWorkflow(ctx context.Context) {
	snap := s.Snapshot()
	workflow := snap.PendingWorkflow
	groupID := snap.CurrentGroupID
	if workflow == nil || groupID == "" {
		return
	}

	s.commit(func(st *State) {
		st.IsLoading = true
		st.PendingWorkflow = nil
		st.ApprovedWorkflows = append(st.ApprovedWorkflows, *workflow)
	})
	defer s.SetIsLoading(false)

	rc, err := s.client.StreamWorkflowExecution(ctx, snap.CurrentWorkspaceID, groupID, workflow, snap.Messages)
	if err != nil {
		s.logger.Error("workflow execution failed", map[string]interface{}{"error": err.Error()})
		s.AddGroupMessage(groupID, Message{
			Role:    "assistant",
			Name:    "System",
			Content: fmt.Sprintf("Execution Connection Error: %v", err),
		})
		return
	}
	defer rc.Close()

	err = ReadStream(rc, func(ev StreamEvent) {
		switch ev.Name {
		case "agent_message":
			var p streamContentPayload
			if err := json.Unmarshal(ev.Data, &p); err != nil {
				return
			}
			s.AddGroupMessage(groupID, Message{
				Role:          "assistant",
				Content:       p.Content,
				Name:          p.Name,
				ShouldAnimate: true,
			})
		case "finish":
			s.logger.Info("workflow finished", map[string]interface{}{"group": groupID})
		case "error":
			var p streamContentPayload
			_ = json.Unmarshal(ev.Data, &p)
			s.AddGroupMessage(groupID, Message{
				Role:    "assistant",
				Name:    "System",
				Content: "System Error: " + p.Content,
			})
		}
	})
	if err != nil {
		s.logger.Error("workflow stream read failed", map[string]interface{}{"error": err.Error()})
		s.AddGroupMessage(groupID, Message{
			Role:    "assistant",
			Name:    "System",
			Content: fmt.Sprintf("Execution Connection Error: %v", err),
		})
	}
}

// --- Session lifecycle ---

// StartNewSession saves the current transcript, clears the context (server
// side too for groups) and allocates a fresh session id.
func (s *Store) StartNewSession(ctx context.Context) {
	snap := s.Snapshot()
	contextID := snap.CurrentAgentID
	isGroup := false
	if contextID == "" {
		contextID = snap.CurrentGroupID
		isGroup = true
	}
	if contextID == "" {
		return
	}

	current := snap.Messages
	if isGroup {
		current = snap.GroupMessages[contextID]
	}
	if len(current) > 0 {
		sessionID := snap.CurrentSessionID
		if sessionID == "" {
			sessionID = s.sessions.GenerateSessionID()
		}
		s.sessions.SaveSession(contextID, sessionID, current)
	}

	if isGroup && snap.CurrentWorkspaceID != "" {
		if err := s.client.ClearGroupMessages(ctx, snap.CurrentWorkspaceID, contextID); err != nil {
			s.logger.Error("failed to clear group messages", map[string]interface{}{"error": err.Error()})
		}
	}

	newID := s.sessions.GenerateSessionID()
	s.commit(func(st *State) {
		if isGroup {
			st.GroupMessages[contextID] = nil
			if st.CurrentGroupID == contextID {
				st.Messages = nil
			}
		} else {
			st.ChatHistory[contextID] = nil
			if st.CurrentAgentID == contextID {
				st.Messages = nil
			}
		}
		st.CurrentSessionID = newID
	})
}

// SwitchSession saves the outgoing transcript and replaces the context's view
// with a stored session.
func (s *Store) SwitchSession(sessionID string) {
	snap := s.Snapshot()
	contextID := snap.CurrentAgentID
	isGroup := false
	if contextID == "" {
		contextID = snap.CurrentGroupID
		isGroup = true
	}
	if contextID == "" {
		return
	}

	current := snap.Messages
	if isGroup {
		current = snap.GroupMessages[contextID]
	}
	if len(current) > 0 && snap.CurrentSessionID != "" {
		s.sessions.SaveSession(contextID, snap.CurrentSessionID, current)
	}

	session := s.sessions.LoadSession(contextID, sessionID)
	if session == nil {
		return
	}

	s.commit(func(st *State) {
		if isGroup {
			st.GroupMessages[contextID] = session.Messages
			if st.CurrentGroupID == contextID {
				st.Messages = session.Messages
			}
		} else {
			st.ChatHistory[contextID] = session.Messages
			if st.CurrentAgentID == contextID {
				st.Messages = session.Messages
			}
		}
		st.CurrentSessionID = sessionID
	})
}
