package app

import "time"

// Message is a single chat transcript entry. Messages belong to exactly one
// conversation context (an agent id or a group id) and are immutable once
// appended, except for ShouldAnimate which is transient UI state and is not
// persisted.
type Message struct {
	Role            string `json:"role"` // user|assistant|system
	Content         string `json:"content"`
	Name            string `json:"name,omitempty"` // speaker name for group chat
	ShouldAnimate   bool   `json:"-"`
	IsPlan          bool   `json:"is_plan,omitempty"`
	IsBasketSummary bool   `json:"is_basket_summary,omitempty"`
}

// SessionMeta is the message-free header of a stored session.
type SessionMeta struct {
	ID           string    `json:"id"`
	ContextID    string    `json:"contextId"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// Session is a persisted conversation snapshot for one context.
type Session struct {
	SessionMeta
	Messages []Message `json:"messages"`
}

// ActivityEvent is one streamed orchestration step (thinking, tool call,
// tool result) attributed to a named agent.
type ActivityEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // thinking|tool_call|tool_result|done|error
	AgentName string `json:"agentName"`
	ToolName  string `json:"toolName,omitempty"`
	Args      string `json:"args,omitempty"`
	Result    string `json:"result,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WorkflowStep is one planned step of a group workflow.
type WorkflowStep struct {
	AgentID     string `json:"agent_id,omitempty"`
	AgentName   string `json:"agent_name,omitempty"`
	Task        string `json:"task,omitempty"`
	Description string `json:"description,omitempty"`
}

// Workflow is a server-generated plan awaiting user approval. At most one
// pending plan exists at a time.
type Workflow struct {
	PlanName    string         `json:"plan_name"`
	Description string         `json:"description"`
	Steps       []WorkflowStep `json:"workflow"`
}

// BasketItem is one dropped text fragment in the local basket.
type BasketItem struct {
	ID      string    `json:"id"`
	Text    string    `json:"text"`
	SavedAt time.Time `json:"savedAt"`
}
