package contract

import "time"

type SubagentTag string

const (
	TagMusic   SubagentTag = "music"
	TagInvoice SubagentTag = "invoice"
	TagConcert SubagentTag = "concert"
)

// RoutePriority orders tags for tie-breaking when the classifier scores
// more than one tag equally. Lower index wins.
var RoutePriority = []SubagentTag{TagInvoice, TagMusic, TagConcert}

func IsValidTag(tag SubagentTag) bool {
	switch tag {
	case TagMusic, TagInvoice, TagConcert:
		return true
	}
	return false
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleTool  Role = "tool"

	// RoleSystem only appears in transcripts assembled for a single
	// completion call; persisted thread history never contains it.
	RoleSystem Role = "system"
)

// Message is one role-tagged entry in a thread transcript.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`         // tool name for RoleTool
	ToolCallID string     `json:"tool_call_id,omitempty"` // correlates RoleTool with the request
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // agent-issued tool requests
	At         time.Time  `json:"at"`
}

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ToolSpec describes a callable tool offered to the completion service.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Completion is the completion service's answer: either final text or a
// batch of tool call requests. Some providers attach preamble text to
// tool calls, so both fields may be set.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

type RouteAction string

const (
	ActionDelegate RouteAction = "delegate"
	ActionRespond  RouteAction = "respond"
	ActionDone     RouteAction = "done"
)

// RouteDecision is the supervisor's verdict for one supervise step.
type RouteDecision struct {
	Action RouteAction
	Tag    SubagentTag // set when Action == ActionDelegate
	Reply  string      // set when Action == ActionRespond (or a closing line for ActionDone)
}

// UserMemory is the durable per-customer preference profile.
type UserMemory struct {
	MusicPreferences  []string `json:"music_preferences,omitempty"`
	PreferredLocation string   `json:"preferred_location,omitempty"`
	MaxConcertBudget  *float64 `json:"max_concert_budget,omitempty"`
}

// MemoryDelta is the untrusted, partial profile update extracted from a
// turn transcript by the completion service.
type MemoryDelta struct {
	MusicPreferences  []string `json:"music_preferences,omitempty"`
	PreferredLocation string   `json:"preferred_location,omitempty"`
	MaxConcertBudget  *float64 `json:"max_concert_budget,omitempty"`
}

// IsZero reports whether the delta carries no update at all.
func (d MemoryDelta) IsZero() bool {
	return len(d.MusicPreferences) == 0 && d.PreferredLocation == "" && d.MaxConcertBudget == nil
}
