package domain

import "encoding/json"

// ChatMessage is the provider-agnostic chat message shape used by the agents
// and LLM integrations. ToolCalls is populated on assistant messages that
// request tool invocations; ToolCallID ties a "tool" role message back to the
// call it answers.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is one structured function invocation requested by the model.
// Arguments is the raw JSON argument payload as returned by the provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema declares one tool the model may call: a name, a description and
// a JSON Schema for its arguments.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)
