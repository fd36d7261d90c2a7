// Package core holds the conversation transcript model shared by the
// agent, the LLM adapters, and the HTTP layer. Transcripts are plain
// serializable values so session state can live outside the process.
package core

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolInvocation is one requested tool call and, once executed, its
// outcome. It is created when the completion provider asks for a call
// and mutated exactly once when the result is attached.
type ToolInvocation struct {
	CallID string          `json:"call_id"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result string          `json:"result,omitempty"`
	Failed bool            `json:"failed,omitempty"`
}

// Turn is one message in a conversation transcript. Turns are
// append-only and strictly ordered: a tool turn always follows the
// assistant turn that requested the invocation it carries.
type Turn struct {
	Role        Role             `json:"role"`
	Text        string           `json:"text,omitempty"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	At          time.Time        `json:"at"`
}

// UserTurn builds a user turn.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, At: time.Now().UTC()}
}

// AssistantTurn builds an assistant turn carrying any tool calls the
// provider requested in that round.
func AssistantTurn(text string, invocations []ToolInvocation) Turn {
	return Turn{Role: RoleAssistant, Text: text, Invocations: invocations, At: time.Now().UTC()}
}

// ToolTurn builds a tool-result turn for a single invocation.
func ToolTurn(inv ToolInvocation) Turn {
	return Turn{Role: RoleTool, Invocations: []ToolInvocation{inv}, At: time.Now().UTC()}
}
