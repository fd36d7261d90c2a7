// Package llm defines the chat-completion capability the agent drives
// and its provider adapters. The capability is stateless per call: the
// agent supplies the full transcript every time.
package llm

import (
	"context"
	"encoding/json"

	"github.com/lumenstay/copilot/core"
)

// ToolSchema describes one tool offered to the completion provider.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Request is the input to a single completion call.
type Request struct {
	System    string
	History   []core.Turn
	Tools     []ToolSchema
	Model     string
	MaxTokens int64
}

// ToolCall is the provider asking for one tool invocation.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Response is either a final assistant message (no tool calls) or a
// request for one or more tool invocations.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Completer is the external chat-completion capability.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
