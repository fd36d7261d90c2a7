// Package tools implements the named, schema-typed operations the
// conversational agent may invoke, and the registry that dispatches
// them. Tools declare whether they mutate external state; the agent's
// confirmation gate keys off that classification.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lumenstay/copilot/core"
)

// Definition describes one registered tool.
type Definition struct {
	Name        string
	Description string
	// Mutating tools require explicit user confirmation before the
	// agent will execute them.
	Mutating    bool
	InputSchema map[string]any
}

// Handler executes a tool call. Input is the raw JSON argument payload;
// the returned string is fed back to the completion provider verbatim.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Registry maps tool names to handlers. Registration happens at
// startup; the set is immutable afterward from the agent's point of
// view.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

type entry struct {
	def     Definition
	handler Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(def Definition, h Handler) error {
	if def.Name == "" {
		return fmt.Errorf("%w: tool name is empty", core.ErrInvalidInput)
	}
	if h == nil {
		return fmt.Errorf("%w: tool %s has no handler", core.ErrInvalidInput, def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("%w: tool %s already registered", core.ErrDuplicateKey, def.Name)
	}
	r.entries[def.Name] = entry{def: def, handler: h}
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions returns all registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// Lookup returns the definition for a tool name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.def, ok
}

// Invoke validates args against the tool's declared schema and runs the
// handler. Unknown names fail with core.ErrUnknownTool, bad arguments
// with core.ErrSchemaViolation, and handler failures are wrapped in
// core.ToolExecutionError so the agent can report them and keep the
// conversation going.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrUnknownTool, name)
	}
	if err := validateInput(e.def.InputSchema, args); err != nil {
		return "", err
	}
	result, err := e.handler(ctx, args)
	if err != nil {
		return "", &core.ToolExecutionError{Tool: name, Err: err}
	}
	return result, nil
}
