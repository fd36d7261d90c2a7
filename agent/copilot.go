// Package agent implements the maintenance copilot: a tool-invoking
// conversational loop with per-session transcripts and a hard
// confirmation gate in front of every mutating tool call.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lumenstay/copilot/core"
	"github.com/lumenstay/copilot/llm"
	"github.com/lumenstay/copilot/logging"
	"github.com/lumenstay/copilot/recall"
	"github.com/lumenstay/copilot/tools"
)

const (
	defaultMaxRounds = 8

	apologyText = "I'm sorry, I wasn't able to complete that request right now. " +
		"Please try again, or contact the front desk directly."
)

// Copilot drives the agent loop for all sessions. Sessions are
// serialized individually; different sessions proceed in parallel.
type Copilot struct {
	completer llm.Completer
	registry  *tools.Registry
	archive   *recall.Archive
	log       *logging.Logger

	system    string
	model     string
	maxTokens int64
	maxRounds int

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id      string
	mu      sync.Mutex
	turns   []core.Turn
	pending *llm.ToolCall
}

// Option configures the copilot.
type Option func(*Copilot)

// WithModel overrides the completion model name.
func WithModel(model string) Option {
	return func(c *Copilot) { c.model = model }
}

// WithMaxTokens overrides the per-completion token cap.
func WithMaxTokens(n int64) Option {
	return func(c *Copilot) { c.maxTokens = n }
}

// WithMaxRounds overrides the tool-call loop fuse.
func WithMaxRounds(n int) Option {
	return func(c *Copilot) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Copilot) { c.system = prompt }
}

// WithRecall enables prompt enrichment from the exchange archive.
func WithRecall(archive *recall.Archive) Option {
	return func(c *Copilot) { c.archive = archive }
}

// New creates a copilot over the given completion capability and tool
// registry.
func New(completer llm.Completer, registry *tools.Registry, log *logging.Logger, opts ...Option) *Copilot {
	c := &Copilot{
		completer: completer,
		registry:  registry,
		log:       log.Sub("agent"),
		system:    systemPrompt,
		maxTokens: 4096,
		maxRounds: defaultMaxRounds,
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat processes one user message for the given session and returns
// the assistant's reply. Concurrent calls on the same session are
// serialized; a failed completion leaves no partial assistant or tool
// turns behind, so the caller can retry the same message.
func (c *Copilot) Chat(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message is empty", core.ErrInvalidInput)
	}

	s := c.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	base := len(s.turns)
	turns := make([]core.Turn, base, base+4)
	copy(turns, s.turns)
	turns = append(turns, core.UserTurn(text))

	// Resolve a pending mutating proposal against the user's reply.
	// This is the only place a mutating tool ever executes, and only
	// when the reply is an explicit affirmative.
	pending := s.pending
	executedPending := false
	if pending != nil {
		inv := core.ToolInvocation{CallID: pending.ID, Name: pending.Name, Args: pending.Input}
		if isAffirmative(text) {
			inv = c.execute(ctx, *pending)
			executedPending = true
			c.log.Info().Str("session", s.id).Str("tool", pending.Name).Msg("confirmed action executed")
		} else {
			inv.Result = "not executed: the user did not confirm this action"
			inv.Failed = true
			c.log.Info().Str("session", s.id).Str("tool", pending.Name).Msg("proposal declined")
		}
		turns = append(turns, core.ToolTurn(inv))
	}

	commitFailure := func() {
		// Keep the triggering user turn; keep the resolved proposal
		// only when its side effect actually ran, so a retry cannot
		// execute it twice.
		s.turns = append(s.turns, turns[base])
		if executedPending {
			s.turns = append(s.turns, turns[base+1])
			s.pending = nil
		}
	}

	system := c.system
	if c.archive != nil {
		enrichment, err := c.archive.Retrieve(ctx, text)
		switch {
		case err != nil:
			c.log.Warn().Err(err).Msg("recall retrieval failed")
		case enrichment != "":
			system += "\n\n" + enrichment
		}
	}

	schemas := c.toolSchemas()
	var reply string
	var newPending *llm.ToolCall

loop:
	for round := 0; ; round++ {
		if round >= c.maxRounds {
			c.log.Error().Str("session", s.id).Int("rounds", round).Msg("tool loop fuse tripped")
			turns = append(turns, core.AssistantTurn(apologyText, nil))
			s.turns = turns
			s.pending = nil
			return apologyText, fmt.Errorf("%w: %d rounds", core.ErrToolLoopExceeded, round)
		}
		if err := ctx.Err(); err != nil {
			commitFailure()
			return "", fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
		}

		resp, err := c.completer.Complete(ctx, llm.Request{
			System:    system,
			History:   turns,
			Tools:     schemas,
			Model:     c.model,
			MaxTokens: c.maxTokens,
		})
		if err != nil {
			commitFailure()
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			turns = append(turns, core.AssistantTurn(resp.Text, nil))
			reply = resp.Text
			break loop
		}

		invocations := make([]core.ToolInvocation, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			invocations = append(invocations, core.ToolInvocation{
				CallID: call.ID, Name: call.Name, Args: call.Input,
			})
		}

		if call, ok := c.firstMutating(resp.ToolCalls); ok {
			// Confirmation gate: never execute a mutating call in the
			// round that requested it. Propose it and hand the floor
			// back to the user. Every other call in the round still
			// gets a tool turn so no invocation is left unresolved:
			// read-only calls run now, extra mutating calls are
			// refused so only one proposal is ever outstanding.
			ask := strings.TrimSpace(resp.Text)
			if ask == "" {
				ask = proposalText(c.registry, call)
			}
			turns = append(turns, core.AssistantTurn(ask, invocations))
			for _, other := range resp.ToolCalls {
				if other.ID == call.ID {
					continue
				}
				if def, known := c.registry.Lookup(other.Name); known && def.Mutating {
					turns = append(turns, core.ToolTurn(core.ToolInvocation{
						CallID: other.ID,
						Name:   other.Name,
						Args:   other.Input,
						Result: "not executed: another action is awaiting confirmation",
						Failed: true,
					}))
					continue
				}
				turns = append(turns, core.ToolTurn(c.execute(ctx, other)))
			}
			pendingCall := call
			newPending = &pendingCall
			reply = ask
			c.log.Info().Str("session", s.id).Str("tool", call.Name).Msg("mutating call proposed, awaiting confirmation")
			break loop
		}

		turns = append(turns, core.AssistantTurn(resp.Text, invocations))
		for _, call := range resp.ToolCalls {
			turns = append(turns, core.ToolTurn(c.execute(ctx, call)))
		}
	}

	s.turns = turns
	s.pending = newPending

	if c.archive != nil && newPending == nil {
		if err := c.archive.Record(ctx, s.id, text, reply); err != nil {
			c.log.Warn().Err(err).Msg("recall record failed")
		}
	}
	return reply, nil
}

// Transcript returns a copy of the session's turns. Unknown sessions
// return nil.
func (c *Copilot) Transcript(sessionID string) []core.Turn {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (c *Copilot) session(id string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		s = &session{id: id}
		c.sessions[id] = s
	}
	return s
}

// execute runs one tool call and records the outcome. Handler and
// dispatch failures become failed invocation results fed back to the
// completion provider; the conversation keeps going.
func (c *Copilot) execute(ctx context.Context, call llm.ToolCall) core.ToolInvocation {
	inv := core.ToolInvocation{CallID: call.ID, Name: call.Name, Args: call.Input}
	result, err := c.registry.Invoke(ctx, call.Name, call.Input)
	if err != nil {
		inv.Failed = true
		inv.Result = err.Error()
		c.log.Warn().Str("tool", call.Name).Err(err).Msg("tool invocation failed")
		return inv
	}
	inv.Result = result
	return inv
}

func (c *Copilot) firstMutating(calls []llm.ToolCall) (llm.ToolCall, bool) {
	for _, call := range calls {
		if def, ok := c.registry.Lookup(call.Name); ok && def.Mutating {
			return call, true
		}
	}
	return llm.ToolCall{}, false
}

func (c *Copilot) toolSchemas() []llm.ToolSchema {
	defs := c.registry.Definitions()
	schemas := make([]llm.ToolSchema, 0, len(defs))
	for _, def := range defs {
		schemas = append(schemas, llm.ToolSchema{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return schemas
}

func proposalText(registry *tools.Registry, call llm.ToolCall) string {
	if def, ok := registry.Lookup(call.Name); ok && def.Description != "" {
		return fmt.Sprintf("Before I proceed, please confirm: %s. Shall I go ahead?",
			strings.TrimRight(def.Description, "."))
	}
	return fmt.Sprintf("Before I proceed, please confirm: should I run %s now?", call.Name)
}
