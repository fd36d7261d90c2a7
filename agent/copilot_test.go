package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/lumenstay/copilot/core"
	"github.com/lumenstay/copilot/llm"
	"github.com/lumenstay/copilot/logging"
	"github.com/lumenstay/copilot/tools"
)

// testTools returns a registry with one mutating and one read-only
// tool, plus counters for how often each handler ran.
func testTools(t *testing.T) (*tools.Registry, *int, *int) {
	t.Helper()
	r := tools.NewRegistry()
	saves, lookups := 0, 0

	err := r.Register(tools.Definition{
		Name:        "save_request",
		Description: "Save a maintenance request",
		Mutating:    true,
	}, func(context.Context, json.RawMessage) (string, error) {
		saves++
		return `{"saved":true}`, nil
	})
	if err != nil {
		t.Fatalf("register save_request: %v", err)
	}

	err = r.Register(tools.Definition{
		Name:        "lookup_requests",
		Description: "Look up maintenance requests",
	}, func(context.Context, json.RawMessage) (string, error) {
		lookups++
		return `[]`, nil
	})
	if err != nil {
		t.Fatalf("register lookup_requests: %v", err)
	}
	return r, &saves, &lookups
}

func saveCall(id string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: "save_request", Input: json.RawMessage(`{"room":"204"}`)}
}

func TestMutatingToolWaitsForConfirmation(t *testing.T) {
	registry, saves, _ := testTools(t)
	completer := &llm.MockCompleter{
		Responses: []*llm.Response{
			{Text: "I can save that. Shall I go ahead?", ToolCalls: []llm.ToolCall{saveCall("tc-1")}},
			{Text: "Done, the maintenance team has been notified."},
		},
	}
	c := New(completer, registry, logging.Nop())
	ctx := context.Background()

	reply, err := c.Chat(ctx, "s1", "the faucet in 204 is leaking")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "I can save that. Shall I go ahead?" {
		t.Fatalf("reply = %q", reply)
	}
	if *saves != 0 {
		t.Fatalf("mutating tool ran %d times before confirmation, want 0", *saves)
	}

	reply, err = c.Chat(ctx, "s1", "yes please")
	if err != nil {
		t.Fatalf("confirm chat: %v", err)
	}
	if reply != "Done, the maintenance team has been notified." {
		t.Fatalf("reply = %q", reply)
	}
	if *saves != 1 {
		t.Fatalf("mutating tool ran %d times after confirmation, want 1", *saves)
	}

	// The confirmation turn must precede the tool execution turn.
	turns := c.Transcript("s1")
	var confirmIdx, toolIdx = -1, -1
	for i, turn := range turns {
		if turn.Role == core.RoleUser && turn.Text == "yes please" {
			confirmIdx = i
		}
		if turn.Role == core.RoleTool {
			toolIdx = i
		}
	}
	if confirmIdx == -1 || toolIdx == -1 {
		t.Fatalf("transcript missing turns: %+v", turns)
	}
	if confirmIdx > toolIdx {
		t.Fatalf("tool turn at %d precedes confirmation at %d", toolIdx, confirmIdx)
	}
}

func TestConfirmedActionRunsExactlyOnce(t *testing.T) {
	registry, saves, _ := testTools(t)
	completer := &llm.MockCompleter{
		Responses: []*llm.Response{
			{Text: "Save this?", ToolCalls: []llm.ToolCall{saveCall("tc-1")}},
			{Text: "Saved."},
			{Text: "Anything else?"},
		},
	}
	c := New(completer, registry, logging.Nop())
	ctx := context.Background()

	if _, err := c.Chat(ctx, "s1", "broken lamp in 117"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := c.Chat(ctx, "s1", "yes"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// A second affirmative must not re-run the already executed action.
	if _, err := c.Chat(ctx, "s1", "yes"); err != nil {
		t.Fatalf("repeat affirmative: %v", err)
	}
	if *saves != 1 {
		t.Fatalf("mutating tool ran %d times, want exactly 1", *saves)
	}
}

func TestDeclinedProposalNeverExecutes(t *testing.T) {
	registry, saves, _ := testTools(t)
	completer := &llm.MockCompleter{
		Responses: []*llm.Response{
			{Text: "Save this?", ToolCalls: []llm.ToolCall{saveCall("tc-1")}},
			{Text: "Okay, I won't save it."},
		},
	}
	c := New(completer, registry, logging.Nop())
	ctx := context.Background()

	if _, err := c.Chat(ctx, "s1", "dripping tap"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := c.Chat(ctx, "s1", "no, not yet"); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if *saves != 0 {
		t.Fatalf("mutating tool ran %d times after decline, want 0", *saves)
	}

	turns := c.Transcript("s1")
	var declined *core.ToolInvocation
	for i := range turns {
		if turns[i].Role == core.RoleTool {
			declined = &turns[i].Invocations[0]
		}
	}
	if declined == nil {
		t.Fatalf("no tool turn in transcript: %+v", turns)
	}
	if !declined.Failed || declined.Result != "not executed: the user did not confirm this action" {
		t.Fatalf("declined invocation = %+v", declined)
	}
}

func TestAmbiguousReplyDoesNotConfirm(t *testing.T) {
	registry, saves, _ := testTools(t)
	completer := &llm.MockCompleter{
		Responses: []*llm.Response{
			{Text: "Save this?", ToolCalls: []llm.ToolCall{saveCall("tc-1")}},
			{Text: "Understood."},
		},
	}
	c := New(completer, registry, logging.Nop())
	ctx := context.Background()

	if _, err := c.Chat(ctx, "s1", "the hallway light flickers"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	// "yesterday" contains "yes" but is not a confirmation.
	if _, err := c.Chat(ctx, "s1", "it started yesterday"); err != nil {
		t.Fatalf("ambiguous reply: %v", err)
	}
	if *saves != 0 {
		t.Fatalf("mutating tool ran %d times on ambiguous reply, want 0", *saves)
	}
}

// assertInvocationsResolved checks that every tool call requested in an
// assistant turn has a matching tool turn somewhere in the transcript.
// A call without a result makes the history unreplayable against the
// Messages API, so this must hold whenever no proposal is outstanding.
func assertInvocationsResolved(t *testing.T, turns []core.Turn) {
	t.Helper()
	resolved := make(map[string]bool)
	for _, turn := range turns {
		if turn.Role != core.RoleTool {
			continue
		}
		for _, inv := range turn.Invocations {
			resolved[inv.CallID] = true
		}
	}
	for _, turn := range turns {
		if turn.Role != core.RoleAssistant {
			continue
		}
		for _, inv := range turn.Invocations {
			if !resolved[inv.CallID] {
				t.Fatalf("tool call %s (%s) has no tool turn resolving it", inv.CallID, inv.Name)
			}
		}
	}
}

func TestMixedRoundRunsReadOnlyCallsBeforeProposing(t *testing.T) {
	registry, saves, lookups := testTools(t)
	completer := &llm.MockCompleter{
		Responses: []*llm.Response{
			{Text: "I checked past reports. Save this one?", ToolCalls: []llm.ToolCall{
				{ID: "ro-1", Name: "lookup_requests", Input: json.RawMessage(`{}`)},
				saveCall("mut-1"),
			}},
			{Text: "Saved."},
		},
	}
	c := New(completer, registry, logging.Nop())
	ctx := context.Background()

	if _, err := c.Chat(ctx, "s1", "leaking faucet in 204, anything similar before?"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if *lookups != 1 {
		t.Fatalf("read-only call ran %d times in the proposal round, want 1", *lookups)
	}
	if *saves != 0 {
		t.Fatalf("mutating call ran %d times before confirmation, want 0", *saves)
	}

	// The read-only result is already committed alongside the proposal.
	var roResolved bool
	for _, turn := range c.Transcript("s1") {
		if turn.Role == core.RoleTool && turn.Invocations[0].CallID == "ro-1" {
			roResolved = true
		}
	}
	if !roResolved {
		t.Fatal("read-only call ro-1 has no tool turn in the committed transcript")
	}

	if _, err := c.Chat(ctx, "s1", "yes"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if *saves != 1 {
		t.Fatalf("mutating call ran %d times after confirmation, want 1", *saves)
	}
	assertInvocationsResolved(t, c.Transcript("s1"))
}

func TestExtraMutatingCallsAreRefusedNotOrphaned(t *testing.T) {
	registry, saves, _ := testTools(t)
	completer := &llm.MockCompleter{
		Responses: []*llm.Response{
			{Text: "Save both?", ToolCalls: []llm.ToolCall{
				saveCall("mut-1"),
				saveCall("mut-2"),
			}},
			{Text: "Saved the first one."},
		},
	}
	c := New(completer, registry, logging.Nop())
	ctx := context.Background()

	if _, err := c.Chat(ctx, "s1", "two broken lamps"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if *saves != 0 {
		t.Fatalf("mutating call ran %d times before confirmation, want 0", *saves)
	}

	// The second mutating call is refused in place, leaving only the
	// first as the outstanding proposal.
	var refused *core.ToolInvocation
	for _, turn := range c.Transcript("s1") {
		if turn.Role == core.RoleTool && turn.Invocations[0].CallID == "mut-2" {
			refused = &turn.Invocations[0]
		}
	}
	if refused == nil {
		t.Fatal("second mutating call mut-2 has no tool turn in the committed transcript")
	}
	if !refused.Failed {
		t.Fatalf("refused invocation = %+v, want failed marker", refused)
	}

	if _, err := c.Chat(ctx, "s1", "yes"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if *saves != 1 {
		t.Fatalf("mutating call ran %d times after confirmation, want exactly 1", *saves)
	}
	assertInvocationsResolved(t, c.Transcript("s1"))
}

func TestReadOnlyToolRunsWithoutConfirmation(t *testing.T) {
	registry, _, lookups := testTools(t)
	completer := &llm.MockCompleter{
		Responses: []*llm.Response{
			{ToolCalls: []llm.ToolCall{{ID: "tc-1", Name: "lookup_requests", Input: json.RawMessage(`{}`)}}},
			{Text: "No earlier reports for that room."},
		},
	}
	c := New(completer, registry, logging.Nop())

	reply, err := c.Chat(context.Background(), "s1", "was this reported before?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "No earlier reports for that room." {
		t.Fatalf("reply = %q", reply)
	}
	if *lookups != 1 {
		t.Fatalf("read-only tool ran %d times, want 1", *lookups)
	}
}

func TestProviderFailureLeavesHistoryRetryable(t *testing.T) {
	registry, _, _ := testTools(t)
	completer := &llm.MockCompleter{
		Errs:      []error{core.ErrProviderUnavailable},
		Responses: []*llm.Response{nil, {Text: "All noted."}},
	}
	c := New(completer, registry, logging.Nop())
	ctx := context.Background()

	_, err := c.Chat(ctx, "s1", "leaky faucet in 204")
	if !errors.Is(err, core.ErrProviderUnavailable) {
		t.Fatalf("got %v, want ErrProviderUnavailable", err)
	}

	turns := c.Transcript("s1")
	for _, turn := range turns {
		if turn.Role != core.RoleUser {
			t.Fatalf("non-user turn %+v left behind by failed completion", turn)
		}
	}

	// Retry succeeds and the transcript stays coherent.
	reply, err := c.Chat(ctx, "s1", "leaky faucet in 204")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if reply != "All noted." {
		t.Fatalf("reply = %q", reply)
	}
}

func TestCancellationLeavesNoPartialState(t *testing.T) {
	registry, saves, _ := testTools(t)
	ctx, cancel := context.WithCancel(context.Background())
	completer := &llm.MockCompleter{
		CompleteFunc: func(ctx context.Context, _ llm.Request) (*llm.Response, error) {
			cancel()
			return nil, fmt.Errorf("%w: %v", core.ErrProviderUnavailable, ctx.Err())
		},
	}
	c := New(completer, registry, logging.Nop())

	_, err := c.Chat(ctx, "s1", "the sink in 117 is blocked")
	if !errors.Is(err, core.ErrProviderUnavailable) {
		t.Fatalf("got %v, want ErrProviderUnavailable", err)
	}

	turns := c.Transcript("s1")
	if len(turns) != 1 || turns[0].Role != core.RoleUser {
		t.Fatalf("aborted chat committed %+v, want only the user turn", turns)
	}

	// The aborted round must not leave a proposal behind: a later
	// affirmative is just a message, never a confirmation.
	completer.CompleteFunc = nil
	completer.Responses = []*llm.Response{{Text: "Could you tell me more?"}}
	if _, err := c.Chat(context.Background(), "s1", "yes"); err != nil {
		t.Fatalf("chat after cancellation: %v", err)
	}
	if *saves != 0 {
		t.Fatalf("mutating tool ran %d times after aborted round, want 0", *saves)
	}
	for _, turn := range c.Transcript("s1") {
		if turn.Role == core.RoleTool {
			t.Fatalf("unexpected tool turn %+v after cancellation", turn)
		}
	}
}

func TestToolLoopFuse(t *testing.T) {
	registry, _, lookups := testTools(t)
	completer := &llm.MockCompleter{
		CompleteFunc: func(_ context.Context, _ llm.Request) (*llm.Response, error) {
			return &llm.Response{
				ToolCalls: []llm.ToolCall{{ID: "tc", Name: "lookup_requests", Input: json.RawMessage(`{}`)}},
			}, nil
		},
	}
	c := New(completer, registry, logging.Nop(), WithMaxRounds(3))

	reply, err := c.Chat(context.Background(), "s1", "check everything")
	if !errors.Is(err, core.ErrToolLoopExceeded) {
		t.Fatalf("got %v, want ErrToolLoopExceeded", err)
	}
	if reply != apologyText {
		t.Fatalf("reply = %q, want apology", reply)
	}
	if *lookups != 3 {
		t.Fatalf("tool ran %d times with a 3-round fuse, want 3", *lookups)
	}

	turns := c.Transcript("s1")
	last := turns[len(turns)-1]
	if last.Role != core.RoleAssistant || last.Text != apologyText {
		t.Fatalf("last turn = %+v, want apology assistant turn", last)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	registry, _, _ := testTools(t)
	c := New(&llm.MockCompleter{}, registry, logging.Nop())

	for _, text := range []string{"", "   ", "\n"} {
		if _, err := c.Chat(context.Background(), "s1", text); !errors.Is(err, core.ErrInvalidInput) {
			t.Fatalf("Chat(%q): got %v, want ErrInvalidInput", text, err)
		}
	}
	if len(c.Transcript("s1")) != 0 {
		t.Fatal("empty messages must not touch the transcript")
	}
}

func TestIsAffirmative(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"yes", true},
		{"Yes, please!", true},
		{"go ahead", true},
		{"sounds good to me", true},
		{"ok save it", true},
		{"no", false},
		{"no, don't save it yet", false},
		{"yes, but wait a moment", false},
		{"it started yesterday", false},
		{"what would that do?", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isAffirmative(tc.text); got != tc.want {
			t.Errorf("isAffirmative(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
