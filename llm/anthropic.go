package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lumenstay/copilot/core"
)

const defaultModel = "claude-sonnet-4-20250514"

// AnthropicClient adapts the Anthropic Messages API to the Completer
// interface.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient builds a Completer backed by the Anthropic API.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &c}
}

// Complete sends the full transcript and tool set to the Messages API
// and returns either final text or the requested tool calls. Transport
// failures and timeouts surface as core.ErrProviderUnavailable so the
// caller can retry without worrying about partial state.
func (a *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  buildMessages(req.History),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrProviderUnavailable, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", core.ErrProviderUnavailable, err)
	}

	out := &Response{StopReason: string(resp.StopReason)}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	return out, nil
}

// buildMessages converts a neutral transcript into Anthropic message
// params. Tool turns become user-role tool_result blocks. Consecutive
// user-role content is merged into a single message with tool_result
// blocks first, which is what the Messages API requires when a
// confirmation reply sits between a tool proposal and its resolution.
func buildMessages(history []core.Turn) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam
	var userResults, userTexts []anthropic.ContentBlockParamUnion

	flushUser := func() {
		if len(userResults)+len(userTexts) == 0 {
			return
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(userResults)+len(userTexts))
		blocks = append(blocks, userResults...)
		blocks = append(blocks, userTexts...)
		msgs = append(msgs, anthropic.NewUserMessage(blocks...))
		userResults, userTexts = nil, nil
	}

	for _, turn := range history {
		switch turn.Role {
		case core.RoleUser:
			userTexts = append(userTexts, anthropic.NewTextBlock(turn.Text))

		case core.RoleTool:
			for _, inv := range turn.Invocations {
				userResults = append(userResults, anthropic.NewToolResultBlock(inv.CallID, inv.Result, inv.Failed))
			}

		case core.RoleAssistant:
			flushUser()
			var blocks []anthropic.ContentBlockParamUnion
			if turn.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(turn.Text))
			}
			for _, inv := range turn.Invocations {
				blocks = append(blocks, anthropic.NewToolUseBlock(inv.CallID, inv.Args, inv.Name))
			}
			if len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flushUser()
	return msgs
}

func buildTools(tools []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := t.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.InputSchema["required"].([]string); ok {
			schema.Required = req
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}
