package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/marcolabs/marco-go-sdk/core"
)

// DefaultModel is used when a request does not name one.
const DefaultModel = "claude-sonnet-4-20250514"

// AnthropicClient adapts the Anthropic Messages API to the ChatClient
// interface.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a client authenticated with the given API key.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{client: &client}
}

// Generate performs one blocking Messages API call.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	return fromMessage(resp), nil
}

// GenerateStream performs one streaming Messages API call, forwarding text
// deltas to onText and accumulating the full message.
func (c *AnthropicClient) GenerateStream(ctx context.Context, req *Request, onText func(chunk string)) (*Response, error) {
	params, err := toParams(req)
	if err != nil {
		return nil, err
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			// Accumulation errors are non-fatal; deltas keep flowing.
			continue
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok && onText != nil {
				onText(delta.Text)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}
	return fromMessage(&message), nil
}

func toParams(req *Request) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	for _, msg := range req.Messages {
		apiMsg, err := toAPIMessage(msg)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Messages = append(params.Messages, apiMsg)
	}

	for _, spec := range req.Tools {
		params.Tools = append(params.Tools, toAPITool(spec))
	}
	return params, nil
}

func toAPIMessage(msg ChatMessage) (anthropic.MessageParam, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
	for _, block := range msg.Blocks {
		switch block.Type {
		case BlockText:
			blocks = append(blocks, anthropic.NewTextBlock(block.Text))
		case BlockToolUse:
			blocks = append(blocks, anthropic.NewToolUseBlock(block.ID, block.Input, block.Name))
		case BlockToolResult:
			blocks = append(blocks, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
		default:
			return anthropic.MessageParam{}, fmt.Errorf("unsupported block type %q", block.Type)
		}
	}

	switch msg.Role {
	case core.RoleAssistant:
		return anthropic.NewAssistantMessage(blocks...), nil
	default:
		return anthropic.NewUserMessage(blocks...), nil
	}
}

func toAPITool(spec ToolSpec) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{}
	if props, ok := spec.InputSchema["properties"]; ok {
		schema.Properties = props
	}
	if required, ok := spec.InputSchema["required"].([]string); ok {
		schema.Required = required
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: schema,
		},
	}
}

func fromMessage(msg *anthropic.Message) *Response {
	resp := &Response{
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Blocks = append(resp.Blocks, ContentBlock{Type: BlockText, Text: block.Text})
		case "tool_use":
			resp.Blocks = append(resp.Blocks, ContentBlock{
				Type:  BlockToolUse,
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	return resp
}
